package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Act as a virtual KISS TNC for use by other applications
 *		that only know how to talk to a serial port.
 *
 * Description:	A pseudo terminal is created.  Its name is logged at
 *		startup, e.g. /dev/pts/3, so the client can be pointed
 *		at it.
 *
 *		If no one reads from the other end, the buffer fills and
 *		writes would block.  Writes go through a small queue
 *		and are discarded when it's full.
 *
 *---------------------------------------------------------------*/

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
)

const kissPtyQueue = 16

type KissPty struct {
	master *os.File
	slave  *os.File
	logger *log.Logger

	out       chan []byte
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewKissPty(logger *log.Logger) (*KissPty, error) {
	var ptmx, pts, err = pty.Open()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	var kp = &KissPty{ //nolint:exhaustruct
		master: ptmx,
		slave:  pts,
		logger: logger,
		out:    make(chan []byte, kissPtyQueue),
	}

	logger.Info("Virtual KISS TNC is available", "pty", pts.Name())

	kp.wg.Add(2)

	go kp.writer()
	go kp.listen()

	return kp, nil
}

// Name of the slave side, for the client application.
func (kp *KissPty) Name() string {
	return kp.slave.Name()
}

func (kp *KissPty) Send(frame []byte) error {
	select {
	case kp.out <- frame:
	default:
		kp.logger.Debug("KISS SEND - Discarding message because no one is listening", "pty", kp.slave.Name())
	}

	return nil
}

func (kp *KissPty) writer() {
	defer kp.wg.Done()

	for frame := range kp.out {
		if _, err := kp.master.Write(frame); err != nil {
			kp.logger.Warn("Error sending KISS message on pseudo terminal", "pty", kp.slave.Name(), "err", err)
		}
	}
}

func (kp *KissPty) listen() {
	defer kp.wg.Done()

	var kf = newKissFrameReader()
	var buf = make([]byte, 256)

	for {
		var n, err = kp.master.Read(buf)

		for _, b := range buf[:n] {
			if frame := kf.Add(b); frame != nil {
				kissClientFrame(kp.logger, kp.slave.Name(), frame)
			}
		}

		if err != nil {
			return
		}
	}
}

func (kp *KissPty) Close() error {
	var err error

	kp.closeOnce.Do(func() {
		close(kp.out)
		err = kp.master.Close()
		_ = kp.slave.Close()
		kp.wg.Wait()
	})

	return err //nolint:wrapcheck
}
