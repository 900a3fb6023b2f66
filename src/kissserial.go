package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Send received packets, KISS framed, out a serial port.
 *
 * Description:	For a physical cable, or a Bluetooth serial profile
 *		like /dev/rfcomm0, to some other device.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pkg/term"
)

type KissSerial struct {
	fd     *term.Term
	name   string
	logger *log.Logger
	wg     sync.WaitGroup
}

/*-------------------------------------------------------------------
 *
 * Name:	NewKissSerial
 *
 * Inputs:	devicename	- Usually /dev/tty...
 *
 *		baud		- 1200, 4800, 9600 bps, etc.
 *				  If 0, leave it alone.
 *
 *---------------------------------------------------------------*/

func NewKissSerial(devicename string, baud int, logger *log.Logger) (*KissSerial, error) {
	var fd, err = term.Open(devicename, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("could not open serial port %s: %w", devicename, err)
	}

	switch baud {
	case 0: /* Leave it alone. */
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		if err := fd.SetSpeed(baud); err != nil {
			_ = fd.Close()
			return nil, fmt.Errorf("setting speed of %s: %w", devicename, err)
		}
	default:
		logger.Error("Unsupported serial port speed.  Using 4800.", "baud", baud)

		_ = fd.SetSpeed(4800)
	}

	var ks = &KissSerial{ //nolint:exhaustruct
		fd:     fd,
		name:   devicename,
		logger: logger,
	}

	logger.Info("Opened serial port for KISS", "port", devicename, "baud", baud)

	ks.wg.Add(1)

	go ks.listen()

	return ks, nil
}

func (ks *KissSerial) Send(frame []byte) error {
	var n, err = ks.fd.Write(frame)
	if err != nil {
		return fmt.Errorf("KISS serial port %s write: %w", ks.name, err)
	}

	if n != len(frame) {
		return fmt.Errorf("KISS serial port %s: wrote %d of %d", ks.name, n, len(frame))
	}

	return nil
}

func (ks *KissSerial) listen() {
	defer ks.wg.Done()

	var kf = newKissFrameReader()
	var buf = make([]byte, 64)

	for {
		var n, err = ks.fd.Read(buf)

		for _, b := range buf[:n] {
			if frame := kf.Add(b); frame != nil {
				kissClientFrame(ks.logger, ks.name, frame)
			}
		}

		if err != nil {
			return
		}
	}
}

func (ks *KissSerial) Close() error {
	var err = ks.fd.Close()

	ks.wg.Wait()

	return err //nolint:wrapcheck
}
