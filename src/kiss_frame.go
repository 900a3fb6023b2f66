package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	KISS framing for passing received payloads to client
 *		applications.
 *
 * Description:	A KISS frame on the wire is:
 *
 *			* FEND (0xC0)
 *			* Command: high nibble is the port, low nibble
 *			  the command.  0 is a data frame.
 *			* Data, with FEND and FESC escaped.
 *			* FEND
 *
 *		We only ever send data frames.  Anything a client sends
 *		to us is unwrapped and logged but otherwise ignored since
 *		there is no transmitter.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

const FEND = 0xC0
const FESC = 0xDB
const TFEND = 0xDC
const TFESC = 0xDD

const KISS_CMD_DATA_FRAME = 0

const DEFAULT_KISS_PORT = 8001

// KissConfig selects where KISS frames go.  All can be used at once.
type KissConfig struct {
	TCPPort    int    `yaml:"tcp_port"` // 0 to disable.
	Pty        bool   `yaml:"pty"`
	SerialPort string `yaml:"serial_port"`
	Baud       int    `yaml:"baud"`
	DNSSD      bool   `yaml:"dns_sd"`
	DNSSDName  string `yaml:"dns_sd_name"`
}

func DefaultKissConfig() KissConfig {
	return KissConfig{ //nolint:exhaustruct
		TCPPort: DEFAULT_KISS_PORT,
	}
}

func (c KissConfig) Validate() error {
	if c.TCPPort < 0 || c.TCPPort > 65535 {
		return fmt.Errorf("tcp port must be 0 to 65535, got %d", c.TCPPort)
	}

	if c.Baud < 0 {
		return fmt.Errorf("baud must not be negative, got %d", c.Baud)
	}

	if c.DNSSD && c.TCPPort == 0 {
		return errors.New("dns_sd needs a tcp port")
	}

	return nil
}

/*-------------------------------------------------------------------
 *
 * Name:        KissEncapsulate
 *
 * Purpose:     Add the framing and escapes.
 *
 * Inputs:	in	- Command byte followed by data.
 *
 * Returns:	FEND, escaped data, FEND.
 *
 *--------------------------------------------------------------------*/

func KissEncapsulate(in []byte) []byte {
	var buf bytes.Buffer

	buf.WriteByte(FEND)

	for _, b := range in {
		switch b {
		case FEND:
			buf.WriteByte(FESC)
			buf.WriteByte(TFEND)
		case FESC:
			buf.WriteByte(FESC)
			buf.WriteByte(TFESC)
		default:
			buf.WriteByte(b)
		}
	}

	buf.WriteByte(FEND)

	return buf.Bytes()
}

// KissDataFrame builds a complete data frame for the given port.
func KissDataFrame(port int, payload []byte) []byte {
	var stemp = make([]byte, 0, len(payload)+1)
	stemp = append(stemp, byte((port<<4)|KISS_CMD_DATA_FRAME)) //nolint:gosec
	stemp = append(stemp, payload...)

	return KissEncapsulate(stemp)
}

/*-------------------------------------------------------------------
 *
 * Name:        KissUnwrap
 *
 * Purpose:     Extract original data from a KISS frame.
 *
 * Inputs:	in	- FEND (optional), escaped data, FEND.
 *
 * Returns:	The data without escapes or FENDs.  First byte is the
 *		command.
 *
 *--------------------------------------------------------------------*/

func KissUnwrap(in []byte) ([]byte, error) {
	if len(in) < 2 {
		return nil, errors.New("KISS frame too short")
	}

	if in[0] == FEND {
		in = in[1:]
	}

	if in[len(in)-1] != FEND {
		return nil, errors.New("KISS frame should end with FEND")
	}

	in = in[:len(in)-1]

	var out = make([]byte, 0, len(in))
	var escapedMode = false

	for _, b := range in {
		if b == FEND {
			return nil, errors.New("FEND not expected in middle of KISS frame")
		}

		if escapedMode {
			switch b {
			case TFEND:
				out = append(out, FEND)
			case TFESC:
				out = append(out, FESC)
			default:
				return nil, fmt.Errorf("unexpected 0x%02x after FESC", b)
			}

			escapedMode = false
		} else if b == FESC {
			escapedMode = true
		} else {
			out = append(out, b)
		}
	}

	return out, nil
}

// kissFrameReader collects bytes from a client into frames.
type kissFrameReader struct {
	buf      []byte
	inFrame  bool
	maxFrame int
}

func newKissFrameReader() *kissFrameReader {
	return &kissFrameReader{buf: nil, inFrame: false, maxFrame: 2*MAX_PAYLOAD_LEN + 2}
}

// Add one byte.  Returns a complete frame, FENDs included, when one ends.
func (kf *kissFrameReader) Add(b byte) []byte {
	if !kf.inFrame {
		if b == FEND {
			kf.inFrame = true
			kf.buf = append(kf.buf[:0], b)
		}

		return nil
	}

	if b == FEND {
		if len(kf.buf) == 1 {
			// Back to back FENDs.  The second starts the frame.
			return nil
		}

		var frame = append(kf.buf, b) //nolint:gocritic
		kf.buf = nil
		kf.inFrame = false

		return frame
	}

	if len(kf.buf) >= kf.maxFrame {
		kf.buf = kf.buf[:0]
		kf.inFrame = false

		return nil
	}

	kf.buf = append(kf.buf, b)

	return nil
}

// kissClientFrame logs whatever a client sent.  We have no transmitter.
func kissClientFrame(logger *log.Logger, from string, frame []byte) {
	var data, err = KissUnwrap(frame)
	if err == nil && len(data) == 0 {
		err = errors.New("empty KISS frame")
	}

	if err != nil {
		logger.Debug("KISS: Bad frame from client", "from", from, "err", err)
		return
	}

	logger.Debug("KISS: Ignoring frame from client, receive only", "from", from, "cmd", data[0], "len", len(data)-1)
}

// KissPort is one place KISS frames can be sent.
type KissPort interface {
	Send(frame []byte) error
	Close() error
}

/*-------------------------------------------------------------------
 *
 * Name:        KissOutput
 *
 * Purpose:     Send each received payload to all the KISS client
 *		interfaces that were configured.
 *
 *--------------------------------------------------------------------*/

type KissOutput struct {
	ports  []KissPort
	server *KissServer
	logger *log.Logger
}

func NewKissOutput(logger *log.Logger, ports ...KissPort) *KissOutput {
	var ko = &KissOutput{ports: ports, server: nil, logger: logger}

	for _, p := range ports {
		if s, ok := p.(*KissServer); ok {
			ko.server = s
		}
	}

	return ko
}

/*-------------------------------------------------------------------
 *
 * Name:        OpenKissOutput
 *
 * Purpose:     Open everything the configuration asks for.
 *
 * Description:	The TCP server's accept loop and the DNS-SD responder
 *		run until ctx is done.
 *
 *--------------------------------------------------------------------*/

func OpenKissOutput(ctx context.Context, cfg KissConfig, logger *log.Logger) (*KissOutput, error) {
	var ports []KissPort

	var closeAll = func() {
		for _, p := range ports {
			_ = p.Close()
		}
	}

	if cfg.TCPPort > 0 {
		var server, err = NewKissServer(fmt.Sprintf(":%d", cfg.TCPPort), logger)
		if err != nil {
			return nil, err
		}

		ports = append(ports, server)

		go func() {
			if err := server.Serve(ctx); err != nil {
				logger.Error("KISS TCP server stopped", "err", err)
			}
		}()

		if cfg.DNSSD {
			go func() {
				if err := DNSSDAnnounce(ctx, cfg.DNSSDName, cfg.TCPPort, logger); err != nil {
					logger.Error("DNS-SD announcement failed", "err", err)
				}
			}()
		}
	}

	if cfg.Pty {
		var kp, err = NewKissPty(logger)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("could not create pseudo terminal for KISS TNC: %w", err)
		}

		ports = append(ports, kp)
	}

	if cfg.SerialPort != "" {
		var ks, err = NewKissSerial(cfg.SerialPort, cfg.Baud, logger)
		if err != nil {
			closeAll()
			return nil, err
		}

		ports = append(ports, ks)
	}

	return NewKissOutput(logger, ports...), nil
}

// Server is the TCP server, or nil if there isn't one.
func (ko *KissOutput) Server() *KissServer {
	return ko.server
}

// Send one payload as a data frame on port 0.
func (ko *KissOutput) Send(p Packet) {
	var frame = KissDataFrame(0, p.Payload)

	for _, port := range ko.ports {
		if err := port.Send(frame); err != nil {
			ko.logger.Warn("KISS send failed", "err", err)
		}
	}
}

func (ko *KissOutput) Close() error {
	var errs []error
	for _, p := range ko.ports {
		errs = append(errs, p.Close())
	}

	return errors.Join(errs...)
}
