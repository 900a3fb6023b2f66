package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Drive a "data carrier detect" LED from a GPIO line.
 *
 * Description:	The receiver reports carrier as on when a sync word
 *		has been matched and a frame is being collected, and off
 *		when the frame is accepted or rejected.
 *
 *		The line is requested through the Linux GPIO character
 *		device, e.g. chip "gpiochip0", line 24 on a Raspberry Pi.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/warthog618/go-gpiocdev"
)

type DCDConfig struct {
	Chip      string `yaml:"chip"` // Empty to disable.
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low"`
}

func (c DCDConfig) Enabled() bool {
	return c.Chip != ""
}

func (c DCDConfig) Validate() error {
	if c.Enabled() && c.Line < 0 {
		return errors.New("line is required with chip")
	}

	return nil
}

// dcdLine is the part of *gpiocdev.Line we use.
type dcdLine interface {
	SetValue(value int) error
	Close() error
}

type DCDOutput struct {
	line   dcdLine
	state  bool
	logger *log.Logger
}

func OpenDCDOutput(cfg DCDConfig, logger *log.Logger) (*DCDOutput, error) {
	var opts = []gpiocdev.LineReqOption{
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("mfsk"),
	}

	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	var line, err = gpiocdev.RequestLine(cfg.Chip, cfg.Line, opts...)
	if err != nil {
		return nil, fmt.Errorf("requesting DCD line %s:%d: %w", cfg.Chip, cfg.Line, err)
	}

	logger.Info("DCD output", "chip", cfg.Chip, "line", cfg.Line, "active_low", cfg.ActiveLow)

	return newDCDOutput(line, logger), nil
}

func newDCDOutput(line dcdLine, logger *log.Logger) *DCDOutput {
	return &DCDOutput{line: line, state: false, logger: logger}
}

// Set turns the LED on or off.  Repeats are not sent to the hardware.
func (d *DCDOutput) Set(on bool) {
	if on == d.state {
		return
	}

	d.state = on

	if err := d.line.SetValue(IfThenElse(on, 1, 0)); err != nil {
		d.logger.Warn("Failed to set DCD line", "err", err)
	}
}

func (d *DCDOutput) State() bool {
	return d.state
}

func (d *DCDOutput) Close() error {
	d.Set(false)

	return d.line.Close() //nolint:wrapcheck
}
