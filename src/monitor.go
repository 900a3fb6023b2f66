package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Show received packets and symbols on the terminal.
 *
 * Description:	Each packet is printed as
 *
 *			[timestamp] DECODED[n] m:ss.sss  snr = x.x dB  len = n
 *			text, with unprintable bytes as '.'
 *
 *		optionally followed by a hex dump.  The timestamp uses a
 *		strftime format and is only there when one is configured.
 *		The m:ss.sss is the position in the audio stream.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"io"

	"github.com/lestrrat-go/strftime"
)

type Monitor struct {
	w          io.Writer
	hex        bool
	symbols    bool
	stamp      *strftime.Strftime
	sampleRate int
	count      int
}

func NewMonitor(w io.Writer, cfg MonitorConfig, sampleRate int) (*Monitor, error) {
	var m = &Monitor{ //nolint:exhaustruct
		w:          w,
		hex:        cfg.Hex,
		symbols:    cfg.Symbols,
		sampleRate: sampleRate,
	}

	if cfg.TimestampFormat != "" {
		var f, err = strftime.New(cfg.TimestampFormat)
		if err != nil {
			return nil, fmt.Errorf("timestamp format %q: %w", cfg.TimestampFormat, err)
		}

		m.stamp = f
	}

	return m, nil
}

// Count is how many packets have been printed.
func (m *Monitor) Count() int {
	return m.count
}

func (m *Monitor) streamTime(sample int64) string {
	if m.sampleRate <= 0 {
		return "-:--.---"
	}

	var sec = float64(sample) / float64(m.sampleRate)
	var minutes = int(sec / 60)
	sec -= float64(minutes * 60)

	return fmt.Sprintf("%d:%06.3f", minutes, sec)
}

func (m *Monitor) Packet(p Packet) {
	m.count++

	if m.stamp != nil {
		fmt.Fprintf(m.w, "[%s] ", m.stamp.FormatString(p.Timestamp))
	}

	fmt.Fprintf(m.w, "DECODED[%d] %s  snr = %s dB  len = %d\n",
		m.count, m.streamTime(p.Sample), formatDB(p.SNR), len(p.Payload))
	fmt.Fprintf(m.w, "%s\n", printable(p.Payload))

	if m.hex {
		HexDump(m.w, p.Payload)
	}
}

// Symbol prints one detector decision, if enabled.
func (m *Monitor) Symbol(ev SymbolEvent) {
	if !m.symbols {
		return
	}

	fmt.Fprintf(m.w, "symbol %2d  at %d  %-13s snr = %s dB\n", ev.Tone, ev.Sample, ev.Source, formatDB(ev.SNR))
}

func formatDB(x float64) string {
	if !isFinite(x) {
		return "-"
	}

	return fmt.Sprintf("%.1f", x)
}
