package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Command line options shared by the programs.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"

	"github.com/spf13/pflag"
)

type modemFlags struct {
	toneCount  *int
	symbolRate *float64
	base       *float64
	forced     *bool
	noGray     *bool
}

// addModemFlags adds the modem options.  Symbol timing only means
// something to programs that receive.
func addModemFlags(flags *pflag.FlagSet, receive bool) *modemFlags {
	var mf = &modemFlags{
		toneCount:  flags.IntP("tones", "n", DEFAULT_TONE_COUNT, "Number of tones, a power of 2."),
		symbolRate: flags.Float64P("symbol-rate", "s", DEFAULT_SYMBOL_RATE, "Symbols per second, also the tone spacing."),
		base:       flags.Float64P("base", "f", DEFAULT_BASE_FREQUENCY, "Frequency of tone 0, Hz."),
		forced:     new(bool),
		noGray:     flags.BoolP("no-gray", "G", false, "Plain binary tone mapping instead of gray code."),
	}

	if receive {
		mf.forced = flags.BoolP("forced-timing", "F", false, "Symbol boundaries at exact multiples of the symbol length, not recovered.")
	}

	return mf
}

func (mf *modemFlags) config(sampleRate int) ModemConfig {
	var c = DefaultModemConfig()

	c.SampleRate = sampleRate
	c.ToneCount = *mf.toneCount
	c.SymbolRate = *mf.symbolRate
	c.BaseFrequency = *mf.base
	c.GrayCoded = !*mf.noGray
	c.TimingMode = IfThenElse(*mf.forced, TimingForced, TimingRecovered)

	return c
}

type framerFlags struct {
	sync       *string
	payloadCap *int
}

func addFramerFlags(flags *pflag.FlagSet) *framerFlags {
	return &framerFlags{
		sync:       flags.StringP("sync", "y", "abcd", "Synchronisation pattern, hex."),
		payloadCap: flags.IntP("payload-cap", "c", DEFAULT_PAYLOAD_CAP, "Largest payload accepted, bytes."),
	}
}

func (ff *framerFlags) config() (FramerConfig, error) {
	var c = DefaultFramerConfig()

	var sync HexBytes
	if err := sync.UnmarshalText([]byte(*ff.sync)); err != nil {
		return c, err
	}

	c.Sync = sync
	c.PayloadCap = *ff.payloadCap

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("framer: %w", err)
	}

	return c, nil
}
