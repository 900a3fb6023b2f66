package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:     Convert tones or bits to MFSK audio, for writing to a
 *		.WAV file or feeding straight into the demodulator.
 *
 * Description:	Constant amplitude.  The phase accumulator carries on
 *		across symbol changes so there are no clicks.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"math"
	"math/rand/v2"
)

const DEFAULT_AMPLITUDE = 0.5

type Modulator struct {
	cfg       ModemConfig
	codec     *ToneCodec
	symbolLen int
	amplitude float64
	phase     float64 // radians, kept in [0, 2pi)
}

/*-------------------------------------------------------------------
 *
 * Name:        NewModulator
 *
 * Purpose:     Create a tone generator.
 *
 * Inputs:	cfg		- Sample rate, tones, gray coding.
 *				  Timing options are ignored.
 *
 *		amplitude	- Peak, relative to full scale of 1.0.
 *
 *--------------------------------------------------------------------*/

func NewModulator(cfg ModemConfig, amplitude float64) (*Modulator, error) {
	cfg.TimingMode = TimingForced // Timing has no meaning here.

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var codec, err = NewToneCodec(cfg.ToneCount, cfg.GrayCoded)
	if err != nil {
		return nil, err
	}

	return &Modulator{
		cfg:       cfg,
		codec:     codec,
		symbolLen: cfg.SymbolLength(),
		amplitude: amplitude,
		phase:     0,
	}, nil
}

func (m *Modulator) SymbolLength() int {
	return m.symbolLen
}

// AppendTone adds one symbol period of a tone to dst.
func (m *Modulator) AppendTone(dst []float64, tone int) ([]float64, error) {
	if tone < 0 || tone >= m.cfg.ToneCount {
		return dst, fmt.Errorf("%w: %d", ErrToneOutOfRange, tone)
	}

	var freq = m.cfg.BaseFrequency + float64(tone)*m.cfg.SymbolRate
	var step = 2 * math.Pi * freq / float64(m.cfg.SampleRate)

	for range m.symbolLen {
		dst = append(dst, m.amplitude*math.Cos(m.phase))

		m.phase += step
		if m.phase >= 2*math.Pi {
			m.phase -= 2 * math.Pi
		}
	}

	return dst, nil
}

func (m *Modulator) ModulateTones(tones []int) ([]float64, error) {
	var out = make([]float64, 0, len(tones)*m.symbolLen)

	for _, t := range tones {
		var err error

		out, err = m.AppendTone(out, t)
		if err != nil {
			return out, err
		}
	}

	return out, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        BitsToTones
 *
 * Purpose:     Group bits into symbols, most significant first.
 *
 * Description:	A partial final group is padded with zeros.
 *
 *--------------------------------------------------------------------*/

func (m *Modulator) BitsToTones(bits []byte) ([]int, error) {
	var width = m.codec.BitsPerSymbol()
	var tones = make([]int, 0, (len(bits)+width-1)/width)
	var group = make([]byte, width)

	for i := 0; i < len(bits); i += width {
		clear(group)
		copy(group, bits[i:min(i+width, len(bits))])

		var tone, err = m.codec.BitsToTone(group)
		if err != nil {
			return tones, err
		}

		tones = append(tones, tone)
	}

	return tones, nil
}

func (m *Modulator) ModulateBits(bits []byte) ([]float64, error) {
	var tones, err = m.BitsToTones(bits)
	if err != nil {
		return nil, err
	}

	return m.ModulateTones(tones)
}

// Silence returns the given number of symbol periods of nothing.
// The phase accumulator is left alone.
func (m *Modulator) Silence(symbols int) []float64 {
	return make([]float64, symbols*m.symbolLen)
}

/*-------------------------------------------------------------------
 *
 * Name:        NoiseSigmaForEbNo
 *
 * Purpose:     Standard deviation of white Gaussian noise giving a
 *		particular energy per bit to noise density ratio.
 *
 * Inputs:	ebno		- dB.
 *		amplitude	- Peak amplitude of the tones.
 *
 *--------------------------------------------------------------------*/

func NoiseSigmaForEbNo(cfg ModemConfig, amplitude float64, ebno float64) float64 {
	var variance = (amplitude * amplitude / 2) * float64(cfg.SampleRate) /
		(cfg.SymbolRate * math.Pow(10, ebno/10) * float64(cfg.BitsPerSymbol()))

	return math.Sqrt(variance)
}

// AddNoise adds white Gaussian noise, in place.
func AddNoise(samples []float64, rng *rand.Rand, sigma float64) {
	if sigma <= 0 {
		return
	}

	for i := range samples {
		samples[i] += sigma * rng.NormFloat64()
	}
}
