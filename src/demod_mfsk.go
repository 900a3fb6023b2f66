package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Demodulator for multiple frequency shift keying.
 *
 * Description:	One of N equally spaced, orthogonal tones is sent for
 *		each symbol period.  For every incoming sample we:
 *
 *		1. Mix it down (or up) a little so the lowest tone lands
 *		   exactly on an FFT bin.  With tone spacing equal to the
 *		   symbol rate, every other tone then does too.
 *
 *		2. Take a symbol length FFT over the most recent symbol
 *		   length of mixed samples and keep the bins holding our
 *		   tones.  The biggest of those goes in an envelope ring.
 *
 *		3. Ask the timing strategy whether a symbol has just
 *		   filled the window.  See demod_timing.go.
 *
 *		4. If so, pick the strongest tone, update the signal to
 *		   noise estimate, and pass a SymbolEvent to the sink.
 *
 *		Everything is done one sample at a time, so it doesn't
 *		matter how the caller chops up the input.
 *
 *---------------------------------------------------------------*/

import (
	"math"
	"math/cmplx"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/dsp/fourier"
)

// SymbolEvent describes one demodulated symbol.
type SymbolEvent struct {
	Tone       int          // 0 to tone count - 1.
	Sample     int64        // Sample counter when the symbol was decided.
	SNR        float64      // Smoothed, dB.  -Inf until there is an estimate.
	SNRInstant float64      // Latest symbol only, dB.
	Source     TimingSource // What triggered the decision.
}

type Detector struct {
	cfg       ModemConfig
	symbolLen int
	toneZero  int
	toneCount int

	mixStep  float64 // radians per sample
	mixCount int64   // Keeps the mixer phase continuous between calls.

	rings  *sampleRings
	fft    *fourier.CmplxFFT
	window []complex128
	coeffs []complex128
	bins   []complex128

	envTwiddle []complex128 // exp(-j 2pi symbol_rate/fs i), over the whole envelope ring.

	timing boundaryDecider
	snr    *snrEstimator

	sample int64
	sink   func(SymbolEvent)
	logger *log.Logger

	sourceCounts [3]uint64
}

type DetectorOption func(*Detector)

func WithDetectorLogger(l *log.Logger) DetectorOption {
	return func(d *Detector) {
		d.logger = l
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        NewDetector
 *
 * Purpose:     Create a symbol detector.
 *
 * Inputs:	cfg	- Modem parameters.  Validated here.
 *
 *		sink	- Receives each SymbolEvent, synchronously, from
 *			  within Consume.  May be nil.
 *
 * Returns:	Error for an unusable configuration.
 *
 *--------------------------------------------------------------------*/

func NewDetector(cfg ModemConfig, sink func(SymbolEvent), opts ...DetectorOption) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var symbolLen = cfg.SymbolLength()
	var ringLen = TIMING_BUFFER_SYMBOLS * symbolLen

	var d = &Detector{ //nolint:exhaustruct
		cfg:        cfg,
		symbolLen:  symbolLen,
		toneZero:   cfg.ToneZero(),
		toneCount:  cfg.ToneCount,
		mixStep:    2 * math.Pi * cfg.MixingFrequency() / float64(cfg.SampleRate),
		rings:      newSampleRings(ringLen, cfg.ToneCount),
		fft:        fourier.NewCmplxFFT(symbolLen),
		window:     make([]complex128, symbolLen),
		coeffs:     make([]complex128, symbolLen),
		bins:       make([]complex128, cfg.ToneCount),
		envTwiddle: make([]complex128, ringLen),
		timing:     newBoundaryDecider(cfg),
		snr:        newSNREstimator(cfg.ToneCount),
		sink:       sink,
		logger:     quietLogger(),
	}

	var w = -2 * math.Pi * cfg.SymbolRate / float64(cfg.SampleRate)
	for i := range d.envTwiddle {
		d.envTwiddle[i] = cmplx.Rect(1, w*float64(i))
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

func (d *Detector) Config() ModemConfig {
	return d.cfg
}

// SampleCount is the number of samples consumed so far.
func (d *Detector) SampleCount() int64 {
	return d.sample
}

// SNR returns the smoothed and latest signal to noise estimates in dB.
func (d *Detector) SNR() (float64, float64) {
	return d.snr.smoothedDB(), d.snr.instantDB()
}

// SourceCount is how many symbols each timing source has produced.
func (d *Detector) SourceCount(s TimingSource) uint64 {
	if s < 0 || int(s) >= len(d.sourceCounts) {
		return 0
	}

	return d.sourceCounts[s]
}

// Reset returns the detector to its freshly created state.
func (d *Detector) Reset() {
	d.rings.reset()
	d.timing.reset()
	d.snr.reset()
	d.mixCount = 0
	d.sample = 0
	d.sourceCounts = [3]uint64{}
}

// Consume processes a block of audio samples, nominally in [-1, 1].
func (d *Detector) Consume(samples []float64) {
	for _, x := range samples {
		d.step(x)
	}
}

// Consume32 is Consume for float32 audio, as delivered by sound cards and WAV readers.
func (d *Detector) Consume32(samples []float32) {
	for _, x := range samples {
		d.step(float64(x))
	}
}

func (d *Detector) step(x float64) {

	/* Tone alignment. */

	var s, c = math.Sincos(d.mixStep * float64(d.mixCount))
	d.mixCount++

	d.rings.pushRaw(complex(x*c, x*s))

	/* Spectrum over the last symbol period. */

	d.rings.recentRaw(d.window)
	d.fft.Coefficients(d.coeffs, d.window)

	var peak = 0.0

	for t := range d.bins {
		d.bins[t] = d.coeffs[d.toneZero+t]

		var m = cmplx.Abs(d.bins[t])
		if m > peak {
			peak = m
		}
	}

	d.rings.push(d.bins, peak)

	/* Timing. */

	var phase = 0.0
	if d.timing.needsPhase() {
		phase = d.envelopePhase()
	}

	if source, ok := d.timing.decide(d.sample, phase); ok {
		d.emit(source)
	}

	d.sample++
}

/*-------------------------------------------------------------------
 *
 * Name:        envelopePhase
 *
 * Purpose:     Phase of the symbol rate component of the envelope.
 *
 * Returns:	Radians in [0, 2pi).
 *
 * Description:	Single point DFT over the whole max magnitude ring,
 *		oldest entry first.
 *
 *--------------------------------------------------------------------*/

func (d *Detector) envelopePhase() float64 {
	var re, im float64

	for i, w := range d.envTwiddle {
		var m = d.rings.maxAt(i)
		re += m * real(w)
		im += m * imag(w)
	}

	var phase = math.Atan2(im, re)
	if phase < 0 {
		phase += 2 * math.Pi
	}

	return phase
}

// hardDecision picks the strongest tone in the newest spectrum.  Ties go to the lowest.
func (d *Detector) hardDecision() int {
	var best = 0
	var bestMag = -1.0

	for t := range d.toneCount {
		var m = cmplx.Abs(d.rings.newestTone(t))
		if m > bestMag {
			best = t
			bestMag = m
		}
	}

	return best
}

func (d *Detector) emit(source TimingSource) {
	var tone = d.hardDecision()

	d.snr.update(tone, func(t int) float64 {
		return cmplx.Abs(d.rings.newestTone(t))
	})

	d.sourceCounts[source]++

	var ev = SymbolEvent{
		Tone:       tone,
		Sample:     d.sample,
		SNR:        d.snr.smoothedDB(),
		SNRInstant: d.snr.instantDB(),
		Source:     source,
	}

	if source == Flywheel {
		d.logger.Debug("Flywheeling...", "sample", d.sample)
	}

	d.logger.Debug("Symbol", "tone", ev.Tone, "sample", ev.Sample, "snr", ev.SNR, "source", ev.Source)

	if d.sink != nil {
		d.sink(ev)
	}
}
