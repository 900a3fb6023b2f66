package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Decide where symbol boundaries fall.
 *
 * Description:	Two ways of doing it:
 *
 *		recoveredTiming	- Blind recovery from the signal itself.
 *				  The detector supplies the phase of the
 *				  symbol rate component of the recent tone
 *				  energy envelope.  That phase wraps from
 *				  near 2pi back to near 0 once per symbol,
 *				  just as a whole symbol has filled the
 *				  analysis window.  If the wrap goes missing
 *				  (fade, noise) we freewheel, declaring a
 *				  boundary once a full symbol period has gone
 *				  by without one.
 *
 *				  A wrap is ignored if it comes too soon
 *				  after the previous wrap.  It is never
 *				  ignored after a flywheel boundary, which
 *				  is only a guess.  When it comes within half
 *				  a symbol of one, the flywheel has already
 *				  decided this symbol; the wrap just takes
 *				  over the timing.
 *
 *		forcedTiming	- A boundary every symbol length samples,
 *				  counted from the start of the stream.  Only
 *				  good for generated test signals where we
 *				  know exactly where the symbols are.
 *
 *---------------------------------------------------------------*/

type TimingSource int

const (
	ZeroCrossing TimingSource = iota // Envelope phase wrapped.
	Flywheel                         // Nothing seen for a whole symbol period.
	Forced                           // Fixed schedule.
)

func (s TimingSource) String() string {
	switch s {
	case ZeroCrossing:
		return "zero-crossing"
	case Flywheel:
		return "flywheel"
	case Forced:
		return "forced"
	default:
		return "unknown"
	}
}

type boundaryDecider interface {
	// needsPhase reports whether decide looks at the envelope phase,
	// so the detector can skip computing it.
	needsPhase() bool

	// decide is called once for every sample, after the spectrum for
	// that sample is in the rings.
	decide(sample int64, phase float64) (TimingSource, bool)

	reset()
}

type recoveredTiming struct {
	low       float64
	high      float64
	debounce  float64 // samples
	symbolLen int

	gap         int  // Samples since the last boundary.  Stream start counts as one.
	flywheeling bool // The last boundary came from the flywheel.
	lastPhase   float64
}

func newRecoveredTiming(p TimingParams, symbolLen int) *recoveredTiming {
	return &recoveredTiming{
		low:         p.LowThreshold,
		high:        p.HighThreshold,
		debounce:    p.Debounce * float64(symbolLen),
		symbolLen:   symbolLen,
		gap:         0,
		flywheeling: false,
		lastPhase:   0,
	}
}

func (t *recoveredTiming) needsPhase() bool {
	return true
}

func (t *recoveredTiming) decide(_ int64, phase float64) (TimingSource, bool) {
	var wrapped = phase < t.low && t.lastPhase > t.high
	var source = ZeroCrossing
	var found = false

	switch {
	case wrapped && t.flywheeling && 2*t.gap < t.symbolLen:
		t.flywheeling = false
		t.gap = 0
	case wrapped && (t.flywheeling || float64(t.gap) >= t.debounce):
		found = true
	case t.gap > t.symbolLen:
		source = Flywheel
		found = true
	}

	if found {
		t.gap = 0
		t.flywheeling = source == Flywheel
	}

	t.gap++
	t.lastPhase = phase

	return source, found
}

func (t *recoveredTiming) reset() {
	t.gap = 0
	t.flywheeling = false
	t.lastPhase = 0
}

type forcedTiming struct {
	symbolLen int64
}

func (t *forcedTiming) needsPhase() bool {
	return false
}

// The boundary goes on the last sample of each period so the analysis
// window lines up with the symbol exactly.  Symbol k is reported at
// sample (k+1)*L-1, which is L-1 later than a schedule that fires on
// sample k*L counting from 0.
func (t *forcedTiming) decide(sample int64, _ float64) (TimingSource, bool) {
	return Forced, (sample+1)%t.symbolLen == 0
}

func (t *forcedTiming) reset() {}

func newBoundaryDecider(cfg ModemConfig) boundaryDecider { //nolint:ireturn
	if cfg.TimingMode == TimingForced {
		return &forcedTiming{symbolLen: int64(cfg.SymbolLength())}
	}

	return newRecoveredTiming(cfg.Timing, cfg.SymbolLength())
}
