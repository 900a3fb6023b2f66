package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Signal to noise estimate from tone bin magnitudes.
 *
 * Description:	The signal is the magnitude of the detected tone's bin.
 *		The noise is the magnitude of one bin that should be empty,
 *		the last tone we saw that differs from the current one,
 *		scaled by the number of tones to stand in for the whole band.
 *
 *		This is the estimator fldigi uses.  It is a rough guide to
 *		signal quality rather than a calibrated measurement.
 *
 *---------------------------------------------------------------*/

import "math"

/*-------------------------------------------------------------------
 *
 * Name:        decayAvg
 *
 * Purpose:     Exponentially decaying average.
 *
 * Inputs:	average	- Previous value.
 *		input	- New measurement.
 *		weight	- Time constant, in updates.
 *
 * Returns:	input when weight <= 1, otherwise the new average.
 *
 *--------------------------------------------------------------------*/

func decayAvg(average float64, input float64, weight float64) float64 {
	if weight <= 1.0 {
		return input
	}

	return input*(1.0/weight) + average*(1.0-(1.0/weight))
}

// ratioToDB converts an amplitude ratio to decibels.  Zero gives -Inf.
func ratioToDB(ratio float64) float64 {
	return 20 * math.Log10(ratio)
}

type snrEstimator struct {
	toneCount int
	weight    float64

	smoothed float64
	instant  float64

	lastTone  int // -1 until the first symbol.
	noiseTone int // -1 until two different tones have been seen.
}

func newSNREstimator(toneCount int) *snrEstimator {
	var e = &snrEstimator{ //nolint:exhaustruct
		toneCount: toneCount,
		weight:    SNR_DECAY_WEIGHT,
	}

	e.reset()

	return e
}

func (e *snrEstimator) reset() {
	e.smoothed = 0
	e.instant = 0
	e.lastTone = -1
	e.noiseTone = -1
}

/*-------------------------------------------------------------------
 *
 * Name:        update
 *
 * Purpose:     Fold in the bins from a newly detected symbol.
 *
 * Inputs:	tone	- Tone that was decided on.
 *
 *		mag	- Magnitude of a tone's newest bin.
 *
 * Description:	With no usable noise bin, or an empty one, the estimates
 *		are left alone.
 *
 *--------------------------------------------------------------------*/

func (e *snrEstimator) update(tone int, mag func(tone int) float64) {
	if e.lastTone >= 0 && e.lastTone != tone {
		e.noiseTone = e.lastTone
	}

	e.lastTone = tone

	if e.noiseTone < 0 {
		return
	}

	var signal = mag(tone)
	var noise = mag(e.noiseTone) * float64(e.toneCount)

	if noise > 0 {
		e.instant = signal / noise
		e.smoothed = decayAvg(e.smoothed, e.instant, e.weight)
	}
}

func (e *snrEstimator) smoothedDB() float64 {
	return ratioToDB(e.smoothed)
}

func (e *snrEstimator) instantDB() float64 {
	return ratioToDB(e.instant)
}
