package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Rolling history of samples and spectra for the
 *		symbol detector.
 *
 * Description:	Three kinds of ring share a single head index so they
 *		can never get out of step:
 *
 *			raw	- mixed complex samples.
 *			tones	- one ring of FFT bin values per tone.
 *			max	- largest tone bin magnitude at each sample.
 *
 *		Position 0 is the oldest entry, size-1 the newest.
 *
 *---------------------------------------------------------------*/

type sampleRings struct {
	size  int
	head  int // Slot the next sample goes in, which is also the oldest entry.
	raw   []complex128
	tones [][]complex128
	max   []float64
}

func newSampleRings(size int, toneCount int) *sampleRings {
	var r = &sampleRings{
		size:  size,
		raw:   make([]complex128, size),
		tones: make([][]complex128, toneCount),
		max:   make([]float64, size),
	}

	for t := range r.tones {
		r.tones[t] = make([]complex128, size)
	}

	return r
}

/*-------------------------------------------------------------------
 *
 * Name:        push
 *
 * Purpose:     Add one sample and the spectrum computed for it.
 *
 * Inputs:	bins	- Tone bins, one per tone, newest spectrum.
 *
 *		max	- Largest magnitude among bins.
 *
 * Description:	pushRaw must be called first so the transform can see
 *		the new sample.  push then completes the slot and moves
 *		the shared head along.
 *
 *--------------------------------------------------------------------*/

func (r *sampleRings) pushRaw(x complex128) {
	r.raw[r.head] = x
}

func (r *sampleRings) push(bins []complex128, max float64) {
	if len(bins) != len(r.tones) {
		panic("sampleRings: tone bin count mismatch")
	}

	for t, b := range bins {
		r.tones[t][r.head] = b
	}

	r.max[r.head] = max

	r.head++
	if r.head == r.size {
		r.head = 0
	}
}

// recentRaw copies the n most recent raw samples into dst, oldest first.
// The sample passed to pushRaw counts as the most recent.
func (r *sampleRings) recentRaw(dst []complex128) {
	var n = len(dst)
	var start = r.head - n + 1

	if start < 0 {
		start += r.size
	}

	var first = copy(dst, r.raw[start:])
	if first < n {
		copy(dst[first:], r.raw[:n-first])
	}
}

// maxAt returns the i'th entry of the max ring, 0 being the oldest.
func (r *sampleRings) maxAt(i int) float64 {
	var j = r.head + i
	if j >= r.size {
		j -= r.size
	}

	return r.max[j]
}

// newestTone returns the most recent bin for a tone.
func (r *sampleRings) newestTone(tone int) complex128 {
	var j = r.head - 1
	if j < 0 {
		j = r.size - 1
	}

	return r.tones[tone][j]
}

func (r *sampleRings) reset() {
	clear(r.raw)
	clear(r.max)

	for _, t := range r.tones {
		clear(t)
	}

	r.head = 0
}
