package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Print statistics for audio input stream.
 *
 *		A common complaint is that there is no indication of
 *		audio input level until a packet is received correctly.
 *		That's a lot to expect for a novice user.
 *
 *		Periodically report the actual sample rate, the number of
 *		read errors, the audio level and the signal to noise
 *		estimate, so there is some clue when nothing is decoded.
 *
 *---------------------------------------------------------------*/

import (
	"math"
	"time"

	"github.com/charmbracelet/log"
)

type AudioStats struct {
	interval time.Duration
	now      func() time.Time
	logger   *log.Logger

	lastTime      time.Time
	sampleCount   int
	errorCount    int
	peak          float32
	suppressFirst bool
}

func NewAudioStats(intervalSeconds int, logger *log.Logger) *AudioStats {
	return &AudioStats{ //nolint:exhaustruct
		interval: time.Duration(intervalSeconds) * time.Second,
		now:      time.Now,
		logger:   logger,
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        Record
 *
 * Purpose:     Add up numbers for one read from the audio device.
 *
 * Inputs:	samples	- What was read.  Empty for a failed read.
 *
 *		snr	- Current smoothed SNR estimate, dB.
 *
 * Returns:	true when a report was printed.
 *
 *--------------------------------------------------------------------*/

func (s *AudioStats) Record(samples []float32, snr float64) bool {
	if s.interval <= 0 {
		return false
	}

	var thisTime = s.now()

	if s.lastTime.IsZero() {
		/* Suppressing the first one could mean a rather */
		/* long wait for the first message.  We make the */
		/* first collection interval 3 seconds. */

		s.lastTime = thisTime.Add(-s.interval + 3*time.Second)
		s.suppressFirst = true
	}

	if len(samples) > 0 {
		s.sampleCount += len(samples)
	} else {
		s.errorCount++
	}

	for _, x := range samples {
		var a = float32(math.Abs(float64(x)))
		if a > s.peak {
			s.peak = a
		}
	}

	if thisTime.Before(s.lastTime.Add(s.interval)) {
		return false
	}

	var printed = false

	if s.suppressFirst {
		/* The first time the rate would be off considerably */
		/* because we didn't start on a second boundary. */

		s.suppressFirst = false
	} else {
		var elapsed = thisTime.Sub(s.lastTime).Seconds()
		var rate = float64(s.sampleCount) / 1000.0 / elapsed

		s.logger.Info("Audio input",
			"rate_k", math.Round(rate*10)/10,
			"errors", s.errorCount,
			"peak", math.Round(float64(s.peak)*100),
			"snr_db", IfThenElse(isFinite(snr), math.Round(snr*10)/10, math.NaN()))

		printed = true
	}

	s.lastTime = thisTime
	s.sampleCount = 0
	s.errorCount = 0
	s.peak = 0

	return printed
}
