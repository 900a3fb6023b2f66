package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Read and write .WAV audio files.
 *
 * Description:	Reading handles whatever go-dsp understands: 8, 16 or
 *		32 bit PCM and 32 bit float, any number of channels.
 *		We keep one channel.
 *
 *		Writing is always 16 bit mono PCM.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/mjibson/go-dsp/wav"
)

const wavReadChunk = 4096

// WavAudio is the content of a .WAV file, reduced to one channel.
type WavAudio struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Samples       []float32
}

// Duration is the length of the audio in seconds.
func (a *WavAudio) Duration() float64 {
	if a.SampleRate == 0 {
		return 0
	}

	return float64(len(a.Samples)) / float64(a.SampleRate)
}

/*-------------------------------------------------------------------
 *
 * Name:        ReadWav
 *
 * Purpose:     Read a whole .WAV file.
 *
 * Inputs:	r	- The file.
 *
 *		channel	- Which channel to keep, 0 is first (left).
 *
 * Returns:	Samples scaled to [-1, 1).
 *
 *--------------------------------------------------------------------*/

func ReadWav(r io.Reader, channel int) (*WavAudio, error) {
	var w, err = wav.New(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotWav, err)
	}

	var channels = int(w.Header.NumChannels)
	if channels < 1 || w.Header.SampleRate == 0 {
		return nil, fmt.Errorf("%w: %d channels at %d samples/sec", ErrNotWav, channels, w.Header.SampleRate)
	}

	if channel < 0 || channel >= channels {
		return nil, fmt.Errorf("%w: no channel %d in a %d channel file", ErrNotWav, channel, channels)
	}

	var audio = &WavAudio{
		SampleRate:    int(w.Header.SampleRate),
		Channels:      channels,
		BitsPerSample: int(w.Header.BitsPerSample),
		Samples:       make([]float32, 0, max(w.Samples/channels, 0)),
	}

	for {
		var chunk, readErr = w.ReadFloats(wavReadChunk * channels)

		for i := channel; i < len(chunk); i += channels {
			audio.Samples = append(audio.Samples, chunk[i])
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
				break
			}

			return audio, fmt.Errorf("reading samples: %w", readErr)
		}

		if len(chunk) == 0 {
			break
		}
	}

	return audio, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        WriteWav
 *
 * Purpose:     Write samples as a 16 bit mono .WAV file.
 *
 * Inputs:	samples	- Nominally [-1, 1].  Anything outside is clipped.
 *
 *--------------------------------------------------------------------*/

func WriteWav(w io.Writer, sampleRate int, samples []float64) error {
	const bitsPerSample = 16
	const channels = 1

	var dataLen = uint32(len(samples) * 2) //nolint:gosec

	var header = struct {
		Riff          [4]byte
		RiffLen       uint32
		Wave          [4]byte
		Fmt           [4]byte
		FmtLen        uint32
		Format        uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataLen       uint32
	}{
		Riff:          [4]byte{'R', 'I', 'F', 'F'},
		RiffLen:       36 + dataLen,
		Wave:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtLen:        16,
		Format:        1, // PCM
		Channels:      channels,
		SampleRate:    uint32(sampleRate),                                //nolint:gosec
		ByteRate:      uint32(sampleRate * channels * bitsPerSample / 8), //nolint:gosec
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataLen:       dataLen,
	}

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("writing WAV header: %w", err)
	}

	var pcm = make([]int16, len(samples))

	for i, s := range samples {
		var v = math.Round(s * 32767)
		pcm[i] = int16(max(-32768, min(32767, v)))
	}

	if err := binary.Write(w, binary.LittleEndian, pcm); err != nil {
		return fmt.Errorf("writing WAV samples: %w", err)
	}

	return nil
}
