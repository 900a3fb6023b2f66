package mfsk

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWavRoundTrip(t *testing.T) {
	var samples = []float64{0, 0.5, -0.5, 1, -1, 2, -2, 0.25}

	var buf bytes.Buffer
	require.NoError(t, WriteWav(&buf, 8000, samples))
	assert.Equal(t, 44+2*len(samples), buf.Len())
	assert.Equal(t, "RIFF", buf.String()[:4])

	var audio, err = ReadWav(&buf, 0)
	require.NoError(t, err)

	assert.Equal(t, 8000, audio.SampleRate)
	assert.Equal(t, 1, audio.Channels)
	assert.Equal(t, 16, audio.BitsPerSample)
	require.Len(t, audio.Samples, len(samples))

	for i, s := range samples {
		var want = max(-1, min(1, s))
		assert.InDelta(t, want, float64(audio.Samples[i]), 1e-3, "sample %d", i)
	}

	assert.InDelta(t, float64(len(samples))/8000, audio.Duration(), 1e-12)
}

func TestReadWav_Errors(t *testing.T) {
	var _, err = ReadWav(bytes.NewReader([]byte("definitely not a wav file at all, no sir")), 0)
	require.ErrorIs(t, err, ErrNotWav)

	var buf bytes.Buffer
	require.NoError(t, WriteWav(&buf, 8000, []float64{0, 0}))

	_, err = ReadWav(&buf, 1)
	require.ErrorIs(t, err, ErrNotWav)
}

func TestWavPacketsDecode(t *testing.T) {
	var p = DefaultPacketAudioParams()

	var samples, err = GeneratePacketAudio(p)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteWav(&buf, p.Modem.SampleRate, samples))

	var audio, readErr = ReadWav(&buf, 0)
	require.NoError(t, readErr)

	var got []string

	var rx, rxErr = NewReceiver(p.Modem, DefaultFramerConfig(), func(pkt Packet) {
		got = append(got, string(pkt.Payload))
	})
	require.NoError(t, rxErr)

	rx.Consume32(audio.Samples)

	assert.Equal(t, defaultGenMessages, got)
}

func TestRawSource(t *testing.T) {
	var raw bytes.Buffer
	for _, v := range []int16{0, 16384, -32768} {
		require.NoError(t, binary.Write(&raw, binary.LittleEndian, v))
	}

	var src = NewRawSource(io.NopCloser(&raw))
	var out = make([]float32, 2)

	var n, err = src.Read(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{0, 0.5}, out)

	n, err = src.Read(out)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, n)
	assert.InDelta(t, -1.0, float64(out[0]), 0)

	n, err = src.Read(out)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)

	require.NoError(t, src.Close())
}

func TestAudioConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultAudioConfig().Validate())
	assert.Error(t, AudioConfig{Device: "", FramesPerBuffer: 0, StatsInterval: 0}.Validate())
	assert.Error(t, AudioConfig{Device: "", FramesPerBuffer: 10, StatsInterval: -1}.Validate())
}

func TestAudioStats(t *testing.T) {
	var now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var out bytes.Buffer
	var s = NewAudioStats(10, NewLogger(&out, LevelForVerbosity(0)))
	s.now = func() time.Time { return now }

	var block = []float32{0.1, -0.4, 0.2}

	assert.False(t, s.Record(block, 12))

	// The first interval is short and never reported.
	now = now.Add(3 * time.Second)
	assert.False(t, s.Record(block, 12))

	now = now.Add(5 * time.Second)
	assert.False(t, s.Record(nil, 12))

	now = now.Add(5 * time.Second)
	assert.True(t, s.Record(block, 12))

	assert.Contains(t, out.String(), "Audio input")
	assert.Contains(t, out.String(), "errors=1")
	assert.Contains(t, out.String(), "peak=40")
}

func TestAudioStats_Disabled(t *testing.T) {
	var s = NewAudioStats(0, quietLogger())
	assert.False(t, s.Record([]float32{1}, 0))
}
