package mfsk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receiverRecorder struct {
	frameRecorder
	symbols int
}

func (r *receiverRecorder) SymbolDecoded(_ SymbolEvent) {
	r.symbols++
}

func receiveAll(t *testing.T, p PacketAudioParams, opts ...ReceiverOption) ([]Packet, *Receiver) {
	t.Helper()

	var samples, err = GeneratePacketAudio(p)
	require.NoError(t, err)

	var got []Packet

	var rx, rxErr = NewReceiver(p.Modem, DefaultFramerConfig(), func(pkt Packet) {
		got = append(got, pkt)
	}, opts...)
	require.NoError(t, rxErr)

	for i := 0; i < len(samples); i += 1000 {
		rx.Consume(samples[i:min(i+1000, len(samples))])
	}

	return got, rx
}

func payloadsOf(packets []Packet) []string {
	var out = make([]string, len(packets))
	for i, p := range packets {
		out[i] = string(p.Payload)
	}

	return out
}

func TestReceiver_EndToEnd(t *testing.T) {
	var clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	var carrier []bool
	var rec receiverRecorder

	var got, rx = receiveAll(t, DefaultPacketAudioParams(),
		WithClock(func() time.Time { return clock }),
		WithCarrierDetect(func(on bool) { carrier = append(carrier, on) }),
		WithReceiverObserver(&rec))

	assert.Equal(t, defaultGenMessages, payloadsOf(got))

	for i, p := range got {
		assert.Equal(t, clock, p.Timestamp)
		assert.True(t, isFinite(p.SNR), "packet %d", i)

		if i > 0 {
			assert.Greater(t, p.Sample, got[i-1].Sample)
		}
	}

	assert.Len(t, rec.accepted, 3)
	assert.Equal(t, int(rx.Detector().SourceCount(ZeroCrossing)+rx.Detector().SourceCount(Flywheel)), rec.symbols)

	// On and off once per packet.
	require.GreaterOrEqual(t, len(carrier), 6)
	assert.True(t, carrier[0])
	assert.False(t, carrier[len(carrier)-1])
}

func TestReceiver_Forced(t *testing.T) {
	var p = DefaultPacketAudioParams()
	p.Modem.TimingMode = TimingForced

	var got, _ = receiveAll(t, p)

	assert.Equal(t, defaultGenMessages, payloadsOf(got))
}

func TestReceiver_SampleOffsets(t *testing.T) {
	var p = DefaultPacketAudioParams()

	var audio, err = GeneratePacketAudio(p)
	require.NoError(t, err)

	for _, offset := range []int{100, 300, 400} {
		var samples = append(make([]float64, offset), audio...)

		var got []Packet

		var rx, rxErr = NewReceiver(p.Modem, DefaultFramerConfig(), func(pkt Packet) {
			got = append(got, pkt)
		})
		require.NoError(t, rxErr)

		for i := 0; i < len(samples); i += 1000 {
			rx.Consume(samples[i:min(i+1000, len(samples))])
		}

		assert.Equal(t, defaultGenMessages, payloadsOf(got), "offset %d", offset)
		assert.Greater(t, rx.Detector().SourceCount(ZeroCrossing), rx.Detector().SourceCount(Flywheel), "offset %d", offset)
	}
}

func TestReceiver_CRC32(t *testing.T) {
	var p = DefaultPacketAudioParams()
	p.CRC32 = true

	var got, _ = receiveAll(t, p)

	assert.Equal(t, defaultGenMessages, payloadsOf(got))
}

func TestReceiver_NoGray(t *testing.T) {
	var p = DefaultPacketAudioParams()
	p.Modem.GrayCoded = false

	var got, _ = receiveAll(t, p)

	assert.Equal(t, defaultGenMessages, payloadsOf(got))
}

func TestReceiver_Noise(t *testing.T) {
	var p = DefaultPacketAudioParams()
	p.Noise = true
	p.EbNo = 10
	p.Seed = 42

	var got, _ = receiveAll(t, p)

	// Any decode at all must be right.
	assert.NotEmpty(t, got)

	for _, pkt := range got {
		assert.Contains(t, defaultGenMessages, string(pkt.Payload))
	}
}

func TestReceiver_Reset(t *testing.T) {
	var samples, err = GeneratePacketAudio(DefaultPacketAudioParams())
	require.NoError(t, err)

	var count = 0

	var rx, rxErr = NewReceiver(DefaultModemConfig(), DefaultFramerConfig(), func(Packet) { count++ })
	require.NoError(t, rxErr)

	rx.Consume(samples)
	assert.Equal(t, 3, count)

	rx.Reset()
	assert.Zero(t, rx.Detector().SampleCount())
	assert.Zero(t, rx.Depacketizer().Buffered())

	rx.Consume(samples)
	assert.Equal(t, 6, count)
}

func TestNewReceiver_Invalid(t *testing.T) {
	var modem = DefaultModemConfig()
	modem.ToneCount = 5

	var _, err = NewReceiver(modem, DefaultFramerConfig(), nil)
	require.ErrorIs(t, err, ErrInvalidToneCount)

	var framer = DefaultFramerConfig()
	framer.Sync = nil

	_, err = NewReceiver(DefaultModemConfig(), framer, nil)
	require.ErrorIs(t, err, ErrEmptySync)
}

func TestModulator(t *testing.T) {
	var mod, err = NewModulator(DefaultModemConfig(), 0.25)
	require.NoError(t, err)

	assert.Equal(t, 512, mod.SymbolLength())
	assert.Len(t, mod.Silence(3), 3*512)

	var samples, modErr = mod.ModulateBits([]byte{1, 0, 1, 1, 0, 1})
	require.NoError(t, modErr)
	assert.Len(t, samples, 2*512)

	for _, s := range samples {
		assert.LessOrEqual(t, s, 0.25)
		assert.GreaterOrEqual(t, s, -0.25)
	}

	var tones, tonesErr = mod.BitsToTones([]byte{0, 0, 0, 1, 1})
	require.NoError(t, tonesErr)
	assert.Equal(t, []int{GrayEncode(1), GrayEncode(8)}, tones)

	var _, badErr = mod.AppendTone(nil, 16)
	assert.ErrorIs(t, badErr, ErrToneOutOfRange)
}

func TestNoiseSigmaForEbNo(t *testing.T) {
	var cfg = DefaultModemConfig()

	var sigma0 = NoiseSigmaForEbNo(cfg, 1, 0)
	var sigma10 = NoiseSigmaForEbNo(cfg, 1, 10)

	assert.InDelta(t, sigma0/sigma10, 1/0.31622776601683794, 1e-9)

	// Eb = A^2/2 * fs / (rate * bits), N0 = sigma^2.
	assert.InDelta(t, 0.5*8000/(15.625*4), sigma0*sigma0, 1e-9)
}

func TestGeneratePacketAudio_Layout(t *testing.T) {
	var p = DefaultPacketAudioParams()

	var samples, err = GeneratePacketAudio(p)
	require.NoError(t, err)

	var frameBits = 0
	for _, m := range p.Messages {
		frameBits += len(Pack(m, false)) * 8
	}

	var symbols = p.LeadingSilence + 2*p.PreamblePairs + (frameBits+3)/4 + p.TrailingSilence
	assert.Len(t, samples, symbols*512)

	for _, s := range samples[:p.LeadingSilence*512] {
		assert.Zero(t, s)
	}
}
