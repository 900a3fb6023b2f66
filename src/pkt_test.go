package mfsk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type frameRecorder struct {
	syncs    []int
	accepted [][]byte
	rejected []RejectReason
}

func (r *frameRecorder) SyncMatched(payloadLen int) {
	r.syncs = append(r.syncs, payloadLen)
}

func (r *frameRecorder) FrameAccepted(payload []byte) {
	r.accepted = append(r.accepted, payload)
}

func (r *frameRecorder) FrameRejected(reason RejectReason) {
	r.rejected = append(r.rejected, reason)
}

func newTestDepacketizer(t require.TestingT, payloadCap int, opts ...DepacketizerOption) (*Depacketizer, *[][]byte) {
	var got [][]byte

	var cfg = DefaultFramerConfig()
	cfg.PayloadCap = payloadCap

	var d, err = NewDepacketizer(cfg, func(p []byte) {
		got = append(got, p)
	}, opts...)
	require.NoError(t, err)

	return d, &got
}

func TestPack_Hello(t *testing.T) {
	assert.Equal(t,
		[]byte{0xAB, 0xCD, 0x00, 0x05, 'H', 'e', 'l', 'l', 'o', 0x88, 0xD7},
		Pack([]byte("Hello"), false))
	assert.Equal(t,
		[]byte{0xAB, 0xCD, 0x80, 0x05, 'H', 'e', 'l', 'l', 'o', 0x74, 0x44, 0xDA, 0xA0},
		Pack([]byte("Hello"), true))
}

func TestPack_Empty(t *testing.T) {
	var frame = Pack(nil, false)
	assert.Equal(t, []byte{0xAB, 0xCD, 0x00, 0x00}, frame[:4])
	assert.Len(t, frame, 6)
}

func TestPack_Truncates(t *testing.T) {
	var frame = Pack(make([]byte, 2000), false)
	assert.Len(t, frame, 2+2+MAX_PAYLOAD_LEN+2)
	assert.Equal(t, []byte{0x03, 0xFF}, frame[2:4])
}

func TestPack_CustomSync(t *testing.T) {
	var frame = NewPacketizer([]byte{0x2D, 0xD4, 0x55}, false).Pack([]byte("x"))
	assert.Equal(t, []byte{0x2D, 0xD4, 0x55, 0x00, 0x01, 'x'}, frame[:6])
}

func TestBitsBytes(t *testing.T) {
	assert.Equal(t, []byte{1, 0, 1, 0, 1, 0, 1, 1}, BytesToBits([]byte{0xAB}))
	assert.Equal(t, []byte{0xAB}, BitsToBytes([]byte{1, 0, 1, 0, 1, 0, 1, 1}))
	assert.Equal(t, []byte{0xA0}, BitsToBytes([]byte{1, 0, 1}))

	rapid.Check(t, func(t *rapid.T) {
		var data = rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		assert.Equal(t, data, BitsToBytes(BytesToBits(data)))
	})
}

func TestDepacketizer_Hello(t *testing.T) {
	var rec frameRecorder
	var d, got = newTestDepacketizer(t, DEFAULT_PAYLOAD_CAP, WithFrameObserver(&rec))

	d.ProcessBytes(Pack([]byte("Hello"), false))

	require.Len(t, *got, 1)
	assert.Equal(t, []byte("Hello"), (*got)[0])
	assert.Equal(t, []int{5}, rec.syncs)
	assert.Equal(t, [][]byte{[]byte("Hello")}, rec.accepted)
	assert.Empty(t, rec.rejected)
	assert.False(t, d.Awaiting())
	assert.Equal(t, ModeShift, d.Mode())

	var stats = d.Stats()
	assert.Equal(t, uint64(11*8), stats.Bits)
	assert.Equal(t, uint64(1), stats.SyncMatches)
	assert.Equal(t, uint64(1), stats.Accepted)
}

func TestDepacketizer_CRC32(t *testing.T) {
	var d, got = newTestDepacketizer(t, DEFAULT_PAYLOAD_CAP)

	d.ProcessBytes(Pack([]byte("Hello"), true))

	require.Len(t, *got, 1)
	assert.Equal(t, []byte("Hello"), (*got)[0])
}

func TestDepacketizer_ProcessData(t *testing.T) {
	var d, got = newTestDepacketizer(t, DEFAULT_PAYLOAD_CAP)

	d.ProcessData(NewPacketizer(nil, false).PackBits([]byte("Hi")))

	require.Len(t, *got, 1)
	assert.Equal(t, []byte("Hi"), (*got)[0])
}

func TestDepacketizer_Awaiting(t *testing.T) {
	var d, got = newTestDepacketizer(t, DEFAULT_PAYLOAD_CAP)

	var frame = Pack([]byte("Hello"), false)

	d.ProcessBytes(frame[:4])
	assert.True(t, d.Awaiting())
	assert.Equal(t, ModeAppend, d.Mode())

	d.ProcessBytes(frame[4:])
	assert.False(t, d.Awaiting())
	assert.Len(t, *got, 1)
}

func TestDepacketizer_BackToBack(t *testing.T) {
	var d, got = newTestDepacketizer(t, DEFAULT_PAYLOAD_CAP)

	var messages = []string{"Testing", "DE VK5QI", "More Testing"}

	for _, m := range messages {
		d.ProcessBytes(Pack([]byte(m), false))
	}

	require.Len(t, *got, len(messages))

	for i, m := range messages {
		assert.Equal(t, []byte(m), (*got)[i])
	}
}

// Bytes made of bit pairs can never contain the 1010 run at the start
// of the default sync pattern.
var noSyncBytes = []byte{0x00, 0xFF, 0x0F, 0xF0, 0x33, 0xCC, 0x3C, 0xC3}

func TestDepacketizer_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var payloadCap = rapid.IntRange(0, 64).Draw(t, "cap")
		var payload = rapid.SliceOfN(rapid.Byte(), 0, payloadCap).Draw(t, "payload")
		var use32 = rapid.Bool().Draw(t, "crc32")
		var prefix = rapid.SliceOfN(rapid.SampledFrom(noSyncBytes), 0, 20).Draw(t, "prefix")

		var d, got = newTestDepacketizer(t, payloadCap)

		d.ProcessBytes(prefix)
		d.ProcessBytes(Pack(payload, use32))

		require.Len(t, *got, 1)
		assert.Equal(t, payload, (*got)[0])
		assert.LessOrEqual(t, d.Buffered(), d.Capacity())
	})
}

func TestDepacketizer_SingleBitError(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var payload = rapid.SliceOfN(rapid.Byte(), 1, DEFAULT_PAYLOAD_CAP).Draw(t, "payload")
		var use32 = rapid.Bool().Draw(t, "crc32")

		var bits = NewPacketizer(nil, use32).PackBits(payload)

		// Anywhere in the payload or checksum.
		var flip = rapid.IntRange(32, len(bits)-1).Draw(t, "flip")
		bits[flip] ^= 1

		var d, got = newTestDepacketizer(t, DEFAULT_PAYLOAD_CAP)
		d.ProcessData(bits)

		assert.Empty(t, *got)
		assert.Equal(t, uint64(1), d.Stats().RejectedChecksum)
	})
}

func TestDepacketizer_FlagsBitError(t *testing.T) {
	var payloads = []string{"Hello", "Testing", "DE VK5QI", "More Testing", "Hi", strings.Repeat("x", DEFAULT_PAYLOAD_CAP)}
	var trailer = make([]byte, 300)

	for _, payload := range payloads {
		for _, use32 := range []bool{false, true} {
			// Every bit of the flags field: length, reserved and checksum width.
			for flip := 16; flip < 32; flip++ {
				var bits = NewPacketizer(nil, use32).PackBits([]byte(payload))
				bits[flip] ^= 1

				var d, got = newTestDepacketizer(t, DEFAULT_PAYLOAD_CAP)
				d.ProcessData(bits)
				d.ProcessBytes(trailer)

				var stats = d.Stats()

				assert.Empty(t, *got, "%q crc32=%v bit %d", payload, use32, flip)
				assert.Zero(t, stats.Accepted)
				assert.Equal(t, uint64(1), stats.RejectedLength+stats.RejectedChecksum, "%q crc32=%v bit %d", payload, use32, flip)
			}
		}
	}
}

func TestDepacketizer_NoSync(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var noise = rapid.SliceOfN(rapid.SampledFrom(noSyncBytes), 4, 200).Draw(t, "noise")

		var d, got = newTestDepacketizer(t, DEFAULT_PAYLOAD_CAP)
		d.ProcessBytes(noise)

		assert.Empty(t, *got)
		assert.Equal(t, ModeShift, d.Mode())
		assert.LessOrEqual(t, d.Buffered(), d.Capacity())
		assert.False(t, d.Awaiting())
	})
}

func TestDepacketizer_BufferBound(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var data = rapid.SliceOf(rapid.Byte()).Draw(t, "data")

		var d, _ = newTestDepacketizer(t, 8)

		for _, b := range BytesToBits(data) {
			d.ProcessBit(b)
			assert.LessOrEqual(t, d.Buffered(), d.Capacity())
		}
	})
}

func TestDepacketizer_LengthOverCap(t *testing.T) {
	var rec frameRecorder
	var d, got = newTestDepacketizer(t, 4, WithFrameObserver(&rec))

	d.ProcessBytes(Pack([]byte("Hello"), false))

	assert.Empty(t, *got)
	assert.Equal(t, uint64(1), d.Stats().RejectedLength)
	assert.Equal(t, []RejectReason{RejectLength}, rec.rejected)
	assert.Empty(t, rec.syncs)

	d.ProcessBytes(Pack([]byte("Hi"), false))

	require.Len(t, *got, 1)
	assert.Equal(t, []byte("Hi"), (*got)[0])
}

func TestDepacketizer_InvalidBits(t *testing.T) {
	var d, got = newTestDepacketizer(t, DEFAULT_PAYLOAD_CAP)

	var bits = BytesToBits(Pack([]byte("Hello"), false))

	for i, b := range bits {
		if i%10 == 0 {
			d.ProcessBit(2)
		}

		d.ProcessBit(b)
	}

	require.Len(t, *got, 1)

	var stats = d.Stats()
	assert.Equal(t, uint64(len(bits)), stats.Bits)
	assert.Equal(t, uint64((len(bits)+9)/10), stats.InvalidBits)
}

func TestDepacketizer_Reset(t *testing.T) {
	var d, got = newTestDepacketizer(t, DEFAULT_PAYLOAD_CAP)

	var frame = Pack([]byte("Hello"), false)

	d.ProcessBytes(frame[:6])
	assert.True(t, d.Awaiting())

	d.Reset()
	assert.Zero(t, d.Buffered())
	assert.Equal(t, ModeAppend, d.Mode())

	d.ProcessBytes(frame[6:])
	assert.Empty(t, *got)
}

func TestDepacketizer_CustomChecksums(t *testing.T) {
	var sum = func(data []byte) uint32 {
		var s uint32
		for _, b := range data {
			s += uint32(b)
		}

		return s
	}

	var table = ChecksumTable{Checksum16: sum, Checksum32: sum}

	var cfg = DefaultFramerConfig()
	cfg.Checksums = table

	var got [][]byte

	var d, err = NewDepacketizer(cfg, func(p []byte) { got = append(got, p) })
	require.NoError(t, err)

	var pk = NewPacketizer(nil, false)
	pk.Checksums = table

	d.ProcessBytes(pk.Pack([]byte("Hello")))
	assert.Len(t, got, 1)

	// The standard CRC no longer passes.
	d.ProcessBytes(Pack([]byte("Hello"), false))
	assert.Len(t, got, 1)
}

func TestNewDepacketizer_Invalid(t *testing.T) {
	var cfg = DefaultFramerConfig()
	cfg.Sync = nil

	var _, err = NewDepacketizer(cfg, nil)
	require.ErrorIs(t, err, ErrEmptySync)

	cfg = DefaultFramerConfig()
	cfg.PayloadCap = 1024

	_, err = NewDepacketizer(cfg, nil)
	require.ErrorIs(t, err, ErrPayloadCap)

	cfg = DefaultFramerConfig()
	cfg.Checksums = ChecksumTable{Checksum16: CRC16}

	_, err = NewDepacketizer(cfg, nil)
	require.ErrorIs(t, err, ErrMissingCRC)
}

func TestDepacketizer_Capacity(t *testing.T) {
	var d, _ = newTestDepacketizer(t, 32)
	assert.Equal(t, 16+16+32*8+32, d.Capacity())
}
