package mfsk

/********************************************************************************
 *
 * Purpose:	Extract frames from a stream of bits.
 *
 * Description:	There is no byte alignment on the air, so we slide a window
 *		along the bit stream one bit at a time looking for the sync
 *		pattern at its head.  When the head matches, the flags field
 *		tells us how long the frame should be and which checksum it
 *		carries.  The checksum decides whether it really was a frame;
 *		the sync pattern alone shows up in noise often enough.
 *
 *		The buffer has two modes:
 *
 *		Append	- Grow the buffer.  Used while filling up and while
 *			  waiting for the rest of a frame whose header we
 *			  have already seen.
 *
 *		Shift	- Drop the oldest bit for each new one, so the length
 *			  stays fixed and the head moves along the stream.
 *
 *		The buffer never holds more than a maximum length frame
 *		plus a 32 bit checksum.
 *
 *******************************************************************************/

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/charmbracelet/log"
)

type BufferMode int

const (
	ModeAppend BufferMode = iota
	ModeShift
)

func (m BufferMode) String() string {
	if m == ModeShift {
		return "shift"
	}

	return "append"
}

type RejectReason int

const (
	RejectLength   RejectReason = iota // Declared payload longer than the cap.
	RejectChecksum                     // Checksum mismatch, probably a false sync.
)

func (r RejectReason) String() string {
	switch r {
	case RejectLength:
		return "length"
	case RejectChecksum:
		return "checksum"
	default:
		return fmt.Sprintf("RejectReason(%d)", int(r))
	}
}

// FrameObserver hears about what the framer does with candidate frames.
// Callbacks run synchronously on the caller's goroutine.
type FrameObserver interface {
	// SyncMatched is called when a plausible header is found and the
	// framer starts waiting for the rest of the frame.
	SyncMatched(payloadLen int)
	FrameAccepted(payload []byte)
	FrameRejected(reason RejectReason)
}

type DepacketizerStats struct {
	Bits             uint64
	InvalidBits      uint64
	SyncMatches      uint64
	Accepted         uint64
	RejectedLength   uint64
	RejectedChecksum uint64
}

type Depacketizer struct {
	sync       []byte
	syncBits   int
	payloadCap int
	checksums  ChecksumTable
	capacity   int // bits

	/* Bits live in buf[start:end].  buf is twice the capacity so */
	/* dropping from the front is usually just start++. */

	buf   []byte
	start int
	end   int
	mode  BufferMode

	awaiting bool // Header seen, waiting for the rest.
	scratch  []byte

	sink     func(payload []byte)
	observer FrameObserver
	logger   *log.Logger
	stats    DepacketizerStats
}

type DepacketizerOption func(*Depacketizer)

func WithFrameObserver(o FrameObserver) DepacketizerOption {
	return func(d *Depacketizer) {
		d.observer = o
	}
}

func WithFramerLogger(l *log.Logger) DepacketizerOption {
	return func(d *Depacketizer) {
		d.logger = l
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        NewDepacketizer
 *
 * Purpose:     Create a frame extractor.
 *
 * Inputs:	cfg	- Sync pattern, payload cap, checksums.
 *
 *		sink	- Called with each payload that passes its checksum.
 *			  The slice belongs to the callee.
 *
 * Returns:	Error if the configuration is invalid.
 *
 *--------------------------------------------------------------------*/

func NewDepacketizer(cfg FramerConfig, sink func(payload []byte), opts ...DepacketizerOption) (*Depacketizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var checksums = cfg.Checksums
	if checksums == nil {
		checksums = DefaultChecksums()
	}

	var syncBits = len(cfg.Sync) * 8
	var capacity = syncBits + FLAGS_BITS + cfg.PayloadCap*8 + MAX_CHECKSUM_BITS

	var d = &Depacketizer{ //nolint:exhaustruct
		sync:       bytes.Clone(cfg.Sync),
		syncBits:   syncBits,
		payloadCap: cfg.PayloadCap,
		checksums:  checksums,
		capacity:   capacity,
		buf:        make([]byte, 2*capacity),
		scratch:    make([]byte, 0, capacity/8),
		mode:       ModeAppend,
		sink:       sink,
		logger:     quietLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

func (d *Depacketizer) Mode() BufferMode {
	return d.mode
}

// Buffered is the number of bits currently held.
func (d *Depacketizer) Buffered() int {
	return d.end - d.start
}

// Capacity is the most bits the buffer will ever hold.
func (d *Depacketizer) Capacity() int {
	return d.capacity
}

// Awaiting reports whether a frame header has been seen and the rest is
// still arriving.  Useful as a data carrier detect indication.
func (d *Depacketizer) Awaiting() bool {
	return d.awaiting
}

func (d *Depacketizer) Stats() DepacketizerStats {
	return d.stats
}

// Reset discards all buffered bits.
func (d *Depacketizer) Reset() {
	d.start = 0
	d.end = 0
	d.mode = ModeAppend
	d.awaiting = false
}

// ProcessData feeds a sequence of bits, one per byte.
func (d *Depacketizer) ProcessData(bits []byte) {
	for _, b := range bits {
		d.ProcessBit(b)
	}
}

// ProcessBytes feeds whole bytes, most significant bit first.
func (d *Depacketizer) ProcessBytes(data []byte) {
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			d.ProcessBit((b >> i) & 1)
		}
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        ProcessBit
 *
 * Purpose:     Add one bit and look for a complete frame.
 *
 * Inputs:	bit	- 0 or 1.  Anything else is counted and ignored.
 *
 *--------------------------------------------------------------------*/

func (d *Depacketizer) ProcessBit(bit byte) {
	if bit > 1 {
		d.stats.InvalidBits++
		return
	}

	d.stats.Bits++

	if d.mode == ModeShift && d.end > d.start {
		d.start++
	}

	if d.end == len(d.buf) {
		d.end = copy(d.buf, d.buf[d.start:d.end])
		d.start = 0
	}

	d.buf[d.end] = bit
	d.end++

	if d.mode == ModeAppend && d.Buffered() >= d.capacity {
		d.logger.Debug("Buffer full, now shifting data in.")
		d.mode = ModeShift
	}

	d.testBuffer()
}

// packBits packs n bits, starting off bits into the buffer, onto dst.
func (d *Depacketizer) packBits(dst []byte, off int, n int) []byte {
	var bits = d.buf[d.start+off : d.start+off+n]

	for i := 0; i < n; i += 8 {
		var acc byte
		for _, b := range bits[i : i+8] {
			acc = acc<<1 | b
		}

		dst = append(dst, acc)
	}

	return dst
}

func (d *Depacketizer) syncAtHead() bool {
	var bits = d.buf[d.start : d.start+d.syncBits]

	for i, want := range d.sync {
		var acc byte
		for _, b := range bits[i*8 : i*8+8] {
			acc = acc<<1 | b
		}

		if acc != want {
			return false
		}
	}

	return true
}

func (d *Depacketizer) testBuffer() {
	var have = d.Buffered()

	if have < d.syncBits+FLAGS_BITS {
		d.mode = ModeAppend
		return
	}

	if !d.syncAtHead() {
		d.mode = ModeShift
		d.awaiting = false

		return
	}

	var header = d.packBits(d.scratch[:0], d.syncBits, FLAGS_BITS)
	var flags = binary.BigEndian.Uint16(header)
	var length = int(flags & FLAG_LENGTH_MASK)

	if length > d.payloadCap {
		d.logger.Debug("Packet length bigger than cap.", "length", length, "cap", d.payloadCap)
		d.reject(RejectLength)

		return
	}

	var kind = kindForFlags(flags)
	var need = d.syncBits + FLAGS_BITS + length*8 + kind.Size()*8

	if have < need {
		d.mode = ModeAppend

		if !d.awaiting {
			d.awaiting = true
			d.stats.SyncMatches++

			if d.observer != nil {
				d.observer.SyncMatched(length)
			}
		}

		return
	}

	/* Everything after the sync pattern, as bytes. */

	var frame = d.packBits(d.scratch[:0], d.syncBits, need-d.syncBits)
	var covered = frame[:2+length]
	var sent = readChecksum(frame[2+length:], kind)
	var calc = d.checksums[kind](covered)

	if kind == Checksum16 {
		calc &= 0xFFFF
	}

	if sent != calc {
		d.logger.Debug("CRC check failed. False positive on sync?", "sent", fmt.Sprintf("%08x", sent), "calc", fmt.Sprintf("%08x", calc))
		d.reject(RejectChecksum)

		return
	}

	var payload = bytes.Clone(frame[2 : 2+length])

	d.mode = ModeShift
	d.awaiting = false
	d.stats.Accepted++

	d.logger.Debug("Found complete packet.", "length", length, "checksum", kind)

	if d.observer != nil {
		d.observer.FrameAccepted(payload)
	}

	if d.sink != nil {
		d.sink(payload)
	}
}

func (d *Depacketizer) reject(reason RejectReason) {
	d.mode = ModeShift
	d.awaiting = false

	switch reason {
	case RejectLength:
		d.stats.RejectedLength++
	case RejectChecksum:
		d.stats.RejectedChecksum++
	}

	if d.observer != nil {
		d.observer.FrameRejected(reason)
	}
}
