package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Build frames in the format the depacketizer expects.
 *
 * Description:	A frame on the air is:
 *
 *			sync		Default 0xAB 0xCD.
 *			flags		16 bits, big endian.
 *					  bit 15	CRC-32 rather than CRC-16.
 *					  bits 0-9	Payload length.
 *			payload		0 to 1023 bytes.
 *			checksum	2 or 4 bytes, big endian, over flags and payload.
 *
 *		Each byte is sent most significant bit first.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
)

type Packetizer struct {
	Sync      []byte
	CRC32     bool
	Checksums ChecksumTable // Nil for the standard CRCs.
}

func NewPacketizer(sync []byte, useCRC32 bool) *Packetizer {
	return &Packetizer{
		Sync:      sync,
		CRC32:     useCRC32,
		Checksums: nil,
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        Pack
 *
 * Purpose:     Wrap a payload in a frame.
 *
 * Inputs:	payload	- Anything past 1023 bytes is dropped.
 *
 * Returns:	sync, flags, payload and checksum as bytes.
 *
 *--------------------------------------------------------------------*/

func (p *Packetizer) Pack(payload []byte) []byte {
	if len(payload) > MAX_PAYLOAD_LEN {
		payload = payload[:MAX_PAYLOAD_LEN]
	}

	var sync = p.Sync
	if sync == nil {
		sync = DefaultSync()
	}

	var kind = Checksum16
	var flags = uint16(len(payload)) //nolint:gosec

	if p.CRC32 {
		kind = Checksum32
		flags |= FLAG_CRC32
	}

	var frame = make([]byte, 0, len(sync)+2+len(payload)+kind.Size())
	frame = append(frame, sync...)
	frame = binary.BigEndian.AppendUint16(frame, flags)
	frame = append(frame, payload...)

	var checksums = p.Checksums
	if checksums == nil {
		checksums = DefaultChecksums()
	}

	var covered = frame[len(sync):]

	return appendChecksum(frame, kind, checksums[kind](covered))
}

// PackBits is Pack expanded to one bit per byte, ready for a modulator.
func (p *Packetizer) PackBits(payload []byte) []byte {
	return BytesToBits(p.Pack(payload))
}

// Pack frames a payload with the default sync pattern.
func Pack(payload []byte, useCRC32 bool) []byte {
	return NewPacketizer(DefaultSync(), useCRC32).Pack(payload)
}

// BytesToBits expands bytes to bits, most significant first.
func BytesToBits(data []byte) []byte {
	var out = make([]byte, 0, len(data)*8)

	for _, b := range data {
		for i := 7; i >= 0; i-- {
			out = append(out, (b>>i)&1)
		}
	}

	return out
}

// BitsToBytes packs bits, most significant first.  A partial final byte
// is padded with zeros.
func BitsToBytes(bits []byte) []byte {
	var out = make([]byte, (len(bits)+7)/8)

	for i, bit := range bits {
		if bit&1 != 0 {
			out[i/8] |= 0x80 >> (i % 8)
		}
	}

	return out
}
