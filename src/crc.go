package mfsk

/*-------------------------------------------------------------
 *
 * Purpose:	Frame check sequences for the MFSK packet format.
 *
 * 		Flag bit 15 selects one of two checksums, computed over
 *		the flags field and payload and sent big endian after
 *		the payload:
 *
 *			0	CRC-16/XMODEM	poly 0x1021, init 0, not reflected.
 *			1	CRC-32		IEEE 802.3, as used by zlib.
 *
 *--------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/sigurn/crc16"
)

type ChecksumKind int

const (
	Checksum16 ChecksumKind = iota
	Checksum32
)

func (k ChecksumKind) String() string {
	switch k {
	case Checksum16:
		return "CRC-16"
	case Checksum32:
		return "CRC-32"
	default:
		return fmt.Sprintf("ChecksumKind(%d)", int(k))
	}
}

// Size is the number of bytes the checksum occupies on the wire.
func (k ChecksumKind) Size() int {
	if k == Checksum32 {
		return 4
	}

	return 2
}

// kindForFlags picks the checksum a frame header asks for.
func kindForFlags(flags uint16) ChecksumKind {
	if flags&FLAG_CRC32 != 0 {
		return Checksum32
	}

	return Checksum16
}

// ChecksumFunc computes a checksum over data.  16 bit results use the low half.
type ChecksumFunc func(data []byte) uint32

type ChecksumTable map[ChecksumKind]ChecksumFunc

var crc16Table = crc16.MakeTable(crc16.CRC16_XMODEM)

/*-------------------------------------------------------------
 *
 * Name:	CRC16
 *
 * Purpose:	CRC-16/XMODEM, the default frame check.
 *
 * Inputs:	data	- Flags and payload bytes.
 *
 * Returns:	16-bit CRC value, widened.
 *
 *--------------------------------------------------------------*/

func CRC16(data []byte) uint32 {
	return uint32(crc16.Checksum(data, crc16Table))
}

func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

func DefaultChecksums() ChecksumTable {
	return ChecksumTable{
		Checksum16: CRC16,
		Checksum32: CRC32,
	}
}

// appendChecksum appends a checksum value, big endian, in the width for kind.
func appendChecksum(dst []byte, kind ChecksumKind, value uint32) []byte {
	if kind == Checksum32 {
		return binary.BigEndian.AppendUint32(dst, value)
	}

	return binary.BigEndian.AppendUint16(dst, uint16(value)) //nolint:gosec
}

// readChecksum is the inverse of appendChecksum.
func readChecksum(src []byte, kind ChecksumKind) uint32 {
	if kind == Checksum32 {
		return binary.BigEndian.Uint32(src)
	}

	return uint32(binary.BigEndian.Uint16(src))
}
