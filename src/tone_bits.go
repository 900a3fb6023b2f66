package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Convert between tone indices and groups of bits.
 *
 * Description:	Each symbol carries log2(tone count) bits.  With Gray
 *		coding enabled, neighbouring tones differ by a single bit,
 *		so the most likely demodulation error (picking the tone
 *		next door) costs one bit rather than several.
 *
 *		Bits are sent most significant first.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"math/bits"
)

// GrayEncode maps a bit group value to the tone that carries it.
// This is the cumulative form n ^ n>>1 ^ n>>2 ... ^ n>>7.
func GrayEncode(n int) int {
	var g = n

	for shift := 1; shift < 8; shift++ {
		g ^= n >> shift
	}

	return g
}

// GrayDecode maps a tone back to its bit group value.
func GrayDecode(n int) int {
	return n ^ (n >> 1)
}

type ToneCodec struct {
	toneCount int
	width     int
	mask      int
	grayCoded bool
}

/*-------------------------------------------------------------------
 *
 * Name:        NewToneCodec
 *
 * Purpose:     Create a tone / bit converter.
 *
 * Inputs:	toneCount	- Number of tones.  Power of two, 2 to 256.
 *
 *		grayCoded	- Apply reflected binary coding.
 *
 * Returns:	ErrInvalidToneCount for a bad tone count.
 *
 *--------------------------------------------------------------------*/

func NewToneCodec(toneCount int, grayCoded bool) (*ToneCodec, error) {
	if !validToneCount(toneCount) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidToneCount, toneCount)
	}

	var width = bits.TrailingZeros(uint(toneCount))

	return &ToneCodec{
		toneCount: toneCount,
		width:     width,
		mask:      toneCount - 1,
		grayCoded: grayCoded,
	}, nil
}

func validToneCount(n int) bool {
	return n >= MIN_TONE_COUNT && n <= MAX_TONE_COUNT && bits.OnesCount(uint(n)) == 1
}

func (c *ToneCodec) BitsPerSymbol() int {
	return c.width
}

func (c *ToneCodec) ToneCount() int {
	return c.toneCount
}

// ToneToBits returns the bit group carried by a tone, most significant bit first.
func (c *ToneCodec) ToneToBits(tone int) ([]byte, error) {
	return c.AppendBits(make([]byte, 0, c.width), tone)
}

// AppendBits is ToneToBits without the allocation.
func (c *ToneCodec) AppendBits(dst []byte, tone int) ([]byte, error) {
	if tone < 0 || tone >= c.toneCount {
		return dst, fmt.Errorf("%w: %d not in [0, %d)", ErrToneOutOfRange, tone, c.toneCount)
	}

	var value = tone
	if c.grayCoded {
		value = GrayDecode(tone) & c.mask
	}

	for i := c.width - 1; i >= 0; i-- {
		dst = append(dst, byte((value>>i)&1))
	}

	return dst, nil
}

// BitsToTone returns the tone that carries a bit group, most significant bit first.
func (c *ToneCodec) BitsToTone(group []byte) (int, error) {
	if len(group) != c.width {
		return 0, fmt.Errorf("%w: got %d bits, want %d", ErrBitGroupWidth, len(group), c.width)
	}

	var value = 0

	for _, b := range group {
		if b > 1 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidBit, b)
		}

		value = value<<1 | int(b)
	}

	if c.grayCoded {
		return GrayEncode(value) & c.mask, nil
	}

	return value, nil
}
