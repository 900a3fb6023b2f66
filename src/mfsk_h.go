package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Constants and error values shared by the MFSK modem.
 *
 *---------------------------------------------------------------*/

import "errors"

/* Modem defaults.  16 tones at 15.625 baud, lowest tone at 1500 Hz. */

const (
	DEFAULT_SAMPLE_RATE    = 8000
	DEFAULT_BASE_FREQUENCY = 1500.0
	DEFAULT_SYMBOL_RATE    = 15.625
	DEFAULT_TONE_COUNT     = 16

	MIN_TONE_COUNT = 2
	MAX_TONE_COUNT = 256
)

/* Timing recovery. */

const (
	TIMING_BUFFER_SYMBOLS = 4 // Ring length, in symbol periods.

	DEFAULT_LOW_THRESHOLD  = 1.0 // radians
	DEFAULT_HIGH_THRESHOLD = 5.5 // radians
	DEFAULT_DEBOUNCE       = 0.8 // fraction of a symbol period

	SNR_DECAY_WEIGHT = 16 // symbols
)

/* Framing. */

const (
	FLAGS_BITS       = 16
	FLAG_CRC32       = 0x8000
	FLAG_LENGTH_MASK = 0x03FF

	MAX_PAYLOAD_LEN     = 1023
	DEFAULT_PAYLOAD_CAP = 32

	MAX_CHECKSUM_BITS = 32
)

// DefaultSync returns the default frame synchronisation pattern, 0xAB 0xCD.
func DefaultSync() []byte {
	return []byte{0xAB, 0xCD}
}

var (
	ErrInvalidToneCount  = errors.New("tone count must be a power of two between 2 and 256")
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrInvalidSymbolRate = errors.New("symbol rate must be positive")
	ErrInvalidFrequency  = errors.New("base frequency must be positive")
	ErrAboveNyquist      = errors.New("highest tone is above the Nyquist frequency")
	ErrSymbolTooShort    = errors.New("symbol period must span at least one sample per tone")
	ErrInvalidTiming     = errors.New("invalid timing thresholds")
	ErrInvalidTimingMode = errors.New("unknown timing mode")

	ErrToneOutOfRange = errors.New("tone index out of range")
	ErrBitGroupWidth  = errors.New("bit group has the wrong width")
	ErrInvalidBit     = errors.New("bit value must be 0 or 1")

	ErrEmptySync     = errors.New("sync pattern must not be empty")
	ErrPayloadCap    = errors.New("payload cap must be between 0 and 1023")
	ErrMissingCRC    = errors.New("checksum function table is incomplete")
	ErrUnknownCRC    = errors.New("unknown checksum kind")
	ErrNotWav        = errors.New("not a usable WAV file")
	ErrNoAudioDevice = errors.New("no audio input device")
)
