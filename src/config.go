package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Configuration for the modem, the framer and the
 *		receiver application.
 *
 * Description:	Programs can build a ModemConfig or FramerConfig
 *		directly, starting from the Default... functions.
 *
 *		The receiver application reads a YAML document such as:
 *
 *			modem:
 *			  sample_rate: 8000
 *			  base_frequency: 1500
 *			  symbol_rate: 15.625
 *			  tone_count: 16
 *			  gray_coded: true
 *			  timing_mode: recovered
 *			framer:
 *			  sync: abcd
 *			  payload_cap: 32
 *			kiss:
 *			  tcp_port: 8001
 *			mqtt:
 *			  enabled: true
 *			  broker: tcp://localhost:1883
 *
 *		Anything left out keeps its default.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type TimingMode int

const (
	// TimingRecovered finds symbol boundaries blindly from the signal envelope.
	TimingRecovered TimingMode = iota
	// TimingForced places a boundary every symbol length samples from the
	// start of the stream.  For testing against a known-timing reference.
	TimingForced
)

func (m TimingMode) String() string {
	switch m {
	case TimingRecovered:
		return "recovered"
	case TimingForced:
		return "forced"
	default:
		return fmt.Sprintf("TimingMode(%d)", int(m))
	}
}

func ParseTimingMode(s string) (TimingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "recovered", "":
		return TimingRecovered, nil
	case "forced":
		return TimingForced, nil
	default:
		return TimingRecovered, fmt.Errorf("%w: %q", ErrInvalidTimingMode, s)
	}
}

func (m TimingMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *TimingMode) UnmarshalText(text []byte) error {
	var parsed, err = ParseTimingMode(string(text))
	if err != nil {
		return err
	}

	*m = parsed

	return nil
}

// TimingParams tune blind timing recovery.  The defaults were found by
// experiment.
type TimingParams struct {
	LowThreshold  float64 `yaml:"low_threshold"`  // Envelope phase must drop below this, radians.
	HighThreshold float64 `yaml:"high_threshold"` // ... having been above this on the previous sample.
	Debounce      float64 `yaml:"debounce"`       // Minimum gap between boundaries, in symbol periods.
}

func DefaultTimingParams() TimingParams {
	return TimingParams{
		LowThreshold:  DEFAULT_LOW_THRESHOLD,
		HighThreshold: DEFAULT_HIGH_THRESHOLD,
		Debounce:      DEFAULT_DEBOUNCE,
	}
}

func (p TimingParams) Validate() error {
	if p.LowThreshold < 0 || p.HighThreshold > 2*math.Pi || p.LowThreshold >= p.HighThreshold {
		return fmt.Errorf("%w: need 0 <= low (%g) < high (%g) <= 2pi", ErrInvalidTiming, p.LowThreshold, p.HighThreshold)
	}

	if p.Debounce < 0 || p.Debounce > 1 {
		return fmt.Errorf("%w: debounce %g not in [0, 1]", ErrInvalidTiming, p.Debounce)
	}

	return nil
}

type ModemConfig struct {
	SampleRate    int          `yaml:"sample_rate"`
	BaseFrequency float64      `yaml:"base_frequency"` // Lowest tone, Hz.
	SymbolRate    float64      `yaml:"symbol_rate"`    // Baud.  Also the tone spacing.
	ToneCount     int          `yaml:"tone_count"`
	GrayCoded     bool         `yaml:"gray_coded"`
	TimingMode    TimingMode   `yaml:"timing_mode"`
	Timing        TimingParams `yaml:"timing"`
}

func DefaultModemConfig() ModemConfig {
	return ModemConfig{
		SampleRate:    DEFAULT_SAMPLE_RATE,
		BaseFrequency: DEFAULT_BASE_FREQUENCY,
		SymbolRate:    DEFAULT_SYMBOL_RATE,
		ToneCount:     DEFAULT_TONE_COUNT,
		GrayCoded:     true,
		TimingMode:    TimingRecovered,
		Timing:        DefaultTimingParams(),
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        Validate
 *
 * Purpose:     Reject a modem configuration that can't work.
 *
 * Returns:	nil or an error wrapping one of the ErrInvalid... values.
 *
 *--------------------------------------------------------------------*/

func (c ModemConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, c.SampleRate)
	}

	if !(c.SymbolRate > 0) {
		return fmt.Errorf("%w: %g", ErrInvalidSymbolRate, c.SymbolRate)
	}

	if !(c.BaseFrequency > 0) {
		return fmt.Errorf("%w: %g", ErrInvalidFrequency, c.BaseFrequency)
	}

	if !validToneCount(c.ToneCount) {
		return fmt.Errorf("%w: %d", ErrInvalidToneCount, c.ToneCount)
	}

	var top = c.BaseFrequency + float64(c.ToneCount-1)*c.SymbolRate
	if top >= float64(c.SampleRate)/2 {
		return fmt.Errorf("%w: %.1f Hz at %d samples/sec", ErrAboveNyquist, top, c.SampleRate)
	}

	if c.ToneZero()+c.ToneCount > c.SymbolLength() {
		return fmt.Errorf("%w: %d samples per symbol", ErrSymbolTooShort, c.SymbolLength())
	}

	switch c.TimingMode {
	case TimingRecovered:
		if err := c.Timing.Validate(); err != nil {
			return err
		}
	case TimingForced:
	default:
		return fmt.Errorf("%w: %d", ErrInvalidTimingMode, int(c.TimingMode))
	}

	return nil
}

func (c ModemConfig) BitsPerSymbol() int {
	var n = 0
	for v := c.ToneCount; v > 1; v >>= 1 {
		n++
	}

	return n
}

// SymbolLength is the number of samples in one symbol period.
func (c ModemConfig) SymbolLength() int {
	return int(math.Round(float64(c.SampleRate) / c.SymbolRate))
}

// ToneZero is the FFT bin holding the lowest tone after mixing.
func (c ModemConfig) ToneZero() int {
	return int(math.Round(c.BaseFrequency / c.SymbolRate))
}

// MixingFrequency moves the lowest tone onto the centre of an FFT bin.
func (c ModemConfig) MixingFrequency() float64 {
	return math.Round(c.BaseFrequency/c.SymbolRate)*c.SymbolRate - c.BaseFrequency
}

// HexBytes is a byte string written as hex in configuration files.
type HexBytes []byte

func (h HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h)), nil
}

func (h *HexBytes) UnmarshalText(text []byte) error {
	var s = strings.TrimPrefix(strings.ReplaceAll(string(text), " ", ""), "0x")

	var b, err = hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("sync pattern %q: %w", text, err)
	}

	*h = b

	return nil
}

type FramerConfig struct {
	Sync       HexBytes `yaml:"sync"`
	PayloadCap int      `yaml:"payload_cap"`

	// Checksum functions by kind.  Nil means the standard CRC-16 and CRC-32.
	Checksums ChecksumTable `yaml:"-"`
}

func DefaultFramerConfig() FramerConfig {
	return FramerConfig{
		Sync:       DefaultSync(),
		PayloadCap: DEFAULT_PAYLOAD_CAP,
		Checksums:  nil,
	}
}

func (c FramerConfig) Validate() error {
	if len(c.Sync) == 0 {
		return ErrEmptySync
	}

	if c.PayloadCap < 0 || c.PayloadCap > MAX_PAYLOAD_LEN {
		return fmt.Errorf("%w: %d", ErrPayloadCap, c.PayloadCap)
	}

	if c.Checksums != nil {
		for _, kind := range []ChecksumKind{Checksum16, Checksum32} {
			if c.Checksums[kind] == nil {
				return fmt.Errorf("%w: no %s", ErrMissingCRC, kind)
			}
		}
	}

	return nil
}

// MonitorConfig controls how received packets are shown on stdout.
type MonitorConfig struct {
	TimestampFormat string `yaml:"timestamp_format"` // strftime, empty for none.
	Hex             bool   `yaml:"hex"`
	Symbols         bool   `yaml:"symbols"`
}

// Config is the receiver application's configuration file.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Modem     ModemConfig     `yaml:"modem"`
	Framer    FramerConfig    `yaml:"framer"`
	Audio     AudioConfig     `yaml:"audio"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Queue     QueueConfig     `yaml:"queue"`
	PacketLog PacketLogConfig `yaml:"packet_log"`
	Kiss      KissConfig      `yaml:"kiss"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	DCD       DCDConfig       `yaml:"dcd"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		Modem:     DefaultModemConfig(),
		Framer:    DefaultFramerConfig(),
		Audio:     DefaultAudioConfig(),
		Monitor:   MonitorConfig{TimestampFormat: "", Hex: false, Symbols: false},
		Queue:     DefaultQueueConfig(),
		PacketLog: PacketLogConfig{Path: "", DailyNames: false},
		Kiss:      DefaultKissConfig(),
		MQTT:      DefaultMQTTConfig(),
		Metrics:   MetricsConfig{Listen: ""},
		DCD:       DCDConfig{Chip: "", Line: -1, ActiveLow: false},
	}
}

func (c Config) Validate() error {
	var errs = []error{}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if err := c.Modem.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("modem: %w", err))
	}

	if err := c.Framer.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("framer: %w", err))
	}

	if err := c.Audio.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("audio: %w", err))
	}

	if err := c.Queue.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("queue: %w", err))
	}

	if err := c.Kiss.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("kiss: %w", err))
	}

	if err := c.MQTT.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("mqtt: %w", err))
	}

	if err := c.DCD.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("dcd: %w", err))
	}

	return errors.Join(errs...)
}

// ParseConfig reads a YAML configuration on top of the defaults.
func ParseConfig(data []byte) (Config, error) {
	var c = DefaultConfig()

	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

func LoadConfig(path string) (Config, error) {
	var data, err = os.ReadFile(path) //nolint:gosec
	if err != nil {
		return DefaultConfig(), fmt.Errorf("reading configuration: %w", err)
	}

	return ParseConfig(data)
}
