package mfsk

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseConfig_Defaults(t *testing.T) {
	var cfg, err = ParseConfig([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfig(t *testing.T) {
	var doc = `
log_level: debug
modem:
  sample_rate: 11025
  tone_count: 32
  gray_coded: false
  timing_mode: forced
  timing:
    debounce: 0.5
framer:
  sync: "2dd4"
  payload_cap: 255
kiss:
  tcp_port: 0
  pty: true
mqtt:
  enabled: true
  broker: tcp://broker:1883
  qos: 1
packet_log:
  path: /tmp/mfsk
  daily_names: true
`

	var cfg, err = ParseConfig([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 11025, cfg.Modem.SampleRate)
	assert.Equal(t, 32, cfg.Modem.ToneCount)
	assert.False(t, cfg.Modem.GrayCoded)
	assert.Equal(t, TimingForced, cfg.Modem.TimingMode)
	assert.InDelta(t, 0.5, cfg.Modem.Timing.Debounce, 1e-12)

	// Untouched settings keep their defaults.
	assert.InDelta(t, DEFAULT_BASE_FREQUENCY, cfg.Modem.BaseFrequency, 1e-12)
	assert.InDelta(t, DEFAULT_HIGH_THRESHOLD, cfg.Modem.Timing.HighThreshold, 1e-12)
	assert.Equal(t, DEFAULT_QUEUE_SIZE, cfg.Queue.Size)

	assert.Equal(t, HexBytes{0x2D, 0xD4}, cfg.Framer.Sync)
	assert.Equal(t, 255, cfg.Framer.PayloadCap)
	assert.Equal(t, 0, cfg.Kiss.TCPPort)
	assert.True(t, cfg.Kiss.Pty)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "mfsk", cfg.MQTT.TopicPrefix)
	assert.Equal(t, PacketLogConfig{Path: "/tmp/mfsk", DailyNames: true}, cfg.PacketLog)
}

func TestParseConfig_Invalid(t *testing.T) {
	var cases = map[string]string{
		"tone count":  "modem:\n  tone_count: 10\n",
		"timing mode": "modem:\n  timing_mode: sideways\n",
		"sync":        "framer:\n  sync: xyz\n",
		"payload cap": "framer:\n  payload_cap: 2000\n",
		"log level":   "log_level: shouty\n",
		"queue":       "queue:\n  size: 0\n",
		"kiss":        "kiss:\n  tcp_port: -1\n",
		"dcd":         "dcd:\n  chip: gpiochip0\n",
		"yaml":        "modem: [",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			var _, err = ParseConfig([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.Modem.ToneCount = 3
	cfg.Framer.Sync = nil

	var err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToneCount)
	assert.ErrorIs(t, err, ErrEmptySync)
}

func TestConfig_YAMLRoundTrip(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.Framer.Sync = HexBytes{0x12, 0x34, 0x56}
	cfg.Modem.TimingMode = TimingForced

	var data, err = yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sync: \"123456\"")
	assert.Contains(t, string(data), "timing_mode: forced")

	var back, parseErr = ParseConfig(data)
	require.NoError(t, parseErr)
	assert.Equal(t, cfg, back)
}

func TestLoadConfig(t *testing.T) {
	var dir = t.TempDir()
	var path = filepath.Join(dir, "mfsk.yaml")

	require.NoError(t, os.WriteFile(path, []byte("modem:\n  tone_count: 8\n"), 0o600))

	var cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Modem.ToneCount)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestHexBytes(t *testing.T) {
	var h HexBytes

	require.NoError(t, h.UnmarshalText([]byte("0xAB CD")))
	assert.Equal(t, HexBytes{0xAB, 0xCD}, h)

	assert.Error(t, h.UnmarshalText([]byte("abc")))

	var text, err = HexBytes{0x01, 0xFF}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "01ff", string(text))
}

func TestParseTimingMode(t *testing.T) {
	var m, err = ParseTimingMode(" Forced ")
	require.NoError(t, err)
	assert.Equal(t, TimingForced, m)

	m, err = ParseTimingMode("")
	require.NoError(t, err)
	assert.Equal(t, TimingRecovered, m)

	_, err = ParseTimingMode("psychic")
	assert.ErrorIs(t, err, ErrInvalidTimingMode)

	assert.Equal(t, "TimingMode(5)", TimingMode(5).String())
}

func TestParseLogLevel(t *testing.T) {
	var level, err = ParseLogLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, log.WarnLevel, level)

	_, err = ParseLogLevel("loud")
	assert.Error(t, err)

	assert.Equal(t, log.InfoLevel, LevelForVerbosity(0))
	assert.Equal(t, log.DebugLevel, LevelForVerbosity(2))
}
