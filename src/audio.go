package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Audio input for the receiver.
 *
 * Description:	Where the samples come from:
 *
 *		"" or "default"	The default sound card input, via PortAudio.
 *		"stdin"		Raw signed 16 bit little endian mono on stdin,
 *				for piping from something like rtl_fm or sox.
 *		anything else	A PortAudio input device whose name contains
 *				this string.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gordonklaus/portaudio"
)

const DEFAULT_FRAMES_PER_BUFFER = 1024

type AudioConfig struct {
	Device          string `yaml:"device"`
	FramesPerBuffer int    `yaml:"frames_per_buffer"`
	StatsInterval   int    `yaml:"stats_interval"` // Seconds between audio statistics.  0 for none.
}

func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		Device:          "default",
		FramesPerBuffer: DEFAULT_FRAMES_PER_BUFFER,
		StatsInterval:   0,
	}
}

func (c AudioConfig) Validate() error {
	if c.FramesPerBuffer < 1 {
		return fmt.Errorf("frames per buffer must be at least 1, got %d", c.FramesPerBuffer)
	}

	if c.StatsInterval < 0 {
		return fmt.Errorf("stats interval must not be negative, got %d", c.StatsInterval)
	}

	return nil
}

// AudioSource delivers blocks of mono samples.
type AudioSource interface {
	// Read fills buf and returns how many samples it got.  io.EOF at the end.
	Read(buf []float32) (int, error)
	Close() error
}

/*-------------------------------------------------------------------
 *
 * Name:        OpenAudioSource
 *
 * Purpose:     Open the configured audio input.
 *
 * Inputs:	cfg		- Device and buffer size.
 *
 *		sampleRate	- Samples per second wanted.
 *
 *--------------------------------------------------------------------*/

func OpenAudioSource(cfg AudioConfig, sampleRate int) (AudioSource, error) { //nolint:ireturn
	if cfg.Device == "stdin" {
		return NewRawSource(os.Stdin), nil
	}

	return openPortAudio(cfg, sampleRate)
}

// rawSource reads signed 16 bit little endian samples.
type rawSource struct {
	r   *bufio.Reader
	c   io.Closer
	buf []byte
}

func NewRawSource(r io.ReadCloser) AudioSource { //nolint:ireturn
	return &rawSource{
		r:   bufio.NewReader(r),
		c:   r,
		buf: nil,
	}
}

func (s *rawSource) Read(out []float32) (int, error) {
	if cap(s.buf) < 2*len(out) {
		s.buf = make([]byte, 2*len(out))
	}

	var buf = s.buf[:2*len(out)]

	var n, err = io.ReadFull(s.r, buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}

	var count = n / 2
	for i := range count {
		out[i] = float32(int16(binary.LittleEndian.Uint16(buf[2*i:]))) / 32768 //nolint:gosec
	}

	return count, err
}

func (s *rawSource) Close() error {
	return s.c.Close()
}

type portAudioSource struct {
	stream *portaudio.Stream
	buf    []float32
}

func openPortAudio(cfg AudioConfig, sampleRate int) (*portAudioSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing PortAudio: %w", err)
	}

	var device, err = findInputDevice(cfg.Device)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}

	var params = portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(sampleRate)
	params.FramesPerBuffer = cfg.FramesPerBuffer

	var s = &portAudioSource{ //nolint:exhaustruct
		buf: make([]float32, cfg.FramesPerBuffer),
	}

	s.stream, err = portaudio.OpenStream(params, s.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("opening audio device %q: %w", device.Name, err)
	}

	if err := s.stream.Start(); err != nil {
		_ = s.stream.Close()
		_ = portaudio.Terminate()

		return nil, fmt.Errorf("starting audio device %q: %w", device.Name, err)
	}

	return s, nil
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" || name == "default" {
		var d, err = portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoAudioDevice, err)
		}

		return d, nil
	}

	var devices, err = portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing audio devices: %w", err)
	}

	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(d.Name, name) {
			return d, nil
		}
	}

	return nil, fmt.Errorf("%w: nothing matching %q", ErrNoAudioDevice, name)
}

// Read blocks until a buffer's worth of audio is available.  An input
// overflow is ignored since the data is still good to use.
func (s *portAudioSource) Read(out []float32) (int, error) {
	var err = s.stream.Read()
	if errors.Is(err, portaudio.InputOverflowed) {
		err = nil
	}

	var n = copy(out, s.buf)

	return n, err
}

func (s *portAudioSource) Close() error {
	var stopErr = s.stream.Stop()
	var closeErr = s.stream.Close()
	var termErr = portaudio.Terminate()

	return errors.Join(stopErr, closeErr, termErr)
}
