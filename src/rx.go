package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the MFSK receiver, which includes:
 *
 *			The MFSK demodulator using the "sound card."
 *			Frame decoding.
 *			KISS TNC emulator, for receive only.
 *			Packet log, MQTT publishing and metrics.
 *
 * Description:	Audio is read on the main goroutine and everything up
 *		to a checked payload happens there too.  Payloads then
 *		go through a delivery queue so a slow network client
 *		can't hold up the audio.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

const DEFAULT_CONFIG_FILE = "mfsk.yaml"

func RxMain() {
	if code := rxMain(os.Args[1:], os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}

func rxMain(args []string, stdout io.Writer, stderr io.Writer) int {
	var flags = pflag.NewFlagSet("mfsk-rx", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var configFileName = flags.StringP("config-file", "c", DEFAULT_CONFIG_FILE, "Configuration file name.")
	var audioStatsInterval = flags.IntP("audio-stats-interval", "a", -1, "Audio statistics interval in seconds.  0 to disable.")
	var enablePseudoTerminal = flags.BoolP("enable-ptty", "p", false, "Enable pseudo terminal for KISS protocol.")
	var timestampFormat = flags.StringP("timestamp-format", "T", "", "Precede received frames with 'strftime' format time stamp.")
	var hexDisplay = flags.BoolP("hex-display", "x", false, "Print frame contents as hexadecimal bytes.")
	var logDir = flags.StringP("log-dir", "l", "", "Directory name for daily packet log files.")
	var logFile = flags.StringP("log-file", "L", "", "File name for packet logging.")
	var debug = flags.CountP("debug", "d", "Debug output.  Frame rejections, timing, KISS clients.")
	var version = flags.BoolP("version", "V", false, "Print version and exit.")
	var help = flags.BoolP("help", "h", false, "Display help text.")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "mfsk-rx - a software 'soundcard' MFSK receiver and KISS TNC.\n")
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Usage: mfsk-rx [options] [ - | stdin | file.wav ]\n")
		flags.PrintDefaults()
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "After any options, there can be a single command line argument for the source of\n")
		fmt.Fprintf(stderr, "received audio.  This can override the audio input specified in the configuration file.\n")
		fmt.Fprintf(stderr, "\"-\" or \"stdin\" read raw 16 bit signed little endian mono samples.\n")
	}

	if err := flags.Parse(args); err != nil {
		return 1
	}

	if *help {
		flags.Usage()
		return 1
	}

	if *version {
		printVersion(stdout, "mfsk-rx")
		return 0
	}

	if *logDir != "" && *logFile != "" {
		fmt.Fprintf(stderr, "Logging options -l and -L can't be used together.  Pick one or the other.\n")
		return 1
	}

	var cfg, cfgErr = LoadConfig(*configFileName)
	if cfgErr != nil {
		if !errors.Is(cfgErr, fs.ErrNotExist) || flags.Changed("config-file") {
			fmt.Fprintf(stderr, "%s\n", cfgErr)
			return 1
		}

		cfg = DefaultConfig()
	}

	if *audioStatsInterval >= 0 {
		cfg.Audio.StatsInterval = *audioStatsInterval
	}

	if *enablePseudoTerminal {
		cfg.Kiss.Pty = true
	}

	if *timestampFormat != "" {
		cfg.Monitor.TimestampFormat = *timestampFormat
	}

	if *hexDisplay {
		cfg.Monitor.Hex = true
	}

	if *logFile != "" {
		cfg.PacketLog = PacketLogConfig{Path: *logFile, DailyNames: false}
	} else if *logDir != "" {
		cfg.PacketLog = PacketLogConfig{Path: *logDir, DailyNames: true}
	}

	var level, _ = ParseLogLevel(cfg.LogLevel)
	if *debug > 0 {
		level = LevelForVerbosity(*debug)
	}

	var logger = NewLogger(stderr, level)

	if cfgErr != nil {
		logger.Info("No configuration file, using defaults", "path", *configFileName)
	}

	var input = cfg.Audio.Device
	if flags.NArg() > 0 {
		if flags.NArg() > 1 {
			logger.Warn("File(s) beyond the first are ignored.")
		}

		input = flags.Arg(0)
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runReceiver(ctx, cfg, input, stdout, logger); err != nil {
		logger.Error("Receiver stopped", "err", err)
		return 1
	}

	return 0
}

// rxStation is everything hanging off the receiver.
type rxStation struct {
	cfg     Config
	logger  *log.Logger
	monitor *Monitor
	metrics *Metrics
	queue   *DeliveryQueue

	packetLog *PacketLog
	kiss      *KissOutput
	mqtt      *MQTTPublisher
	dcd       *DCDOutput
}

/*-------------------------------------------------------------------
 *
 * Name:        openStation
 *
 * Purpose:     Open all the outputs the configuration asks for.
 *
 *--------------------------------------------------------------------*/

func openStation(ctx context.Context, cfg Config, stdout io.Writer, reg prometheus.Registerer, logger *log.Logger) (*rxStation, error) {
	var st = &rxStation{ //nolint:exhaustruct
		cfg:     cfg,
		logger:  logger,
		metrics: NewMetrics(reg),
	}

	var err error

	st.monitor, err = NewMonitor(stdout, cfg.Monitor, cfg.Modem.SampleRate)
	if err != nil {
		return nil, err
	}

	st.queue = NewDeliveryQueue(cfg.Queue.Size, st.metrics.DeliveryDropped)

	if cfg.PacketLog.Path != "" {
		st.packetLog, err = NewPacketLog(cfg.PacketLog, logger)
		if err != nil {
			return nil, err
		}
	}

	st.kiss, err = OpenKissOutput(ctx, cfg.Kiss, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	if cfg.MQTT.Enabled {
		st.mqtt, err = NewMQTTPublisher(cfg.MQTT, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	if cfg.DCD.Enabled() {
		st.dcd, err = OpenDCDOutput(cfg.DCD, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	return st, nil
}

// deliver is the delivery queue consumer.
func (st *rxStation) deliver(p Packet) {
	st.monitor.Packet(p)

	if st.packetLog != nil {
		if err := st.packetLog.Write(0, p); err != nil {
			st.logger.Error("Packet log", "err", err)
		}
	}

	if st.kiss != nil {
		st.kiss.Send(p)
	}

	if st.mqtt != nil {
		if err := st.mqtt.Publish(p); err != nil {
			st.logger.Warn("MQTT", "err", err)
		}
	}
}

func (st *rxStation) receiverOptions() []ReceiverOption {
	var opts = []ReceiverOption{
		WithReceiverObserver(st.metrics),
		WithReceiverLogger(st.logger),
	}

	if st.cfg.Monitor.Symbols {
		opts = append(opts, WithSymbolSink(st.monitor.Symbol))
	}

	if st.dcd != nil {
		opts = append(opts, WithCarrierDetect(st.dcd.Set))
	}

	return opts
}

func (st *rxStation) Close() {
	if st.packetLog != nil {
		st.packetLog.Close()
	}

	if st.kiss != nil {
		_ = st.kiss.Close()
	}

	if st.mqtt != nil {
		st.mqtt.Disconnect()
	}

	if st.dcd != nil {
		_ = st.dcd.Close()
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        runReceiver
 *
 * Purpose:     Receive until the audio ends or we're told to stop.
 *
 * Inputs:	input	- Audio device, "-" or "stdin", or a .WAV file.
 *
 *--------------------------------------------------------------------*/

func runReceiver(ctx context.Context, cfg Config, input string, stdout io.Writer, logger *log.Logger) error {
	var reg = prometheus.NewRegistry()

	var st, err = openStation(ctx, cfg, stdout, reg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := ServeMetrics(ctx, cfg.Metrics.Listen, reg, logger); err != nil {
				logger.Error("Metrics server", "err", err)
			}
		}()
	}

	var delivered sync.WaitGroup

	delivered.Add(1)

	go func() {
		defer delivered.Done()

		// Not ctx: whatever was received still gets delivered after a stop.
		st.queue.Run(context.Background(), st.deliver)
	}()

	var rx *Receiver

	rx, err = NewReceiver(cfg.Modem, cfg.Framer, func(p Packet) { st.queue.Put(p) }, st.receiverOptions()...)
	if err != nil {
		st.queue.Close()
		delivered.Wait()

		return err
	}

	logger.Info("Receiving",
		"tones", cfg.Modem.ToneCount,
		"baud", cfg.Modem.SymbolRate,
		"base", cfg.Modem.BaseFrequency,
		"sample_rate", cfg.Modem.SampleRate,
		"timing", cfg.Modem.TimingMode)

	if strings.HasSuffix(strings.ToLower(input), ".wav") {
		err = receiveWavFile(ctx, rx, input, cfg.Modem.SampleRate)
	} else {
		err = receiveAudio(ctx, rx, cfg.Audio, cfg.Modem.SampleRate, NewAudioStats(cfg.Audio.StatsInterval, logger), input)
	}

	st.queue.Close()
	delivered.Wait()

	if dropped := st.queue.Dropped(); dropped > 0 {
		logger.Warn("Packets dropped because delivery couldn't keep up", "count", dropped)
	}

	return err
}

func receiveWavFile(ctx context.Context, rx *Receiver, name string, sampleRate int) error {
	var f, err = os.Open(name) //nolint:gosec
	if err != nil {
		return fmt.Errorf("couldn't open file for read: %w", err)
	}
	defer f.Close()

	var audio *WavAudio

	audio, err = ReadWav(f, 0)
	if err != nil {
		return err
	}

	if audio.SampleRate != sampleRate {
		return fmt.Errorf("%s is %d samples per second, the modem is configured for %d", name, audio.SampleRate, sampleRate)
	}

	for i := 0; i < len(audio.Samples) && ctx.Err() == nil; i += DEFAULT_FRAMES_PER_BUFFER {
		rx.Consume32(audio.Samples[i:min(i+DEFAULT_FRAMES_PER_BUFFER, len(audio.Samples))])
	}

	return nil
}

func receiveAudio(ctx context.Context, rx *Receiver, cfg AudioConfig, sampleRate int, stats *AudioStats, input string) error {
	if input == "-" {
		input = "stdin"
	}

	cfg.Device = input

	var src, err = OpenAudioSource(cfg, sampleRate)
	if err != nil {
		return err
	}

	// A blocked read only ends when the source is closed.
	var closeOnce sync.Once
	var closeSrc = func() { closeOnce.Do(func() { _ = src.Close() }) }

	var stopWatch = context.AfterFunc(ctx, closeSrc)
	defer stopWatch()
	defer closeSrc()

	var buf = make([]float32, cfg.FramesPerBuffer)

	for ctx.Err() == nil {
		var n, readErr = src.Read(buf)

		rx.Consume32(buf[:n])

		var snr, _ = rx.Detector().SNR()
		stats.Record(buf[:n], snr)

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("audio input: %w", readErr)
		}
	}

	return nil
}
