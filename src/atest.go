/* Test fixture for the MFSK demodulator */
package mfsk

/*-------------------------------------------------------------------
 *
 * Purpose:     Test fixture for the MFSK demodulator.
 *
 * Inputs:	Takes audio from a .WAV file instead of the audio device.
 *
 * Description:	This can be used to test the demodulator under
 *		controlled and reproducible conditions for tweaking.
 *
 *		For example
 *
 *		$ mfsk-gen-packets -o test1.wav
 *		$ mfsk-atest test1.wav
 *
 *		Much quicker than real time, and the same result every
 *		time.
 *
 *--------------------------------------------------------------------*/

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
)

const atestChunk = 1024

func AtestMain() {
	if code := atestMain(os.Args[1:], os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}

type atestTotals struct {
	packets  int
	duration float64 // seconds of audio
}

func atestMain(args []string, stdout io.Writer, stderr io.Writer) int {
	var flags = pflag.NewFlagSet("mfsk-atest", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var modemOpts = addModemFlags(flags, true)
	var framerOpts = addFramerFlags(flags)
	var channel = flags.IntP("channel", "C", 0, "Audio channel to decode, 0 is left.")
	var errorIfLessThan = flags.IntP("error-if-less-than", "L", -1, "Error if less than this number decoded.")
	var errorIfGreaterThan = flags.IntP("error-if-greater-than", "g", -1, "Error if greater than this number decoded.")
	var hexDisplay = flags.BoolP("hex-display", "h", false, "Print frame contents as hexadecimal bytes.")
	var symbols = flags.BoolP("symbols", "S", false, "Print every symbol decision.")
	var timestampFormat = flags.StringP("timestamp-format", "T", "", "Precede received frames with 'strftime' format time stamp.")
	var debug = flags.CountP("debug", "d", "Debug output.  Frame rejections, timing.")
	var version = flags.BoolP("version", "V", false, "Print version and exit.")
	var help = flags.Bool("help", false, "Display help text.")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "mfsk-atest is a test application which decodes MFSK packets from audio recordings.\n")
		fmt.Fprintf(stderr, "This provides an easy way to test decoding performance much quicker than normal real-time.\n")
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Usage: mfsk-atest [OPTION]... <WAV FILE>...\n")
		flags.PrintDefaults()
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Examples:\n")
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "$ mfsk-gen-packets -o test1.wav\n")
		fmt.Fprintf(stderr, "$ mfsk-atest test1.wav\n")
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "$ mfsk-gen-packets -n 32 -o test32.wav\n")
		fmt.Fprintf(stderr, "$ mfsk-atest -n 32 test32.wav\n")
	}

	if err := flags.Parse(args); err != nil {
		return 1
	}

	if *help {
		flags.Usage()
		return 1
	}

	if *version {
		printVersion(stdout, "mfsk-atest")
		return 0
	}

	if flags.NArg() == 0 {
		fmt.Fprintf(stderr, "Specify .WAV file name on command line.\n\n")
		flags.Usage()

		return 1
	}

	var framer, framerErr = framerOpts.config()
	if framerErr != nil {
		fmt.Fprintf(stderr, "%s\n", framerErr)
		return 1
	}

	var logger = NewLogger(stderr, LevelForVerbosity(*debug))
	var monitorCfg = MonitorConfig{TimestampFormat: *timestampFormat, Hex: *hexDisplay, Symbols: *symbols}

	var startTime = time.Now()
	var totals atestTotals

	for _, wavFileName := range flags.Args() {
		var modem = modemOpts.config(DEFAULT_SAMPLE_RATE)

		var n, duration, err = atestFile(wavFileName, *channel, modem, framer, monitorCfg, stdout, logger)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %s\n", wavFileName, err)
			return 1
		}

		fmt.Fprintf(stdout, "%d from %s\n", n, wavFileName)

		totals.packets += n
		totals.duration += duration
	}

	var elapsed = time.Since(startTime)

	fmt.Fprintf(stdout, "%d packets decoded in %.3f seconds.  %.1f x realtime\n",
		totals.packets, elapsed.Seconds(), totals.duration/max(elapsed.Seconds(), 1e-6))

	if *errorIfLessThan != -1 && totals.packets < *errorIfLessThan {
		fmt.Fprintf(stdout, "\n * * * TEST FAILED: number decoded is less than %d * * * \n", *errorIfLessThan)
		return 1
	}

	if *errorIfGreaterThan != -1 && totals.packets > *errorIfGreaterThan {
		fmt.Fprintf(stdout, "\n * * * TEST FAILED: number decoded is greater than %d * * * \n", *errorIfGreaterThan)
		return 1
	}

	return 0
}

/*-------------------------------------------------------------------
 *
 * Name:        atestFile
 *
 * Purpose:     Decode one file.
 *
 * Description:	The modem sample rate comes from the file.  A new
 *		receiver is made for each file for that reason.
 *
 * Returns:	Number of packets and audio duration in seconds.
 *
 *--------------------------------------------------------------------*/

func atestFile(name string, channel int, modem ModemConfig, framer FramerConfig,
	monitorCfg MonitorConfig, stdout io.Writer, logger *log.Logger,
) (int, float64, error) {
	var f, openErr = os.Open(name) //nolint:gosec
	if openErr != nil {
		return 0, 0, fmt.Errorf("couldn't open file for read: %w", openErr)
	}
	defer f.Close()

	var audio, readErr = ReadWav(f, channel)
	if readErr != nil {
		return 0, 0, readErr
	}

	fmt.Fprintf(stdout, "%d samples per second.  %d bits per sample.  %d audio channels.\n",
		audio.SampleRate, audio.BitsPerSample, audio.Channels)
	fmt.Fprintf(stdout, "%d audio samples in file.  Duration = %.1f seconds.\n",
		len(audio.Samples), audio.Duration())

	modem.SampleRate = audio.SampleRate

	var monitor, monErr = NewMonitor(stdout, monitorCfg, audio.SampleRate)
	if monErr != nil {
		return 0, 0, monErr
	}

	var rx, rxErr = NewReceiver(modem, framer, monitor.Packet,
		WithSymbolSink(monitor.Symbol),
		WithReceiverLogger(logger))
	if rxErr != nil {
		return 0, 0, rxErr
	}

	for i := 0; i < len(audio.Samples); i += atestChunk {
		rx.Consume32(audio.Samples[i:min(i+atestChunk, len(audio.Samples))])
	}

	var stats = rx.Depacketizer().Stats()
	logger.Info("Framer", "sync", stats.SyncMatches, "accepted", stats.Accepted,
		"bad_length", stats.RejectedLength, "bad_crc", stats.RejectedChecksum)

	return monitor.Count(), audio.Duration(), nil
}
