package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Test program for generating MFSK packets.
 *
 * Description:	Given messages, generate audio that can be fed into
 *		the receiver for testing, or played out a sound card.
 *
 *		The audio is:
 *
 *			a few symbols of silence,
 *			a preamble alternating the lowest and highest tones
 *			  so the receiver can find the symbol timing,
 *			every message packed and run together,
 *			a little more silence so the last symbol is decided.
 *
 *		Optionally, white Gaussian noise for a given Eb/No is
 *		added to the whole thing.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/spf13/pflag"
)

var defaultGenMessages = []string{"Testing", "DE VK5QI", "More Testing"}

const (
	DEFAULT_LEADING_SILENCE  = 5  // symbols
	DEFAULT_PREAMBLE_PAIRS   = 15 // lowest, highest tone pairs
	DEFAULT_TRAILING_SILENCE = 2  // symbols
)

type PacketAudioParams struct {
	Modem           ModemConfig
	Amplitude       float64
	LeadingSilence  int
	PreamblePairs   int
	TrailingSilence int
	Sync            []byte
	CRC32           bool
	Messages        [][]byte

	Noise bool
	EbNo  float64 // dB, when Noise is set.
	Seed  uint64
}

func DefaultPacketAudioParams() PacketAudioParams {
	var messages = make([][]byte, 0, len(defaultGenMessages))
	for _, m := range defaultGenMessages {
		messages = append(messages, []byte(m))
	}

	return PacketAudioParams{
		Modem:           DefaultModemConfig(),
		Amplitude:       DEFAULT_AMPLITUDE,
		LeadingSilence:  DEFAULT_LEADING_SILENCE,
		PreamblePairs:   DEFAULT_PREAMBLE_PAIRS,
		TrailingSilence: DEFAULT_TRAILING_SILENCE,
		Sync:            DefaultSync(),
		CRC32:           false,
		Messages:        messages,
		Noise:           false,
		EbNo:            0,
		Seed:            1,
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        GeneratePacketAudio
 *
 * Purpose:     Produce the samples for a set of messages.
 *
 * Returns:	Samples at Modem.SampleRate, nominally within
 *		+- Amplitude before noise.
 *
 *--------------------------------------------------------------------*/

func GeneratePacketAudio(p PacketAudioParams) ([]float64, error) {
	var mod, err = NewModulator(p.Modem, p.Amplitude)
	if err != nil {
		return nil, err
	}

	var samples = mod.Silence(p.LeadingSilence)

	var preamble = make([]int, 0, 2*p.PreamblePairs)
	for range p.PreamblePairs {
		preamble = append(preamble, 0, p.Modem.ToneCount-1)
	}

	for _, t := range preamble {
		if samples, err = mod.AppendTone(samples, t); err != nil {
			return nil, err
		}
	}

	var pk = NewPacketizer(p.Sync, p.CRC32)
	var data []byte

	for _, m := range p.Messages {
		data = append(data, pk.Pack(m)...)
	}

	var tones []int

	tones, err = mod.BitsToTones(BytesToBits(data))
	if err != nil {
		return nil, err
	}

	for _, t := range tones {
		if samples, err = mod.AppendTone(samples, t); err != nil {
			return nil, err
		}
	}

	samples = append(samples, mod.Silence(p.TrailingSilence)...)

	if p.Noise {
		var rng = rand.New(rand.NewPCG(p.Seed, p.Seed+1)) //nolint:gosec
		AddNoise(samples, rng, NoiseSigmaForEbNo(p.Modem, p.Amplitude, p.EbNo))
	}

	return samples, nil
}

func GenPacketsMain() {
	if code := genPacketsMain(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}

func genPacketsMain(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	var flags = pflag.NewFlagSet("mfsk-gen-packets", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var defaults = DefaultPacketAudioParams()

	var modemOpts = addModemFlags(flags, false)
	var audioSampleRate = flags.IntP("audio-sample-rate", "r", DEFAULT_SAMPLE_RATE, "Audio sample rate.")
	var amplitude = flags.IntP("amplitude", "a", int(DEFAULT_AMPLITUDE*100), "Signal amplitude in range of 0 - 100%.")
	var outputFile = flags.StringP("output-file", "o", "", "Send output to .wav file.")
	var leading = flags.IntP("leading-silence", "z", defaults.LeadingSilence, "Symbols of silence before the preamble.")
	var preamble = flags.IntP("preamble", "p", defaults.PreamblePairs, "Number of lowest/highest tone pairs in the preamble.")
	var trailing = flags.IntP("trailing-silence", "t", defaults.TrailingSilence, "Symbols of silence at the end.")
	var sync = flags.StringP("sync", "y", "abcd", "Synchronisation pattern, hex.")
	var crc32 = flags.BoolP("crc32", "3", false, "Use CRC-32 rather than CRC-16.")
	var packetCount = flags.IntP("packet-count", "N", 1, "Repeat the set of messages this many times.")
	var ebno = flags.Float64P("ebno", "e", 0, "Add white noise for this Eb/No, dB.")
	var seed = flags.Uint64P("seed", "S", defaults.Seed, "Noise generator seed.")
	var help = flags.BoolP("help", "h", false, "Display help text.")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "mfsk-gen-packets - Generate audio file for MFSK packets.\n")
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Usage: mfsk-gen-packets [options] [message]...\n")
		flags.PrintDefaults()
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Each argument is sent as one packet.  With none, a built-in set\n")
		fmt.Fprintf(stderr, "of test messages is used.  \"-\" reads one message per line from stdin.\n")
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Example:  mfsk-gen-packets -o x.wav\n")
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "    16 tones, 15.625 baud starting at 1500 Hz.\n")
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Example:  echo \"Hello, world!\" | mfsk-gen-packets -a 25 -e 6 -o x.wav -\n")
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "    Read message from stdin, quarter volume, with noise at 6 dB Eb/No.\n")
	}

	if err := flags.Parse(args); err != nil {
		return 1
	}

	if *help {
		flags.Usage()
		return 1
	}

	if *outputFile == "" {
		fmt.Fprintf(stderr, "ERROR: The -o option must be used to specify an output file name.\n")
		flags.Usage()

		return 1
	}

	if *amplitude < 0 || *amplitude > 100 {
		fmt.Fprintf(stderr, "Amplitude must be in range of 0 to 100.\n")
		return 1
	}

	if *packetCount < 1 {
		fmt.Fprintf(stderr, "Packet count must be at least 1.\n")
		return 1
	}

	var syncBytes HexBytes
	if err := syncBytes.UnmarshalText([]byte(*sync)); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}

	var messages, msgErr = genMessages(flags.Args(), stdin)
	if msgErr != nil {
		fmt.Fprintf(stderr, "%s\n", msgErr)
		return 1
	}

	var params = defaults
	params.Modem = modemOpts.config(*audioSampleRate)
	params.Amplitude = float64(*amplitude) / 100
	params.LeadingSilence = *leading
	params.PreamblePairs = *preamble
	params.TrailingSilence = *trailing
	params.Sync = syncBytes
	params.CRC32 = *crc32
	params.Noise = flags.Changed("ebno")
	params.EbNo = *ebno
	params.Seed = *seed

	params.Messages = nil
	for range *packetCount {
		params.Messages = append(params.Messages, messages...)
	}

	var samples, err = GeneratePacketAudio(params)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}

	var f, createErr = os.Create(*outputFile)
	if createErr != nil {
		fmt.Fprintf(stderr, "Couldn't open %s for write: %s\n", *outputFile, createErr)
		return 1
	}

	var w = bufio.NewWriter(f)

	if err := WriteWav(w, params.Modem.SampleRate, samples); err != nil {
		_ = f.Close()

		fmt.Fprintf(stderr, "%s\n", err)

		return 1
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()

		fmt.Fprintf(stderr, "%s\n", err)

		return 1
	}

	if err := f.Close(); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Wrote %d packets, %.1f seconds of audio, to %s\n",
		len(params.Messages), float64(len(samples))/float64(params.Modem.SampleRate), *outputFile)

	return 0
}

// genMessages turns the command line into message payloads.
func genMessages(args []string, stdin io.Reader) ([][]byte, error) {
	if len(args) == 0 {
		return DefaultPacketAudioParams().Messages, nil
	}

	var messages [][]byte

	for _, a := range args {
		if a != "-" {
			messages = append(messages, []byte(a))
			continue
		}

		var scanner = bufio.NewScanner(stdin)
		for scanner.Scan() {
			var line = bytes.TrimRight(scanner.Bytes(), "\r")
			if len(line) > 0 {
				messages = append(messages, bytes.Clone(line))
			}
		}

		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading messages from stdin: %w", err)
		}
	}

	return messages, nil
}
