package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Measure symbol and bit error rates against Eb/No.
 *
 * Description:	A known tone sequence, (n*3) mod N, is modulated, white
 *		Gaussian noise of the right power is added, and the
 *		result goes through the detector.  Each decided symbol
 *		is compared with what was sent.
 *
 *		The first few symbols are thrown away so start up
 *		effects don't count.  A run ends after enough bits or
 *		enough errors, whichever comes first.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"io"
	"math"
	"math/bits"
	"math/rand/v2"
	"os"

	"github.com/spf13/pflag"
)

const (
	DEFAULT_BER_MAX_BITS   = 4000
	DEFAULT_BER_MAX_ERRORS = 400
	DEFAULT_BER_WARMUP     = 20
)

// berBlockSymbols is how many symbols are modulated at a time.
const berBlockSymbols = 32

type SimulationParams struct {
	Modem     ModemConfig
	EbNo      float64 // dB
	Amplitude float64
	MaxBits   int
	MaxErrors int
	Warmup    int // Symbols to ignore at the start.
	Seed      uint64
}

func DefaultSimulationParams() SimulationParams {
	return SimulationParams{
		Modem:     DefaultModemConfig(),
		EbNo:      10,
		Amplitude: DEFAULT_AMPLITUDE,
		MaxBits:   DEFAULT_BER_MAX_BITS,
		MaxErrors: DEFAULT_BER_MAX_ERRORS,
		Warmup:    DEFAULT_BER_WARMUP,
		Seed:      1,
	}
}

type SimulationResult struct {
	EbNo         float64
	Symbols      int
	SymbolErrors int
	Bits         int
	BitErrors    int
	Missed       int // Symbols sent but never decided.
}

func (r SimulationResult) SER() float64 {
	if r.Symbols == 0 {
		return math.NaN()
	}

	return float64(r.SymbolErrors) / float64(r.Symbols)
}

func (r SimulationResult) BER() float64 {
	if r.Bits == 0 {
		return math.NaN()
	}

	return float64(r.BitErrors) / float64(r.Bits)
}

// Simulation is one Eb/No point in progress.
type Simulation struct {
	params    SimulationParams
	codec     *ToneCodec
	mod       *Modulator
	det       *Detector
	rng       *rand.Rand
	sigma     float64
	symbolLen int

	sent     []int // Every tone sent so far.
	lastSeen int   // Last symbol index compared, -1 for none.
	result   SimulationResult
}

func NewSimulation(params SimulationParams) (*Simulation, error) {
	if err := params.Modem.Validate(); err != nil {
		return nil, err
	}

	if params.MaxBits < 1 || params.MaxErrors < 1 || params.Warmup < 0 {
		return nil, fmt.Errorf("simulation limits must be positive: bits %d, errors %d, warmup %d",
			params.MaxBits, params.MaxErrors, params.Warmup)
	}

	var s = &Simulation{ //nolint:exhaustruct
		params:   params,
		rng:      rand.New(rand.NewPCG(params.Seed, params.Seed^0x9e3779b97f4a7c15)), //nolint:gosec
		sigma:    NoiseSigmaForEbNo(params.Modem, params.Amplitude, params.EbNo),
		lastSeen: -1,
		result:   SimulationResult{EbNo: params.EbNo}, //nolint:exhaustruct
	}

	var err error

	s.codec, err = NewToneCodec(params.Modem.ToneCount, params.Modem.GrayCoded)
	if err != nil {
		return nil, err
	}

	s.mod, err = NewModulator(params.Modem, params.Amplitude)
	if err != nil {
		return nil, err
	}

	s.det, err = NewDetector(params.Modem, s.onSymbol)
	if err != nil {
		return nil, err
	}

	s.symbolLen = s.mod.SymbolLength()

	return s, nil
}

func (s *Simulation) done() bool {
	return s.result.Bits >= s.params.MaxBits || s.result.BitErrors >= s.params.MaxErrors
}

// onSymbol works out which symbol period an event belongs to from the
// sample it was decided on.
func (s *Simulation) onSymbol(ev SymbolEvent) {
	var k = int(math.Round(float64(ev.Sample+1)/float64(s.symbolLen))) - 1

	if k <= s.lastSeen || k < 0 || k >= len(s.sent) {
		return
	}

	s.result.Missed += k - s.lastSeen - 1
	s.lastSeen = k

	if k < s.params.Warmup || s.done() {
		return
	}

	var want = s.sent[k]

	s.result.Symbols++
	s.result.Bits += s.codec.BitsPerSymbol()

	if ev.Tone != want {
		s.result.SymbolErrors++
		s.result.BitErrors += s.bitDifference(want, ev.Tone)
	}
}

func (s *Simulation) bitDifference(a, b int) int {
	if s.codec.grayCoded {
		a = GrayDecode(a)
		b = GrayDecode(b)
	}

	return bits.OnesCount(uint(a ^ b)) //nolint:gosec
}

/*-------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:     Keep sending symbols until the limits are reached.
 *
 * Description:	There is also a hard limit on symbols sent in case the
 *		detector stops producing anything at all.
 *
 *--------------------------------------------------------------------*/

func (s *Simulation) Run() SimulationResult {
	var bps = s.codec.BitsPerSymbol()
	var limit = s.params.Warmup + 4*(s.params.MaxBits/bps+1) + 2*TIMING_BUFFER_SYMBOLS
	var n = 0
	var tones = make([]int, 0, berBlockSymbols)
	var samples []float64

	for !s.done() && n < limit {
		tones = tones[:0]

		for range berBlockSymbols {
			tones = append(tones, (n*3)%s.params.Modem.ToneCount)
			n++
		}

		s.sent = append(s.sent, tones...)

		samples = samples[:0]
		for _, t := range tones {
			samples, _ = s.mod.AppendTone(samples, t)
		}

		AddNoise(samples, s.rng, s.sigma)

		for i := 0; i < len(samples) && !s.done(); i += s.symbolLen {
			s.det.Consume(samples[i:min(i+s.symbolLen, len(samples))])
		}
	}

	return s.result
}

func RunSimulation(params SimulationParams) (SimulationResult, error) {
	var s, err = NewSimulation(params)
	if err != nil {
		return SimulationResult{}, err //nolint:exhaustruct
	}

	return s.Run(), nil
}

/*-------------------------------------------------------------------
 *
 * Name:        BerMain
 *
 * Purpose:     Sweep a range of Eb/No and print error rates.
 *
 *--------------------------------------------------------------------*/

func BerMain() {
	if code := berMain(os.Args[1:], os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}

func berMain(args []string, stdout io.Writer, stderr io.Writer) int {
	var flags = pflag.NewFlagSet("mfsk-ber", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var defaults = DefaultSimulationParams()

	var modem = addModemFlags(flags, true)
	var sampleRate = flags.IntP("audio-sample-rate", "r", DEFAULT_SAMPLE_RATE, "Audio sample rate.")
	var start = flags.Float64P("ebno-start", "a", -10, "First Eb/No, dB.")
	var stop = flags.Float64P("ebno-stop", "b", 29, "Last Eb/No, dB.")
	var step = flags.Float64P("ebno-step", "i", 1, "Eb/No increment, dB.")
	var maxBits = flags.IntP("max-bits", "B", defaults.MaxBits, "Stop each point after this many bits.")
	var maxErrors = flags.IntP("max-errors", "E", defaults.MaxErrors, "Stop each point after this many bit errors.")
	var seed = flags.Uint64P("seed", "S", defaults.Seed, "Noise generator seed.")
	var version = flags.BoolP("version", "V", false, "Print version and exit.")
	var help = flags.BoolP("help", "h", false, "Display help text.")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "mfsk-ber - Bit error rate against Eb/No for the MFSK demodulator.\n")
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Usage: mfsk-ber [options]\n")
		flags.PrintDefaults()
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Example:  mfsk-ber -a 0 -b 12 -F\n")
	}

	if err := flags.Parse(args); err != nil {
		return 1
	}

	if *help {
		flags.Usage()
		return 1
	}

	if *version {
		printVersion(stdout, "mfsk-ber")
		return 0
	}

	if *step <= 0 || *stop < *start {
		fmt.Fprintf(stderr, "Eb/No range %g to %g step %g makes no sense.\n", *start, *stop, *step)
		return 1
	}

	var params = defaults
	params.Modem = modem.config(*sampleRate)
	params.MaxBits = *maxBits
	params.MaxErrors = *maxErrors
	params.Seed = *seed

	fmt.Fprintf(stdout, "%d-FSK, %g baud, %s timing\n", params.Modem.ToneCount, params.Modem.SymbolRate, params.Modem.TimingMode)
	fmt.Fprintf(stdout, "%8s %8s %8s %8s %8s\n", "Eb/No", "SER", "BER", "symbols", "bits")

	for ebno := *start; ebno <= *stop+1e-9; ebno += *step {
		params.EbNo = ebno

		var r, err = RunSimulation(params)
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
			return 1
		}

		fmt.Fprintf(stdout, "%8.1f %8.4f %8.4f %8d %8d\n", r.EbNo, r.SER(), r.BER(), r.Symbols, r.Bits)
	}

	return 0
}
