package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Process audio input for receiving.
 *
 * Description:	The receive chain is:
 *
 *			audio samples
 *			  -> Detector		one SymbolEvent per symbol
 *			  -> ToneCodec		bits per symbol
 *			  -> Depacketizer	checked payloads
 *			  -> Packet sink
 *
 *		All of it runs synchronously on the goroutine calling
 *		Consume.  Slow consumers, such as network clients, should
 *		sit behind a DeliveryQueue so they can't hold up the audio.
 *
 *---------------------------------------------------------------*/

import (
	"time"

	"github.com/charmbracelet/log"
)

// Packet is a payload that passed its checksum, with some context.
type Packet struct {
	Payload   []byte
	Sample    int64     // Sample count when its last symbol was decided.
	SNR       float64   // Smoothed signal to noise estimate at that point, dB.
	Timestamp time.Time // Wall clock when it was decoded.
}

// ReceiverObserver hears about everything the receive chain does.
// Metrics implements it.
type ReceiverObserver interface {
	FrameObserver
	SymbolDecoded(ev SymbolEvent)
}

type Receiver struct {
	detector *Detector
	codec    *ToneCodec
	framer   *Depacketizer

	sink        func(Packet)
	symbolSink  func(SymbolEvent)
	observer    ReceiverObserver
	carrierSink func(on bool)
	now         func() time.Time
	logger      *log.Logger

	lastEvent SymbolEvent
	bits      []byte
	carrier   bool
}

type ReceiverOption func(*Receiver)

// WithSymbolSink also passes every SymbolEvent to fn.
func WithSymbolSink(fn func(SymbolEvent)) ReceiverOption {
	return func(r *Receiver) {
		r.symbolSink = fn
	}
}

func WithReceiverObserver(o ReceiverObserver) ReceiverOption {
	return func(r *Receiver) {
		r.observer = o
	}
}

// WithCarrierDetect calls fn whenever the framer starts or stops
// collecting a frame.
func WithCarrierDetect(fn func(on bool)) ReceiverOption {
	return func(r *Receiver) {
		r.carrierSink = fn
	}
}

func WithReceiverLogger(l *log.Logger) ReceiverOption {
	return func(r *Receiver) {
		r.logger = l
	}
}

func WithClock(now func() time.Time) ReceiverOption {
	return func(r *Receiver) {
		r.now = now
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        NewReceiver
 *
 * Purpose:     Put together a detector, tone decoder and framer.
 *
 * Inputs:	modem	- Demodulator settings.
 *
 *		framer	- Frame format settings.
 *
 *		sink	- Called for each good packet.
 *
 *--------------------------------------------------------------------*/

func NewReceiver(modem ModemConfig, framer FramerConfig, sink func(Packet), opts ...ReceiverOption) (*Receiver, error) {
	var r = &Receiver{ //nolint:exhaustruct
		sink:   sink,
		now:    time.Now,
		logger: quietLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	var err error

	r.codec, err = NewToneCodec(modem.ToneCount, modem.GrayCoded)
	if err != nil {
		return nil, err
	}

	r.detector, err = NewDetector(modem, r.onSymbol, WithDetectorLogger(r.logger))
	if err != nil {
		return nil, err
	}

	r.framer, err = NewDepacketizer(framer, r.onPayload, WithFrameObserver(r), WithFramerLogger(r.logger))
	if err != nil {
		return nil, err
	}

	r.bits = make([]byte, 0, r.codec.BitsPerSymbol())

	return r, nil
}

func (r *Receiver) Detector() *Detector {
	return r.detector
}

func (r *Receiver) Depacketizer() *Depacketizer {
	return r.framer
}

func (r *Receiver) Consume(samples []float64) {
	r.detector.Consume(samples)
}

func (r *Receiver) Consume32(samples []float32) {
	r.detector.Consume32(samples)
}

// Reset clears all demodulator and framer state.
func (r *Receiver) Reset() {
	r.detector.Reset()
	r.framer.Reset()
	r.setCarrier(false)
}

func (r *Receiver) onSymbol(ev SymbolEvent) {
	r.lastEvent = ev

	if r.observer != nil {
		r.observer.SymbolDecoded(ev)
	}

	if r.symbolSink != nil {
		r.symbolSink(ev)
	}

	var bits, err = r.codec.AppendBits(r.bits[:0], ev.Tone)
	if err != nil {
		// Can't happen, the detector only reports tones it has.
		r.logger.Error("Tone decode failed", "err", err)
		return
	}

	r.framer.ProcessData(bits)
}

func (r *Receiver) onPayload(payload []byte) {
	if r.sink == nil {
		return
	}

	r.sink(Packet{
		Payload:   payload,
		Sample:    r.lastEvent.Sample,
		SNR:       r.lastEvent.SNR,
		Timestamp: r.now(),
	})
}

func (r *Receiver) setCarrier(on bool) {
	if on == r.carrier {
		return
	}

	r.carrier = on

	if r.carrierSink != nil {
		r.carrierSink(on)
	}
}

/* FrameObserver, for the framer. */

func (r *Receiver) SyncMatched(payloadLen int) {
	r.setCarrier(true)

	if r.observer != nil {
		r.observer.SyncMatched(payloadLen)
	}
}

func (r *Receiver) FrameAccepted(payload []byte) {
	r.setCarrier(false)

	if r.observer != nil {
		r.observer.FrameAccepted(payload)
	}
}

func (r *Receiver) FrameRejected(reason RejectReason) {
	r.setCarrier(false)

	if r.observer != nil {
		r.observer.FrameRejected(reason)
	}
}
