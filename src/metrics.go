package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Prometheus metrics for the receive chain.
 *
 * Description:	Rejected frames never reach the application, so these
 *		counters are the only way to see them.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsConfig struct {
	Listen string `yaml:"listen"` // e.g. ":9110".  Empty to disable.
}

type Metrics struct {
	symbols         *prometheus.CounterVec // by timing source
	syncMatches     prometheus.Counter
	framesAccepted  prometheus.Counter
	framesRejected  *prometheus.CounterVec // by reason
	payloadBytes    prometheus.Counter
	deliveryDropped prometheus.Counter
	snr             prometheus.Gauge
	snrInstant      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	var f = promauto.With(reg)

	var m = &Metrics{
		symbols: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfsk_symbols_total",
				Help: "Symbols demodulated, by what decided the symbol boundary",
			},
			[]string{"source"},
		),
		syncMatches: f.NewCounter(prometheus.CounterOpts{
			Name: "mfsk_sync_matches_total",
			Help: "Frame headers found that needed more bits to complete",
		}),
		framesAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "mfsk_frames_accepted_total",
			Help: "Frames that passed their checksum",
		}),
		framesRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mfsk_frames_rejected_total",
				Help: "Candidate frames discarded, by reason",
			},
			[]string{"reason"},
		),
		payloadBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "mfsk_payload_bytes_total",
			Help: "Payload bytes in accepted frames",
		}),
		deliveryDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "mfsk_delivery_dropped_total",
			Help: "Packets dropped because the delivery queue was full",
		}),
		snr: f.NewGauge(prometheus.GaugeOpts{
			Name: "mfsk_snr_db",
			Help: "Smoothed signal to noise estimate in dB",
		}),
		snrInstant: f.NewGauge(prometheus.GaugeOpts{
			Name: "mfsk_snr_instant_db",
			Help: "Signal to noise estimate of the latest symbol in dB",
		}),
	}

	/* Make all the labels show up from the start. */

	for _, s := range []TimingSource{ZeroCrossing, Flywheel, Forced} {
		m.symbols.WithLabelValues(s.String())
	}

	for _, r := range []RejectReason{RejectLength, RejectChecksum} {
		m.framesRejected.WithLabelValues(r.String())
	}

	return m
}

func (m *Metrics) SymbolDecoded(ev SymbolEvent) {
	m.symbols.WithLabelValues(ev.Source.String()).Inc()

	if isFinite(ev.SNR) {
		m.snr.Set(ev.SNR)
	}

	if isFinite(ev.SNRInstant) {
		m.snrInstant.Set(ev.SNRInstant)
	}
}

func (m *Metrics) SyncMatched(_ int) {
	m.syncMatches.Inc()
}

func (m *Metrics) FrameAccepted(payload []byte) {
	m.framesAccepted.Inc()
	m.payloadBytes.Add(float64(len(payload)))
}

func (m *Metrics) FrameRejected(reason RejectReason) {
	m.framesRejected.WithLabelValues(reason.String()).Inc()
}

func (m *Metrics) DeliveryDropped() {
	m.deliveryDropped.Inc()
}

/*-------------------------------------------------------------------
 *
 * Name:        ServeMetrics
 *
 * Purpose:     Serve /metrics until the context is cancelled.
 *
 *--------------------------------------------------------------------*/

func ServeMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *log.Logger) error {
	var mux = http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})) //nolint:exhaustruct

	var srv = &http.Server{ //nolint:exhaustruct
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		var shutdownCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx) //nolint:contextcheck
	}()

	logger.Info("Serving metrics", "addr", addr)

	var err = srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
