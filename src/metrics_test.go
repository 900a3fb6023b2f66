package mfsk

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observer(t *testing.T) {
	var reg = prometheus.NewRegistry()
	var m = NewMetrics(reg)

	m.SymbolDecoded(SymbolEvent{Tone: 1, Sample: 511, SNR: 12.5, SNRInstant: 14, Source: ZeroCrossing})
	m.SymbolDecoded(SymbolEvent{Tone: 2, Sample: 1023, SNR: math.Inf(-1), SNRInstant: math.Inf(-1), Source: Flywheel})
	m.SyncMatched(5)
	m.FrameAccepted([]byte("Hello"))
	m.FrameRejected(RejectChecksum)
	m.FrameRejected(RejectChecksum)
	m.DeliveryDropped()

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.symbols.WithLabelValues("zero-crossing")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.symbols.WithLabelValues("flywheel")), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.symbols.WithLabelValues("forced")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.syncMatches), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.framesAccepted), 0)
	assert.InDelta(t, 5.0, testutil.ToFloat64(m.payloadBytes), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.framesRejected.WithLabelValues("checksum")), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.framesRejected.WithLabelValues("length")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.deliveryDropped), 0)

	// -Inf doesn't overwrite the last real estimate.
	assert.InDelta(t, 12.5, testutil.ToFloat64(m.snr), 0)
	assert.InDelta(t, 14.0, testutil.ToFloat64(m.snrInstant), 0)
}

func TestMetrics_Receiver(t *testing.T) {
	var reg = prometheus.NewRegistry()
	var m = NewMetrics(reg)

	var got, _ = receiveAll(t, DefaultPacketAudioParams(), WithReceiverObserver(m))

	require.Len(t, got, 3)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.framesAccepted), 0)

	var n, err = testutil.GatherAndCount(reg, "mfsk_frames_accepted_total", "mfsk_symbols_total")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestServeMetrics(t *testing.T) {
	var reg = prometheus.NewRegistry()
	var m = NewMetrics(reg)
	m.FrameAccepted([]byte("abc"))

	// Find a free port.
	var l, err = net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var addr = l.Addr().String()
	require.NoError(t, l.Close())

	var ctx, cancel = context.WithCancel(context.Background())
	var served = make(chan error, 1)

	go func() {
		served <- ServeMetrics(ctx, addr, reg, quietLogger())
	}()

	var body string

	require.Eventually(t, func() bool {
		var resp, getErr = http.Get(fmt.Sprintf("http://%s/metrics", addr)) //nolint:noctx
		if getErr != nil {
			return false
		}
		defer resp.Body.Close()

		var b, _ = io.ReadAll(resp.Body)
		body = string(b)

		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	assert.True(t, strings.Contains(body, "mfsk_payload_bytes_total 3"), body)

	cancel()

	select {
	case serveErr := <-served:
		require.NoError(t, serveErr)
	case <-time.After(10 * time.Second):
		t.Fatal("ServeMetrics did not return after cancel")
	}
}
