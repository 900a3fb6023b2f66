package mfsk

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct {
	err error
}

func (tk *doneToken) Wait() bool {
	return true
}

func (tk *doneToken) WaitTimeout(_ time.Duration) bool {
	return true
}

func (tk *doneToken) Done() <-chan struct{} {
	var ch = make(chan struct{})
	close(ch)

	return ch
}

func (tk *doneToken) Error() error {
	return tk.err
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	qos      byte
	retained bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload.([]byte))
	p.qos = qos
	p.retained = retained

	return &doneToken{err: nil}
}

func TestNewPacketMessage(t *testing.T) {
	var ts = time.Date(2024, 5, 1, 12, 0, 0, 123_000_000, time.UTC)

	var msg = NewPacketMessage(Packet{Payload: []byte("Hello"), Sample: 40960, SNR: 12.3, Timestamp: ts})

	var _, uuidErr = uuid.Parse(msg.ID)
	require.NoError(t, uuidErr)

	assert.Equal(t, ts.UnixMilli(), msg.Timestamp)
	assert.Equal(t, 5, msg.Length)
	assert.Equal(t, "48656c6c6f", msg.PayloadHex)
	assert.Equal(t, "Hello", msg.Text)
	require.NotNil(t, msg.SNR)
	assert.InDelta(t, 12.3, *msg.SNR, 1e-9)
	assert.Equal(t, int64(40960), msg.Sample)
}

func TestNewPacketMessage_Binary(t *testing.T) {
	var msg = NewPacketMessage(Packet{Payload: []byte{0xFF, 0xFE}, SNR: math.Inf(-1)})

	assert.Empty(t, msg.Text)
	assert.Nil(t, msg.SNR)

	var data, err = json.Marshal(msg)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	assert.NotContains(t, fields, "text")
	assert.NotContains(t, fields, "snr_db")
	assert.Equal(t, "fffe", fields["payload_hex"])
}

func TestMQTTPublisher(t *testing.T) {
	var fake = &fakePublisher{}

	var cfg = DefaultMQTTConfig()
	cfg.TopicPrefix = "station/"
	cfg.QoS = 1
	cfg.Retain = true

	var mp = newMQTTPublisher(fake, cfg, quietLogger())

	require.NoError(t, mp.Publish(Packet{Payload: []byte("Hi"), Timestamp: time.Now()}))

	fake.mu.Lock()
	defer fake.mu.Unlock()

	assert.Equal(t, []string{"station/packets"}, fake.topics)
	assert.Equal(t, byte(1), fake.qos)
	assert.True(t, fake.retained)

	var msg PacketMessage
	require.NoError(t, json.Unmarshal(fake.payloads[0], &msg))
	assert.Equal(t, "Hi", msg.Text)

	// Not a real client, nothing to do.
	mp.Disconnect()
}

func TestMQTTConfig_Validate(t *testing.T) {
	var cfg = DefaultMQTTConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Enabled = true
	assert.NoError(t, cfg.Validate())

	cfg.QoS = 3
	assert.Error(t, cfg.Validate())

	cfg.QoS = 0
	cfg.Broker = ""
	assert.Error(t, cfg.Validate())
}
