package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Publish received packets to an MQTT broker.
 *
 * Description:	Each packet becomes a JSON message on
 *		<topic_prefix>/packets, for example:
 *
 *		{"id":"4f0c...","timestamp":1700000000123,"length":5,
 *		 "payload_hex":"48656c6c6f","text":"Hello",
 *		 "snr_db":12.3,"sample":40960}
 *
 *---------------------------------------------------------------*/

import (
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // e.g. tcp://localhost:1883
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
	TLS         bool   `yaml:"tls"`
}

func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{ //nolint:exhaustruct
		Broker:      "tcp://localhost:1883",
		TopicPrefix: "mfsk",
	}
}

func (c MQTTConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Broker == "" {
		return errors.New("broker is required")
	}

	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", c.QoS)
	}

	return nil
}

// PacketMessage is the JSON form of a Packet.
type PacketMessage struct {
	ID         string   `json:"id"`
	Timestamp  int64    `json:"timestamp"` // Unix milliseconds.
	Length     int      `json:"length"`
	PayloadHex string   `json:"payload_hex"`
	Text       string   `json:"text,omitempty"` // Only if the payload is valid UTF-8.
	SNR        *float64 `json:"snr_db,omitempty"`
	Sample     int64    `json:"sample"`
}

func NewPacketMessage(p Packet) PacketMessage {
	var msg = PacketMessage{ //nolint:exhaustruct
		ID:         uuid.NewString(),
		Timestamp:  p.Timestamp.UnixMilli(),
		Length:     len(p.Payload),
		PayloadHex: hex.EncodeToString(p.Payload),
		Sample:     p.Sample,
	}

	if utf8.Valid(p.Payload) {
		msg.Text = string(p.Payload)
	}

	if isFinite(p.SNR) {
		var snr = p.SNR
		msg.SNR = &snr
	}

	return msg
}

// packetPublisher is the part of mqtt.Client we use.
type packetPublisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

type MQTTPublisher struct {
	client packetPublisher
	config MQTTConfig
	topic  string
	logger *log.Logger
}

/*-------------------------------------------------------------------
 *
 * Name:        NewMQTTPublisher
 *
 * Purpose:     Connect to the broker.
 *
 * Description:	Reconnection is left to the paho client.
 *
 *--------------------------------------------------------------------*/

func NewMQTTPublisher(config MQTTConfig, logger *log.Logger) (*MQTTPublisher, error) {
	var opts = mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID("mfsk_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16])

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}

	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	if config.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}) //nolint:exhaustruct
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("MQTT: Connected to broker", "broker", config.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT: Connection lost", "err", err)
	})

	var client = mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(30*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newMQTTPublisher(client, config, logger), nil
}

func newMQTTPublisher(client packetPublisher, config MQTTConfig, logger *log.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		config: config,
		topic:  strings.TrimSuffix(config.TopicPrefix, "/") + "/packets",
		logger: logger,
	}
}

// Publish sends one packet.  It does not wait for the broker.
func (mp *MQTTPublisher) Publish(p Packet) error {
	var data, err = json.Marshal(NewPacketMessage(p))
	if err != nil {
		return fmt.Errorf("failed to marshal packet: %w", err)
	}

	var token = mp.client.Publish(mp.topic, mp.config.QoS, mp.config.Retain, data)

	go func() {
		<-token.Done()

		if token.Error() != nil {
			mp.logger.Warn("MQTT: Publish failed", "topic", mp.topic, "err", token.Error())
		}
	}()

	return nil
}

// Disconnect waits up to 250ms for outstanding work, then closes.
func (mp *MQTTPublisher) Disconnect() {
	if c, ok := mp.client.(mqtt.Client); ok {
		c.Disconnect(250)
	}
}
