// Package feed receives AI analysis payloads over MQTT and can publish them
// for other editors.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/labelshot/internal/aimerge"
)

const (
	DefaultTopic   = "labelshot/analysis"
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

var ErrNotConnected = errors.New("mqtt not connected")

// Config describes the broker connection.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Handler receives every payload that decoded successfully.
type Handler func(topic string, p aimerge.Payload)

// Feed is one MQTT connection.
type Feed struct {
	cfg    Config
	log    logrus.FieldLogger
	client mqtt.Client

	mu       sync.Mutex
	received uint64
	rejected uint64
}

type Option func(*Feed)

func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Feed) {
		if l != nil {
			f.log = l
		}
	}
}

// New prepares a feed. Nothing is connected until Connect.
func New(cfg Config, opts ...Option) *Feed {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "labelshot-" + uuid.NewString()[:8]
	}
	f := &Feed{cfg: cfg, log: logrus.StandardLogger()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// BrokerURL adds the tcp:// scheme when the broker is a bare host:port.
func BrokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Connect opens the broker connection with automatic reconnects.
func (f *Feed) Connect(ctx context.Context) error {
	if f.cfg.Broker == "" {
		return errors.New("mqtt broker not configured")
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(BrokerURL(f.cfg.Broker))
	opts.SetClientID(f.cfg.ClientID)
	if f.cfg.Username != "" {
		opts.SetUsername(f.cfg.Username)
		opts.SetPassword(f.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		f.log.WithFields(logrus.Fields{"broker": f.cfg.Broker, "client_id": f.cfg.ClientID}).Info("mqtt connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		f.log.WithError(err).WithField("broker", f.cfg.Broker).Warn("mqtt connection lost, reconnecting")
	}

	f.client = mqtt.NewClient(opts)
	return wait(ctx, f.client.Connect(), connectTimeout, "mqtt connect")
}

// Subscribe delivers decoded payloads from the configured topic to h. It
// runs on the MQTT client's goroutine.
func (f *Feed) Subscribe(ctx context.Context, h Handler) error {
	if f.client == nil || !f.client.IsConnected() {
		return ErrNotConnected
	}
	tok := f.client.Subscribe(f.cfg.Topic, f.cfg.QoS, func(_ mqtt.Client, m mqtt.Message) {
		f.dispatch(m.Topic(), m.Payload(), h)
	})
	if err := wait(ctx, tok, connectTimeout, "mqtt subscribe"); err != nil {
		return err
	}
	f.log.WithField("topic", f.cfg.Topic).Info("subscribed to analysis feed")
	return nil
}

// Publish sends a payload to the configured topic.
func (f *Feed) Publish(ctx context.Context, body []byte) error {
	if f.client == nil || !f.client.IsConnected() {
		return ErrNotConnected
	}
	return wait(ctx, f.client.Publish(f.cfg.Topic, f.cfg.QoS, false, body), publishTimeout, "mqtt publish")
}

// Close disconnects after letting in-flight work finish.
func (f *Feed) Close() {
	if f.client != nil && f.client.IsConnected() {
		f.client.Disconnect(250)
	}
}

// Stats returns how many messages were accepted and rejected.
func (f *Feed) Stats() (received, rejected uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.received, f.rejected
}

func (f *Feed) dispatch(topic string, body []byte, h Handler) {
	p, err := aimerge.DecodePayload(bytes.NewReader(body))
	f.mu.Lock()
	if err != nil {
		f.rejected++
	} else {
		f.received++
	}
	f.mu.Unlock()
	if err != nil {
		f.log.WithError(err).WithFields(logrus.Fields{"topic": topic, "size": len(body)}).Warn("dropping malformed analysis payload")
		return
	}
	f.log.WithFields(logrus.Fields{"topic": topic, "detections": len(p.Detections)}).Debug("analysis payload received")
	h(topic, p)
}

func wait(ctx context.Context, tok mqtt.Token, timeout time.Duration, what string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", what, ctx.Err())
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}
