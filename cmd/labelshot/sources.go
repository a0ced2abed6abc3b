package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/example/labelshot/internal/aimerge"
	"github.com/example/labelshot/internal/detect"
	"github.com/example/labelshot/internal/feed"
	"github.com/example/labelshot/internal/ui"
)

// ollamaFlags and mqttFlags default to the [ollama] and [mqtt] config
// sections, so an explicit flag wins over the rc file.
type ollamaFlags struct {
	url    string
	model  string
	maxDim int
}

func (r *root) addOllamaFlags(fs *flag.FlagSet, o *ollamaFlags) {
	url, model := detect.DefaultURL, detect.DefaultModel
	if r.config != nil {
		if r.config.Ollama.URL != "" {
			url = r.config.Ollama.URL
		}
		if r.config.Ollama.Model != "" {
			model = r.config.Ollama.Model
		}
	}
	fs.StringVar(&o.url, "ollama", url, "Ollama server URL")
	fs.StringVar(&o.model, "model", model, "vision model name")
	fs.IntVar(&o.maxDim, "max-dim", detect.DefaultMaxDim, "longest image side sent to the model")
}

func (r *root) newDetector(o ollamaFlags) (*detect.Client, error) {
	return detect.New(o.url,
		detect.WithModel(o.model),
		detect.WithMaxDim(o.maxDim),
		detect.WithLogger(r.log),
	)
}

type mqttFlags struct {
	broker   string
	topic    string
	username string
	password string
	qos      int
}

func (r *root) addMQTTFlags(fs *flag.FlagSet, m *mqttFlags) {
	broker, topic := "", feed.DefaultTopic
	if r.config != nil {
		broker = r.config.MQTT.Broker
		if r.config.MQTT.Topic != "" {
			topic = r.config.MQTT.Topic
		}
	}
	fs.StringVar(&m.broker, "broker", broker, "MQTT broker (host:port or URL)")
	fs.StringVar(&m.topic, "topic", topic, "MQTT topic carrying analysis payloads")
	fs.StringVar(&m.username, "username", "", "MQTT username")
	fs.StringVar(&m.password, "password", os.Getenv("LABELSHOT_MQTT_PASSWORD"), "MQTT password (default $LABELSHOT_MQTT_PASSWORD)")
	fs.IntVar(&m.qos, "qos", 1, "MQTT quality of service (0, 1 or 2)")
}

func (r *root) newFeed(m mqttFlags) (*feed.Feed, error) {
	if m.qos < 0 || m.qos > 2 {
		return nil, fmt.Errorf("qos %d: must be 0, 1 or 2", m.qos)
	}
	return feed.New(feed.Config{
		Broker:   m.broker,
		Topic:    m.topic,
		Username: m.username,
		Password: m.password,
		QoS:      byte(m.qos),
	}, feed.WithLogger(r.log)), nil
}

func readPayload(path string) (aimerge.Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return aimerge.Payload{}, err
	}
	defer f.Close()
	p, err := aimerge.DecodePayload(f)
	if err != nil {
		return aimerge.Payload{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// payloadFiles delivers analysis payloads read from disk, once each.
type payloadFiles []string

func (pf payloadFiles) Subscribe(_ context.Context, h feed.Handler) error {
	for _, path := range pf {
		p, err := readPayload(path)
		if err != nil {
			return err
		}
		h(path, p)
	}
	return nil
}

// liveFeed connects to the broker and stays subscribed until ctx ends.
type liveFeed struct {
	f *feed.Feed
}

func (l liveFeed) Subscribe(ctx context.Context, h feed.Handler) error {
	if err := l.f.Connect(ctx); err != nil {
		return err
	}
	defer l.f.Close()
	if err := l.f.Subscribe(ctx, h); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// subscribers fans several sources into one.
type subscribers []ui.Subscriber

func (s subscribers) Subscribe(ctx context.Context, h feed.Handler) error {
	errs := make(chan error, len(s))
	for _, sub := range s {
		go func(sub ui.Subscriber) { errs <- sub.Subscribe(ctx, h) }(sub)
	}
	var first error
	for range s {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	return first
}
