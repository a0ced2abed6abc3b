package feed

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/example/labelshot/internal/aimerge"
)

func TestBrokerURL(t *testing.T) {
	tests := map[string]string{
		"localhost:1883":      "tcp://localhost:1883",
		"ssl://broker:8883":   "ssl://broker:8883",
		"ws://broker:80/mqtt": "ws://broker:80/mqtt",
	}
	for in, want := range tests {
		if got := BrokerURL(in); got != want {
			t.Errorf("BrokerURL(%q) = %q want %q", in, got, want)
		}
	}
}

func TestDispatch(t *testing.T) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	f := New(Config{Broker: "localhost:1883"}, WithLogger(l))

	var got []aimerge.Payload
	h := func(_ string, p aimerge.Payload) { got = append(got, p) }
	f.dispatch("t", []byte(`{"detections":[{"class_name":"cat","confidence":0.4,"bbox":{"x1":0,"y1":0,"x2":5,"y2":5}}]}`), h)
	f.dispatch("t", []byte(`not json`), h)

	if len(got) != 1 || got[0].Detections[0].ClassName != "cat" {
		t.Fatalf("unexpected payloads %+v", got)
	}
	if rx, bad := f.Stats(); rx != 1 || bad != 1 {
		t.Fatalf("unexpected stats %d/%d", rx, bad)
	}
}

func TestDefaultsAndNotConnected(t *testing.T) {
	f := New(Config{})
	if f.cfg.Topic != DefaultTopic || f.cfg.ClientID == "" {
		t.Fatalf("defaults not applied: %+v", f.cfg)
	}
	if err := f.Publish(context.Background(), []byte("{}")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := f.Connect(context.Background()); err == nil {
		t.Fatalf("expected error without broker")
	}
}
