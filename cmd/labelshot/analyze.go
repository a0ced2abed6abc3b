package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/example/labelshot/internal/annotation"
	"github.com/example/labelshot/internal/imageload"
	"github.com/example/labelshot/internal/ui"
)

// analyzeCmd asks a vision model for detections on one image.
type analyzeCmd struct {
	*root
	fs *flag.FlagSet

	source  string
	output  string
	merge   string
	publish bool
	ollama  ollamaFlags
	mqtt    mqttFlags
}

func (c *analyzeCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseAnalyzeCmd(args []string, r *root) (*analyzeCmd, error) {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := &analyzeCmd{root: r, fs: fs}
	fs.StringVar(&c.output, "output", "", "write the payload JSON here instead of stdout")
	fs.StringVar(&c.merge, "merge", "", "also merge the result into this annotations file")
	fs.BoolVar(&c.publish, "publish", false, "publish the payload to the MQTT topic")
	r.addOllamaFlags(fs, &c.ollama)
	r.addMQTTFlags(fs, &c.mqtt)

	source, err := splitSource(fs, args)
	if err != nil {
		return nil, &UsageError{of: c}
	}
	c.source = source
	return c, nil
}

// newPayloadDetector is replaced in tests.
var newPayloadDetector = func(r *root, o ollamaFlags) (ui.Detector, error) {
	d, err := r.newDetector(o)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (c *analyzeCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	img, err := imageload.Open(ctx, c.source)
	if err != nil {
		return err
	}
	det, err := newPayloadDetector(c.root, c.ollama)
	if err != nil {
		return err
	}
	p, err := det.Detect(ctx, img)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", c.source, err)
	}
	c.log.WithFields(logrus.Fields{"source": c.source, "detections": len(p.Detections)}).Info("analysis finished")

	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	body = append(body, '\n')
	if c.output != "" {
		if err := os.WriteFile(c.output, body, 0o644); err != nil {
			return err
		}
	} else if _, err := c.stdout.Write(body); err != nil {
		return err
	}

	if c.merge != "" {
		store, err := loadStore(c.merge, c.log)
		if err != nil {
			return err
		}
		merger, err := c.merger()
		if err != nil {
			return err
		}
		res := merger.Merge(store, p)
		if err := annotation.WriteFile(c.merge, store.List()); err != nil {
			return err
		}
		c.notifier.Merge(len(res.Created), res.Skipped)
		fmt.Fprintf(c.stderr, "merged %d annotations (%d skipped) into %s\n", len(res.Created), res.Skipped, c.merge)
	}

	if c.publish {
		f, err := c.newFeed(c.mqtt)
		if err != nil {
			return err
		}
		if err := f.Connect(ctx); err != nil {
			return err
		}
		defer f.Close()
		if err := f.Publish(ctx, body); err != nil {
			return err
		}
		c.log.WithField("topic", c.mqtt.topic).Info("analysis published")
	}
	return nil
}
