package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/example/labelshot/internal/aimerge"
	"github.com/example/labelshot/internal/annotation"
	"github.com/example/labelshot/internal/ui"
)

// watchCmd merges payloads arriving over MQTT into an annotations file until
// interrupted.
type watchCmd struct {
	*root
	fs *flag.FlagSet

	annotations string
	count       int
	mqtt        mqttFlags
}

func (c *watchCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseWatchCmd(args []string, r *root) (*watchCmd, error) {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := &watchCmd{root: r, fs: fs}
	fs.StringVar(&c.annotations, "annotations", "", "annotations file updated after every payload")
	fs.IntVar(&c.count, "count", 0, "stop after this many payloads (0 runs until interrupted)")
	r.addMQTTFlags(fs, &c.mqtt)
	if err := fs.Parse(args); err != nil {
		return nil, &UsageError{of: c}
	}
	if c.annotations == "" && fs.NArg() == 1 {
		c.annotations = fs.Arg(0)
	}
	if c.annotations == "" || fs.NArg() > 1 {
		return nil, &UsageError{of: c}
	}
	return c, nil
}

// newSubscriber is replaced in tests.
var newSubscriber = func(r *root, m mqttFlags) (ui.Subscriber, error) {
	f, err := r.newFeed(m)
	if err != nil {
		return nil, err
	}
	return liveFeed{f: f}, nil
}

func (c *watchCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := loadStore(c.annotations, c.log)
	if err != nil {
		return err
	}
	merger, err := c.merger()
	if err != nil {
		return err
	}
	sub, err := newSubscriber(c.root, c.mqtt)
	if err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		seen     int
		writeErr error
	)
	handle := func(topic string, p aimerge.Payload) {
		mu.Lock()
		defer mu.Unlock()
		if writeErr != nil {
			return
		}
		res := merger.Merge(store, p)
		if err := annotation.WriteFile(c.annotations, store.List()); err != nil {
			writeErr = err
			cancel()
			return
		}
		seen++
		c.log.WithFields(logrus.Fields{
			"topic":   topic,
			"created": len(res.Created),
			"skipped": res.Skipped,
			"total":   store.Len(),
		}).Info("analysis merged")
		c.notifier.Merge(len(res.Created), res.Skipped)
		fmt.Fprintf(c.stdout, "%s: merged %d (%d skipped), %d total\n", topic, len(res.Created), res.Skipped, store.Len())
		if c.count > 0 && seen >= c.count {
			cancel()
		}
	}

	if err := sub.Subscribe(ctx, handle); err != nil {
		return err
	}
	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return writeErr
}
