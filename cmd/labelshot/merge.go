package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/labelshot/internal/aimerge"
	"github.com/example/labelshot/internal/annotation"
)

// mergeCmd applies analysis payloads to an annotations file.
type mergeCmd struct {
	*root
	fs *flag.FlagSet

	annotations string
	output      string
	payloads    []string
}

func (c *mergeCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseMergeCmd(args []string, r *root) (*mergeCmd, error) {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := &mergeCmd{root: r, fs: fs}
	fs.StringVar(&c.annotations, "annotations", "", "existing annotations JSON (missing file starts empty)")
	fs.StringVar(&c.output, "output", "", "annotations file written (default -annotations)")
	if err := fs.Parse(args); err != nil {
		return nil, &UsageError{of: c}
	}
	c.payloads = fs.Args()
	if len(c.payloads) == 0 {
		return nil, &UsageError{of: c}
	}
	if c.output == "" {
		c.output = c.annotations
	}
	if c.output == "" {
		return nil, &UsageError{of: c}
	}
	return c, nil
}

// stdin is replaced in tests.
var stdin io.Reader = os.Stdin

func (c *mergeCmd) readPayload(path string) (aimerge.Payload, error) {
	if path == "-" {
		p, err := aimerge.DecodePayload(stdin)
		if err != nil {
			return aimerge.Payload{}, fmt.Errorf("stdin: %w", err)
		}
		return p, nil
	}
	return readPayload(path)
}

// loadStore fills a store from path; a missing file is an empty store.
func loadStore(path string, log logrus.FieldLogger) (*annotation.Store, error) {
	store := annotation.NewStore()
	if path == "" {
		return store, nil
	}
	list, err := annotation.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, err
	}
	if n := store.Load(list); n != len(list) {
		log.WithFields(logrus.Fields{"path": path, "loaded": n, "given": len(list)}).Warn("some annotations were skipped")
	}
	return store, nil
}

func (c *mergeCmd) Run() error {
	store, err := loadStore(c.annotations, c.log)
	if err != nil {
		return err
	}
	merger, err := c.merger()
	if err != nil {
		return err
	}

	var created, skipped int
	var tags []string
	for _, path := range c.payloads {
		p, err := c.readPayload(path)
		if err != nil {
			return err
		}
		res := merger.Merge(store, p)
		created += len(res.Created)
		skipped += res.Skipped
		if res.Tags != nil {
			tags = appendUnique(tags, res.Tags.All()...)
		}
	}

	if err := annotation.WriteFile(c.output, store.List()); err != nil {
		return err
	}
	c.notifier.Merge(created, skipped)
	fmt.Fprintf(c.stdout, "merged %d annotations (%d skipped) into %s\n", created, skipped, c.output)
	if len(tags) > 0 {
		fmt.Fprintf(c.stdout, "suggested tags: %s\n", strings.Join(tags, ", "))
	}
	return nil
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
