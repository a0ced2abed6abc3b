package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/example/labelshot/internal/annotation"
	"github.com/example/labelshot/internal/editor"
	"github.com/example/labelshot/internal/imageload"
	"github.com/example/labelshot/internal/render"
)

// renderCmd draws annotations over an image without opening a window.
type renderCmd struct {
	*root
	fs *flag.FlagSet

	source      string
	annotations string
	aiFile      string
	output      string
	saveJSON    string
	maxWidth    int
	shadow      bool
}

func (c *renderCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseRenderCmd(args []string, r *root) (*renderCmd, error) {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := &renderCmd{root: r, fs: fs}
	fs.StringVar(&c.annotations, "annotations", "", "annotations JSON file")
	fs.StringVar(&c.aiFile, "ai", "", "analysis payload JSON merged before drawing")
	fs.StringVar(&c.output, "output", "", "image written (default <image>-annotated.png); .jpg and .png are supported")
	fs.StringVar(&c.saveJSON, "save-annotations", "", "also write the resulting annotations JSON here")
	fs.IntVar(&c.maxWidth, "max-width", 0, "downscale the result to at most this width")
	fs.BoolVar(&c.shadow, "shadow", false, "add a drop shadow around the result")

	source, err := splitSource(fs, args)
	if err != nil {
		return nil, &UsageError{of: c}
	}
	c.source = source
	if c.output == "" {
		c.output = annotatedName(source)
	}
	return c, nil
}

func annotatedName(source string) string {
	base := filepath.Base(strings.TrimRight(source, "/"))
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "image"
	}
	return base + "-annotated.png"
}

// loadEditor drives an editor from this goroutine: image, then the stored
// annotations, then an optional analysis payload.
func (r *root) loadEditor(ctx context.Context, source, annotations, aiFile string) (*editor.Editor, error) {
	img, err := imageload.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	merger, err := r.merger()
	if err != nil {
		return nil, err
	}
	ed := editor.New(
		editor.WithLogger(r.log),
		editor.WithMerger(merger),
		editor.WithRenderer(render.New(render.WithTheme(r.activeTheme))),
	)
	ed.ImageLoaded(img)
	if !ed.Ready() {
		return nil, fmt.Errorf("%s: %w", source, render.ErrNotReady)
	}
	if annotations != "" {
		list, err := annotation.ReadFile(annotations)
		if err != nil {
			return nil, err
		}
		if n := ed.Load(list); n != len(list) {
			r.log.WithFields(logrus.Fields{"loaded": n, "given": len(list)}).Warn("some annotations were skipped")
		}
	}
	if aiFile != "" {
		p, err := readPayload(aiFile)
		if err != nil {
			return nil, err
		}
		res := ed.MergeAI(p)
		r.log.WithFields(logrus.Fields{"created": len(res.Created), "skipped": res.Skipped}).Info("analysis merged")
	}
	return ed, nil
}

func (c *renderCmd) Run() error {
	ed, err := c.loadEditor(context.Background(), c.source, c.annotations, c.aiFile)
	if err != nil {
		return err
	}
	list := ed.Store().List()
	out, err := render.New(render.WithTheme(c.activeTheme)).Export(ed.Image(), list, c.maxWidth)
	if err != nil {
		return fmt.Errorf("render %s: %w", c.source, err)
	}
	if c.shadow {
		out, _ = render.DefaultShadow().Apply(out)
	}
	if err := imaging.Save(out, c.output); err != nil {
		return fmt.Errorf("write %s: %w", c.output, err)
	}
	if c.saveJSON != "" {
		if err := annotation.WriteFile(c.saveJSON, list); err != nil {
			return err
		}
	}
	c.notifier.Save(c.output)
	fmt.Fprintf(c.stdout, "wrote %s (%d annotations)\n", c.output, len(list))
	return nil
}
