package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/labelshot/internal/aimerge"
	"github.com/example/labelshot/internal/annotation"
	"github.com/example/labelshot/internal/editor"
	"github.com/example/labelshot/internal/ui"
)

// runApp is swapped in tests so no window is opened.
var runApp = func(a *ui.App) { a.Run() }

// annotateCmd opens the editor window. With readOnly set it is the preview
// command: existing annotations can be selected but not changed.
type annotateCmd struct {
	*root
	fs       *flag.FlagSet
	readOnly bool

	source      string
	annotations string
	output      string
	saveDir     string
	tool        string
	label       string
	color       string
	minBox      float64
	width       int
	height      int

	aiFile string
	detect bool
	ollama ollamaFlags
	live   bool
	mqtt   mqttFlags
}

func (a *annotateCmd) FlagSet() *flag.FlagSet {
	return a.fs
}

// splitSource lets the image come before or after the flags.
func splitSource(fs *flag.FlagSet, args []string) (string, error) {
	var source string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		source, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if source == "" && fs.NArg() > 0 {
		source = fs.Arg(0)
	}
	if source == "" {
		return "", fmt.Errorf("%s: image required", fs.Name())
	}
	return source, nil
}

func parseAnnotateCmd(args []string, r *root, readOnly bool) (*annotateCmd, error) {
	name := "annotate"
	if readOnly {
		name = "preview"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	a := &annotateCmd{root: r, fs: fs, readOnly: readOnly}

	ecfg := r.config.Editor
	fs.StringVar(&a.annotations, "annotations", "", "annotations JSON file to start from")
	fs.IntVar(&a.width, "width", 1024, "window width")
	fs.IntVar(&a.height, "height", 768, "window height")
	if !readOnly {
		fs.StringVar(&a.output, "output", "", "annotations file written on save (default <image>.json in -save-dir)")
		fs.StringVar(&a.saveDir, "save-dir", r.config.SaveDir, "directory for saved annotations")
		fs.StringVar(&a.tool, "tool", ecfg.Tool, "initial tool: "+toolNames())
		fs.StringVar(&a.label, "label", ecfg.DefaultLabel, "label for new annotations")
		fs.StringVar(&a.color, "color", ecfg.DefaultColor, "colour for new annotations")
		fs.Float64Var(&a.minBox, "min-box", ecfg.MinBoxSize, "smallest box side kept, in image pixels")
		fs.StringVar(&a.aiFile, "ai", "", "analysis payload JSON merged once the image is loaded")
		fs.BoolVar(&a.detect, "detect", false, "enable Ctrl+D detection through Ollama")
		r.addOllamaFlags(fs, &a.ollama)
		fs.BoolVar(&a.live, "mqtt", false, "merge analysis payloads arriving over MQTT")
		r.addMQTTFlags(fs, &a.mqtt)
	}

	source, err := splitSource(fs, args)
	if err != nil {
		return nil, &UsageError{of: a}
	}
	a.source = source
	return a, nil
}

func toolNames() string {
	var names []string
	for _, t := range editor.Tools() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func (a *annotateCmd) Run() error {
	var initial []annotation.Annotation
	if a.annotations != "" {
		list, err := annotation.ReadFile(a.annotations)
		if err != nil {
			return err
		}
		initial = list
	}

	merger, err := a.merger()
	if err != nil {
		return err
	}
	eopts := []editor.Option{
		editor.WithReadOnly(a.readOnly),
		editor.WithMerger(merger),
	}
	opts := []ui.Option{
		ui.WithLogger(a.log),
		ui.WithTheme(a.activeTheme),
		ui.WithNotifier(a.notifier),
		ui.WithAnnotations(initial),
		ui.WithSize(a.width, a.height),
		ui.WithDoubleClick(time.Duration(a.config.Editor.DoubleClickMs) * time.Millisecond),
		ui.WithOnApplyTags(func(t aimerge.SuggestedTags) {
			a.log.WithField("tags", strings.Join(t.All(), ",")).Info("suggested tags")
		}),
	}

	if !a.readOnly {
		tool, err := editor.ParseTool(a.tool)
		if err != nil {
			return err
		}
		if _, err := annotation.ParseColor(a.color); err != nil {
			return fmt.Errorf("-color: %w", err)
		}
		if a.minBox <= 0 {
			return fmt.Errorf("-min-box must be positive, got %g", a.minBox)
		}
		eopts = append(eopts,
			editor.WithTool(tool),
			editor.WithLabel(a.label),
			editor.WithColor(a.color),
			editor.WithMinBoxSize(a.minBox),
		)
		opts = append(opts, ui.WithOutput(a.output), ui.WithSaveDir(a.saveDir))

		var subs subscribers
		if a.aiFile != "" {
			subs = append(subs, payloadFiles{a.aiFile})
		}
		if a.live {
			f, err := a.newFeed(a.mqtt)
			if err != nil {
				return err
			}
			subs = append(subs, liveFeed{f: f})
		}
		if len(subs) > 0 {
			opts = append(opts, ui.WithFeed(subs))
		}
		if a.detect {
			d, err := a.newDetector(a.ollama)
			if err != nil {
				return err
			}
			opts = append(opts, ui.WithDetector(d))
		}
	}
	opts = append(opts, ui.WithEditorOptions(eopts...))

	app := ui.New(a.source, opts...)
	a.log.WithFields(logrus.Fields{
		"source":    a.source,
		"read_only": a.readOnly,
		"loaded":    app.Editor().Store().Len(),
	}).Debug("starting editor")
	runApp(app)
	return nil
}
