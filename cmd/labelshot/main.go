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
	"github.com/example/labelshot/internal/config"
	"github.com/example/labelshot/internal/notify"
	"github.com/example/labelshot/internal/theme"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

type runnable interface{ Run() error }

type root struct {
	fs      *flag.FlagSet
	program string
	stdout  io.Writer
	stderr  io.Writer

	configPath  string
	config      *config.Config
	log         *logrus.Logger
	notifier    *notify.Notifier
	debug       bool
	logJSON     bool
	saveAlerts  bool
	mergeAlerts bool
	copyAlerts  bool
	themeName   string
	colorsFile  string
	activeTheme *theme.Theme
	ready       bool
}

func (r *root) Program() string {
	return r.program
}

func (r *root) FlagSet() *flag.FlagSet {
	return r.fs
}

func newRoot() *root {
	r := &root{
		fs:      flag.NewFlagSet("labelshot", flag.ContinueOnError),
		program: "labelshot",
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	r.fs.SetOutput(io.Discard)
	r.fs.StringVar(&r.configPath, "config", "", "path to the rc configuration file")
	r.fs.BoolVar(&r.debug, "debug", false, "enable debug logging")
	r.fs.BoolVar(&r.logJSON, "log-json", false, "log as JSON")
	r.fs.BoolVar(&r.saveAlerts, "notify-save", false, "show a desktop notification after saving")
	r.fs.BoolVar(&r.mergeAlerts, "notify-merge", false, "show a desktop notification after merging AI results")
	r.fs.BoolVar(&r.copyAlerts, "notify-copy", false, "show a desktop notification after copying to the clipboard")
	// Precedence: CLI > Env > Config > Default
	r.fs.StringVar(&r.themeName, "theme", "", "color theme ("+strings.Join(theme.BuiltinNames(), ", ")+" or a file)")
	r.fs.StringVar(&r.colorsFile, "colors", "", "YAML file with class colours")
	return r
}

func initLogger(w io.Writer, debug, asJSON bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	if asJSON {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logger.Debug("debug logging enabled")
	return logger
}

// setup loads configuration and builds the shared services once per
// process; interactive mode calls Run repeatedly.
func (r *root) setup() {
	if r.ready {
		return
	}
	r.ready = true
	r.log = initLogger(r.stderr, r.debug, r.logJSON)

	cfg, err := config.NewLoader(version, r.configPath).Load()
	if err != nil {
		r.log.WithError(err).Warn("failed to load config, using defaults")
		cfg = config.New()
	}
	r.config = cfg

	set := map[string]bool{}
	r.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["notify-save"] {
		r.saveAlerts = cfg.Notify.Save
	}
	if !set["notify-merge"] {
		r.mergeAlerts = cfg.Notify.Merge
	}
	if !set["notify-copy"] {
		r.copyAlerts = cfg.Notify.Copy
	}
	r.notifier = notify.New(notify.LoadPreferences(), r.log)
	r.notifier.Enable(notify.EventSave, r.saveAlerts)
	r.notifier.Enable(notify.EventMerge, r.mergeAlerts)
	r.notifier.Enable(notify.EventCopy, r.copyAlerts)

	name := theme.Resolve(r.themeName, cfg.Theme)
	t, err := theme.NewLoader(cfg.Themes).Load(name)
	if err != nil {
		r.log.WithError(err).WithField("theme", name).Warn("failed to load theme, using default")
		t = theme.Default()
	}
	r.activeTheme = t
}

func (r *root) Run(args []string) error {
	if err := r.fs.Parse(args); err != nil {
		return &UsageError{of: r}
	}
	if r.fs.NArg() < 1 {
		return &UsageError{of: r}
	}
	r.setup()

	cmdName := r.fs.Arg(0)
	subArgs := r.fs.Args()[1:]

	var (
		cmd runnable
		err error
	)
	switch cmdName {
	case "annotate":
		cmd, err = parseAnnotateCmd(subArgs, r, false)
	case "preview":
		cmd, err = parseAnnotateCmd(subArgs, r, true)
	case "render":
		cmd, err = parseRenderCmd(subArgs, r)
	case "merge":
		cmd, err = parseMergeCmd(subArgs, r)
	case "analyze":
		cmd, err = parseAnalyzeCmd(subArgs, r)
	case "watch":
		cmd, err = parseWatchCmd(subArgs, r)
	case "classes":
		cmd, err = parseClassesCmd(subArgs, r)
	case "config":
		cmd, err = parseConfigCmd(subArgs, r)
	case "interactive":
		cmd, err = parseInteractiveCmd(subArgs, r)
	case "version":
		cmd = &versionCmd{r: r}
	case "help":
		err = &UsageError{of: r}
	default:
		err = &UsageError{of: r}
	}
	if err != nil {
		return err
	}
	return cmd.Run()
}

// classColors is the built-in table, then the rc [classes] section, then the
// -colors YAML file.
func (r *root) classColors() (*aimerge.ClassColors, error) {
	cc := aimerge.DefaultClassColors()
	if r.config != nil {
		if err := cc.Apply(r.config.Classes); err != nil {
			return nil, fmt.Errorf("config classes: %w", err)
		}
	}
	if r.colorsFile == "" {
		return cc, nil
	}
	f, err := os.Open(r.colorsFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := cc.ReadYAML(f); err != nil {
		return nil, fmt.Errorf("%s: %w", r.colorsFile, err)
	}
	return cc, nil
}

func (r *root) merger() (*aimerge.Merger, error) {
	cc, err := r.classColors()
	if err != nil {
		return nil, err
	}
	return aimerge.New(aimerge.WithClassColors(cc), aimerge.WithLogger(r.log)), nil
}

func main() {
	r := newRoot()
	if err := r.Run(os.Args[1:]); err != nil {
		var uerr *UsageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, uerr.Error())
		} else {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
