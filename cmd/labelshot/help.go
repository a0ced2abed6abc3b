package main

import (
	"bytes"
	"embed"
	"flag"
	"fmt"
	"sync"
	"text/template"
)

//go:embed templates/*.txt
var helpFS embed.FS

var (
	helpOnce sync.Once
	helpTmpl *template.Template
)

func parseHelpTemplates() {
	helpTmpl = template.Must(template.New("").Funcs(map[string]any{
		"flags": func(fs *flag.FlagSet) []flagInfo {
			result := []flagInfo{}
			if fs == nil {
				return result
			}
			fs.VisitAll(func(f *flag.Flag) {
				result = append(result, flagInfo{f.Name, f.DefValue, f.Usage})
			})
			return result
		},
	}).ParseFS(helpFS, "templates/*.txt"))
}

type flagInfo struct {
	Name     string
	DefValue string
	Usage    string
}

type HelpData interface {
	Program() string
	Template() string
	FlagSet() *flag.FlagSet
}

type UsageError struct {
	of HelpData
}

func (e *UsageError) Error() string {
	help, err := e.renderHelp()
	if err != nil {
		return err.Error()
	}
	return help
}

func (e *UsageError) renderHelp() (string, error) {
	helpOnce.Do(parseHelpTemplates)
	var buf bytes.Buffer
	if err := helpTmpl.ExecuteTemplate(&buf, e.of.Template(), e.of); err != nil {
		return "", fmt.Errorf("render help %s: %w", e.of.Template(), err)
	}
	return buf.String(), nil
}

func (r *root) Template() string { return "root.txt" }
func (a *annotateCmd) Template() string {
	if a.readOnly {
		return "preview.txt"
	}
	return "annotate.txt"
}
func (c *renderCmd) Template() string { return "render.txt" }
func (c *mergeCmd) Template() string { return "merge.txt" }
func (c *analyzeCmd) Template() string { return "analyze.txt" }
func (c *watchCmd) Template() string { return "watch.txt" }
func (c *classesCmd) Template() string { return "classes.txt" }
func (c *configCmd) Template() string { return "config.txt" }
func (i *interactiveCmd) Template() string { return "interactive.txt" }
func (v *versionCmd) Template() string { return "version.txt" }
