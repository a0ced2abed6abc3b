package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/example/labelshot/internal/theme"
)

// Editor holds drawing defaults.
type Editor struct {
	MinBoxSize    float64
	DefaultLabel  string
	DefaultColor  string
	Tool          string
	DoubleClickMs int
}

// Notify holds notification settings.
type Notify struct {
	Save  bool
	Merge bool
	Copy  bool
}

// Ollama configures the detection service.
type Ollama struct {
	URL   string
	Model string
}

// MQTT configures the analysis feed.
type MQTT struct {
	Broker string
	Topic  string
}

// Config holds the application configuration.
type Config struct {
	Theme   string
	SaveDir string
	Editor  Editor
	Notify  Notify
	Ollama  Ollama
	MQTT    MQTT
	Classes map[string]string
	Themes  map[string]*theme.Theme
}

// New creates a new Config with defaults.
func New() *Config {
	return &Config{
		Theme: "", // Default to empty to allow fallback to Env/Default
		Editor: Editor{
			MinBoxSize:    5,
			DefaultLabel:  "object",
			DefaultColor:  "#FF0000",
			Tool:          "bbox",
			DoubleClickMs: 400,
		},
		Classes: make(map[string]string),
		Themes:  make(map[string]*theme.Theme),
	}
}

// String implements fmt.Stringer and returns the configuration in RC format.
func (c *Config) String() string {
	var sb strings.Builder

	if c.Theme != "" {
		fmt.Fprintf(&sb, "theme = %s\n", c.Theme)
	}
	if c.SaveDir != "" {
		fmt.Fprintf(&sb, "save_dir = %s\n", c.SaveDir)
	}
	sb.WriteString("\n")

	sb.WriteString("[editor]\n")
	fmt.Fprintf(&sb, "min_box_size = %g\n", c.Editor.MinBoxSize)
	fmt.Fprintf(&sb, "default_label = %s\n", c.Editor.DefaultLabel)
	fmt.Fprintf(&sb, "default_color = %s\n", c.Editor.DefaultColor)
	fmt.Fprintf(&sb, "tool = %s\n", c.Editor.Tool)
	fmt.Fprintf(&sb, "double_click_ms = %d\n", c.Editor.DoubleClickMs)
	sb.WriteString("\n")

	sb.WriteString("[notify]\n")
	fmt.Fprintf(&sb, "save = %v\n", c.Notify.Save)
	fmt.Fprintf(&sb, "merge = %v\n", c.Notify.Merge)
	fmt.Fprintf(&sb, "copy = %v\n", c.Notify.Copy)
	sb.WriteString("\n")

	if c.Ollama != (Ollama{}) {
		sb.WriteString("[ollama]\n")
		writeIfSet(&sb, "url", c.Ollama.URL)
		writeIfSet(&sb, "model", c.Ollama.Model)
		sb.WriteString("\n")
	}
	if c.MQTT != (MQTT{}) {
		sb.WriteString("[mqtt]\n")
		writeIfSet(&sb, "broker", c.MQTT.Broker)
		writeIfSet(&sb, "topic", c.MQTT.Topic)
		sb.WriteString("\n")
	}

	if len(c.Classes) > 0 {
		sb.WriteString("[classes]\n")
		for _, name := range sortedKeys(c.Classes) {
			fmt.Fprintf(&sb, "%s = %s\n", name, c.Classes[name])
		}
		sb.WriteString("\n")
	}

	var themeNames []string
	for name := range c.Themes {
		themeNames = append(themeNames, name)
	}
	sort.Strings(themeNames)
	for _, name := range themeNames {
		t := c.Themes[name]
		fmt.Fprintf(&sb, "[theme.%s]\n", name)
		fmt.Fprintf(&sb, "Name: %s\n", t.Name)
		for _, kv := range theme.Fields(t) {
			fmt.Fprintf(&sb, "%s: %s\n", kv[0], kv[1])
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeIfSet(sb *strings.Builder, key, value string) {
	if value != "" {
		fmt.Fprintf(sb, "%s = %s\n", key, value)
	}
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
