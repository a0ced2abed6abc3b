package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/example/labelshot/internal/annotation"
	"github.com/example/labelshot/internal/theme"
)

// Parse reads configuration from an io.Reader.
func Parse(r io.Reader) (*Config, error) {
	cfg := New()
	scanner := bufio.NewScanner(r)

	var currentSection string
	var currentTheme *theme.Theme
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			currentTheme = nil

			if strings.HasPrefix(currentSection, "theme.") {
				themeName := strings.TrimPrefix(currentSection, "theme.")
				// Start with defaults so missing keys are fine
				currentTheme = theme.Default()
				currentTheme.Name = themeName
				cfg.Themes[themeName] = currentTheme
			}
			continue
		}

		// Key = Value, or Key: Value in theme sections. Colour values start
		// with '#', so '=' is tried first.
		var parts []string
		if strings.Contains(line, "=") {
			parts = strings.SplitN(line, "=", 2)
		} else if strings.Contains(line, ":") {
			parts = strings.SplitN(line, ":", 2)
		} else {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if len(value) >= 2 && strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") {
			value = value[1 : len(value)-1]
		}

		var err error
		switch {
		case currentTheme != nil:
			err = theme.SetField(currentTheme, key, value)
		case currentSection == "":
			err = setRootField(cfg, key, value)
		case currentSection == "editor":
			err = setEditorField(&cfg.Editor, key, value)
		case currentSection == "notify":
			err = setNotifyField(&cfg.Notify, key, value)
		case currentSection == "classes":
			err = setClass(cfg.Classes, key, value)
		case currentSection == "ollama":
			setOllamaField(&cfg.Ollama, key, value)
		case currentSection == "mqtt":
			setMQTTField(&cfg.MQTT, key, value)
		}
		if err != nil {
			section := currentSection
			if section == "" {
				section = "root"
			}
			return nil, fmt.Errorf("line %d: error in section [%s]: %w", lineNo, section, err)
		}
	}

	return cfg, scanner.Err()
}

func setRootField(cfg *Config, key, value string) error {
	switch strings.ToLower(key) {
	case "theme":
		cfg.Theme = value
	case "save_dir":
		cfg.SaveDir = value
	}
	return nil
}

func setEditorField(e *Editor, key, value string) error {
	switch strings.ToLower(key) {
	case "min_box_size":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid min_box_size %q", value)
		}
		e.MinBoxSize = v
	case "default_label":
		e.DefaultLabel = value
	case "default_color":
		if _, err := annotation.ParseColor(value); err != nil {
			return err
		}
		e.DefaultColor = value
	case "tool":
		e.Tool = strings.ToLower(value)
	case "double_click_ms":
		v, err := strconv.Atoi(value)
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid double_click_ms %q", value)
		}
		e.DoubleClickMs = v
	}
	return nil
}

func setNotifyField(n *Notify, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean for key %s: %w", key, err)
	}
	switch strings.ToLower(key) {
	case "save":
		n.Save = b
	case "merge":
		n.Merge = b
	case "copy":
		n.Copy = b
	}
	return nil
}

func setClass(classes map[string]string, key, value string) error {
	if _, err := annotation.ParseColor(value); err != nil {
		return fmt.Errorf("class %s: %w", key, err)
	}
	classes[strings.ToLower(key)] = value
	return nil
}

func setOllamaField(o *Ollama, key, value string) {
	switch strings.ToLower(key) {
	case "url":
		o.URL = value
	case "model":
		o.Model = value
	}
}

func setMQTTField(m *MQTT, key, value string) {
	switch strings.ToLower(key) {
	case "broker":
		m.Broker = value
	case "topic":
		m.Topic = value
	}
}
