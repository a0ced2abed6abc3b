package aimerge

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/labelshot/internal/annotation"
)

// FallbackColor is used for classes missing from the table.
const FallbackColor = "#FF6B6B"

var defaultClasses = map[string]string{
	"person":     "#FF0000",
	"car":        "#00A8FF",
	"truck":      "#0066CC",
	"bicycle":    "#FFB300",
	"motorcycle": "#FF7F00",
	"bus":        "#7B1FA2",
	"dog":        "#8BC34A",
	"cat":        "#00C853",
	"bird":       "#00BCD4",
	"chair":      "#795548",
	"bottle":     "#E91E63",
	"segment":    "#9C27B0",
}

// ClassColors maps class names to annotation colours.
type ClassColors struct {
	Classes  map[string]string `yaml:"classes"`
	Fallback string            `yaml:"fallback,omitempty"`
}

// DefaultClassColors returns the built-in table.
func DefaultClassColors() *ClassColors {
	cc := &ClassColors{Classes: make(map[string]string, len(defaultClasses)), Fallback: FallbackColor}
	for k, v := range defaultClasses {
		cc.Classes[k] = v
	}
	return cc
}

func normClass(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup returns the colour for a class name.
func (c *ClassColors) Lookup(name string) string {
	if c != nil {
		if col, ok := c.Classes[normClass(name)]; ok {
			return col
		}
		if c.Fallback != "" {
			return c.Fallback
		}
	}
	return FallbackColor
}

// Set adds or replaces one class colour. Invalid colours are rejected.
func (c *ClassColors) Set(name, col string) error {
	if _, err := annotation.ParseColor(col); err != nil {
		return fmt.Errorf("class %s: %w", name, err)
	}
	if c.Classes == nil {
		c.Classes = map[string]string{}
	}
	c.Classes[normClass(name)] = col
	return nil
}

// Apply copies every entry of m into the table.
func (c *ClassColors) Apply(m map[string]string) error {
	for _, name := range sortedKeys(m) {
		if err := c.Set(name, m[name]); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the class names in alphabetical order.
func (c *ClassColors) Names() []string {
	return sortedKeys(c.Classes)
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LoadClassColors reads a YAML table and layers it over the defaults.
func LoadClassColors(r io.Reader) (*ClassColors, error) {
	cc := DefaultClassColors()
	if err := cc.ReadYAML(r); err != nil {
		return nil, err
	}
	return cc, nil
}

// ReadYAML layers a YAML table over c.
func (c *ClassColors) ReadYAML(r io.Reader) error {
	var file ClassColors
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return fmt.Errorf("parse class colours: %w", err)
	}
	if err := c.Apply(file.Classes); err != nil {
		return err
	}
	if file.Fallback != "" {
		if _, err := annotation.ParseColor(file.Fallback); err != nil {
			return fmt.Errorf("fallback: %w", err)
		}
		c.Fallback = file.Fallback
	}
	return nil
}

// WriteYAML writes the table in the format LoadClassColors reads.
func (c *ClassColors) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
