package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
)

// classesCmd prints the class colour table in effect.
type classesCmd struct {
	*root
	fs     *flag.FlagSet
	asYAML bool
}

func (c *classesCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseClassesCmd(args []string, r *root) (*classesCmd, error) {
	fs := flag.NewFlagSet("classes", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := &classesCmd{root: r, fs: fs}
	fs.BoolVar(&c.asYAML, "yaml", false, "print as YAML usable with -colors")
	if err := fs.Parse(args); err != nil {
		return nil, &UsageError{of: c}
	}
	return c, nil
}

func (c *classesCmd) Run() error {
	cc, err := c.classColors()
	if err != nil {
		return err
	}
	if c.asYAML {
		return cc.WriteYAML(c.stdout)
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	for _, name := range cc.Names() {
		fmt.Fprintf(tw, "%s\t%s\n", name, cc.Classes[name])
	}
	fmt.Fprintf(tw, "(other)\t%s\n", cc.Lookup(""))
	return tw.Flush()
}
