package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"strings"
)

type interactiveCmd struct {
	*root
	fs *flag.FlagSet
	in io.Reader
}

func (i *interactiveCmd) FlagSet() *flag.FlagSet {
	return i.fs
}

func parseInteractiveCmd(args []string, r *root) (*interactiveCmd, error) {
	fs := flag.NewFlagSet("interactive", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	i := &interactiveCmd{root: r, fs: fs, in: stdin}
	if err := fs.Parse(args); err != nil {
		return nil, &UsageError{of: i}
	}
	return i, nil
}

// Run reads commands line by line and runs each as if given on the command
// line. Root flags from the original invocation stay in effect.
func (i *interactiveCmd) Run() error {
	fmt.Fprintln(i.stdout, "Enter commands (type 'exit' to quit)")
	scanner := bufio.NewScanner(i.in)
	for {
		fmt.Fprint(i.stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		args := strings.Fields(line)
		if args[0] == "interactive" {
			continue
		}
		if err := i.root.Run(args); err != nil {
			fmt.Fprintln(i.stderr, err)
		}
	}
	return scanner.Err()
}
