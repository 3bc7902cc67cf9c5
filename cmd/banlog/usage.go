package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"strings"
)

// CommandHelp represents the information needed to generate help output.
type CommandHelp struct {
	Usage         string
	Description   string
	Subcommands   []SubcommandGroup
	GlobalOptions *flag.FlagSet
	Examples      []string
}

// SubcommandGroup allows clustering subcommands by meaning.
type SubcommandGroup struct {
	Title       string
	Subcommands []Subcommand
}

type Subcommand struct {
	Name        string
	Description string
}

// Print writes the sections that are set, one blank line apart. With
// parentCommands it ends with a pointer to per-command help.
func (h *CommandHelp) Print(writer io.Writer, parentCommands ...string) {
	first := true
	section := func(title string) {
		if !first {
			fmt.Fprintln(writer)
		}
		first = false
		fmt.Fprintf(writer, "%s:\n", title)
	}
	indent := func(text string) {
		scanner := bufio.NewScanner(strings.NewReader(text))
		for scanner.Scan() {
			fmt.Fprintf(writer, "  %s\n", scanner.Text())
		}
	}

	if h.Usage != "" {
		section("Usage")
		indent(h.Usage)
	}

	if h.Description != "" {
		section("Description")
		indent(h.Description)
	}

	if len(h.Subcommands) > 0 {
		section("Commands")
		for i, group := range h.Subcommands {
			if group.Title != "" {
				if i > 0 {
					fmt.Fprintln(writer)
				}
				fmt.Fprintf(writer, "  %s:\n", group.Title)
			}
			for _, subcommand := range group.Subcommands {
				fmt.Fprintf(writer, "    %-12s %s\n", subcommand.Name, subcommand.Description)
			}
		}
	}

	if h.GlobalOptions != nil {
		section("Global Options")
		var buf bytes.Buffer
		out := h.GlobalOptions.Output()
		h.GlobalOptions.SetOutput(&buf)
		h.GlobalOptions.PrintDefaults()
		h.GlobalOptions.SetOutput(out)
		indent(buf.String())
	}

	if len(h.Examples) > 0 {
		section("Examples")
		for _, example := range h.Examples {
			fmt.Fprintf(writer, "  %s\n", example)
		}
	}

	if len(parentCommands) > 0 {
		section("For detailed help on a command")
		fmt.Fprintf(writer, "  %s help <command>\n", strings.Join(parentCommands, " "))
	}
}
