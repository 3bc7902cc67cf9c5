package main

import (
	"fmt"
	"io"
)

func handleHelpCommand(output io.Writer, args []string, mainUsage func()) error {
	if len(args) == 0 {
		mainUsage()
		return nil
	}

	topic := args[0]
	help, ok := commands[topic]
	if !ok {
		fmt.Fprintf(output, "Error: unknown help topic: %s\n\n", topic)
		mainUsage()
		return fmt.Errorf("%w: %s", ErrUnknownHelpTopic, topic)
	}
	help.Print(output)
	return nil
}
