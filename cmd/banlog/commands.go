package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/caasmo/banlog"
	"github.com/caasmo/banlog/addr"
	"github.com/caasmo/banlog/admin"
	"github.com/caasmo/banlog/index"
	"github.com/caasmo/banlog/report"
)

// unavailable prints the console notice and passes err through when the
// banlog has no capacity.
func unavailable(output io.Writer, err error) bool {
	if !errors.Is(err, banlog.ErrUnavailable) {
		return false
	}
	fmt.Fprint(output, "BAN logging not available\nUse -size command line option\n")
	return true
}

func save(output io.Writer, bl admin.Bans) error {
	if err := bl.Save(); err != nil {
		fmt.Fprintf(output, "Could not write %s\n", banlog.SnapshotFile)
		return err
	}
	fmt.Fprintf(output, "Wrote %s\n", banlog.SnapshotFile)
	return nil
}

func parseAddress(output io.Writer, cmd, raw string) (addr.Key, error) {
	k, err := addr.Parse(raw)
	if err != nil {
		fmt.Fprintf(output, "%s: ip address [%s] out of range\n", cmd, raw)
		return 0, err
	}
	return k, nil
}

func handleAddCommand(output io.Writer, bl admin.Bans, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(output, "Usage: banlog add <address> <name...>")
		return fmt.Errorf("%w: address and name", ErrMissingArgument)
	}
	k, err := parseAddress(output, "ban", args[0])
	if err != nil {
		return err
	}

	e, err := bl.Add(k, strings.Join(args[1:], " "))
	switch {
	case err == nil:
	case unavailable(output, err):
		return err
	case errors.Is(err, index.ErrDuplicateKey):
		fmt.Fprintf(output, "ban: ip address [%s] already exists\n", k)
		return err
	case errors.Is(err, addr.ErrInvalidName):
		fmt.Fprintln(output, "ban: name is empty")
		return err
	default:
		return err
	}
	fmt.Fprintf(output, "ip address [%s] added by %s\n", e.Key, e.Name)
	return save(output, bl)
}

func handleRemoveCommand(output io.Writer, bl admin.Bans, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(output, "Usage: banlog remove <address>")
		if len(args) == 0 {
			return fmt.Errorf("%w: address", ErrMissingArgument)
		}
		return ErrTooManyArguments
	}
	k, err := parseAddress(output, "unban", args[0])
	if err != nil {
		return err
	}

	_, err = bl.Remove(k)
	switch {
	case err == nil:
	case unavailable(output, err):
		return err
	case errors.Is(err, index.ErrNotFound):
		fmt.Fprintf(output, "unban: ip address [%s] not found\n", k)
		return err
	default:
		return err
	}
	fmt.Fprintf(output, "ip address [%s] removed\n", k)
	return save(output, bl)
}

func handleIdentifyCommand(output io.Writer, bl admin.Bans, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(output, "Usage: banlog identify <address>")
		if len(args) == 0 {
			return fmt.Errorf("%w: address", ErrMissingArgument)
		}
		return ErrTooManyArguments
	}
	if !bl.Available() {
		unavailable(output, banlog.ErrUnavailable)
		return banlog.ErrUnavailable
	}
	k, err := parseAddress(output, "identify", args[0])
	if err != nil {
		return err
	}
	if e, ok := bl.Get(k); ok {
		fmt.Fprintf(output, "ip address [%s] banned by %s\n", e.Key, e.Name)
		return nil
	}
	fmt.Fprintf(output, "ip address [%s] not found\n", k)
	return nil
}

func handleListCommand(output io.Writer, bl admin.Bans, args []string) error {
	if len(args) > 0 {
		return ErrTooManyArguments
	}
	if !bl.Available() {
		unavailable(output, banlog.ErrUnavailable)
		return banlog.ErrUnavailable
	}
	return report.Write(output, slices.Values(bl.Entries()))
}

func handleDumpCommand(output io.Writer, bl admin.Bans, args []string) error {
	if len(args) > 0 {
		return ErrTooManyArguments
	}
	if err := bl.Dump(); err != nil {
		if !unavailable(output, err) {
			fmt.Fprintf(output, "Couldn't write %s or %s.\n", banlog.ExportFile, banlog.SnapshotFile)
		}
		return err
	}
	fmt.Fprintf(output, "Wrote %s\nWrote %s\n", banlog.ExportFile, banlog.SnapshotFile)
	return nil
}

func handleImportCommand(output io.Writer, bl admin.Bans, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(output, "Usage: banlog import <file>")
		if len(args) == 0 {
			return fmt.Errorf("%w: file", ErrMissingArgument)
		}
		return ErrTooManyArguments
	}
	n, err := bl.Import(args[0])
	if err != nil {
		if !unavailable(output, err) {
			fmt.Fprintf(output, "Could not open %s\n", args[0])
		}
		return err
	}
	fmt.Fprintf(output, "Merged %s (%d entries)\n", args[0], n)
	return save(output, bl)
}
