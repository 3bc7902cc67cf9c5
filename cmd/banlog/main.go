package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/caasmo/banlog"
	"github.com/caasmo/banlog/admin"
	"github.com/caasmo/banlog/config"
	"github.com/caasmo/banlog/log"
)

// pingTimeout bounds the check for a running server.
const pingTimeout = time.Second

// logOutput receives structured logs; console messages go to run's output.
var logOutput io.Writer = os.Stderr

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commands lists what run dispatches, each with its help.
var commands = map[string]CommandHelp{
	"add": {
		Usage:       "banlog add <address> <name...>",
		Description: "Ban the /24 subnet of address on behalf of name. The name is\ntruncated to 15 characters.",
		Examples:    []string{"banlog add 10.0.0.xxx alice", "banlog add 192.168.1.7 the admin"},
	},
	"remove": {
		Usage:       "banlog remove <address>",
		Description: "Lift the ban on the /24 subnet of address.",
		Examples:    []string{"banlog remove 10.0.0.xxx"},
	},
	"identify": {
		Usage:       "banlog identify <address>",
		Description: "Report whether address belongs to a banned subnet and who banned it.",
	},
	"list": {
		Usage:       "banlog list",
		Description: "Print every banned subnet in ascending order.",
	},
	"dump": {
		Usage:       "banlog dump",
		Description: "Write the sorted listing to banlog.txt and save banlog.dat.",
	},
	"import": {
		Usage:       "banlog import <file>",
		Description: "Merge the records of another banlog.dat into this one.",
		Examples:    []string{"banlog import /srv/other/banlog.dat"},
	},
	"serve": {
		Usage:       "banlog serve",
		Description: "Accept TCP connections on [server] addr, drop banned subnets and\nrelay the rest to [server] upstream. SIGHUP reloads the configuration.\nWith [server] metrics_addr set, Prometheus metrics are served on /metrics.\nWhile serving, the other commands act on the live index through\nbanlog.sock in the banlog directory.",
	},
	"help": {
		Usage:       "banlog help [command]",
		Description: "Show help for a specific command.",
	},
}

func run(args []string, output io.Writer) error {
	// We need a new flag set for each run
	fs := flag.NewFlagSet("banlog", flag.ContinueOnError)
	fs.SetOutput(output)

	// Global flags
	configFlag := fs.String("config", "", "Path to the TOML configuration file")
	dirFlag := fs.String("dir", "", "Directory holding banlog.dat, overrides [banlog] dir")
	sizeFlag := fs.String("size", "", "Memory budget for entries such as 80KB; enables the banlog")

	fs.Usage = func() {
		help := CommandHelp{
			Usage:         "banlog [global options] <command> [arguments]",
			Description:   "Maintain the list of banned /24 subnets and gate connections with it.",
			GlobalOptions: fs,
			Subcommands: []SubcommandGroup{
				{
					Title: "Bans",
					Subcommands: []Subcommand{
						{"add", "Ban a subnet"},
						{"remove", "Lift a ban"},
						{"identify", "Check an address"},
						{"list", "Print banned subnets"},
					},
				},
				{
					Title: "Files",
					Subcommands: []Subcommand{
						{"dump", "Write banlog.txt and banlog.dat"},
						{"import", "Merge another banlog.dat"},
					},
				},
				{
					Subcommands: []Subcommand{
						{"serve", "Run the connection gate"},
						{"help", "Show help for a specific command"},
					},
				},
			},
			Examples: []string{
				"banlog -size 80KB add 10.0.0.xxx alice",
				"banlog -config banlog.toml serve",
			},
		}
		help.Print(output, "banlog")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrInvalidFlag, err)
	}

	cmdArgs := fs.Args()
	if len(cmdArgs) < 1 {
		fs.Usage()
		return ErrMissingCommand
	}
	command := cmdArgs[0]
	commandArgs := cmdArgs[1:]

	if _, ok := commands[command]; !ok {
		fs.Usage()
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
	if command == "help" {
		return handleHelpCommand(output, commandArgs, fs.Usage)
	}

	cfg, err := loadConfig(*configFlag, *dirFlag, *sizeFlag)
	if err != nil {
		return err
	}
	provider := config.NewProvider(cfg)
	logger := log.New(logOutput, provider)

	if command == "serve" {
		bl, err := banlog.New(cfg, banlog.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
		return handleServeCommand(output, provider, bl, logger)
	}

	// A running server owns the index; a second copy here would be
	// overwritten by its next snapshot.
	var bl admin.Bans
	socket := filepath.Join(cfg.Banlog.Dir, banlog.AdminSocket)
	client := admin.NewClient(socket)
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	err = client.Ping(ctx)
	cancel()
	if err == nil {
		logger.Debug("Using running server", "socket", socket)
		bl = client
	} else {
		local, err := banlog.New(cfg, banlog.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
		bl = local
	}

	switch command {
	case "add":
		return handleAddCommand(output, bl, commandArgs)
	case "remove":
		return handleRemoveCommand(output, bl, commandArgs)
	case "identify":
		return handleIdentifyCommand(output, bl, commandArgs)
	case "list":
		return handleListCommand(output, bl, commandArgs)
	case "dump":
		return handleDumpCommand(output, bl, commandArgs)
	default: // import
		return handleImportCommand(output, bl, commandArgs)
	}
}

// loadConfig reads path, or starts from the defaults when it is empty, and
// applies the flag overrides.
func loadConfig(path, dir, size string) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}
	if dir != "" {
		cfg.Banlog.Dir = dir
	}
	if size != "" {
		cfg.Banlog.Enabled = true
		cfg.Banlog.Size = size
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	return cfg, nil
}
