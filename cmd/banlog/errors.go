package main

import "errors"

// Shared error variables for the banlog command.
var (
	ErrMissingCommand = errors.New("missing command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidFlag    = errors.New("invalid flag provided")
	ErrLoadConfig     = errors.New("failed to load configuration")

	// command parsing errors
	ErrMissingArgument  = errors.New("missing required argument")
	ErrTooManyArguments = errors.New("too many arguments")
	ErrUnknownHelpTopic = errors.New("unknown help topic")
)
