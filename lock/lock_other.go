//go:build !unix

package lock

import "os"

// Platforms without flock(2) only get the in-process mutex held by File.
func lockFile(*os.File) error   { return nil }
func unlockFile(*os.File) error { return nil }
