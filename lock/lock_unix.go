//go:build unix

package lock

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes a blocking exclusive flock(2). The lock is released when
// the descriptor is closed, including on process exit.
func lockFile(f *os.File) error {
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			return err
		}
	}
}

func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
