// Package report renders ban entries as the human-readable listing written
// to banlog.txt.
package report

import (
	"bufio"
	"fmt"
	"io"
	"iter"

	"github.com/caasmo/banlog/index"
)

// Line formats one entry: the subnet padded to 16 columns, two spaces, and
// the name with control characters replaced by spaces.
func Line(e index.Entry) string {
	return fmt.Sprintf("%-16s  %s", e.Key, displayName(e.Name))
}

// Write writes one line per entry.
func Write(w io.Writer, entries iter.Seq[index.Entry]) error {
	bw := bufio.NewWriter(w)
	for e := range entries {
		if _, err := bw.WriteString(Line(e) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// displayName works on bytes; names may carry high bytes that are not UTF-8
// and must pass through unchanged.
func displayName(name string) string {
	b := []byte(name)
	for i, c := range b {
		if c < 0x20 || c == 0x7f {
			b[i] = ' '
		}
	}
	return string(b)
}
