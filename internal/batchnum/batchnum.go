// Package batchnum implements the batch number allocator:
// strictly-monotonic, unique 14-digit batch numbers across concurrent
// invocations sharing the same allocator file.
package batchnum

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/koyomi-batch/koyomi/internal/clock"
	"github.com/koyomi-batch/koyomi/internal/exception"
)

const moduleName = "batchnum"

// Allocate returns explicit if it is non-empty (the CLI -b override).
// Otherwise it takes an advisory lock on the allocator file at path and
// sleeps one second at a time until the current compact timestamp is
// strictly greater than the one last recorded there, writes it back, and
// returns it.
func Allocate(explicit, path string, clk clock.Clock) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return "", exception.Fatal(moduleName, fmt.Sprintf("cannot open batch number allocator file %q", path), err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return "", exception.Fatal(moduleName, fmt.Sprintf("cannot lock batch number allocator file %q", path), err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	last, err := readLast(f)
	if err != nil {
		return "", err
	}

	var next string
	for {
		next = clk.NowCompact()
		if next > last {
			break
		}
		time.Sleep(1 * time.Second)
	}

	if err := writeLast(f, next); err != nil {
		return "", err
	}
	return next, nil
}

func readLast(f *os.File) (string, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return "", exception.Fatal(moduleName, "cannot seek batch number allocator file", err)
	}
	buf := make([]byte, 32)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", exception.Fatal(moduleName, "cannot read batch number allocator file", err)
	}
	return strings.TrimSpace(string(buf[:n])), nil
}

func writeLast(f *os.File, value string) error {
	if err := f.Truncate(0); err != nil {
		return exception.Fatal(moduleName, "cannot truncate batch number allocator file", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return exception.Fatal(moduleName, "cannot seek batch number allocator file", err)
	}
	if _, err := f.WriteString(value); err != nil {
		return exception.Fatal(moduleName, "cannot write batch number allocator file", err)
	}
	return nil
}
