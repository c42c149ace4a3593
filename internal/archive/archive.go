// Package archive implements the log directory archival and pruning
// behavior: on termination, copy the log directory into a
// per-run archive directory and prune older ones beyond the retention
// limit.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/koyomi-batch/koyomi/internal/exception"
)

const moduleName = "archive"

// Archive copies every file directly under logDir into
// <logDir>/archive/<batchNumber>.<runNumber>/, then prunes older archive
// directories beyond maxArchivedLogs (0 = unlimited retention).
func Archive(logDir, batchNumber string, runNumber, maxArchivedLogs int) error {
	archiveRoot := filepath.Join(logDir, "archive")
	dest := filepath.Join(archiveRoot, fmt.Sprintf("%s.%d", batchNumber, runNumber))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return exception.Fatal(moduleName, fmt.Sprintf("cannot create archive directory %q", dest), err)
	}

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return exception.Fatal(moduleName, fmt.Sprintf("cannot read log directory %q", logDir), err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(logDir, entry.Name())
		if err := copyFile(src, filepath.Join(dest, entry.Name())); err != nil {
			return exception.Fatal(moduleName, fmt.Sprintf("cannot archive log file %q", src), err)
		}
	}

	if maxArchivedLogs > 0 {
		if err := prune(archiveRoot, maxArchivedLogs); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// prune removes archive directories beyond the Nth most recent, sorted
// reverse-lexically. This is correct only because batch numbers are
// fixed-width YYYYMMDDHH24MISS strings, so lexical order matches
// chronological order (revisit if the format changes).
func prune(archiveRoot string, keep int) error {
	entries, err := os.ReadDir(archiveRoot)
	if err != nil {
		return exception.Fatal(moduleName, fmt.Sprintf("cannot read archive root %q", archiveRoot), err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		batchNumber, _, _ := strings.Cut(name, ".")
		if len(batchNumber) != 14 || !isAllDigits(batchNumber) {
			return exception.Fatal(moduleName, fmt.Sprintf(
				"archive directory %q does not start with a 14-digit batch number; reverse-lexical pruning is unsafe", name), nil)
		}
		dirs = append(dirs, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))

	for i := keep; i < len(dirs); i++ {
		victim := filepath.Join(archiveRoot, dirs[i])
		if err := os.RemoveAll(victim); err != nil {
			return exception.Fatal(moduleName, fmt.Sprintf("cannot prune archive directory %q", victim), err)
		}
	}
	return nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
