// Package proclist parses the `.proc` process list file: a
// one-line-header CSV-like text file naming each process and its
// whitespace-separated predecessors, with two flavors of comment line.
package proclist

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/koyomi-batch/koyomi/internal/exception"
)

const moduleName = "proclist"

// Process is one node as parsed from the process list, in list order.
type Process struct {
	Name         string
	Predecessors []string
	// NaturalOrder is the zero-based index in the parsed (active) list.
	NaturalOrder int
}

// IsMilestone reports whether this process is a synthetic sync point that
// executes no command (name contains "Milestone").
func (p Process) IsMilestone() bool {
	return strings.Contains(p.Name, "Milestone")
}

// ParseResult is the output of Parse: the active process list plus the
// set of process names that were commented out.
type ParseResult struct {
	Processes    []Process
	CommentedOut map[string]bool
}

// Parse reads the process list file at path and returns the active
// process list with predecessor pruning already applied.
func Parse(path string) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, exception.Fatal(moduleName, fmt.Sprintf("cannot read process list %q", path), err)
	}
	defer f.Close()

	var active []Process
	commentedOut := make(map[string]bool)
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	headerSkipped := false
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if !headerSkipped {
			headerSkipped = true
			continue
		}
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#--") {
			continue // descriptive comment, discarded entirely
		}
		if strings.HasPrefix(trimmed, "#") {
			fields := strings.SplitN(trimmed[1:], ",", 2)
			name := strings.TrimSpace(fields[0])
			if name != "" {
				commentedOut[name] = true
			}
			continue
		}

		fields := strings.SplitN(trimmed, ",", 2)
		name := strings.TrimSpace(fields[0])
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, exception.Fatal(moduleName, fmt.Sprintf("duplicate active process name %q (line %d)", name, lineNo), nil)
		}
		seen[name] = true

		var preds []string
		if len(fields) > 1 {
			for _, p := range strings.Fields(fields[1]) {
				preds = append(preds, p)
			}
		}

		active = append(active, Process{
			Name:         name,
			Predecessors: preds,
			NaturalOrder: len(active),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, exception.Fatal(moduleName, fmt.Sprintf("error scanning process list %q", path), err)
	}

	if len(active) == 0 {
		return nil, exception.Fatal(moduleName, "process list has no active processes", nil)
	}

	prunePredecessors(active, commentedOut, seen)

	return &ParseResult{Processes: active, CommentedOut: commentedOut}, nil
}

// prunePredecessors removes, from each active process's predecessor list,
// any predecessor that names a commented-out process and is not itself an
// active process — letting authors comment out a node without editing
// every downstream reference.
func prunePredecessors(active []Process, commentedOut map[string]bool, activeNames map[string]bool) {
	for i := range active {
		kept := active[i].Predecessors[:0:0]
		for _, pred := range active[i].Predecessors {
			if commentedOut[pred] && !activeNames[pred] {
				continue
			}
			kept = append(kept, pred)
		}
		active[i].Predecessors = kept
	}
}
