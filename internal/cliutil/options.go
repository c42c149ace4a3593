// Package cliutil holds the engine's command-line surface. Parsing is
// intentionally minimal: command-line parsing here is an external
// collaborator concern, so this package only recognizes the documented
// merged single-dash flags and produces an Options value — it does not
// attempt a general-purpose flag library, since the `-a<alias>`
// merged-argument style isn't representable by pflag/cobra's GNU-style
// separate-argument flags.
package cliutil

import (
	"fmt"
	"os"
	"strings"
)

// ExitUsageError is the exit code for a CLI parsing/usage failure, which
// falls under the "configuration / validation errors" bucket.
const ExitUsageError = 1

// BatchType mirrors the batch_type values accepted on the command line.
type BatchType string

const (
	BatchTypeAuto   BatchType = "AUTO"
	BatchTypeManual BatchType = "MANUAL"
)

// Options is the parsed form of the CLI arguments.
type Options struct {
	ConfigFile     string
	Alias          string
	BatchNumber    string
	StartMilestone string // -s<n>, accepted but not honored by the engine
	EndMilestone   string // -e<n>, accepted but not honored by the engine
	Debug          bool
	Resurrect      bool
	ProcessDate    string
	BatchType      BatchType
	TestMode       bool
	Help           bool
}

// Parse parses args (excluding argv[0]) into Options.
func Parse(args []string) (*Options, error) {
	opts := &Options{}
	var positional []string

	for _, arg := range args {
		switch {
		case arg == "-h":
			opts.Help = true
		case arg == "-d":
			opts.Debug = true
		case arg == "-r":
			opts.Resurrect = true
		case arg == "-x":
			opts.TestMode = true
		case strings.HasPrefix(arg, "-a"):
			opts.Alias = arg[2:]
		case strings.HasPrefix(arg, "-b"):
			opts.BatchNumber = arg[2:]
		case strings.HasPrefix(arg, "-s"):
			opts.StartMilestone = arg[2:]
		case strings.HasPrefix(arg, "-e"):
			opts.EndMilestone = arg[2:]
		case strings.HasPrefix(arg, "-p"):
			opts.ProcessDate = arg[2:]
		case strings.HasPrefix(arg, "-t"):
			bt := BatchType(strings.ToUpper(arg[2:]))
			if bt != BatchTypeAuto && bt != BatchTypeManual {
				return nil, fmt.Errorf("invalid batch type %q", arg[2:])
			}
			opts.BatchType = bt
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unrecognized option %q", arg)
		default:
			positional = append(positional, arg)
		}
	}

	if opts.BatchType == "" && os.Getenv("RUN_BY_CRON") == "TRUE" {
		opts.BatchType = BatchTypeAuto
	}

	if opts.Help {
		return opts, nil
	}

	if len(positional) != 1 {
		return nil, fmt.Errorf("expected exactly one positional argument (config file path), got %d", len(positional))
	}
	opts.ConfigFile = positional[0]

	return opts, nil
}

// Usage returns the help text printed for -h.
func Usage() string {
	return `usage: koyomi [options] <config-file>
  -a<alias>        batch alias (defaults to BatchName)
  -b<number>       explicit batch number (YYYYMMDDHH24MISS)
  -s<n>            starting milestone bound (accepted, no effect)
  -e<n>            ending milestone bound (accepted, no effect)
  -d               debug logging
  -r               resurrection mode
  -p<date>         process date (YYYY-MM-DD HH:MM:SS)
  -t<AUTO|MANUAL>  batch type
  -x               test mode
  -h               this help`
}
