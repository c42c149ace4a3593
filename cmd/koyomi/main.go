// Command koyomi is the batch execution engine's entry point: it runs one
// batch inside a go.uber.org/fx application lifecycle (the collaborators
// themselves are wired by hand in runBatch) and exits with the batch's
// terminal exit code.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/koyomi-batch/koyomi/internal/cliutil"
	"github.com/koyomi-batch/koyomi/internal/koyomilog"
)

func main() {
	opts, err := cliutil.Parse(os.Args[1:])
	if err != nil {
		koyomilog.Errorf("koyomi: %v", err)
		os.Exit(cliutil.ExitUsageError)
	}
	if opts.Help {
		fmt.Println(cliutil.Usage())
		os.Exit(0)
	}
	if opts.Debug {
		koyomilog.SetLevel("DEBUG")
	}

	exitCode := cliutil.ExitUsageError

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger { return koyomilog.NewFxAdapter() }),
		fx.Supply(opts),
		fx.Invoke(func(lc fx.Lifecycle, shutdowner fx.Shutdowner) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						exitCode = runBatch(opts)
						if err := shutdowner.Shutdown(); err != nil {
							koyomilog.Errorf("koyomi: shutdown failed: %v", err)
						}
					}()
					return nil
				},
			})
		}),
	)

	app.Run()
	koyomilog.Sync()
	os.Exit(exitCode)
}
