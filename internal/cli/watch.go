package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/tabstore/internal/ir"
	"github.com/roach88/tabstore/internal/persist"
	"github.com/roach88/tabstore/internal/store"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	PrintJSON bool // print the full content on every change
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow saved content as it changes",
		Long: `Load the configured database and print a line whenever its content
changes. Backends that report changes by other writers (the file
backend) are reloaded automatically.

Example:
  tabstore watch --backend file --db content.json
  tabstore watch --backend file --db content.json --json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.PrintJSON, "json", false, "print the full content JSON on every change")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	p, err := openPersister(opts.RootOptions, false)
	if err != nil {
		return openFailure(formatter, err)
	}
	defer func() {
		if closeErr := p.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	printer := &changePrinter{w: cmd.OutOrStdout(), printJSON: opts.PrintJSON}
	p.Do(func(st *store.Store) {
		st.AddDidFinishTransactionListener(printer.print)
	})

	if _, ok := p.Backend().(persist.Watcher); ok {
		if err := p.StartAutoLoad(ctx); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to start watching", err)
		}
		logger.Info("watching for changes", "backend", p.Backend().Name(), "db", opts.config().DB)
	} else {
		logger.Warn("backend does not report changes, showing saved content only", "backend", p.Backend().Name())
		if _, err := p.Load(ctx); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeBackend, "failed to load content", err)
		}
	}

	fmt.Fprintln(formatter.GetErrWriter(), "Watching. Press Ctrl-C to stop.")
	<-ctx.Done()

	logger.Info("watch stopped")
	return nil
}

// changePrinter prints one line per transaction that changed the content.
type changePrinter struct {
	mu        sync.Mutex
	w         io.Writer
	printJSON bool
	lastHash  string
}

func (c *changePrinter) print(st *store.Store) {
	content := st.GetContent()
	hash, err := ir.ContentHash(content)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if hash == c.lastHash {
		return
	}
	c.lastHash = hash

	if c.printJSON {
		fmt.Fprintln(c.w, st.GetJSON())
		return
	}
	rows := 0
	for _, table := range content.Tables {
		rows += len(table)
	}
	fmt.Fprintf(c.w, "%s %d table(s), %d row(s), %d value(s)\n",
		hash[:12], len(content.Tables), rows, len(content.Values))
}
