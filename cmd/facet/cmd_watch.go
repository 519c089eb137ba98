package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"facet/internal/compiler"
	"facet/internal/logging"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Recompile on change",
	Long: `Watch the input's directory (subdirectories are not watched) and recompile
whenever a file in it is written or created. Output goes to the sibling .json file.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 200*time.Millisecond,
		"Quiet period before recompiling after a change")
}

func runWatch(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	log := logging.Named("watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	recompile := func() {
		res, cerr := compiler.New(opts).CompileFile(path)
		if cerr != nil {
			fmt.Fprintln(os.Stderr, compiler.Envelope(cerr))
			return
		}
		out := siblingJSON(path)
		if werr := os.WriteFile(out, []byte(res.JSON+"\n"), 0644); werr != nil {
			log.Error("write failed", zap.String("path", out), zap.Error(werr))
			return
		}
		log.Info("compiled",
			zap.String("out", out),
			zap.Int("total_tokens", res.Telemetry.TotalTokens),
			zap.Int64("gas", res.Telemetry.GasUsed),
		)
	}
	recompile()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	events := debounce(watcher.Events, watchDebounce)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return nil
			}
			recompile()
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(werr))
		case <-sig:
			return nil
		}
	}
}

// debounce collapses bursts of write and create events into one notification
// after a quiet period. All other events are dropped.
func debounce(in <-chan fsnotify.Event, quiet time.Duration) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case ev, ok := <-in:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(quiet)
					fire = timer.C
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(quiet)
				}
			case <-fire:
				timer = nil
				fire = nil
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
