package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchDebounce collapses the bursts of events editors and front ends
// produce while rewriting a file.
const watchDebounce = 150 * time.Millisecond

// watchUnit runs inference once, then again whenever the unit file or the
// config it was read with changes, until interrupted. The directories are
// watched rather than the files, so atomic renames are seen.
func watchUnit(cmd *cobra.Command, opts inferOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	unitPath, err := filepath.Abs(opts.unitPath)
	if err != nil {
		return err
	}
	watched := map[string]bool{unitPath: true}
	if cliConfig.Path != "" {
		if p, err := filepath.Abs(cliConfig.Path); err == nil {
			watched[p] = true
		}
	}
	dirs := map[string]bool{}
	for p := range watched {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	// The TUI would fight with the repeated output.
	opts.ui = uiModeOff
	rerun := func() {
		if _, err := inferOnce(ctx, cmd, opts); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		fmt.Fprintf(os.Stderr, "watching %s\n", opts.unitPath)
	}
	rerun()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
		reconf bool
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || !watched[name] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if name != unitPath {
				reconf = true
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			timerC = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		case <-timerC:
			timerC = nil
			if reconf {
				reconf = false
				cfg, err := loadConfig(cmd, []string{opts.unitPath})
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				cliConfig = cfg
			}
			rerun()
		}
	}
}
