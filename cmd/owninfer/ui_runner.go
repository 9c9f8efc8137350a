package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"owninfer/internal/ast"
	"owninfer/internal/driver"
	"owninfer/internal/ui"
)

type runOutcome struct {
	result *driver.Result
	err    error
}

// runWithUI runs the driver in the background while a progress view
// follows its events.
func runWithUI(ctx context.Context, title string, u *ast.Unit, opts driver.Options) (*driver.Result, error) {
	names := driver.FunctionNames(u, &opts.Config.Policy)
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan runOutcome, 1)

	go func() {
		o := opts
		o.Progress = driver.ChannelSink{Ch: events}
		res, err := driver.Run(ctx, u, o)
		outcomeCh <- runOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	// Drain what the view did not consume so the driver never blocks.
	for range events {
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
