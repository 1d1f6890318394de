package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"jitc/internal/broker"
	"jitc/internal/ui"
)

type brokerOutcome struct {
	outcomes []broker.Outcome
	err      error
}

func runBrokerWithUI(ctx context.Context, title string, cfg broker.Config, tasks []broker.Task) ([]broker.Outcome, error) {
	events := make(chan broker.Event, 256)
	cfg.Progress = broker.ChannelSink{Ch: events}
	b, err := broker.New(cfg)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(tasks))
	for i := range tasks {
		names[i] = tasks[i].DisplayName()
	}

	outcomeCh := make(chan brokerOutcome, 1)
	go func() {
		outs, err := b.Run(ctx, tasks)
		outcomeCh <- brokerOutcome{outcomes: outs, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	if uiErr != nil {
		// keep the broker from blocking on a full channel
		go func() {
			for range events {
			}
		}()
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.outcomes, uiErr
	}
	return outcome.outcomes, outcome.err
}
