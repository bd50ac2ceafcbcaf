package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"wikichat/chat"
	"wikichat/storage"
	"wikichat/ui"
)

func chatCmd() *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(true)
			if err != nil {
				return showStartupError("Configuration Error", err)
			}
			defer rt.closeLog()

			return runChat(cmd.Context(), rt, threadID)
		},
	}

	cmd.Flags().StringVarP(&threadID, "thread", "t", "", "resume an existing thread")

	return cmd
}

func runChat(ctx context.Context, rt *runtime, threadID string) error {
	cfg := rt.cfg

	threads, err := storage.NewThreadIndex(cfg.DataDir())
	if err != nil {
		return err
	}
	drafts, err := storage.NewDraftStore(cfg.DataDir())
	if err != nil {
		return err
	}
	defer drafts.Close()

	if err := rt.client.Ping(ctx); err != nil {
		rt.log.Warn().Err(err).Str("api_url", rt.client.BaseURL()).Msg("backend is not reachable")
	}

	ctrl, err := chat.New(chat.Options{
		Backend:   rt.client,
		VisitorID: cfg.VisitorID,
		SiteID:    cfg.SiteID,
		ThreadID:  threadID,
		Seed:      welcomeSeed(cfg),
		Recorder:  threads,
		Logger:    rt.log,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if threadID != "" {
		if err := ctrl.LoadSessionMessages(ctx, threadID); err != nil {
			return showStartupError("Could not open thread", err)
		}
	}

	view, err := ui.NewAppView(ui.Options{
		Controller:    ctrl,
		Threads:       threads,
		Drafts:        drafts,
		Keys:          cfg.Keys,
		APIURL:        cfg.APIURL,
		AutosaveDelay: cfg.AutosaveDelay,
		Logger:        rt.log,
	})
	if err != nil {
		return err
	}

	rt.log.Info().Str("thread_id", ctrl.ThreadID()).Str("version", Version).Msg("starting chat")
	p := tea.NewProgram(view, tea.WithAltScreen())
	final, err := p.Run()
	if v, ok := final.(ui.AppView); ok {
		v.Close()
	} else {
		view.Close()
	}
	if err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Thread: %s\n", ctrl.ThreadID())
	return nil
}

// showStartupError shows err in a modal and exits cleanly, the way the
// chat UI reports problems it cannot recover from.
func showStartupError(title string, err error) error {
	p := tea.NewProgram(ui.NewErrorModal(title, err.Error()), tea.WithAltScreen())
	if _, runErr := p.Run(); runErr != nil {
		return err
	}
	return nil
}
