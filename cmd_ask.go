package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"wikichat/chat"
	"wikichat/model"
	"wikichat/storage"
)

func askCmd() *cobra.Command {
	var threadID string
	var noSources bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and stream the answer to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(false)
			if err != nil {
				return err
			}
			defer rt.closeLog()

			threads, err := storage.NewThreadIndex(rt.cfg.DataDir())
			if err != nil {
				return err
			}

			ctrl, err := chat.New(chat.Options{
				Backend:   rt.client,
				VisitorID: rt.cfg.VisitorID,
				SiteID:    rt.cfg.SiteID,
				ThreadID:  threadID,
				Recorder:  threads,
				Logger:    rt.log,
			})
			if err != nil {
				return err
			}
			defer ctrl.Close()

			ctx := cmd.Context()
			if threadID != "" {
				if err := ctrl.LoadSessionMessages(ctx, threadID); err != nil {
					return err
				}
			}

			printer := newStreamPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), len(ctrl.Messages()))
			unsubscribe := ctrl.Subscribe(printer.onSnapshot)
			defer unsubscribe()

			if err := ctrl.SendMessage(ctx, strings.Join(args, " ")); err != nil {
				return err
			}

			reply := printer.finish(!noSources)
			fmt.Fprintf(cmd.ErrOrStderr(), "Thread: %s\n", ctrl.ThreadID())
			if strings.HasSuffix(reply.Content, model.ErrorSuffix) {
				return errors.New("the answer was interrupted by an error")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&threadID, "thread", "t", "", "continue an existing thread")
	cmd.Flags().BoolVar(&noSources, "no-sources", false, "do not print citations")

	return cmd
}

// streamPrinter writes the growing reply of one send as it streams. Tool
// activity goes to the status writer so stdout carries only the answer.
type streamPrinter struct {
	out    io.Writer
	status io.Writer
	// first transcript index that belongs to this send
	start int

	mu        sync.Mutex
	reply     model.Message
	printed   int
	announced map[string]bool
}

func newStreamPrinter(out, status io.Writer, start int) *streamPrinter {
	return &streamPrinter{out: out, status: status, start: start, announced: make(map[string]bool)}
}

func (p *streamPrinter) onSnapshot(s chat.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(s.Messages) <= p.start {
		return
	}
	last := s.Messages[len(s.Messages)-1]
	if last.Role != model.RoleAssistant {
		return
	}
	p.reply = last

	if last.Status == model.StatusToolCalling && last.ActiveToolName != "" {
		key := fmt.Sprintf("%d:%s", len(last.ToolCalls), last.ActiveToolName)
		if !p.announced[key] {
			p.announced[key] = true
			fmt.Fprintf(p.status, "[calling %s]\n", last.ActiveToolName)
		}
	}

	if len(last.Content) > p.printed {
		fmt.Fprint(p.out, last.Content[p.printed:])
		p.printed = len(last.Content)
	}
}

// finish ends the answer line and optionally lists its sources. It returns
// the final reply.
func (p *streamPrinter) finish(withSources bool) model.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.printed > 0 {
		fmt.Fprintln(p.out)
	}
	if withSources && len(p.reply.Sources) > 0 {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "Sources:")
		for i, s := range p.reply.Sources {
			n := i + 1
			if s.SourceIndex != nil {
				n = *s.SourceIndex
			}
			fmt.Fprintf(p.out, "  [%d] %s\n", n, s.Title)
		}
	}
	return p.reply
}
