package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"wikichat/api"
	"wikichat/config"
	"wikichat/model"
	"wikichat/storage"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List or delete stored conversations",
	}
	cmd.AddCommand(sessionsListCmd(), sessionsDeleteCmd(), sessionsLocalCmd())
	return cmd
}

func sessionsListCmd() *cobra.Command {
	var memberID int64
	var page, size int
	var allSites bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations stored on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(false)
			if err != nil {
				return err
			}
			defer rt.closeLog()

			filter := api.SessionFilter{SiteID: rt.cfg.SiteID, MemberID: memberID, Page: page, Size: size}
			if allSites {
				filter.SiteID = 0
			}
			result, err := rt.client.ListSessions(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "THREAD\tTITLE\tMESSAGES\tUPDATED")
			for _, s := range result.Items {
				title := s.Title
				if title == "" {
					title = s.LastMessage
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					s.ThreadID,
					runewidth.Truncate(oneLine(title), 50, "..."),
					s.MessageCount,
					s.UpdatedAt.Local().Format("2006-01-02 15:04"),
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Page %d, %d of %d sessions\n", result.Page, len(result.Items), result.Total)
			return nil
		},
	}

	cmd.Flags().Int64Var(&memberID, "member", 0, "only sessions of this member")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&size, "size", 20, "page size")
	cmd.Flags().BoolVar(&allSites, "all-sites", false, "ignore site_id from the config")

	return cmd
}

func sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <thread>...",
		Short: "Delete conversations from the server and the local index",
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

			var errs []error
			for _, threadID := range args {
				if err := rt.client.DeleteSession(cmd.Context(), threadID); err != nil {
					errs = append(errs, err)
					continue
				}
				if err := threads.Delete(threadID); err != nil {
					rt.log.Warn().Err(err).Str("thread_id", threadID).Msg("failed to forget local thread")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", threadID)
			}
			return errors.Join(errs...)
		},
	}
}

func sessionsLocalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "local",
		Short: "List threads started from this machine",
		Args:  cobra.NoArgs,
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
			list, err := threads.List()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "THREAD\tTITLE\tUPDATED")
			for _, t := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.ThreadID, t.Title, t.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func historyCmd() *cobra.Command {
	var exportPath string

	cmd := &cobra.Command{
		Use:   "history <thread>",
		Short: "Print a stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(false)
			if err != nil {
				return err
			}
			defer rt.closeLog()

			threadID := args[0]
			history, err := rt.client.GetMessages(cmd.Context(), threadID)
			if err != nil {
				return err
			}
			msgs := model.BuildTranscript(history.Messages, history.Citations, model.NewMessageID)

			if exportPath != "" {
				if err := storage.ExportTranscript(config.ExpandPath(exportPath), threadID, msgs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d messages to %s\n", len(msgs), exportPath)
				return nil
			}

			printTranscript(cmd.OutOrStdout(), msgs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&exportPath, "export", "o", "", "write the transcript as JSON to this file")

	return cmd
}

// printTranscript writes msgs as plain text.
func printTranscript(w io.Writer, msgs []model.Message) {
	for i, m := range msgs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		role := "Assistant"
		if m.Role == model.RoleUser {
			role = "You"
		}
		if m.CreatedAt.IsZero() {
			fmt.Fprintf(w, "%s:\n", role)
		} else {
			fmt.Fprintf(w, "[%s] %s:\n", m.CreatedAt.Local().Format("15:04"), role)
		}

		for _, tc := range m.ToolCalls {
			args := strings.TrimSpace(tc.Function.Arguments)
			if args == "" {
				args = "{}"
			}
			fmt.Fprintf(w, "  -> %s %s\n", tc.Function.Name, args)
		}
		if m.Content != "" {
			fmt.Fprintln(w, m.Content)
		}
		for j, s := range m.Sources {
			n := j + 1
			if s.SourceIndex != nil {
				n = *s.SourceIndex
			}
			fmt.Fprintf(w, "  [%d] %s\n", n, s.Title)
		}
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
