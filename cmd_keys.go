package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wikichat/config"
)

func keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List chat key bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ACTION\tKEY")
			for _, action := range config.Actions() {
				fmt.Fprintf(w, "%s\t%s\n", action, cfg.Keys.DisplayActionKey(action))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			for _, action := range cfg.Keys.UnknownActions() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: [keys] %s is not an action\n", action)
			}
			return nil
		},
	}
}
