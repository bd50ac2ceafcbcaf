package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"wikichat/api"
	"wikichat/config"
	"wikichat/model"
)

const Version = "v0.1.0"

var configPath string

// runtime is what every command needs once the config is loaded.
type runtime struct {
	cfg      *config.Config
	client   *api.Client
	log      zerolog.Logger
	closeLog func()
}

// setup loads the configuration and builds the API client. Interactive
// sessions log to the data directory because the TUI owns the terminal;
// everything else logs to stderr.
func setup(logToFile bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stderr
	closeLog := func() {}
	if logToFile {
		f, err := config.OpenLogFile(cfg.DataDir())
		if err != nil {
			return nil, err
		}
		out = f
		closeLog = func() { _ = f.Close() }
	}
	log := config.NewLogger(cfg, out)

	if unknown := cfg.Keys.UnknownActions(); len(unknown) > 0 {
		log.Warn().Strs("actions", unknown).Msg("ignoring unknown key bindings")
	}

	opts := []api.Option{}
	if cfg.AdminToken != "" {
		opts = append(opts, api.WithAdminToken(cfg.AdminToken))
	}
	client, err := api.NewClient(cfg.APIURL, opts...)
	if err != nil {
		closeLog()
		return nil, err
	}

	return &runtime{cfg: cfg, client: client, log: log, closeLog: closeLog}, nil
}

// welcomeSeed is the transcript every new conversation starts with.
func welcomeSeed(cfg *config.Config) []model.Message {
	if cfg.WelcomeMessage == "" {
		return nil
	}
	return []model.Message{{ID: "welcome", Role: model.RoleAssistant, Content: cfg.WelcomeMessage}}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "wikichat",
		Short: "Chat with a wiki knowledge base from the terminal",
		Long: `wikichat talks to a wiki assistant backend: an interactive chat with
streamed answers, tool calls and citations, plus commands to inspect stored
conversations and reorder the collection tree.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/wikichat/config.toml)")

	chatCommand := chatCmd()
	rootCmd.RunE = chatCommand.RunE
	rootCmd.Flags().AddFlagSet(chatCommand.Flags())

	rootCmd.AddCommand(
		chatCommand,
		askCmd(),
		sessionsCmd(),
		historyCmd(),
		treeCmd(),
		keysCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
