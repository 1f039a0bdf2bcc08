package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/serverlist/internal/app"
	"github.com/MrSnakeDoc/serverlist/internal/command"
	"github.com/MrSnakeDoc/serverlist/internal/config"
	"github.com/MrSnakeDoc/serverlist/internal/logger"
	"github.com/MrSnakeDoc/serverlist/internal/perms"
)

var serversCmd = &cobra.Command{
	Use:     "servers <add|rm|ls> [opts]",
	Aliases: []string{"srv"},
	Short:   "Manage peer server connections",
	Long: `Run one servers subcommand against the configured backend.

The caller defaults to CONSOLE; set SERVERLIST_CALLER to act as another
principal from the permission policy.

With the file backend, do not use this while "serverlist serve" runs on the
same file: the server saves its own list on its next change and drops edits
made here. Send the command to POST /servers instead.

Subcommands:
  add <id> <host> [port] [--rcon-port=port] [--rconpw=secret] [--no-motd-task] [--no-query-task] [# comments]
  rm <id>
  ls [page]`,
	DisableFlagParsing: true,
	RunE:               runServers,
}

// consoleSender prints command replies, one per line.
type consoleSender struct {
	name string
	out  io.Writer
}

func (s consoleSender) Name() string           { return s.name }
func (s consoleSender) SendMessage(msg string) { _, _ = fmt.Fprintln(s.out, msg) }

func runServers(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && (args[0] == "-h" || args[0] == "--help") {
		return cmd.Help()
	}

	cfg := config.Load()
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer func() { _ = loggerClient.Sync() }()

	a, err := app.New(cmd.Context(), cfg, loggerClient)
	if err != nil {
		return err
	}
	defer a.Close()

	caller := os.Getenv("SERVERLIST_CALLER")
	if caller == "" {
		caller = perms.Console
	}
	var s command.Sender = consoleSender{name: caller, out: cmd.OutOrStdout()}

	if !a.Exec(cmd.Context(), s, args) {
		return fmt.Errorf("unknown servers subcommand")
	}
	return nil
}
