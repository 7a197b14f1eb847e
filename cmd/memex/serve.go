// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the memex server",
		Long:  "Load configuration, build the image catalog, and serve the search API and web page until interrupted.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		host, portStr, splitErr := net.SplitHostPort(listen)
		if splitErr != nil {
			return memexerr.Errorf(memexerr.CodeCLIInputInvalid,
				"invalid --listen address %q: %w", listen, splitErr)
		}
		port, atoiErr := strconv.Atoi(portStr)
		if atoiErr != nil {
			return memexerr.Errorf(memexerr.CodeCLIInputInvalid,
				"invalid --listen port %q: %w", portStr, atoiErr)
		}
		cfg.Server.Host = host
		cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wireApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			slog.Warn("closing app", "error", cerr)
		}
	}()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "memex serving on http://%s (records: %d)\n",
		cfg.Server.ListenAddr(), app.Catalog.Len())

	return app.Start(ctx)
}
