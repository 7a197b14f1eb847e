// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memex-dev/memex/internal/secrets"
	memexerr "github.com/memex-dev/memex/pkg/errors"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long:  "Store, read, list, and delete secrets kept under the memex service in the operating system keyring.",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretGetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret read from stdin",
		Long: `Read a secret value from standard input and store it in the OS keyring.

  echo "sk-..." | memex secret set api_key
  memex secret set api_key < key.txt`,
		Args: cobra.ExactArgs(1),
		RunE: runSecretSet,
	}
}

func newSecretGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print a secret value",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretGet,
	}
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]

	scanner := bufio.NewScanner(cmd.InOrStdin())
	var value string
	if scanner.Scan() {
		value = strings.TrimSpace(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return memexerr.Errorf(memexerr.CodeCLIInputInvalid, "reading secret value: %w", err)
	}
	if value == "" {
		return memexerr.New(memexerr.CodeCLIInputInvalid, "secret value must not be empty")
	}

	store := secretStoreFactory()
	if err := store.Store(secrets.DefaultService, name, value); err != nil {
		return memexerr.Wrapf(err, memexerr.CodeSecretStoreFailure, "storing secret %q", name)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Stored secret: %s\n", name)
	_, _ = fmt.Fprintf(out, "Reference it in memex.yaml as keyring://%s/%s\n", secrets.DefaultService, name)
	return nil
}

func runSecretGet(cmd *cobra.Command, args []string) error {
	name := args[0]
	store := secretStoreFactory()

	value, err := store.Retrieve(secrets.DefaultService, name)
	if err != nil {
		if memexerr.HasCode(err, memexerr.CodeSecretNotFound) {
			return memexerr.Errorf(memexerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return memexerr.Wrapf(err, memexerr.CodeSecretStoreFailure, "reading secret %q", name)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	store := secretStoreFactory()
	keys, err := store.List(secrets.DefaultService)
	if err != nil {
		return memexerr.Wrap(err, memexerr.CodeSecretStoreFailure, "listing secrets")
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}

	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	store := secretStoreFactory()

	if err := store.Delete(secrets.DefaultService, name); err != nil {
		if memexerr.HasCode(err, memexerr.CodeSecretNotFound) {
			return memexerr.Errorf(memexerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return memexerr.Wrapf(err, memexerr.CodeSecretStoreFailure, "deleting secret %q", name)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
