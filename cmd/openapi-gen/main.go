// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/memex-dev/memex/internal/catalog"
	"github.com/memex-dev/memex/internal/server"
	memexerr "github.com/memex-dev/memex/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	// Use no-op service stubs so all routes are registered for schema
	// discovery. Handlers are never invoked during spec generation.
	svc, err := server.NewServices(&stubSearch{}, &stubCatalog{}, &stubStatus{})
	if err != nil {
		return nil, memexerr.Wrap(err, memexerr.CodeCLISetupFailure, "building stub services")
	}

	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Services:   svc,
	})
	if err != nil {
		return nil, memexerr.Errorf(memexerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// No-op service stubs for spec generation. Methods are never called.

type stubSearch struct{}

func (s *stubSearch) Search(context.Context, string, int) (*server.SearchResult, error) {
	return nil, nil
}

type stubCatalog struct{}

func (s *stubCatalog) List(context.Context) (*server.CatalogList, error) { return nil, nil }
func (s *stubCatalog) Refresh(context.Context) (*catalog.WarmupReport, error) {
	return nil, nil
}
func (s *stubCatalog) ImagePath(context.Context, string) (string, error) { return "", nil }

type stubStatus struct{}

func (s *stubStatus) Status(context.Context) (*server.StatusReport, error) { return nil, nil }
