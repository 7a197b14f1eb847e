// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/memex-dev/memex/internal/config"
	"github.com/memex-dev/memex/internal/provider"
	"github.com/memex-dev/memex/internal/secrets"
)

// doctorHTTPClient is the HTTP client used for the provider endpoint probe.
// Exposed as a variable so tests can replace it.
var doctorHTTPClient = &http.Client{Timeout: 10 * time.Second}

var doctorNameStyle = lipgloss.NewStyle().Bold(true)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check binary health, configuration, the provider endpoint, source directories, the embedding cache, and disk space.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", "127.0.0.1:8175", "server address to check")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")

	// A broken config must not stop the other checks; it becomes the
	// Config line's result instead.
	cfg, cfgErr := loadConfig(cmd)

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Server", func() string { return checkServer(addr) }},
		{"Config", func() string { return checkConfig(cmd, cfgErr) }},
		{"Provider", func() string { return checkProvider(cmd.Context(), cfg) }},
		{"Sources", func() string { return checkSources(cfg) }},
		{"Cache", func() string { return checkCache(cfg) }},
		{"Disk Space", func() string { return checkDiskSpace(cfg) }},
	}

	for _, c := range checks {
		name := doctorNameStyle.Render(c.name + ":")
		if _, err := fmt.Fprintf(w, "%-20s %s\n", name, c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("memex %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkServer(addr string) string {
	client := newServerClient(addr)
	var body struct {
		Status string `json:"status"`
	}
	if err := client.getJSON("/healthz", &body); err != nil {
		if errors.Is(err, ErrServerNotRunning) {
			return fmt.Sprintf("not running at %s (run 'memex serve')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", body.Status, addr)
}

func checkConfig(cmd *cobra.Command, cfgErr error) string {
	if cfgErr != nil {
		return fmt.Sprintf("error: %s", cfgErr)
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return fmt.Sprintf("loaded from %s", path)
	}
	if standard, err := config.DefaultConfigPath(); err == nil {
		if _, statErr := os.Stat(standard); statErr == nil {
			return fmt.Sprintf("loaded from %s", standard)
		}
	}
	return "using defaults (no config file found)"
}

// checkProvider probes the embedding endpoint's models listing: one cheap
// request that proves reachability and, in api mode, credential validity.
func checkProvider(ctx context.Context, cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config not loaded)"
	}

	baseURL := cfg.Provider.BaseURL
	if baseURL == "" {
		if cfg.Provider.Mode == string(provider.ModeLocal) {
			baseURL = provider.DefaultLocalBaseURL
		} else {
			baseURL = provider.DefaultAPIBaseURL
		}
	}

	key, err := secrets.ResolveKeyringURI(secretStoreFactory(), cfg.Provider.APIKey)
	if err != nil {
		return fmt.Sprintf("cannot resolve API key: %s", err)
	}
	if cfg.Provider.Mode != string(provider.ModeLocal) && key == "" {
		return fmt.Sprintf("no API key configured (run 'memex init' or set provider.api_key); endpoint %s", baseURL)
	}

	if err := provider.ValidateKey(ctx, doctorHTTPClient, baseURL, key); err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s reachable (model %s)", baseURL, cfg.Provider.Model)
}

func checkSources(cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config not loaded)"
	}
	if len(cfg.Sources) == 0 {
		return "none configured (add 'sources:' to memex.yaml)"
	}

	names := make([]string, 0, len(cfg.Sources))
	for name := range cfg.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var missing []string
	for _, name := range names {
		if info, err := os.Stat(cfg.Sources[name].Dir); err != nil || !info.IsDir() {
			missing = append(missing, fmt.Sprintf("%s (%s)", name, cfg.Sources[name].Dir))
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("%d configured, missing: %v", len(cfg.Sources), missing)
	}
	return fmt.Sprintf("%d configured, all directories present", len(cfg.Sources))
}

func checkCache(cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config not loaded)"
	}
	if cfg.Cache.Backend == "memory" {
		return "memory (not persisted between runs)"
	}

	info, err := os.Stat(cfg.Cache.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("not created yet at %s (run 'memex index')", cfg.Cache.Path)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("sqlite at %s (%s)", cfg.Cache.Path, formatBytes(uint64(info.Size())))
}

func checkDiskSpace(cfg *config.Config) string {
	// Measure where the cache lives; fall back to home before first use.
	path := ""
	if cfg != nil && cfg.Cache.Path != "" {
		path = filepath.Dir(cfg.Cache.Path)
	}
	if path == "" {
		path, _ = os.UserHomeDir()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
