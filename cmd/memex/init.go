// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/memex-dev/memex/internal/config"
	"github.com/memex-dev/memex/internal/provider"
	"github.com/memex-dev/memex/internal/secrets"
	memexerr "github.com/memex-dev/memex/pkg/errors"
)

// initHTTPClient is the HTTP client used for provider validation.
// Exposed as a variable so tests can replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepMode        initWizardStep = iota // select provider mode
	stepModel                             // select embedding model preset
	stepAPIKey                            // enter API key (api mode only)
	stepValidateKey                       // validating endpoint/key (spinner)
	stepSourceDir                         // enter meme directory
	stepValidateDir                       // checking the directory (spinner)
	stepDone                              // wizard complete
	stepError                             // terminal error
)

// initResult holds the collected wizard configuration.
type initResult struct {
	Mode      provider.Mode
	Model     string
	APIKey    string
	SourceDir string // empty when the sources step was skipped
}

// --- bubbletea messages ---

type (
	validationSuccessMsg struct{ step initWizardStep }
	validationErrorMsg   struct {
		step initWizardStep
		err  error
	}
)
type dirValidatedMsg struct{ dir string }
type configWrittenMsg struct{ path string }

// --- lipgloss styles ---

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

var supportedModes = []provider.Mode{
	provider.ModeAPI,
	provider.ModeLocal,
}

func modeDescription(m provider.Mode) string {
	if m == provider.ModeLocal {
		return "local (OpenAI-compatible server on localhost, no key)"
	}
	return "api (hosted endpoint, needs an API key)"
}

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step           initWizardStep
	modeIdx        int
	modelIdx       int
	apiKeyInput    textinput.Model
	dirInput       textinput.Model
	spinner        spinner.Model
	result         initResult
	validationErr  string
	configPath     string
	secretStore    secrets.Store
	errFinal       error
	skipSources    bool
	forceOverwrite bool
}

func newInitModel(store secrets.Store) initModel {
	apiKey := textinput.New()
	apiKey.Placeholder = "paste API key here"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	dir := textinput.New()
	dir.Placeholder = "~/memes"

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:        stepMode,
		apiKeyInput: apiKey,
		dirInput:    dir,
		spinner:     sp,
		secretStore: store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		return m.handleValidationSuccess(msg)

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		switch msg.step {
		case stepValidateKey:
			if m.result.Mode == provider.ModeLocal {
				// Nothing to retype in local mode; let the user pick
				// again or quit.
				m.step = stepMode
			} else {
				m.step = stepAPIKey
				m.apiKeyInput.Focus()
			}
		case stepValidateDir:
			m.step = stepSourceDir
			m.dirInput.Focus()
		}
		return m, nil

	case dirValidatedMsg:
		m.result.SourceDir = msg.dir
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	return m.updateInputs(msg)
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepMode:
		return m.handleModeKey(msg)
	case stepModel:
		return m.handleModelKey(msg)
	case stepAPIKey:
		return m.handleAPIKeyInput(msg)
	case stepSourceDir:
		return m.handleSourceDirInput(msg)
	}
	return m, nil
}

func (m initModel) handleModeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.modeIdx > 0 {
			m.modeIdx--
		}
	case "down", "j":
		if m.modeIdx < len(supportedModes)-1 {
			m.modeIdx++
		}
	case "enter":
		m.result.Mode = supportedModes[m.modeIdx]
		m.step = stepModel
		m.validationErr = ""
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleModelKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	names := provider.PresetNames()
	switch msg.String() {
	case "up", "k":
		if m.modelIdx > 0 {
			m.modelIdx--
		}
	case "down", "j":
		if m.modelIdx < len(names)-1 {
			m.modelIdx++
		}
	case "enter":
		m.result.Model = names[m.modelIdx]
		m.validationErr = ""
		if m.result.Mode == provider.ModeLocal {
			// No credential to collect; probe the local endpoint directly.
			m.step = stepValidateKey
			return m, tea.Batch(
				m.spinner.Tick,
				validateProviderCmd(m.result.Mode, ""),
			)
		}
		m.step = stepAPIKey
		m.apiKeyInput.SetValue("")
		m.apiKeyInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleAPIKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.apiKeyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.APIKey = key
		m.validationErr = ""
		m.step = stepValidateKey
		return m, tea.Batch(
			m.spinner.Tick,
			validateProviderCmd(m.result.Mode, key),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) handleSourceDirInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		dir := strings.TrimSpace(m.dirInput.Value())
		if dir == "" {
			// Empty input skips the sources step; the config gets a
			// commented example instead.
			m.result.SourceDir = ""
			return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
		}
		m.validationErr = ""
		m.step = stepValidateDir
		return m, tea.Batch(
			m.spinner.Tick,
			validateSourceDirCmd(dir),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.dirInput, cmd = m.dirInput.Update(msg)
	return m, cmd
}

func (m initModel) handleValidationSuccess(msg validationSuccessMsg) (tea.Model, tea.Cmd) {
	switch msg.step {
	case stepValidateKey:
		if m.skipSources {
			m.result.SourceDir = ""
			return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
		}
		m.step = stepSourceDir
		m.dirInput.SetValue("")
		m.dirInput.Focus()
		return m, textinput.Blink
	}
	return m, nil
}

func (m initModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepAPIKey:
		var cmd tea.Cmd
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
		return m, cmd
	case stepSourceDir:
		var cmd tea.Cmd
		m.dirInput, cmd = m.dirInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Memex Setup Wizard  ") + "\n\n")

	switch m.step {
	case stepMode:
		b.WriteString(promptStyle.Render("Step 1/3: Where should embeddings come from?") + "\n\n")
		for i, mode := range supportedModes {
			if i == m.modeIdx {
				b.WriteString(selectedStyle.Render("  > "+modeDescription(mode)) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+modeDescription(mode)) + "\n")
			}
		}
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepModel:
		b.WriteString(promptStyle.Render("Step 2/3: Pick an embedding model") + "\n\n")
		for i, name := range provider.PresetNames() {
			line := name
			if p, ok := provider.LookupPreset(name); ok {
				line = fmt.Sprintf("%s (%d dims)", name, p.Dimensions)
			}
			if i == m.modelIdx {
				b.WriteString(selectedStyle.Render("  > "+line) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+line) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		b.WriteString(promptStyle.Render("Step 2/3: API key for the embedding endpoint") + "\n\n")
		b.WriteString(m.apiKeyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Checking the embedding endpoint…\n")

	case stepSourceDir:
		b.WriteString(promptStyle.Render("Step 3/3: Where do your memes live?") + "\n\n")
		b.WriteString(m.dirInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  enter on empty input to skip  ctrl+c to quit"))

	case stepValidateDir:
		b.WriteString(m.spinner.View() + " Checking the directory…\n")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("memex index") + " to embed your images.\n")
		b.WriteString("Run " + promptStyle.Render("memex serve") + " and open the search page.\n")
		b.WriteString("Run " + promptStyle.Render("memex doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

// --- tea.Cmd factories ---

func defaultBaseURLForMode(mode provider.Mode) string {
	if mode == provider.ModeLocal {
		return provider.DefaultLocalBaseURL
	}
	return provider.DefaultAPIBaseURL
}

func validateProviderCmd(mode provider.Mode, key string) tea.Cmd {
	return func() tea.Msg {
		baseURL := defaultBaseURLForMode(mode)
		if err := provider.ValidateKey(context.Background(), initHTTPClient, baseURL, key); err != nil {
			return validationErrorMsg{step: stepValidateKey, err: err}
		}
		return validationSuccessMsg{step: stepValidateKey}
	}
}

func validateSourceDirCmd(dir string) tea.Cmd {
	return func() tea.Msg {
		expanded, err := expandUserDir(dir)
		if err != nil {
			return validationErrorMsg{step: stepValidateDir, err: err}
		}
		info, err := os.Stat(expanded)
		if err != nil || !info.IsDir() {
			return validationErrorMsg{step: stepValidateDir,
				err: fmt.Errorf("not a directory: %s", expanded)}
		}
		return dirValidatedMsg{dir: expanded}
	}
}

// expandUserDir resolves a leading ~ to the home directory.
func expandUserDir(dir string) (string, error) {
	if dir != "~" && !strings.HasPrefix(dir, "~/") {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	if dir == "~" {
		return home, nil
	}
	return filepath.Join(home, dir[2:]), nil
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// --- Config generation (exported for tests) ---

// GenerateConfigYAML produces a minimal memex.yaml from the wizard result.
// In api mode the key is referenced via a keyring:// URI; the actual secret
// is stored separately by storeSecretAndWriteConfig.
func GenerateConfigYAML(result initResult) string {
	var sb strings.Builder
	sb.WriteString("# Memex configuration — generated by memex init\n\n")

	sb.WriteString("server:\n")
	sb.WriteString("  host: 127.0.0.1\n")
	sb.WriteString("  port: 8175\n\n")

	sb.WriteString("provider:\n")
	sb.WriteString(fmt.Sprintf("  mode: %s\n", result.Mode))
	sb.WriteString(fmt.Sprintf("  model: %s\n", result.Model))
	if result.Mode != provider.ModeLocal {
		sb.WriteString(fmt.Sprintf("  api_key: \"keyring://%s/%s\"\n",
			secrets.DefaultService, secrets.APIKeyName))
	}
	sb.WriteString("\n")

	sb.WriteString("cache:\n")
	sb.WriteString("  backend: sqlite\n\n")

	sb.WriteString("warmup:\n")
	sb.WriteString("  concurrency: 4\n\n")

	if result.SourceDir != "" {
		sb.WriteString("sources:\n")
		sb.WriteString("  memes:\n")
		sb.WriteString(fmt.Sprintf("    dir: %q\n", result.SourceDir))
		sb.WriteString("    kind: meme\n")
		sb.WriteString("    recursive: true\n\n")
	} else {
		sb.WriteString("# sources:\n")
		sb.WriteString("#   memes:\n")
		sb.WriteString("#     dir: \"~/memes\"\n")
		sb.WriteString("#     kind: meme\n")
		sb.WriteString("#     recursive: true\n\n")
	}

	sb.WriteString("logging:\n")
	sb.WriteString("  level: info\n")
	sb.WriteString("  format: text\n")

	return sb.String()
}

// storeSecretAndWriteConfig saves the API key to the OS keyring (api mode)
// and writes the config YAML to the default config path.
//
// When forceOverwrite is false and the config file already exists, an error
// is returned asking the user to pass --force. When forceOverwrite is true
// the entire config is overwritten (full re-init).
func storeSecretAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	// Store the API key first. If the config write fails below, an
	// orphaned keyring entry is harmless and gets overwritten on re-run.
	if result.Mode != provider.ModeLocal && result.APIKey != "" {
		if err := store.Store(secrets.DefaultService, secrets.APIKeyName, result.APIKey); err != nil {
			return "", memexerr.Wrap(err, memexerr.CodeSecretStoreFailure, "storing API key")
		}
	}

	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}

	// Check for existing config unless --force is set.
	if !forceOverwrite {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", memexerr.Errorf(memexerr.CodeCLIInputInvalid,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", memexerr.Errorf(memexerr.CodeConfigLoadReadFailure, "creating config directory %s: %w", dir, err)
	}

	yaml := GenerateConfigYAML(result)
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		return "", memexerr.Errorf(memexerr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}

	return cfgPath, nil
}

// configPathForWrite returns the default config path. Exported as a
// variable so tests can override it.
var configPathForWrite = func() (string, error) {
	return config.DefaultConfigPath()
}

// --- Cobra command ---

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard for memex",
		Long: `Run an interactive TUI wizard that walks you through:
  1. Choosing where embeddings come from (hosted API or a local server)
  2. Picking an embedding model
  3. Pointing memex at your meme directory

In api mode the key is stored securely in the OS keyring and referenced
via a keyring:// URI in the config file. No secrets are written in plain
text.

After completion, run:
  memex index    — embed your images
  memex serve    — start the search server
  memex doctor   — verify your setup`,
		RunE: runInit,
	}

	cmd.Flags().Bool("skip-sources", false, "Skip the meme directory step")
	cmd.Flags().Bool("force", false, "Overwrite existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	// Check if stdin is a terminal; refuse to run interactively otherwise.
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"memex init requires an interactive terminal.\n"+
				"To configure memex non-interactively, edit ~/.config/memex/memex.yaml directly.")
		return memexerr.New(memexerr.CodeCLISetupFailure, "memex init: not an interactive terminal")
	}

	skipSources, _ := cmd.Flags().GetBool("skip-sources")
	forceOverwrite, _ := cmd.Flags().GetBool("force")

	m := newInitModel(secretStoreFactory())
	m.skipSources = skipSources
	m.forceOverwrite = forceOverwrite

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return memexerr.Errorf(memexerr.CodeCLISetupFailure, "init wizard error: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return memexerr.New(memexerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}

	if fm.errFinal != nil {
		return memexerr.Errorf(memexerr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}

	// If the user quit early (not done), that's fine — just return.
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
