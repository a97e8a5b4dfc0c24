// Package claude wraps the external claude CLI behind a narrow interface:
// one prompt in, a stream of tool events and a final result out. The CLI's
// internals (conversation engine, tool execution, image generation) are an
// opaque external service to this package.
package claude

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// DefaultTimeout bounds a single CLI invocation.
const DefaultTimeout = 3 * time.Minute

// modelAliases maps user-facing model names to CLI model IDs.
var modelAliases = map[string]string{
	"claude-opus":   "opus",
	"claude-sonnet": "sonnet",
	"claude-haiku":  "haiku",
	"opus":          "opus",
	"sonnet":        "sonnet",
	"haiku":         "haiku",
}

// ResolveModel maps a model alias to the CLI model ID. Unknown names pass
// through unchanged so full model IDs keep working.
func ResolveModel(name string) string {
	if id, ok := modelAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return name
}

// Runner invokes the claude CLI as a subprocess.
type Runner struct {
	Bin          string
	Model        string
	SystemPrompt string
	AllowedTools []string
	WorkDir      string
	Timeout      time.Duration

	// ExtraEnv entries (KEY=VALUE) are appended to the subprocess
	// environment, e.g. image backend credentials.
	ExtraEnv []string
}

// NewRunner builds a Runner, resolving the CLI binary and creating the
// working directory. bin may be empty to search PATH (with nvm fallbacks).
func NewRunner(bin, model, systemPrompt string, allowedTools []string, workDir string, timeout time.Duration) (*Runner, error) {
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "gramd-cli")
	}
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	resolved, err := resolveBin(bin)
	if err != nil {
		return nil, err
	}
	return &Runner{
		Bin:          resolved,
		Model:        ResolveModel(model),
		SystemPrompt: systemPrompt,
		AllowedTools: allowedTools,
		WorkDir:      workDir,
		Timeout:      timeout,
	}, nil
}

// resolveBin finds the claude executable: explicit path, then PATH, then
// common nvm install locations.
func resolveBin(bin string) (string, error) {
	if bin != "" {
		return bin, nil
	}
	if p, err := exec.LookPath("claude"); err == nil {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err == nil {
		matches, _ := filepath.Glob(filepath.Join(home, ".nvm", "versions", "node", "*", "bin", "claude"))
		if len(matches) > 0 {
			// Glob returns sorted paths; take the newest node version.
			return matches[len(matches)-1], nil
		}
	}
	return "", fmt.Errorf("claude CLI not found in PATH (set CLAUDE_BIN)")
}

// Run invokes the CLI with the given prompt and streams tool events to
// onEvent while the subprocess is in flight. It blocks until the CLI exits,
// the context is cancelled, or the runner timeout elapses.
func (r *Runner) Run(ctx context.Context, prompt string, onEvent EventFunc) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	r.stageMCPConfig()
	tools := r.effectiveTools()

	args := []string{
		"-p",
		"--model", r.Model,
		"--output-format", "stream-json",
		"--verbose",
	}
	if len(tools) > 0 {
		joined := strings.Join(tools, ",")
		args = append(args,
			"--tools", joined,
			"--allowedTools", joined,
			"--permission-mode", "bypassPermissions",
		)
	}
	if r.SystemPrompt != "" {
		args = append(args, "--system-prompt", r.SystemPrompt)
	}
	args = append(args, prompt)

	cmd := exec.CommandContext(ctx, r.Bin, args...)
	cmd.Dir = r.WorkDir
	cmd.Stdin = nil
	cmd.Env = append(os.Environ(), r.ExtraEnv...)
	// Ask the CLI to shut down cleanly before the hard kill.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting claude CLI: %w", err)
	}

	parser := newStreamParser(onEvent)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		parser.Feed(scanner.Bytes())
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	if ctx.Err() == context.DeadlineExceeded {
		return parser.Result(), fmt.Errorf("claude CLI timed out after %s", r.Timeout)
	}
	if ctx.Err() != nil {
		return parser.Result(), ctx.Err()
	}
	if waitErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = waitErr.Error()
		}
		return nil, fmt.Errorf("claude CLI failed: %s", msg)
	}
	if scanErr != nil {
		return nil, fmt.Errorf("reading claude CLI output: %w", scanErr)
	}
	return parser.Result(), nil
}

// effectiveTools returns the configured allow-list extended with tool
// prefixes for every MCP server staged in the working directory.
func (r *Runner) effectiveTools() []string {
	tools := append([]string(nil), r.AllowedTools...)
	for _, server := range mcpServerNames(filepath.Join(r.WorkDir, ".mcp.json")) {
		tools = append(tools, "mcp__"+server)
	}
	return tools
}
