package agent

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Invocation describes one request/response turn of the external tool.
// Every turn is a new process; continuity across turns is achieved purely
// by passing ContinuityID back as a resume argument.
type Invocation struct {
	// AgentID is the slot the turn belongs to.
	AgentID string
	// WorkDir is the working directory for the process.
	WorkDir string
	// Prompt is the instruction text for this turn.
	Prompt string
	// ContinuityID resumes a prior conversational context when non-empty.
	ContinuityID string
}

// Endpoint holds alternate backend settings translated into child process
// environment variables.
type Endpoint struct {
	// BaseURL overrides the API base URL (ANTHROPIC_BASE_URL).
	BaseURL string `mapstructure:"base_url"`
	// APIKey overrides the credential (ANTHROPIC_API_KEY).
	APIKey string `mapstructure:"api_key"`
	// Model overrides the model name.
	Model string `mapstructure:"model"`
}

// CommandFactory builds the exec.Cmd for an invocation. Tests override this
// to spawn controllable commands instead of the claude CLI.
type CommandFactory func(inv Invocation) *exec.Cmd

// ClaudeCommandFactory returns the production factory invoking the claude
// CLI in line-delimited stream-json mode.
func ClaudeCommandFactory(endpoint Endpoint) CommandFactory {
	return func(inv Invocation) *exec.Cmd {
		args := []string{
			"--output-format", "stream-json",
			"--print",
			"--verbose",
		}
		if inv.ContinuityID != "" {
			args = append(args, "--resume", inv.ContinuityID)
		}
		if endpoint.Model != "" {
			args = append(args, "--model", endpoint.Model)
		}
		args = append(args, "-p", inv.Prompt)

		cmd := exec.Command("claude", args...)
		cmd.Dir = inv.WorkDir
		cmd.Env = endpointEnv(os.Environ(), endpoint)
		return cmd
	}
}

// endpointEnv appends endpoint override variables to a base environment.
func endpointEnv(base []string, endpoint Endpoint) []string {
	env := base
	if endpoint.BaseURL != "" {
		env = append(env, "ANTHROPIC_BASE_URL="+endpoint.BaseURL)
	}
	if endpoint.APIKey != "" {
		env = append(env, "ANTHROPIC_API_KEY="+endpoint.APIKey)
	}
	if endpoint.Model != "" {
		env = append(env, "ANTHROPIC_MODEL="+endpoint.Model)
	}
	return env
}

// Process wraps a single external tool subprocess for one turn.
type Process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
	stdin  io.WriteCloser

	mu      sync.Mutex
	started bool
}

// newProcess wraps cmd without starting it.
func newProcess(cmd *exec.Cmd) *Process {
	return &Process{cmd: cmd}
}

// Start creates the stdio pipes and launches the subprocess.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("process already started")
	}

	var err error
	p.stdout, err = p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	p.stderr, err = p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("create stderr pipe: %w", err)
	}
	p.stdin, err = p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}

	p.started = true
	return nil
}

// WriteInput writes text to the process's stdin. Callers treat failures as
// a boolean condition, so errors are returned rather than logged here.
func (p *Process) WriteInput(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.stdin == nil {
		return errors.New("process not started")
	}
	_, err := io.WriteString(p.stdin, text)
	return err
}

// Terminate sends SIGTERM without waiting for exit. Exit is observed later
// by whoever called Wait.
func (p *Process) Terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.cmd.Process == nil {
		return
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// SIGTERM failure means the process already exited or never
		// started; force-kill as best effort.
		_ = p.cmd.Process.Kill()
	}
}

// Kill force-kills the process after the given grace period if it has not
// exited. A zero grace kills immediately.
func (p *Process) Kill(grace time.Duration) {
	p.Terminate()
	if grace <= 0 {
		p.mu.Lock()
		if p.started && p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		p.mu.Unlock()
		return
	}

	go func() {
		time.Sleep(grace)
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.started && p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
	}()
}

// Wait blocks until the subprocess exits and returns its exit code and the
// terminating signal name, if any. Stream readers must have drained the
// pipes before Wait returns meaningfully; the Manager sequences this.
func (p *Process) Wait() (exitCode int, signal string) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, ""
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return -1, status.Signal().String()
		}
		return exitErr.ExitCode(), ""
	}
	return -1, ""
}

// PID returns the process ID, or 0 if not started.
func (p *Process) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started && p.cmd.Process != nil {
		return p.cmd.Process.Pid
	}
	return 0
}
