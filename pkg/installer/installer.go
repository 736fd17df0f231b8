// pkg/installer/installer.go - invocation of the resolved winget executable
// for a single install or uninstall request.

package installer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/windowsadmins/managedwinget/pkg/locator"
	"github.com/windowsadmins/managedwinget/pkg/logging"
)

// Mode selects the winget verb to run.
type Mode string

const (
	ModeInstall   Mode = "install"
	ModeUninstall Mode = "uninstall"
)

// Request describes one package operation. Exactly one of ID and DisplayName
// should be set; when both are empty no operation is performed.
type Request struct {
	ID          string
	DisplayName string
	Mode        Mode
	ExtraArgs   string
}

// Result captures the outcome of one tool invocation. Ran is false when the
// request named no package and nothing was invoked.
type Result struct {
	ExitCode int
	Output   string
	Ran      bool
}

// Succeeded reports whether the invocation ran and the tool exited zero.
func (r Result) Succeeded() bool {
	return r.Ran && r.ExitCode == 0
}

// runCommand is abstracted for testing.
var runCommand = RunCommand

// Run invokes the tool for the given request against the given package
// source and returns its captured output and exit status unchanged.
// Interpreting the exit code is the caller's responsibility. A non-nil error
// means the tool could not be launched at all.
func Run(tool locator.Tool, req Request, source string) (Result, error) {
	args := buildArgs(req, source)
	if args == nil {
		logging.Warn("No package identifier or display name supplied, nothing to do")
		return Result{}, nil
	}

	logging.Info("Invoking winget", "path", tool.Path, "args", strings.Join(args, " "))
	output, exitCode, err := runCommand(tool.Path, args...)
	if err != nil {
		return Result{}, fmt.Errorf("failed to launch %s: %w", tool.Path, err)
	}

	logging.Info("winget finished", "exitCode", exitCode)
	if output != "" {
		logging.Debug("winget output", "output", strings.TrimSpace(output))
	}
	return Result{ExitCode: exitCode, Output: output, Ran: true}, nil
}

// buildArgs assembles the winget command line for a request, or nil when the
// request names no package.
func buildArgs(req Request, source string) []string {
	var selector []string
	switch {
	case req.ID != "":
		selector = []string{"--id", req.ID}
	case req.DisplayName != "":
		selector = []string{"--name", req.DisplayName}
	default:
		return nil
	}

	switch req.Mode {
	case ModeUninstall:
		// Caller-supplied extra arguments are deliberately not forwarded on
		// uninstall.
		args := []string{"uninstall"}
		args = append(args, selector...)
		return append(args, "--source", source, "--silent")
	default:
		args := []string{"install"}
		args = append(args, selector...)
		args = append(args, "--source", source, "--silent")
		if req.ExtraArgs != "" {
			args = append(args, strings.Fields(req.ExtraArgs)...)
		}
		return append(args, "--accept-package-agreements", "--accept-source-agreements")
	}
}

// Validate smoke-tests the tool: the path must exist and a bare invocation
// must produce output. An installed binary that prints nothing is missing a
// runtime dependency and would fail any real operation.
func Validate(toolPath string) error {
	if _, err := os.Stat(toolPath); err != nil {
		return fmt.Errorf("tool not found at %s: %w", toolPath, err)
	}

	output, exitCode, err := runCommand(toolPath)
	if err != nil {
		return fmt.Errorf("tool smoke test failed to launch: %w", err)
	}
	if strings.TrimSpace(output) == "" {
		return fmt.Errorf("tool at %s produced no output (exit code %d), binary is not functional", toolPath, exitCode)
	}

	logging.Debug("Tool smoke test passed", "path", toolPath, "exitCode", exitCode)
	return nil
}

// RunCommand executes a command without a visible window and returns its
// combined output and exit code. The error is non-nil only when the process
// could not be launched.
func RunCommand(command string, arguments ...string) (string, int, error) {
	cmd := exec.Command(command, arguments...)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out.String(), exitErr.ExitCode(), nil
		}
		return out.String(), -1, fmt.Errorf("command execution failed: %w", err)
	}
	return out.String(), 0, nil
}
