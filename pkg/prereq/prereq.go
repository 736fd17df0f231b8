// pkg/prereq/prereq.go - ensures the Visual C++ runtime redistributable that
// winget depends on is present before any package operation runs.

package prereq

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/windowsadmins/managedwinget/pkg/blocking"
	"github.com/windowsadmins/managedwinget/pkg/config"
	"github.com/windowsadmins/managedwinget/pkg/download"
	"github.com/windowsadmins/managedwinget/pkg/installer"
	"github.com/windowsadmins/managedwinget/pkg/logging"
	"github.com/windowsadmins/managedwinget/pkg/retry"
	"github.com/windowsadmins/managedwinget/pkg/status"
)

// RuntimeDisplayName is the uninstall-key display name the redistributable
// registers under; matched as a case-insensitive substring so the trailing
// architecture suffix does not matter.
const RuntimeDisplayName = "Microsoft Visual C++ 2015-2022 Redistributable"

// errorInstallAlreadyRunning is the Windows Installer exit code for a
// mutual-exclusion collision with another in-progress installation. It is the
// only installer failure treated as transient.
const errorInstallAlreadyRunning = 1618

const installerFileName = "vc_redist.x64.exe"

// exclusivityWaiter blocks until no other system installer is running.
type exclusivityWaiter interface {
	AwaitExclusivity() error
}

// Installer downloads and silently installs the runtime redistributable when
// the registry shows it absent.
type Installer struct {
	cfg   *config.Configuration
	guard exclusivityWaiter

	// The collaborators below are abstracted for testing.
	find         func(name string) []status.UninstallRecord
	downloadFile func(url, dest string) error
	run          func(command string, arguments ...string) (string, int, error)
	validate     func(toolPath string) error
	retryDelay   time.Duration
}

// New returns an Installer for the given configuration, serializing installer
// launches through guard.
func New(cfg *config.Configuration, guard *blocking.Guard) *Installer {
	return &Installer{
		cfg:          cfg,
		guard:        guard,
		find:         status.FindByDisplayName,
		downloadFile: download.DownloadFile,
		run:          installer.RunCommand,
		validate:     installer.Validate,
		retryDelay:   time.Duration(cfg.PrereqRetryDelaySeconds) * time.Second,
	}
}

// EnsureInstalled checks the registry for the redistributable and, when it is
// absent, downloads and silently installs it. A download or launch failure,
// or an installer collision with another running installation, is retried
// exactly once after a fixed delay; any other non-zero installer exit code is
// fatal. On success the already-resolved tool is smoke-tested to confirm the
// runtime actually made it functional.
func (i *Installer) EnsureInstalled(toolPath string) (installer.Result, error) {
	if records := i.find(RuntimeDisplayName); len(records) > 0 {
		logging.Info("Runtime redistributable already installed",
			"displayName", records[0].DisplayName, "hive", records[0].Hive)
		return installer.Result{}, nil
	}

	logging.Info("Runtime redistributable not found, installing", "url", i.cfg.VCRedistURL)
	installerPath := filepath.Join(i.cfg.TempRoot, installerFileName)

	var result installer.Result
	err := retry.Retry(retry.RetryConfig{
		MaxRetries:      2,
		InitialInterval: i.retryDelay,
		Multiplier:      1.0,
	}, func() error {
		if err := i.guard.AwaitExclusivity(); err != nil {
			return retry.NonRetryable(fmt.Errorf("installer mutual-exclusion wait failed: %w", err))
		}

		if err := i.downloadFile(i.cfg.VCRedistURL, installerPath); err != nil {
			return fmt.Errorf("redistributable download failed: %w", err)
		}

		output, exitCode, err := i.run(installerPath, "/install", "/quiet", "/norestart")
		if err != nil {
			return fmt.Errorf("redistributable installer failed to launch: %w", err)
		}
		result = installer.Result{ExitCode: exitCode, Output: output, Ran: true}

		switch exitCode {
		case 0:
			return nil
		case errorInstallAlreadyRunning:
			return fmt.Errorf("another installation is in progress (exit code %d)", exitCode)
		default:
			return retry.NonRetryable(fmt.Errorf("redistributable installer exited with code %d", exitCode))
		}
	})

	// The staged installer is cleaned up regardless of outcome.
	if removeErr := os.Remove(installerPath); removeErr != nil && !os.IsNotExist(removeErr) {
		logging.Warn("Unable to remove redistributable installer", "path", installerPath, "error", removeErr)
	}

	if err != nil {
		logging.Error("Runtime redistributable installation failed", "error", err)
		return result, err
	}

	logging.Info("Runtime redistributable installed", "exitCode", result.ExitCode)
	if err := i.validate(toolPath); err != nil {
		logging.Error("Tool smoke test failed after runtime installation", "error", err)
		return result, err
	}
	return result, nil
}
