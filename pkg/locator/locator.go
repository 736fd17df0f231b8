// pkg/locator/locator.go - resolution of a usable winget executable.
//
// Resolution order, first match wins: a system-registered App Installer copy
// under WindowsApps meeting the minimum version, a previously bootstrapped
// copy under the data root, and finally a fresh bootstrap. Given an unchanged
// filesystem the result is stable across calls; once any valid copy exists a
// bootstrap is never re-triggered.

package locator

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	version "github.com/hashicorp/go-version"
	"github.com/windowsadmins/managedwinget/pkg/bootstrap"
	"github.com/windowsadmins/managedwinget/pkg/config"
	"github.com/windowsadmins/managedwinget/pkg/exeversion"
	"github.com/windowsadmins/managedwinget/pkg/logging"
)

const (
	windowsAppsDir   = `C:\Program Files\WindowsApps`
	appInstallerName = "Microsoft.DesktopAppInstaller"
	toolExeName      = "winget.exe"
)

// Tool is the resolved package-manager executable for this run. It is
// produced once and passed explicitly to every consumer.
type Tool struct {
	Path    string
	Version string // empty when the binary carries no version resource
}

// Locator finds or provisions the winget executable.
type Locator struct {
	cfg *config.Configuration

	// appsDir, probeVersion and runBootstrap are abstracted for testing.
	appsDir      string
	probeVersion func(path string) (string, error)
	runBootstrap func() (string, error)
}

// New returns a Locator for the given configuration.
func New(cfg *config.Configuration) *Locator {
	return &Locator{
		cfg:          cfg,
		appsDir:      windowsAppsDir,
		probeVersion: exeversion.FileVersion,
		runBootstrap: func() (string, error) {
			return bootstrap.New(cfg).Bootstrap()
		},
	}
}

// Locate resolves the winget executable. A returned error means every
// resolution strategy failed, including a bootstrap attempt, and the run
// cannot continue.
func (l *Locator) Locate() (Tool, error) {
	if tool, ok := l.findSystemCopy(); ok {
		logging.Info("Using system-registered winget", "path", tool.Path, "version", tool.Version)
		return tool, nil
	}

	installed := l.cfg.ToolInstallPath()
	if _, err := os.Stat(installed); err == nil {
		v, _ := l.probeVersion(installed)
		logging.Info("Using previously bootstrapped winget", "path", installed, "version", v)
		return Tool{Path: installed, Version: v}, nil
	}

	logging.Info("No usable winget found, bootstrapping")
	path, err := l.runBootstrap()
	if err != nil {
		return Tool{}, fmt.Errorf("winget bootstrap failed: %w", err)
	}
	v, _ := l.probeVersion(path)
	return Tool{Path: path, Version: v}, nil
}

// findSystemCopy walks the WindowsApps directory for App Installer packages
// carrying winget.exe, filters out builds older than the configured minimum,
// and picks the highest-versioned candidate.
func (l *Locator) findSystemCopy() (Tool, bool) {
	minVersion, err := version.NewVersion(l.cfg.MinToolVersion)
	if err != nil {
		logging.Warn("Invalid minimum tool version in configuration", "value", l.cfg.MinToolVersion, "error", err)
		return Tool{}, false
	}

	var (
		best        Tool
		bestVersion *version.Version
	)

	walkErr := filepath.WalkDir(l.appsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// WindowsApps subtrees are ACL-restricted; skip what we cannot read.
			return fs.SkipDir
		}
		if d.IsDir() || !strings.EqualFold(d.Name(), toolExeName) {
			return nil
		}

		pkgDir := filepath.Base(filepath.Dir(path))
		if !strings.HasPrefix(pkgDir, appInstallerName+"_") {
			return nil
		}
		v, err := version.NewVersion(packageVersion(pkgDir))
		if err != nil {
			logging.Debug("Skipping candidate with unparseable version", "dir", pkgDir, "error", err)
			return nil
		}
		if v.LessThan(minVersion) {
			logging.Debug("Skipping candidate below minimum version", "dir", pkgDir, "minimum", minVersion.String())
			return nil
		}
		if bestVersion == nil || bestVersion.LessThan(v) ||
			(bestVersion.Equal(v) && path > best.Path) {
			best = Tool{Path: path, Version: v.String()}
			bestVersion = v
		}
		return nil
	})
	if walkErr != nil {
		logging.Warn("Unable to enumerate WindowsApps", "dir", l.appsDir, "error", walkErr)
		return Tool{}, false
	}
	return best, bestVersion != nil
}

// packageVersion extracts the version segment from an appx package directory
// name such as Microsoft.DesktopAppInstaller_1.22.3482.0_x64__8wekyb3d8bbwe.
func packageVersion(dir string) string {
	parts := strings.Split(dir, "_")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
