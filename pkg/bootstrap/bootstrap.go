// pkg/bootstrap/bootstrap.go - provisioning of the winget binary from the
// signed App Installer distribution bundle.
//
// The msixbundle cannot be unpacked reliably with built-in tooling in an
// unattended, pre-logon context, so extraction is bootstrapped in two stages:
// the minimal 7zr.exe fetches and unpacks the 7-Zip extra pack, and the full
// 7za.exe from that pack unpacks the bundle and the inner architecture image.

package bootstrap

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/windowsadmins/managedwinget/pkg/config"
	"github.com/windowsadmins/managedwinget/pkg/download"
	"github.com/windowsadmins/managedwinget/pkg/logging"
)

const (
	bundleFileName = "DesktopAppInstaller.msixbundle"
	stagingDirName = "managedwinget-bootstrap"
)

// Bootstrapper downloads and unpacks the winget distribution into the
// persistent install directory.
type Bootstrapper struct {
	cfg  *config.Configuration
	arch string

	// downloadFile and run are abstracted for testing.
	downloadFile func(url, dest string) error
	run          func(command string, arguments ...string) (string, int, error)
}

// New returns a Bootstrapper for the given configuration.
func New(cfg *config.Configuration) *Bootstrapper {
	return &Bootstrapper{
		cfg:          cfg,
		arch:         systemArchitecture(),
		downloadFile: download.DownloadFile,
		run:          runCMD,
	}
}

// Bootstrap stages the bundle and extraction tools under the temp root,
// unpacks the architecture-specific winget image into the data root, and
// returns the path of the resulting executable. Every stage failure is
// logged before returning.
func (b *Bootstrapper) Bootstrap() (string, error) {
	staging := filepath.Join(b.cfg.TempRoot, stagingDirName)
	if err := os.MkdirAll(staging, 0755); err != nil {
		logging.Error("Unable to create staging directory", "dir", staging, "error", err)
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	bundlePath := filepath.Join(staging, bundleFileName)
	if err := b.downloadFile(b.cfg.BundleURL, bundlePath); err != nil {
		logging.Error("Bundle download failed", "url", b.cfg.BundleURL, "error", err)
		return "", fmt.Errorf("bundle download failed: %w", err)
	}

	sevenZa, err := b.bootstrapExtractor(staging)
	if err != nil {
		return "", err
	}

	bundleDir := filepath.Join(staging, "bundle")
	if err := b.extract(sevenZa, bundlePath, bundleDir); err != nil {
		logging.Error("Bundle extraction failed", "bundle", bundlePath, "error", err)
		return "", fmt.Errorf("bundle extraction failed: %w", err)
	}

	image, err := b.findArchImage(bundleDir)
	if err != nil {
		logging.Error("No package image for this architecture in bundle", "arch", b.arch, "error", err)
		return "", err
	}

	dest := b.cfg.ToolInstallDir()
	if err := b.extract(sevenZa, image, dest); err != nil {
		logging.Error("Package image extraction failed", "image", image, "error", err)
		return "", fmt.Errorf("package image extraction failed: %w", err)
	}

	toolPath := b.cfg.ToolInstallPath()
	if _, err := os.Stat(toolPath); err != nil {
		logging.Error("Bootstrap completed but winget.exe is missing", "path", toolPath)
		return "", fmt.Errorf("bootstrap did not produce %s: %w", toolPath, err)
	}

	if err := os.RemoveAll(staging); err != nil {
		logging.Warn("Unable to remove staging directory", "dir", staging, "error", err)
	}

	logging.Info("Bootstrap completed", "path", toolPath)
	return toolPath, nil
}

// bootstrapExtractor downloads the minimal 7zr.exe plus the 7-Zip extra pack
// and self-extracts the pack, returning the path of the full 7za.exe.
func (b *Bootstrapper) bootstrapExtractor(staging string) (string, error) {
	sevenZr := filepath.Join(staging, "7zr.exe")
	if err := b.downloadFile(b.cfg.SevenZipRURL, sevenZr); err != nil {
		logging.Error("7zr download failed", "url", b.cfg.SevenZipRURL, "error", err)
		return "", fmt.Errorf("7zr download failed: %w", err)
	}

	extraPack := filepath.Join(staging, "7z-extra.7z")
	if err := b.downloadFile(b.cfg.SevenZipExtraURL, extraPack); err != nil {
		logging.Error("7-Zip extra pack download failed", "url", b.cfg.SevenZipExtraURL, "error", err)
		return "", fmt.Errorf("7-Zip extra pack download failed: %w", err)
	}

	toolsDir := filepath.Join(staging, "7z")
	if err := b.extract(sevenZr, extraPack, toolsDir); err != nil {
		logging.Error("7-Zip extra pack extraction failed", "pack", extraPack, "error", err)
		return "", fmt.Errorf("7-Zip extra pack extraction failed: %w", err)
	}

	// The extra pack carries an x64 subdirectory; the root copy is x86.
	candidates := []string{
		filepath.Join(toolsDir, b.arch, "7za.exe"),
		filepath.Join(toolsDir, "7za.exe"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	logging.Error("7za.exe not found after extra pack extraction", "dir", toolsDir)
	return "", fmt.Errorf("7za.exe not found under %s", toolsDir)
}

// extract unpacks archive into dest with the given 7-Zip executable.
func (b *Bootstrapper) extract(tool, archive, dest string) error {
	output, exitCode, err := b.run(tool, "x", "-y", "-o"+dest, archive)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("%s exited with code %d: %s", filepath.Base(tool), exitCode, strings.TrimSpace(output))
	}
	return nil
}

// findArchImage locates the inner .msix package image matching the system
// architecture inside the extracted bundle.
func (b *Bootstrapper) findArchImage(bundleDir string) (string, error) {
	entries, err := os.ReadDir(bundleDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted bundle: %w", err)
	}

	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if entry.IsDir() || !strings.HasSuffix(name, ".msix") {
			continue
		}
		if strings.Contains(name, b.arch) {
			return filepath.Join(bundleDir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("no .msix image for architecture %s in %s", b.arch, bundleDir)
}

// systemArchitecture returns a unified architecture string.
func systemArchitecture() string {
	switch runtime.GOARCH {
	case "amd64", "x86_64":
		return "x64"
	case "386":
		return "x86"
	default:
		return runtime.GOARCH
	}
}

// runCMD executes a command without a visible window and returns its combined
// output and exit code. The error is non-nil only when the process could not
// be launched.
func runCMD(command string, arguments ...string) (string, int, error) {
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
