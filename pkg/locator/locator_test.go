package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/windowsadmins/managedwinget/pkg/config"
)

func testConfig(t *testing.T) *config.Configuration {
	t.Helper()
	cfg := config.Default()
	cfg.TempRoot = t.TempDir()
	cfg.DataRoot = t.TempDir()
	return cfg
}

// writeAppInstaller lays out a fake WindowsApps package directory carrying a
// winget.exe.
func writeAppInstaller(t *testing.T, appsDir, version string) string {
	t.Helper()
	dir := filepath.Join(appsDir, "Microsoft.DesktopAppInstaller_"+version+"_x64__8wekyb3d8bbwe")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "winget.exe")
	if err := os.WriteFile(path, []byte("stub"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestLocator(cfg *config.Configuration, appsDir string, bootstrapCalls *int, bootstrapResult func() (string, error)) *Locator {
	return &Locator{
		cfg:          cfg,
		appsDir:      appsDir,
		probeVersion: func(path string) (string, error) { return "", nil },
		runBootstrap: func() (string, error) {
			*bootstrapCalls++
			return bootstrapResult()
		},
	}
}

func TestLocatePrefersHighestSystemCopy(t *testing.T) {
	cfg := testConfig(t)
	appsDir := t.TempDir()
	writeAppInstaller(t, appsDir, "1.21.2771.0")
	want := writeAppInstaller(t, appsDir, "1.24.25200.0")

	var bootstraps int
	l := newTestLocator(cfg, appsDir, &bootstraps, func() (string, error) { return "", nil })

	tool, err := l.Locate()
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if tool.Path != want {
		t.Errorf("path = %q, want %q", tool.Path, want)
	}
	if tool.Version != "1.24.25200.0" {
		t.Errorf("version = %q, want 1.24.25200.0", tool.Version)
	}
	if bootstraps != 0 {
		t.Errorf("bootstrap invoked %d times with a valid system copy present", bootstraps)
	}
}

func TestLocateFiltersBelowMinimumVersion(t *testing.T) {
	cfg := testConfig(t)
	appsDir := t.TempDir()
	writeAppInstaller(t, appsDir, "1.16.10261.0") // below the default minimum

	var bootstraps int
	installed := cfg.ToolInstallPath()
	l := newTestLocator(cfg, appsDir, &bootstraps, func() (string, error) {
		if err := os.MkdirAll(filepath.Dir(installed), 0755); err != nil {
			return "", err
		}
		if err := os.WriteFile(installed, []byte("stub"), 0755); err != nil {
			return "", err
		}
		return installed, nil
	})

	tool, err := l.Locate()
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if tool.Path != installed {
		t.Errorf("path = %q, want bootstrapped copy %q", tool.Path, installed)
	}
	if bootstraps != 1 {
		t.Errorf("bootstrap invoked %d times, want 1", bootstraps)
	}
}

func TestLocateFallsBackToBootstrappedCopy(t *testing.T) {
	cfg := testConfig(t)
	installed := cfg.ToolInstallPath()
	if err := os.MkdirAll(filepath.Dir(installed), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(installed, []byte("stub"), 0755); err != nil {
		t.Fatal(err)
	}

	var bootstraps int
	l := newTestLocator(cfg, t.TempDir(), &bootstraps, func() (string, error) { return "", nil })

	tool, err := l.Locate()
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if tool.Path != installed {
		t.Errorf("path = %q, want %q", tool.Path, installed)
	}
	if bootstraps != 0 {
		t.Errorf("bootstrap invoked %d times with a prior copy present", bootstraps)
	}
}

func TestLocateIsIdempotentAfterBootstrap(t *testing.T) {
	cfg := testConfig(t)
	installed := cfg.ToolInstallPath()

	var bootstraps int
	l := newTestLocator(cfg, t.TempDir(), &bootstraps, func() (string, error) {
		if err := os.MkdirAll(filepath.Dir(installed), 0755); err != nil {
			return "", err
		}
		if err := os.WriteFile(installed, []byte("stub"), 0755); err != nil {
			return "", err
		}
		return installed, nil
	})

	first, err := l.Locate()
	if err != nil {
		t.Fatalf("first Locate failed: %v", err)
	}
	second, err := l.Locate()
	if err != nil {
		t.Fatalf("second Locate failed: %v", err)
	}

	if first.Path != second.Path {
		t.Errorf("paths differ across calls: %q vs %q", first.Path, second.Path)
	}
	if bootstraps != 1 {
		t.Errorf("bootstrap invoked %d times, want exactly 1", bootstraps)
	}
}

func TestLocateBootstrapFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)

	var bootstraps int
	l := newTestLocator(cfg, t.TempDir(), &bootstraps, func() (string, error) {
		return "", os.ErrNotExist
	})

	if _, err := l.Locate(); err == nil {
		t.Fatal("expected error when bootstrap fails and no copy exists")
	}
}

func TestPackageVersion(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{"Microsoft.DesktopAppInstaller_1.24.25200.0_x64__8wekyb3d8bbwe", "1.24.25200.0"},
		{"Microsoft.DesktopAppInstaller", ""},
	}
	for _, tt := range tests {
		if got := packageVersion(tt.dir); got != tt.want {
			t.Errorf("packageVersion(%q) = %q, want %q", tt.dir, got, tt.want)
		}
	}
}
