package config

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestDefaultConfiguration(t *testing.T) {
	cfg := Default()

	if cfg.Source != "winget" {
		t.Errorf("Source = %q, want winget", cfg.Source)
	}
	if cfg.DataRoot != `C:\ProgramData\ManagedWinGet` {
		t.Errorf("DataRoot = %q", cfg.DataRoot)
	}
	if cfg.TempRoot == "" {
		t.Error("TempRoot must not be empty")
	}
	if cfg.MutexPollSeconds != 5 {
		t.Errorf("MutexPollSeconds = %d, want 5", cfg.MutexPollSeconds)
	}
	if cfg.MutexTimeoutMinutes != 0 {
		t.Errorf("MutexTimeoutMinutes = %d, want 0 (unbounded)", cfg.MutexTimeoutMinutes)
	}
	if cfg.StrictExitCode {
		t.Error("StrictExitCode must default to false")
	}
	if cfg.MinToolVersion == "" || cfg.BundleURL == "" || cfg.VCRedistURL == "" {
		t.Error("bootstrap URLs and minimum version must have defaults")
	}
}

func TestToolInstallPath(t *testing.T) {
	cfg := Default()
	cfg.DataRoot = `D:\Data`

	if got := cfg.ToolInstallPath(); !strings.HasSuffix(got, `winget\winget.exe`) {
		t.Errorf("ToolInstallPath = %q", got)
	}
	if !strings.HasPrefix(cfg.ToolInstallDir(), `D:\Data`) {
		t.Errorf("ToolInstallDir = %q, want under DataRoot", cfg.ToolInstallDir())
	}
}

func TestYAMLOverridesKeepDefaults(t *testing.T) {
	cfg := Default()
	data := []byte("Source: msstore\nStrictExitCode: true\n")

	if err := yaml.Unmarshal(data, cfg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if cfg.Source != "msstore" {
		t.Errorf("Source = %q, want override msstore", cfg.Source)
	}
	if !cfg.StrictExitCode {
		t.Error("StrictExitCode override not applied")
	}
	if cfg.MutexPollSeconds != 5 {
		t.Errorf("MutexPollSeconds = %d, default must survive partial override", cfg.MutexPollSeconds)
	}
}
