// pkg/config/config.go - configuration settings for managedwinget.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const ConfigPath = `C:\ProgramData\ManagedWinGet\Config.yaml`

// Configuration holds the configurable options for managedwinget in YAML
// format. All filesystem roots are explicit so nothing depends on ambient
// environment variables at the point of use.
type Configuration struct {
	// Filesystem roots.
	TempRoot string `yaml:"TempRoot"` // scratch staging location
	DataRoot string `yaml:"DataRoot"` // persistent install destination
	LogRoot  string `yaml:"LogRoot"`  // log sink location

	// winget invocation.
	Source         string `yaml:"Source"`         // package source passed to winget
	MinToolVersion string `yaml:"MinToolVersion"` // lowest known-good App Installer build

	// Bootstrap artifact URLs. BundleURL is a versionless redirect.
	BundleURL        string `yaml:"BundleURL"`
	SevenZipRURL     string `yaml:"SevenZipRURL"`
	SevenZipExtraURL string `yaml:"SevenZipExtraURL"`
	VCRedistURL      string `yaml:"VCRedistURL"`

	// Windows Installer mutual-exclusion wait.
	MutexPollSeconds    int `yaml:"MutexPollSeconds"`
	MutexTimeoutMinutes int `yaml:"MutexTimeoutMinutes"` // 0 = wait forever

	// Prerequisite install retry.
	PrereqRetryDelaySeconds int `yaml:"PrereqRetryDelaySeconds"`

	// StrictExitCode makes a non-zero winget exit code fail this process.
	// Default false: exit 0 means "the operation ran", matching the original
	// contract where winget's own exit code is logged but not translated.
	StrictExitCode bool `yaml:"StrictExitCode"`

	Debug   bool   `yaml:"Debug"`
	Verbose bool   `yaml:"Verbose"`
	LogName string `yaml:"LogName"`
}

// Default returns a Configuration populated with the built-in defaults.
func Default() *Configuration {
	tempRoot := os.Getenv("TEMP")
	if tempRoot == "" {
		tempRoot = `C:\Windows\Temp`
	}
	dataRoot := `C:\ProgramData\ManagedWinGet`

	return &Configuration{
		TempRoot:                tempRoot,
		DataRoot:                dataRoot,
		LogRoot:                 filepath.Join(dataRoot, "logs"),
		Source:                  "winget",
		MinToolVersion:          "1.21.2771.0",
		BundleURL:               "https://aka.ms/getwinget",
		SevenZipRURL:            "https://www.7-zip.org/a/7zr.exe",
		SevenZipExtraURL:        "https://www.7-zip.org/a/7z2408-extra.7z",
		VCRedistURL:             "https://aka.ms/vs/17/release/vc_redist.x64.exe",
		MutexPollSeconds:        5,
		MutexTimeoutMinutes:     0,
		PrereqRetryDelaySeconds: 60,
		StrictExitCode:          false,
		LogName:                 "managedwinget.log",
	}
}

// LoadConfig loads the configuration from the YAML file, falling back to
// defaults when the file does not exist. Values absent from the file keep
// their defaults.
func LoadConfig() (*Configuration, error) {
	cfg := Default()

	data, err := os.ReadFile(ConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read configuration file %s: %w", ConfigPath, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", ConfigPath, err)
	}
	return cfg, nil
}

// ToolInstallDir returns the persistent destination the bootstrapped winget
// binary is unpacked into.
func (c *Configuration) ToolInstallDir() string {
	return filepath.Join(c.DataRoot, "winget")
}

// ToolInstallPath returns the expected path of a previously bootstrapped
// winget binary.
func (c *Configuration) ToolInstallPath() string {
	return filepath.Join(c.ToolInstallDir(), "winget.exe")
}
