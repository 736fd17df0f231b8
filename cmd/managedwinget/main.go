// cmd/managedwinget/main.go

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/managedwinget/pkg/blocking"
	"github.com/windowsadmins/managedwinget/pkg/config"
	"github.com/windowsadmins/managedwinget/pkg/installer"
	"github.com/windowsadmins/managedwinget/pkg/locator"
	"github.com/windowsadmins/managedwinget/pkg/logging"
	"github.com/windowsadmins/managedwinget/pkg/prereq"
	"github.com/windowsadmins/managedwinget/pkg/utils"
	"github.com/windowsadmins/managedwinget/pkg/version"
)

func main() {
	// Display names and extra arguments regularly contain spaces; re-parse
	// the raw command line so they survive intact.
	utils.PatchWindowsArgs()

	appID := pflag.String("id", "", "Package identifier to install or uninstall.")
	appName := pflag.String("name", "", "Package display name to install or uninstall.")
	uninstall := pflag.Bool("uninstall", false, "Uninstall the package instead of installing it.")
	extraArgs := pflag.String("extra-args", "", "Additional arguments passed through to winget on install.")
	logName := pflag.String("log-name", "", "Log file name under the log directory.")
	showConfig := pflag.Bool("show-config", false, "Display the current configuration and exit.")
	versionFlag := pflag.Bool("version", false, "Print the version and exit.")

	var verbosity int
	pflag.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (e.g. -v, -vv)")
	pflag.Parse()

	if *versionFlag {
		version.Print()
		os.Exit(0)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logName != "" {
		cfg.LogName = *logName
	}

	level := logging.LevelInfo
	if verbosity > 0 || cfg.Debug || cfg.Verbose {
		level = logging.LevelDebug
	}
	if err := logging.Init(cfg.LogRoot, cfg.LogName, level, true); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.CloseLogger()

	if *showConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(string(out))
		os.Exit(0)
	}

	mode := installer.ModeInstall
	if *uninstall {
		mode = installer.ModeUninstall
	}
	req := installer.Request{
		ID:          *appID,
		DisplayName: *appName,
		Mode:        mode,
		ExtraArgs:   *extraArgs,
	}

	os.Exit(run(cfg, req))
}

// run drives the full pipeline: resolve the tool, ensure the runtime
// prerequisite, wait for installer exclusivity, then execute the request.
// It returns the process exit code: 0 when the requested operation ran,
// 1 on any fatal bootstrap, prerequisite, or unexpected error.
func run(cfg *config.Configuration, req installer.Request) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Unexpected error during operation dispatch", "panic", r)
			exitCode = 1
		}
	}()

	tool, err := locator.New(cfg).Locate()
	if err != nil {
		logging.Error("Unable to resolve a usable winget executable", "error", err)
		return 1
	}
	logging.Info("Resolved winget", "path", tool.Path, "version", tool.Version)

	guard := blocking.NewGuard(
		time.Duration(cfg.MutexPollSeconds)*time.Second,
		time.Duration(cfg.MutexTimeoutMinutes)*time.Minute,
	)

	if _, err := prereq.New(cfg, guard).EnsureInstalled(tool.Path); err != nil {
		logging.Error("Runtime prerequisite could not be satisfied", "error", err)
		return 1
	}

	if err := guard.AwaitExclusivity(); err != nil {
		logging.Error("Installer mutual-exclusion wait failed", "error", err)
		return 1
	}

	result, err := installer.Run(tool, req, cfg.Source)
	if err != nil {
		logging.Error("winget could not be launched", "error", err)
		return 1
	}
	if !result.Ran {
		logging.Warn("No package identifier or display name supplied, no operation performed")
		return 0
	}

	logging.Info("Operation finished", "mode", string(req.Mode), "exitCode", result.ExitCode)
	if cfg.StrictExitCode && !result.Succeeded() {
		logging.Error("winget reported failure", "exitCode", result.ExitCode)
		return 1
	}
	return 0
}
