// pkg/blocking/blocking.go - Windows Installer mutual-exclusion wait.
//
// Only one MSI-based installation can run at a time; starting another while
// msiexec is busy fails with ERROR_INSTALL_ALREADY_RUNNING. The guard mirrors
// the installer service's own serialization by waiting for the process table
// to show no msiexec activity before proceeding.

package blocking

import (
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/windowsadmins/managedwinget/pkg/logging"
	"github.com/yusufpapurcu/wmi"
)

const installerProcessName = "msiexec.exe"

// Guard blocks until no OS-level installer process is running. Timeout zero
// means wait forever, matching the host installer's own unbounded
// serialization.
type Guard struct {
	PollInterval time.Duration
	Timeout      time.Duration

	// listInstallerPIDs and serviceRunning are abstracted for testing.
	listInstallerPIDs func() ([]int32, error)
	serviceRunning    func() (bool, error)
}

// NewGuard returns a Guard polling at the given interval. A zero interval
// defaults to five seconds.
func NewGuard(pollInterval, timeout time.Duration) *Guard {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Guard{
		PollInterval:      pollInterval,
		Timeout:           timeout,
		listInstallerPIDs: listMsiexecPIDs,
		serviceRunning:    msiServiceRunning,
	}
}

// AwaitExclusivity blocks the calling flow until no msiexec process is
// running, polling the process table. It returns an error only when the
// configured timeout elapses first.
func (g *Guard) AwaitExclusivity() error {
	// Fast path: if the Windows Installer service is not running there is
	// nothing to serialize against.
	if running, err := g.serviceRunning(); err != nil {
		logging.Warn("Unable to query Windows Installer service state", "error", err)
	} else if !running {
		logging.Debug("Windows Installer service idle, proceeding")
		return nil
	}

	var deadline time.Time
	if g.Timeout > 0 {
		deadline = time.Now().Add(g.Timeout)
	}

	waited := false
	for {
		pids, err := g.listInstallerPIDs()
		if err != nil {
			logging.Warn("Unable to enumerate installer processes", "error", err)
			return nil
		}
		if len(pids) == 0 {
			if waited {
				logging.Info("Windows Installer is idle, proceeding")
			}
			return nil
		}

		if !waited {
			logging.Info("Another installation is in progress, waiting for it to complete", "pids", pids)
			waited = true
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s waiting for msiexec to exit", g.Timeout)
		}
		time.Sleep(g.PollInterval)
	}
}

// listMsiexecPIDs returns the PIDs of all running msiexec.exe processes.
func listMsiexecPIDs() ([]int32, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to get process list: %w", err)
	}

	var pids []int32
	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil {
			continue
		}
		if strings.EqualFold(name, installerProcessName) {
			pids = append(pids, proc.Pid)
		}
	}
	return pids, nil
}

// win32Service maps the WMI Win32_Service class fields we query.
type win32Service struct {
	Name  string
	State string
}

// msiServiceRunning reports whether the msiserver service is currently
// running.
func msiServiceRunning() (bool, error) {
	var services []win32Service
	query := wmi.CreateQuery(&services, "WHERE Name = 'msiserver'")
	if err := wmi.Query(query, &services); err != nil {
		return false, fmt.Errorf("WMI query failed: %w", err)
	}
	if len(services) == 0 {
		return false, nil
	}
	return services[0].State == "Running", nil
}
