// pkg/status/status.go - installed-software detection via the Windows
// uninstall registry keys.
//
// Four hive/view combinations are scanned: machine-wide native and
// Wow6432Node, plus the console user's native and Wow6432Node views when a
// user is logged on. Every call performs a fresh scan; nothing is cached.

package status

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/windowsadmins/managedwinget/pkg/logging"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

// Hive identifies which uninstall-key root a record came from.
type Hive string

const (
	MachineNative Hive = "MachineNative"
	MachineWow64  Hive = "MachineWow64"
	UserNative    Hive = "UserNative"
	UserWow64     Hive = "UserWow64"
)

// UninstallRecord describes one installed application found in an uninstall
// key. Records are transient scan results and are not persisted.
type UninstallRecord struct {
	DisplayName string
	Version     string
	Hive        Hive
}

const (
	uninstallPath      = `Software\Microsoft\Windows\CurrentVersion\Uninstall`
	uninstallWow64Path = `Software\Wow6432Node\Microsoft\Windows\CurrentVersion\Uninstall`
)

// scanRoot is one hive/view combination to enumerate.
type scanRoot struct {
	key  registry.Key
	path string
	hive Hive
}

// consoleUserSID is abstracted for testing.
var consoleUserSID = lookupConsoleUserSID

// FindByDisplayName scans all reachable uninstall roots and returns one
// record per distinct display name (case-insensitive) whose display name
// contains name as a case-insensitive substring. An empty name returns every
// installed application. Missing roots are skipped with a warning.
func FindByDisplayName(name string) []UninstallRecord {
	roots := []scanRoot{
		{registry.LOCAL_MACHINE, uninstallPath, MachineNative},
		{registry.LOCAL_MACHINE, uninstallWow64Path, MachineWow64},
	}

	if sid, err := consoleUserSID(); err != nil {
		logging.Debug("No console user session found, skipping per-user hives", "error", err)
	} else {
		roots = append(roots,
			scanRoot{registry.USERS, sid + `\` + uninstallPath, UserNative},
			scanRoot{registry.USERS, sid + `\` + uninstallWow64Path, UserWow64},
		)
	}

	var records []UninstallRecord
	for _, root := range roots {
		records = append(records, scanUninstallRoot(root)...)
	}
	return filterRecords(records, name)
}

// scanUninstallRoot enumerates one uninstall key, returning a record for each
// subkey carrying a DisplayName.
func scanUninstallRoot(root scanRoot) []UninstallRecord {
	key, err := registry.OpenKey(root.key, root.path, registry.READ)
	if err != nil {
		logging.Warn("Unable to read registry key", "path", root.path, "hive", root.hive, "error", err)
		return nil
	}
	defer key.Close()

	subKeys, err := key.ReadSubKeyNames(0)
	if err != nil {
		logging.Warn("Unable to read sub keys", "path", root.path, "error", err)
		return nil
	}

	var records []UninstallRecord
	for _, subKey := range subKeys {
		fullPath := root.path + `\` + subKey
		subKeyObj, err := registry.OpenKey(root.key, fullPath, registry.READ)
		if err != nil {
			logging.Warn("Unable to open subKey", "path", fullPath, "error", err)
			continue
		}

		rec := UninstallRecord{Hive: root.hive}
		if name, _, err := subKeyObj.GetStringValue("DisplayName"); err == nil {
			rec.DisplayName = name
		}
		if versionStr, _, err := subKeyObj.GetStringValue("DisplayVersion"); err == nil {
			rec.Version = versionStr
		}
		subKeyObj.Close()

		// Entries without a display name are not user-visible installs.
		if rec.DisplayName != "" {
			records = append(records, rec)
		}
	}
	return records
}

// filterRecords applies case-insensitive substring matching against name and
// deduplicates by display name, keeping the first occurrence.
func filterRecords(records []UninstallRecord, name string) []UninstallRecord {
	needle := strings.ToLower(name)
	seen := make(map[string]bool)

	var out []UninstallRecord
	for _, rec := range records {
		lower := strings.ToLower(rec.DisplayName)
		if needle != "" && !strings.Contains(lower, needle) {
			continue
		}
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, rec)
	}
	return out
}

// lookupConsoleUserSID resolves the SID of the logged-on console user by
// finding the owner of explorer.exe. No explorer process means no interactive
// session.
func lookupConsoleUserSID() (string, error) {
	procs, err := process.Processes()
	if err != nil {
		return "", fmt.Errorf("failed to get process list: %w", err)
	}

	for _, proc := range procs {
		name, err := proc.Name()
		if err != nil || !strings.EqualFold(name, "explorer.exe") {
			continue
		}
		account, err := proc.Username()
		if err != nil || account == "" {
			continue
		}
		sid, _, _, err := windows.LookupSID("", account)
		if err != nil {
			return "", fmt.Errorf("failed to resolve SID for %s: %w", account, err)
		}
		return sid.String(), nil
	}
	return "", fmt.Errorf("no console user session")
}
