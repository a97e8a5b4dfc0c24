// Package service installs and manages gramd as a per-user OS service:
// a launchd agent on macOS, a systemd user unit on Linux, and a Run registry
// entry on Windows.
package service

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/batalabs/gramd/internal/config"
)

const (
	launchdLabel = "com.batalabs.gramd"
	systemdName  = "gramd"
	windowsName  = "gramd"
)

// HandleCommand dispatches service management actions.
func HandleCommand(action string) error {
	switch strings.ToLower(action) {
	case "install":
		return serviceInstall()
	case "uninstall":
		return serviceUninstall()
	case "status":
		return serviceStatus()
	case "start":
		return serviceStart()
	case "stop":
		return serviceStop()
	default:
		return fmt.Errorf("unknown service action: %s (use install|uninstall|status|start|stop)", action)
	}
}

// ---------------------------------------------------------------------------
// Platform paths
// ---------------------------------------------------------------------------

// ServiceExePath returns the path to the current executable.
func ServiceExePath() (string, error) {
	return os.Executable()
}

// LaunchdPlistPath returns the path to the launchd plist file.
func LaunchdPlistPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist"), nil
}

// SystemdUnitPath returns the path to the systemd user unit file.
func SystemdUnitPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "systemd", "user", systemdName+".service"), nil
}

// ServiceLogPath returns the path the service redirects stdout/stderr to.
func ServiceLogPath() string {
	dir, err := config.DataDir()
	if err != nil {
		return "/tmp/gramd-service.log"
	}
	return filepath.Join(dir, "service.log")
}

// ---------------------------------------------------------------------------
// Install
// ---------------------------------------------------------------------------

func serviceInstall() error {
	exe, err := ServiceExePath()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return installLaunchd(exe)
	case "linux":
		return installSystemd(exe)
	case "windows":
		return installWindows(exe)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func installLaunchd(exe string) error {
	path, err := LaunchdPlistPath()
	if err != nil {
		return err
	}
	logPath := ServiceLogPath()

	plist := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>%s</string>
    <key>ProgramArguments</key>
    <array>
        <string>%s</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>%s</string>
    <key>StandardErrorPath</key>
    <string>%s</string>
</dict>
</plist>
`, launchdLabel, exe, logPath, logPath)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating LaunchAgents dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(plist), 0o644); err != nil {
		return fmt.Errorf("writing plist: %w", err)
	}

	out, err := exec.Command("launchctl", "load", "-w", path).CombinedOutput()
	if err != nil {
		return fmt.Errorf("launchctl load: %s: %w", string(out), err)
	}

	fmt.Printf("Service installed: %s\n", path)
	return nil
}

func installSystemd(exe string) error {
	path, err := SystemdUnitPath()
	if err != nil {
		return err
	}
	logPath := ServiceLogPath()

	unit := fmt.Sprintf(`[Unit]
Description=gramd Telegram bot
After=network.target

[Service]
Type=simple
ExecStart=%s
Restart=on-failure
RestartSec=5
StandardOutput=append:%s
StandardError=append:%s

[Install]
WantedBy=default.target
`, exe, logPath, logPath)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating systemd user dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(unit), 0o644); err != nil {
		return fmt.Errorf("writing unit file: %w", err)
	}

	if out, err := exec.Command("systemctl", "--user", "daemon-reload").CombinedOutput(); err != nil {
		return fmt.Errorf("daemon-reload: %s: %w", string(out), err)
	}
	if out, err := exec.Command("systemctl", "--user", "enable", systemdName).CombinedOutput(); err != nil {
		return fmt.Errorf("enable: %s: %w", string(out), err)
	}

	fmt.Printf("Service installed: %s\n", path)
	fmt.Println("NOTE: run 'loginctl enable-linger $USER' to keep the bot running after logout.")
	return nil
}

func installWindows(exe string) error {
	value := fmt.Sprintf(`"%s"`, exe)
	out, err := exec.Command("reg", "add",
		`HKCU\Software\Microsoft\Windows\CurrentVersion\Run`,
		"/v", windowsName, "/t", "REG_SZ", "/d", value, "/f",
	).CombinedOutput()
	if err != nil {
		return fmt.Errorf("reg add: %s: %w", strings.TrimSpace(string(out)), err)
	}

	fmt.Println("Service installed (startup registry entry: HKCU\\...\\Run\\gramd)")
	return nil
}

// ---------------------------------------------------------------------------
// Uninstall
// ---------------------------------------------------------------------------

func serviceUninstall() error {
	switch runtime.GOOS {
	case "darwin":
		return uninstallLaunchd()
	case "linux":
		return uninstallSystemd()
	case "windows":
		return uninstallWindows()
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func uninstallLaunchd() error {
	path, err := LaunchdPlistPath()
	if err != nil {
		return err
	}
	if err := exec.Command("launchctl", "unload", "-w", path).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "service: launchctl unload: %v\n", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing plist: %w", err)
	}
	fmt.Println("Service uninstalled.")
	return nil
}

func uninstallSystemd() error {
	if err := exec.Command("systemctl", "--user", "stop", systemdName).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "service: systemctl stop: %v\n", err)
	}
	if err := exec.Command("systemctl", "--user", "disable", systemdName).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "service: systemctl disable: %v\n", err)
	}

	path, err := SystemdUnitPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing unit file: %w", err)
	}
	if err := exec.Command("systemctl", "--user", "daemon-reload").Run(); err != nil {
		fmt.Fprintf(os.Stderr, "service: systemctl daemon-reload: %v\n", err)
	}

	fmt.Println("Service uninstalled.")
	return nil
}

func uninstallWindows() error {
	out, err := exec.Command("reg", "delete",
		`HKCU\Software\Microsoft\Windows\CurrentVersion\Run`,
		"/v", windowsName, "/f",
	).CombinedOutput()
	if err != nil {
		return fmt.Errorf("reg delete: %s: %w", strings.TrimSpace(string(out)), err)
	}
	fmt.Println("Service uninstalled.")
	return nil
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

func serviceStatus() error {
	switch runtime.GOOS {
	case "darwin":
		out, err := exec.Command("launchctl", "list", launchdLabel).CombinedOutput()
		if err != nil {
			fmt.Println("Service is not loaded.")
			return nil
		}
		fmt.Println(string(out))
		return nil

	case "linux":
		// systemctl status returns non-zero for inactive services; the
		// output is still what the user wants.
		out, _ := exec.Command("systemctl", "--user", "status", systemdName).CombinedOutput()
		fmt.Println(string(out))
		return nil

	case "windows":
		out, err := exec.Command("reg", "query",
			`HKCU\Software\Microsoft\Windows\CurrentVersion\Run`,
			"/v", windowsName,
		).CombinedOutput()
		if err != nil {
			fmt.Println("Service is not installed.")
		} else {
			fmt.Println("Startup entry found:")
			fmt.Println(strings.TrimSpace(string(out)))
		}
		pf, pfErr := ReadPidfile()
		if pfErr == nil && !IsPidfileStale(pf) {
			fmt.Printf("Bot running: PID %d since %s\n", pf.PID, pf.StartedAt.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Println("Bot is not running.")
		}
		return nil

	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// ---------------------------------------------------------------------------
// Start / Stop
// ---------------------------------------------------------------------------

func serviceStart() error {
	switch runtime.GOOS {
	case "darwin":
		out, err := exec.Command("launchctl", "start", launchdLabel).CombinedOutput()
		if err != nil {
			return fmt.Errorf("launchctl start: %s: %w", string(out), err)
		}
		fmt.Println("Service started.")
		return nil

	case "linux":
		out, err := exec.Command("systemctl", "--user", "start", systemdName).CombinedOutput()
		if err != nil {
			return fmt.Errorf("systemctl start: %s: %w", string(out), err)
		}
		fmt.Println("Service started.")
		return nil

	case "windows":
		exe, err := ServiceExePath()
		if err != nil {
			return fmt.Errorf("locating executable: %w", err)
		}
		cmd := exec.Command(exe)
		cmd.Stdout = nil
		cmd.Stderr = nil
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("starting bot: %w", err)
		}
		// Detach -- don't wait
		if err := cmd.Process.Release(); err != nil {
			fmt.Fprintf(os.Stderr, "service: release process: %v\n", err)
		}
		fmt.Printf("Bot started (PID %d).\n", cmd.Process.Pid)
		return nil

	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func serviceStop() error {
	switch runtime.GOOS {
	case "darwin":
		out, err := exec.Command("launchctl", "stop", launchdLabel).CombinedOutput()
		if err != nil {
			return fmt.Errorf("launchctl stop: %s: %w", string(out), err)
		}
		fmt.Println("Service stopped.")
		return nil

	case "linux":
		out, err := exec.Command("systemctl", "--user", "stop", systemdName).CombinedOutput()
		if err != nil {
			return fmt.Errorf("systemctl stop: %s: %w", string(out), err)
		}
		fmt.Println("Service stopped.")
		return nil

	case "windows":
		pf, err := ReadPidfile()
		if err != nil {
			return fmt.Errorf("no running bot found (no pidfile)")
		}
		proc, err := os.FindProcess(pf.PID)
		if err != nil {
			return fmt.Errorf("finding process: %w", err)
		}
		if err := proc.Kill(); err != nil {
			return fmt.Errorf("killing process: %w", err)
		}
		if err := RemovePidfile(); err != nil {
			fmt.Fprintf(os.Stderr, "service: remove pidfile: %v\n", err)
		}
		fmt.Println("Service stopped.")
		return nil

	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}
