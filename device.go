package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"AndroidUISpy/pkg/types"
)

// deviceIDPattern 用于验证 deviceId 格式
// 支持以下格式:
// - USB 序列号: 如 "1234567890ABCDEF", "emulator-5554"
// - 无线设备: IP:端口, 如 "192.168.1.100:5555"
// - mDNS 设备: 如 "adb-xxxxx._adb-tls-connect._tcp."
var deviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._:\-]+$`)

// ValidateDeviceID 验证 deviceId 格式是否安全, 防止命令注入
func ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("device ID cannot be empty")
	}
	if len(deviceID) > 256 {
		return fmt.Errorf("device ID too long (max 256 characters)")
	}
	if !deviceIDPattern.MatchString(deviceID) {
		return fmt.Errorf("invalid device ID format: contains illegal characters")
	}
	return nil
}

const defaultAdbTimeout = 30 * time.Second

var proxyVars = []string{"HTTP_PROXY", "HTTPS_PROXY", "ALL_PROXY", "NO_PROXY", "http_proxy", "https_proxy", "all_proxy", "no_proxy"}

// newAdbCommand 创建 adb 命令, 去掉代理环境变量以免干扰 adb server
func (a *App) newAdbCommand(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, a.adbPath, args...)
	cmd.Env = stripProxyEnv(os.Environ())
	return cmd
}

func stripProxyEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, e := range env {
		isProxy := false
		for _, v := range proxyVars {
			if strings.HasPrefix(e, v+"=") {
				isProxy = true
				break
			}
		}
		if !isProxy {
			out = append(out, e)
		}
	}
	return out
}

// setupAdb resolves the adb binary once: explicit config first, then PATH.
func (a *App) setupAdb() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.adbPath != "" {
		return nil
	}
	if a.config.AdbPath != "" {
		if _, err := os.Stat(a.config.AdbPath); err != nil {
			return fmt.Errorf("adb not found at %s: %w", a.config.AdbPath, err)
		}
		a.adbPath = a.config.AdbPath
		return nil
	}
	path, err := exec.LookPath("adb")
	if err != nil {
		return fmt.Errorf("adb not found in PATH (set %s or --adb): %w", envAdbPath, err)
	}
	a.adbPath = path
	LogDebug("device").Str("path", path).Msg("Using system adb found in PATH")
	return nil
}

// GetDevices returns the devices listed by `adb devices -l`
func (a *App) GetDevices(ctx context.Context) ([]types.Device, error) {
	if err := a.setupAdb(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultAdbTimeout)
	defer cancel()

	output, err := a.newAdbCommand(ctx, "devices", "-l").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to run adb devices (path: %s): %w, output: %s", a.adbPath, err, string(output))
	}
	devices := parseDevices(string(output))
	DeviceLog().Int("count", len(devices)).Msg("Listed devices")
	return devices, nil
}

// parseDevices parses the output of `adb devices -l`.
func parseDevices(output string) []types.Device {
	var devices []types.Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices attached") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		d := types.Device{ID: parts[0], State: parts[1], Type: "wired"}
		hasUSB := false
		for _, p := range parts[2:] {
			k, v, ok := strings.Cut(p, ":")
			if !ok {
				continue
			}
			switch k {
			case "model":
				d.Model = v
			case "product":
				d.Product = v
			case "usb":
				hasUSB = true
			}
		}
		if !hasUSB && (strings.Contains(d.ID, ":") || strings.Contains(d.ID, "._tcp")) {
			d.Type = "wireless"
		}
		devices = append(devices, d)
	}
	return devices
}

// resolveDevice returns id when set, otherwise the only online device.
func (a *App) resolveDevice(ctx context.Context, id string) (string, error) {
	if id != "" {
		return id, ValidateDeviceID(id)
	}
	devices, err := a.GetDevices(ctx)
	if err != nil {
		return "", err
	}
	var online []string
	for _, d := range devices {
		if d.State == "device" {
			online = append(online, d.ID)
		}
	}
	switch len(online) {
	case 0:
		return "", fmt.Errorf("no device connected")
	case 1:
		return online[0], nil
	default:
		return "", fmt.Errorf("%d devices connected, choose one with --device: %s", len(online), strings.Join(online, ", "))
	}
}

// RunAdbCommandWithContext executes an ADB command for a device. A command
// starting with "shell " is passed to the device shell as a single argument.
func (a *App) RunAdbCommandWithContext(ctx context.Context, deviceID string, fullCmd string) (string, error) {
	if err := ValidateDeviceID(deviceID); err != nil {
		return "", fmt.Errorf("invalid device ID: %w", err)
	}
	fullCmd = strings.TrimSpace(fullCmd)
	if fullCmd == "" {
		return "", nil
	}
	if err := a.setupAdb(); err != nil {
		return "", err
	}

	args := adbArgs(deviceID, fullCmd)
	output, err := a.newAdbCommand(ctx, args...).CombinedOutput()
	res := string(output)
	if err != nil {
		return res, fmt.Errorf("command failed: %w, output: %s", err, res)
	}
	return res, nil
}

func adbArgs(deviceID, fullCmd string) []string {
	args := []string{"-s", deviceID}
	if rest, ok := strings.CutPrefix(fullCmd, "shell "); ok {
		return append(args, "shell", rest)
	}
	return append(args, strings.Fields(fullCmd)...)
}
