package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"AndroidUISpy/pkg/cache"

	"github.com/joho/godotenv"
)

// ========================================
// Config - 运行配置
// 优先级: 命令行参数 > 环境变量 (.env) > settings.json > 默认值
// ========================================

// Config is the resolved runtime configuration.
type Config struct {
	AdbPath       string
	Device        string
	DumpDir       string // 非空时使用离线 dump 目录而不是 adb
	ConfigDir     string
	LogLevel      string
	LogToFile     bool
	PollInterval  time.Duration
	SnapshotCodec string
}

const (
	envAdbPath       = "UISPY_ADB_PATH"
	envDevice        = "UISPY_DEVICE"
	envDumpDir       = "UISPY_DUMP_DIR"
	envConfigDir     = "UISPY_CONFIG_DIR"
	envLogLevel      = "UISPY_LOG_LEVEL"
	envLogFile       = "UISPY_LOG_FILE"
	envPollInterval  = "UISPY_POLL_INTERVAL"
	envSnapshotCodec = "UISPY_SNAPSHOT_CODEC"
)

// LoadEnvConfig reads .env (if present) and the UISPY_* variables.
// Unset variables leave the corresponding field empty.
func LoadEnvConfig(envFiles ...string) Config {
	_ = godotenv.Load(envFiles...)

	cfg := Config{
		AdbPath:       strings.TrimSpace(os.Getenv(envAdbPath)),
		Device:        strings.TrimSpace(os.Getenv(envDevice)),
		DumpDir:       strings.TrimSpace(os.Getenv(envDumpDir)),
		ConfigDir:     strings.TrimSpace(os.Getenv(envConfigDir)),
		LogLevel:      strings.TrimSpace(os.Getenv(envLogLevel)),
		SnapshotCodec: strings.TrimSpace(os.Getenv(envSnapshotCodec)),
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(envLogFile))); err == nil {
		cfg.LogToFile = v
	}
	if v := strings.TrimSpace(os.Getenv(envPollInterval)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		} else if ms, err := strconv.Atoi(v); err == nil {
			cfg.PollInterval = time.Duration(ms) * time.Millisecond
		}
	}
	return cfg
}

// Override returns c with every non-empty field of o applied on top.
func (c Config) Override(o Config) Config {
	c.AdbPath = firstNonEmpty(o.AdbPath, c.AdbPath)
	c.Device = firstNonEmpty(o.Device, c.Device)
	c.DumpDir = firstNonEmpty(o.DumpDir, c.DumpDir)
	c.ConfigDir = firstNonEmpty(o.ConfigDir, c.ConfigDir)
	c.LogLevel = firstNonEmpty(o.LogLevel, c.LogLevel)
	c.SnapshotCodec = firstNonEmpty(o.SnapshotCodec, c.SnapshotCodec)
	if o.PollInterval > 0 {
		c.PollInterval = o.PollInterval
	}
	c.LogToFile = c.LogToFile || o.LogToFile
	return c
}

// WithSettings fills fields still empty from persisted settings and then
// from defaults.
func (c Config) WithSettings(s cache.Settings) Config {
	def := cache.DefaultSettings()
	c.AdbPath = firstNonEmpty(c.AdbPath, s.AdbPath)
	c.Device = firstNonEmpty(c.Device, s.LastDevice)
	c.LogLevel = firstNonEmpty(c.LogLevel, s.LogLevel, def.LogLevel)
	c.SnapshotCodec = firstNonEmpty(c.SnapshotCodec, s.SnapshotCodec, def.SnapshotCodec)
	if c.PollInterval <= 0 {
		ms := s.PollIntervalMs
		if ms <= 0 {
			ms = def.PollIntervalMs
		}
		c.PollInterval = time.Duration(ms) * time.Millisecond
	}
	c.LogToFile = c.LogToFile || s.LogToFile
	return c
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
