package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

// --- Global Command Variables ---
var (
	flagConfig   Config
	flagLogLevel string
	flagLogFile  bool
	flagInterval time.Duration

	app *App

	rootCmd = &cobra.Command{
		Use:   "uispy",
		Short: "Inspect windows, activities and controls of Android devices",
		Long: `uispy reads dumpsys window/activity state and uiautomator dumps from an
Android device (or an offline dump directory) and resolves controls with QPath
expressions such as /Type='Button' && Text~='OK.*'.`,
		SilenceUsage:      true,
		PersistentPreRunE: setupApp,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				app.Shutdown()
			}
			CloseLogger()
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig.Device, "device", "d", "", "device serial (default: the only connected device)")
	pf.StringVar(&flagConfig.DumpDir, "dump-dir", "", "read window.txt, activity.txt and ui.xml from a directory instead of adb")
	pf.StringVar(&flagConfig.ConfigDir, "config-dir", "", "configuration directory (default: user config dir)")
	pf.StringVar(&flagConfig.AdbPath, "adb", "", "path to the adb binary")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&flagLogFile, "log-file", false, "also write rotated logs under the config directory")

	registerCommands()
}

func setupApp(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "parse" {
		return nil
	}
	flags := flagConfig
	flags.LogLevel = flagLogLevel
	flags.LogToFile = flagLogFile
	flags.PollInterval = flagInterval

	cfg := LoadEnvConfig().Override(flags)
	a, err := NewApp(cfg)
	if err != nil {
		return err
	}
	cfg = a.Config()

	logCfg := DefaultLogConfig()
	if cfg.LogToFile {
		logCfg = PersistentLogConfig(cfg.ConfigDir)
	}
	logCfg.Level = ParseLogLevel(cfg.LogLevel)
	if err := InitLogger(logCfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	LogDebug("app").
		Str("version", version).
		Str("config_dir", cfg.ConfigDir).
		Str("dump_dir", cfg.DumpDir).
		Str("log_file", GetLogFilePath()).
		Msg("AndroidUISpy starting")

	app = a
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
