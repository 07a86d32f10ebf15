package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// AppName is the directory created under os.UserConfigDir.
const AppName = "AndroidUISpy"

// Settings represents persistent application settings
type Settings struct {
	LastDevice     string `json:"lastDevice"`
	AdbPath        string `json:"adbPath,omitempty"`
	PollIntervalMs int    `json:"pollIntervalMs"`
	SnapshotCodec  string `json:"snapshotCodec"`
	LogLevel       string `json:"logLevel"`
	LogToFile      bool   `json:"logToFile"`
}

// DefaultSettings returns the settings used when nothing is persisted yet.
func DefaultSettings() Settings {
	return Settings{
		PollIntervalMs: 2000,
		SnapshotCodec:  "zstd",
		LogLevel:       "info",
	}
}

// Service manages the settings file and the window -> process cache.
type Service struct {
	configDir        string
	settingsPath     string
	processCachePath string

	settings   Settings
	settingsMu sync.RWMutex

	// device -> window title -> process name
	processes   map[string]map[string]string
	processesMu sync.RWMutex

	logFunc func(format string, args ...interface{})
}

// Config for creating a new cache Service
type Config struct {
	ConfigDir string
	LogFunc   func(format string, args ...interface{})
}

// New creates a new Service, loading whatever is already on disk.
func New(cfg Config) (*Service, error) {
	configDir := cfg.ConfigDir
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}

	s := &Service{
		configDir:        configDir,
		settingsPath:     filepath.Join(configDir, "settings.json"),
		processCachePath: filepath.Join(configDir, "process_cache.json"),
		settings:         DefaultSettings(),
		processes:        make(map[string]map[string]string),
		logFunc:          cfg.LogFunc,
	}
	s.loadSettings()
	s.loadProcessCache()
	return s, nil
}

// DefaultConfigDir returns <user config dir>/AndroidUISpy, falling back to
// the temp dir when the platform has no config dir.
func DefaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, AppName)
}

func (s *Service) log(format string, args ...interface{}) {
	if s.logFunc != nil {
		s.logFunc(format, args...)
	}
}

// ========================================
// Settings Methods
// ========================================

// Settings returns a copy of the current settings.
func (s *Service) Settings() Settings {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.settings
}

// UpdateSettings applies fn to the settings under the lock.
func (s *Service) UpdateSettings(fn func(*Settings)) {
	s.settingsMu.Lock()
	fn(&s.settings)
	s.settingsMu.Unlock()
}

// SaveSettings persists settings to disk
func (s *Service) SaveSettings() error {
	s.settingsMu.RLock()
	data, err := json.MarshalIndent(s.settings, "", "  ")
	s.settingsMu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(s.settingsPath, data, 0644)
}

func (s *Service) loadSettings() {
	data, err := os.ReadFile(s.settingsPath)
	if err != nil {
		return
	}
	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		s.log("Ignoring corrupt settings file %s: %v", s.settingsPath, err)
		return
	}
	s.settingsMu.Lock()
	s.settings = settings
	s.settingsMu.Unlock()
}

// ========================================
// Process Cache Methods
// ========================================

// GetProcess returns the cached process name of a window on a device.
func (s *Service) GetProcess(deviceID, window string) (string, bool) {
	s.processesMu.RLock()
	defer s.processesMu.RUnlock()
	p, ok := s.processes[deviceID][window]
	return p, ok
}

// SetProcess caches the process name of a window on a device.
func (s *Service) SetProcess(deviceID, window, process string) {
	s.processesMu.Lock()
	defer s.processesMu.Unlock()
	m, ok := s.processes[deviceID]
	if !ok {
		m = make(map[string]string)
		s.processes[deviceID] = m
	}
	m[window] = process
}

// ClearProcesses drops the cached process names of one device, or of all
// devices when deviceID is empty.
func (s *Service) ClearProcesses(deviceID string) {
	s.processesMu.Lock()
	defer s.processesMu.Unlock()
	if deviceID == "" {
		s.processes = make(map[string]map[string]string)
		return
	}
	delete(s.processes, deviceID)
}

// SaveProcessCache persists the process cache to disk
func (s *Service) SaveProcessCache() error {
	s.processesMu.RLock()
	data, err := json.Marshal(s.processes)
	s.processesMu.RUnlock()
	if err != nil {
		s.log("Error marshaling process cache: %v", err)
		return err
	}
	if err := os.WriteFile(s.processCachePath, data, 0644); err != nil {
		s.log("Error saving process cache to %s: %v", s.processCachePath, err)
		return err
	}
	return nil
}

func (s *Service) loadProcessCache() {
	data, err := os.ReadFile(s.processCachePath)
	if err != nil {
		return
	}
	s.processesMu.Lock()
	defer s.processesMu.Unlock()
	if err := json.Unmarshal(data, &s.processes); err != nil || s.processes == nil {
		s.processes = make(map[string]map[string]string)
	}
}

// ========================================
// Path Accessors
// ========================================

// ConfigDir returns the configuration directory path
func (s *Service) ConfigDir() string {
	return s.configDir
}

// SettingsPath returns the settings file path
func (s *Service) SettingsPath() string {
	return s.settingsPath
}

// ProcessCachePath returns the process cache file path
func (s *Service) ProcessCachePath() string {
	return s.processCachePath
}

// Close saves the process cache and settings before shutdown
func (s *Service) Close() error {
	if err := s.SaveProcessCache(); err != nil {
		s.log("Error saving process cache on close: %v", err)
	}
	if err := s.SaveSettings(); err != nil {
		s.log("Error saving settings on close: %v", err)
	}
	return nil
}
