package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// ========================================
// Structured Logger - 结构化日志系统
// ========================================

// Logger 全局日志实例
var Logger zerolog.Logger

// persistentLogger 持久化日志管理器
var persistentLogger *PersistentLogger

// LogLevel 日志级别
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ParseLogLevel maps "debug", "info", "warn" and "error" to a LogLevel.
// Unknown names fall back to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LogConfig 日志配置
type LogConfig struct {
	Level      LogLevel
	Console    bool      // 是否输出到控制台 (stderr)
	File       bool      // 是否输出到文件
	FilePath   string    // 日志文件路径
	MaxSizeMB  int       // 单个日志文件最大大小 (MB)
	MaxAgeDays int       // 日志保留天数
	MaxBackups int       // 最大备份数量
	Compress   bool      // 是否压缩旧日志
	Out        io.Writer // 控制台输出目标, 默认 os.Stderr
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      LogLevelInfo,
		Console:    true,
		MaxSizeMB:  10,
		MaxAgeDays: 7,
		MaxBackups: 5,
		Compress:   true,
	}
}

// PersistentLogConfig 返回持久化日志配置
func PersistentLogConfig(configDir string) LogConfig {
	cfg := DefaultLogConfig()
	cfg.File = true
	cfg.FilePath = filepath.Join(configDir, "logs", "uispy.log")
	return cfg
}

// ========================================
// PersistentLogger - 持久化日志管理器
// ========================================

// PersistentLogger 管理日志文件轮转和清理
type PersistentLogger struct {
	mu          sync.Mutex
	config      LogConfig
	currentFile *os.File
	currentSize int64
	logDir      string
	stop        chan struct{}
}

// NewPersistentLogger 创建持久化日志管理器
func NewPersistentLogger(config LogConfig) (*PersistentLogger, error) {
	logDir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	pl := &PersistentLogger{
		config: config,
		logDir: logDir,
		stop:   make(chan struct{}),
	}
	if err := pl.openFile(); err != nil {
		return nil, err
	}

	go pl.cleanupRoutine()
	return pl, nil
}

// Write 实现 io.Writer 接口
func (pl *PersistentLogger) Write(p []byte) (n int, err error) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.currentFile == nil {
		return 0, os.ErrClosed
	}
	if pl.config.MaxSizeMB > 0 && pl.currentSize+int64(len(p)) > int64(pl.config.MaxSizeMB)*1024*1024 {
		if err := pl.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = pl.currentFile.Write(p)
	pl.currentSize += int64(n)
	return n, err
}

func (pl *PersistentLogger) openFile() error {
	file, err := os.OpenFile(pl.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	pl.currentFile = file
	pl.currentSize = info.Size()
	return nil
}

// rotate 轮转日志文件, 调用方持有锁
func (pl *PersistentLogger) rotate() error {
	if pl.currentFile != nil {
		pl.currentFile.Close()
	}

	base := strings.TrimSuffix(filepath.Base(pl.config.FilePath), ".log")
	rotatedPath := filepath.Join(pl.logDir, fmt.Sprintf("%s_%s.log", base, time.Now().Format("2006-01-02_15-04-05")))
	if err := os.Rename(pl.config.FilePath, rotatedPath); err != nil {
		return pl.openFile()
	}
	if pl.config.Compress {
		go compressLogFile(rotatedPath)
	}
	return pl.openFile()
}

// compressLogFile gzips path next to itself and removes the original.
func compressLogFile(path string) {
	src, err := os.Open(path)
	if err != nil {
		return
	}
	defer src.Close()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return
	}
	gz := gzip.NewWriter(dst)
	_, err = io.Copy(gz, src)
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	dst.Close()
	if err != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

func (pl *PersistentLogger) cleanupRoutine() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	pl.cleanup()
	for {
		select {
		case <-ticker.C:
			pl.cleanup()
		case <-pl.stop:
			return
		}
	}
}

// cleanup 清理过期和超出数量的轮转日志
func (pl *PersistentLogger) cleanup() {
	base := strings.TrimSuffix(filepath.Base(pl.config.FilePath), ".log")
	files, err := filepath.Glob(filepath.Join(pl.logDir, base+"_*.log*"))
	if err != nil {
		return
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	var infos []fileInfo
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		infos = append(infos, fileInfo{path: f, modTime: info.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].modTime.After(infos[j].modTime)
	})

	now := time.Now()
	for i, fi := range infos {
		if pl.config.MaxAgeDays > 0 && now.Sub(fi.modTime) > time.Duration(pl.config.MaxAgeDays)*24*time.Hour {
			os.Remove(fi.path)
			continue
		}
		if pl.config.MaxBackups > 0 && i >= pl.config.MaxBackups {
			os.Remove(fi.path)
		}
	}
}

// Close 关闭日志文件
func (pl *PersistentLogger) Close() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.currentFile == nil {
		return nil
	}
	close(pl.stop)
	err := pl.currentFile.Close()
	pl.currentFile = nil
	return err
}

// ========================================
// 日志初始化
// ========================================

// InitLogger 初始化日志系统. stdout 保留给命令输出和 MCP stdio.
func InitLogger(config LogConfig) error {
	var writers []io.Writer

	out := config.Out
	if out == nil {
		out = os.Stderr
	}
	if config.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"})
	}

	if config.File && config.FilePath != "" {
		pl, err := NewPersistentLogger(config)
		if err != nil {
			return err
		}
		if persistentLogger != nil {
			persistentLogger.Close()
		}
		persistentLogger = pl
		writers = append(writers, pl)
	}

	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"})
	}

	Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(config.Level.zerolog()).
		With().
		Timestamp().
		Logger()
	return nil
}

// CloseLogger 关闭日志系统
func CloseLogger() {
	if persistentLogger != nil {
		persistentLogger.Close()
		persistentLogger = nil
	}
}

// GetLogFilePath 获取日志文件路径
func GetLogFilePath() string {
	if persistentLogger != nil {
		return persistentLogger.config.FilePath
	}
	return ""
}

// ========================================
// 便捷日志函数
// ========================================

func LogDebug(module string) *zerolog.Event {
	return Logger.Debug().Str("module", module)
}

func LogInfo(module string) *zerolog.Event {
	return Logger.Info().Str("module", module)
}

func LogWarn(module string) *zerolog.Event {
	return Logger.Warn().Str("module", module)
}

func LogError(module string) *zerolog.Event {
	return Logger.Error().Str("module", module)
}

// ModuleLogger returns a child logger tagged with module, handed to
// packages that accept a zerolog.Logger.
func ModuleLogger(module string) zerolog.Logger {
	return Logger.With().Str("module", module).Logger()
}

// ========================================
// 模块特定日志
// ========================================

// DeviceLog 设备管理日志
func DeviceLog() *zerolog.Event {
	return Logger.Info().Str("module", "device")
}

// WindowLog 窗口状态日志 (debug, 每次轮询都会触发)
func WindowLog() *zerolog.Event {
	return Logger.Debug().Str("module", "window")
}

// ActivityLog Activity 栈日志
func ActivityLog() *zerolog.Event {
	return Logger.Debug().Str("module", "activity")
}

// ControlLog 控件定位日志
func ControlLog() *zerolog.Event {
	return Logger.Info().Str("module", "control")
}

// MonitorLog 状态监控日志
func MonitorLog() *zerolog.Event {
	return Logger.Info().Str("module", "monitor")
}

// ========================================
// 性能日志
// ========================================

// OperationTimer 操作计时器
type OperationTimer struct {
	module    string
	operation string
	startTime time.Time
	details   map[string]interface{}
}

// StartOperation 开始计时
func StartOperation(module, operation string) *OperationTimer {
	return &OperationTimer{
		module:    module,
		operation: operation,
		startTime: time.Now(),
		details:   make(map[string]interface{}),
	}
}

// AddDetail 添加详细信息
func (t *OperationTimer) AddDetail(key string, value interface{}) *OperationTimer {
	t.details[key] = value
	return t
}

// End 结束计时并记录日志 (debug 级别)
func (t *OperationTimer) End() time.Duration {
	d := time.Since(t.startTime)
	t.event(Logger.Debug(), d).Msg("Operation completed")
	return d
}

// EndWithError 结束计时并记录错误
func (t *OperationTimer) EndWithError(err error) time.Duration {
	d := time.Since(t.startTime)
	t.event(Logger.Error(), d).Err(err).Msg("Operation failed")
	return d
}

func (t *OperationTimer) event(e *zerolog.Event, d time.Duration) *zerolog.Event {
	e = e.Str("module", t.module).
		Str("category", "performance").
		Str("operation", t.operation).
		Int64("duration_ms", d.Milliseconds())
	return addFields(e, t.details)
}

// addFields 把 map 中的字段按类型写入事件
func addFields(e *zerolog.Event, fields map[string]interface{}) *zerolog.Event {
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			e.Str(k, val)
		case int:
			e.Int(k, val)
		case int64:
			e.Int64(k, val)
		case float64:
			e.Float64(k, val)
		case bool:
			e.Bool(k, val)
		case error:
			e.AnErr(k, val)
		default:
			e.Interface(k, val)
		}
	}
	return e
}

func init() {
	_ = InitLogger(DefaultLogConfig())
}
