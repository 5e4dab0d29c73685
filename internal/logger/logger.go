// Package logger 提供基于 zap 与 lumberjack 的日志实现
package logger

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

const logFileName = "ecthermald.log"

// Logger zap 日志记录器, 同时输出到控制台与滚动文件
type Logger struct {
	sugar   *zap.SugaredLogger
	level   zap.AtomicLevel
	rotator *lumberjack.Logger
	logDir  string
	maxAge  time.Duration
}

var _ types.Logger = (*Logger)(nil)

// New 创建日志记录器, cfg.Dir 为空时只输出到控制台
func New(cfg types.LogConfig) (*Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level),
	}

	l := &Logger{
		level:  level,
		logDir: cfg.Dir,
		maxAge: time.Duration(max(cfg.MaxAgeDays, 1)) * 24 * time.Hour,
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, err
		}
		l.rotator = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, logFileName),
			MaxSize:    max(cfg.MaxSizeMB, 1),
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(l.rotator), level))
	}

	l.sugar = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	return l, nil
}

// NewNop 创建不输出任何内容的日志记录器
func NewNop() *Logger {
	return &Logger{
		sugar: zap.NewNop().Sugar(),
		level: zap.NewAtomicLevel(),
	}
}

// Info 信息日志
func (l *Logger) Info(format string, v ...any) {
	l.sugar.Infof(format, v...)
}

// Error 错误日志
func (l *Logger) Error(format string, v ...any) {
	l.sugar.Errorf(format, v...)
}

// Warn 警告日志
func (l *Logger) Warn(format string, v ...any) {
	l.sugar.Warnf(format, v...)
}

// Debug 调试日志
func (l *Logger) Debug(format string, v ...any) {
	l.sugar.Debugf(format, v...)
}

// Close 刷新并关闭日志文件
func (l *Logger) Close() {
	_ = l.sugar.Sync()
	if l.rotator != nil {
		_ = l.rotator.Close()
	}
}

// CleanOldLogs 删除超过保留期的滚动日志
func (l *Logger) CleanOldLogs() {
	if l.logDir == "" {
		return
	}
	entries, err := os.ReadDir(l.logDir)
	if err != nil {
		l.Warn("读取日志目录失败: %v", err)
		return
	}

	prefix := strings.TrimSuffix(logFileName, filepath.Ext(logFileName)) + "-"
	cutoff := time.Now().Add(-l.maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(l.logDir, entry.Name())
		if err := os.Remove(path); err != nil {
			l.Warn("删除旧日志 %s 失败: %v", path, err)
		}
	}
}

// SetDebugMode 切换调试级别
func (l *Logger) SetDebugMode(enabled bool) {
	if enabled {
		l.level.SetLevel(zapcore.DebugLevel)
	} else {
		l.level.SetLevel(zapcore.InfoLevel)
	}
}

// GetLogDir 日志目录
func (l *Logger) GetLogDir() string {
	return l.logDir
}
