// Package logging provides categorized file-based logging for conductor.
// Each subsystem logs to its own file under <workspace>/.conductor/logs so a
// misbehaving component can be diagnosed without wading through the others.
// Before Initialize is called every logger is a no-op.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup and shutdown
	CategoryStore     Category = "store"     // SQLite store and transactions
	CategoryBus       Category = "bus"       // Event bus publish/subscribe
	CategoryEngine    Category = "engine"    // Orchestration engine
	CategoryRouting   Category = "routing"   // Routing decisions
	CategoryWorkflow  Category = "workflow"  // Workflow executors
	CategoryConsensus Category = "consensus" // Proposal collection and strategies
	CategoryRegistry  Category = "registry"  // Agent registry
	CategoryIndexer   Category = "indexer"   // Context indexing pipeline
	CategoryWatcher   Category = "watcher"   // File-system watcher
	CategoryBootstrap Category = "bootstrap" // Bulk bootstrap runs
	CategoryEmbedding Category = "embedding" // Embedding engines
	CategoryConfig    Category = "config"    // Configuration loading
)

// Logger wraps a zap sugared logger bound to one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu          sync.RWMutex
	loggers     = make(map[Category]*Logger)
	logsDir     string
	level       = zapcore.InfoLevel
	initialized bool
)

// Initialize sets up the logging directory and level. Should be called once
// at startup with the workspace path. Safe to skip in tests; loggers then
// discard everything.
func Initialize(workspace, levelName string) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	dir := filepath.Join(workspace, ".conductor", "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	lvl, err := zapcore.ParseLevel(levelName)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	mu.Lock()
	logsDir = dir
	level = lvl
	initialized = true
	loggers = make(map[Category]*Logger)
	mu.Unlock()

	Get(CategoryBoot).Info("logging initialized: dir=%s level=%s", dir, lvl)
	return nil
}

// Get returns the logger for a category, creating it on first use.
func Get(cat Category) *Logger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	l := newLogger(cat)
	loggers[cat] = l
	return l
}

func newLogger(cat Category) *Logger {
	if !initialized {
		return &Logger{category: cat, sugar: zap.NewNop().Sugar()}
	}

	path := filepath.Join(logsDir, string(cat)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v\n", path, err)
		return &Logger{category: cat, sugar: zap.NewNop().Sugar()}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(f), level)
	sugar := zap.New(core).Named(string(cat)).Sugar()
	return &Logger{category: cat, sugar: sugar}
}

// Debug logs at debug level with Printf-style formatting.
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Sync flushes all category loggers. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	for _, l := range loggers {
		_ = l.sugar.Sync()
	}
}

// Convenience helpers for the hottest call sites.

// Store logs an info message to the store category.
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs a debug message to the store category.
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// Engine logs an info message to the engine category.
func Engine(format string, args ...interface{}) { Get(CategoryEngine).Info(format, args...) }

// EngineDebug logs a debug message to the engine category.
func EngineDebug(format string, args ...interface{}) { Get(CategoryEngine).Debug(format, args...) }

// Indexer logs an info message to the indexer category.
func Indexer(format string, args ...interface{}) { Get(CategoryIndexer).Info(format, args...) }

// IndexerDebug logs a debug message to the indexer category.
func IndexerDebug(format string, args ...interface{}) { Get(CategoryIndexer).Debug(format, args...) }

// Watcher logs an info message to the watcher category.
func Watcher(format string, args ...interface{}) { Get(CategoryWatcher).Info(format, args...) }

// WatcherDebug logs a debug message to the watcher category.
func WatcherDebug(format string, args ...interface{}) { Get(CategoryWatcher).Debug(format, args...) }

// Consensus logs an info message to the consensus category.
func Consensus(format string, args ...interface{}) { Get(CategoryConsensus).Info(format, args...) }

// Timer measures the duration of an operation and logs it on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation for the given category.
func StartTimer(cat Category, op string) *Timer {
	return &Timer{category: cat, op: op, start: time.Now()}
}

// Stop logs the elapsed time at debug level, or warn when it exceeds a second.
func (t *Timer) Stop() {
	elapsed := time.Since(t.start)
	l := Get(t.category)
	if elapsed > time.Second {
		l.Warn("%s took %v", t.op, elapsed)
		return
	}
	l.Debug("%s took %v", t.op, elapsed)
}
