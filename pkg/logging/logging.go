// pkg/logging/logging.go - timestamped append-only logging for managedwinget.
//
// Every component writes through this package so a single log file under the
// machine-wide log directory records the full bootstrap and operation history
// for later audit. The file is UTF-8, one timestamped line per event, opened
// in append mode and named by the caller (--log-name).

package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of the LogLevel.
func (ll LogLevel) String() string {
	switch ll {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Logger writes timestamped lines to the run's log file and, optionally, to
// the console.
type Logger struct {
	mu       sync.Mutex
	logger   *log.Logger
	logLevel LogLevel
	logFile  *os.File
}

// singleton instance and sync.Once for thread-safe initialization
var (
	instance *Logger
	once     sync.Once
)

// Init initializes the singleton Logger. logRoot is created if missing and
// logName is the caller-supplied file name. It must be called before any
// logging functions are used.
func Init(logRoot, logName string, level LogLevel, console bool) error {
	var initErr error
	once.Do(func() {
		instance, initErr = newLogger(logRoot, logName, level, console)
	})
	return initErr
}

func newLogger(logRoot, logName string, level LogLevel, console bool) (*Logger, error) {
	if err := os.MkdirAll(logRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logRoot, err)
	}

	logPath := filepath.Join(logRoot, logName)
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	l := &Logger{
		logLevel: level,
		logFile:  f,
	}
	if console {
		l.logger = log.New(io.MultiWriter(os.Stdout, f), "", 0)
	} else {
		l.logger = log.New(f, "", 0)
	}
	return l, nil
}

// CloseLogger closes the log file if it is open.
func CloseLogger() {
	if instance == nil {
		return
	}
	instance.mu.Lock()
	defer instance.mu.Unlock()
	if instance.logFile != nil {
		if err := instance.logFile.Close(); err != nil {
			fmt.Printf("Failed to close log file: %v\n", err)
		}
		instance.logFile = nil
	}
}

// logMessage writes one timestamped line. Key-value pairs are appended in
// k=v form.
func (l *Logger) logMessage(level LogLevel, message string, keyValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logger == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: %s %s %v\n", level.String(), message, keyValues)
		return
	}
	if level > l.logLevel {
		return
	}

	ts := time.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] %-5s %s", ts, level.String(), message)
	for i := 0; i < len(keyValues); i += 2 {
		if i+1 < len(keyValues) {
			line += fmt.Sprintf(" %v=%v", keyValues[i], keyValues[i+1])
		}
	}
	l.logger.Println(line)
	if l.logFile != nil {
		l.logFile.Sync()
	}
}

// Info logs informational messages.
func Info(message string, keyValues ...interface{}) {
	if instance == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: INFO %s %v\n", message, keyValues)
		return
	}
	instance.logMessage(LevelInfo, message, keyValues...)
}

// Debug logs debug messages.
func Debug(message string, keyValues ...interface{}) {
	if instance == nil {
		return
	}
	instance.logMessage(LevelDebug, message, keyValues...)
}

// Warn logs warning messages.
func Warn(message string, keyValues ...interface{}) {
	if instance == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: WARN %s %v\n", message, keyValues)
		return
	}
	instance.logMessage(LevelWarn, message, keyValues...)
}

// Error logs error messages.
func Error(message string, keyValues ...interface{}) {
	if instance == nil {
		fmt.Printf("LOGGING NOT INITIALIZED: ERROR %s %v\n", message, keyValues)
		return
	}
	instance.logMessage(LevelError, message, keyValues...)
}
