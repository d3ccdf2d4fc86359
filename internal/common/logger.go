package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

// GetLogger returns the global logger instance
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(consoleWriter(&LoggingConfig{}))
	}
	return globalLogger
}

func timeFormat(config *LoggingConfig) string {
	if config.TimeFormat != "" {
		return config.TimeFormat
	}
	return "15:04:05"
}

func outputFormat(config *LoggingConfig) models.OutputFormat {
	if config.Format == "json" {
		return models.OutputFormatJSON
	}
	return models.OutputFormatLogfmt
}

func consoleWriter(config *LoggingConfig) models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       timeFormat(config),
		OutputType:       outputFormat(config),
		DisableTimestamp: false,
	}
}

// LogsDir returns the directory holding log and crash files
func LogsDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return filepath.Join(DefaultDataDir(), "logs")
	}
	return filepath.Join(filepath.Dir(execPath), "logs")
}

// InitLogger initializes the arbor logger with configuration
func InitLogger(config *Config) arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	logger := arbor.NewLogger()
	logging := &config.Logging

	hasFileOutput := false
	hasStdoutOutput := false
	for _, output := range logging.Output {
		if output == "file" {
			hasFileOutput = true
		}
		if output == "stdout" || output == "console" {
			hasStdoutOutput = true
		}
	}

	if hasFileOutput {
		logsDir := LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			fmt.Printf("Warning: Failed to create logs directory: %v\n", err)
		} else {
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:             models.LogWriterTypeFile,
				FileName:         filepath.Join(logsDir, "usagebar.log"),
				TimeFormat:       timeFormat(logging),
				MaxSize:          10 * 1024 * 1024, // 10 MB
				MaxBackups:       3,
				OutputType:       outputFormat(logging),
				DisableTimestamp: false,
			})
		}
	}

	if hasStdoutOutput {
		logger = logger.WithConsoleWriter(consoleWriter(logging))
	}

	logger = logger.WithLevelFromString(logging.Level)

	globalLogger = logger
	return logger
}

// GetLogFilePath returns the configured log file path from the logger
func GetLogFilePath(logger arbor.ILogger) string {
	if logger != nil {
		return logger.GetLogFilePath()
	}
	return ""
}
