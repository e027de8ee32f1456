package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

// LogFormat enumerates supported logging encodings.
type LogFormat string

// Supported log levels.
const (
	LogLevelDebug LogLevel = LogLevel("debug")
	LogLevelInfo  LogLevel = LogLevel("info")
	LogLevelWarn  LogLevel = LogLevel("warn")
	LogLevelError LogLevel = LogLevel("error")
)

// Supported log formats.
const (
	LogFormatStructured LogFormat = LogFormat("structured")
	LogFormatConsole    LogFormat = LogFormat("console")
)

const (
	unsupportedLogLevelTemplateConstant  = "unsupported log level %q"
	unsupportedLogFormatTemplateConstant = "unsupported log format %q"
	loggerBuildErrorTemplateConstant     = "unable to build logger: %w"
	consoleTimeLayoutConstant            = "15:04:05"
)

// LoggerOutputs holds the loggers produced for a CLI run. DiagnosticLogger
// carries structured diagnostics; ConsoleLogger carries human-oriented
// progress messages and is a no-op in structured mode.
type LoggerOutputs struct {
	DiagnosticLogger *zap.Logger
	ConsoleLogger    *zap.Logger
}

// LoggerFactory builds zap loggers writing to standard error.
type LoggerFactory struct{}

// NewLoggerFactory constructs a LoggerFactory.
func NewLoggerFactory() LoggerFactory {
	return LoggerFactory{}
}

// CreateLoggerOutputs builds the diagnostic and console loggers. Standard
// error is captured when this is called.
func (factory LoggerFactory) CreateLoggerOutputs(level LogLevel, format LogFormat) (LoggerOutputs, error) {
	zapLevel, levelError := parseLogLevel(level)
	if levelError != nil {
		return LoggerOutputs{}, levelError
	}

	sink := zapcore.Lock(os.Stderr)
	switch LogFormat(strings.ToLower(strings.TrimSpace(string(format)))) {
	case LogFormatStructured:
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		diagnosticLogger := zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, zapLevel))
		return LoggerOutputs{DiagnosticLogger: diagnosticLogger, ConsoleLogger: zap.NewNop()}, nil
	case LogFormatConsole:
		diagnosticConfig := zap.NewDevelopmentEncoderConfig()
		diagnosticConfig.EncodeTime = zapcore.TimeEncoderOfLayout(consoleTimeLayoutConstant)
		diagnosticConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		diagnosticLogger := zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(diagnosticConfig), sink, zapLevel))

		consoleConfig := zapcore.EncoderConfig{
			MessageKey:     "message",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeDuration: zapcore.StringDurationEncoder,
		}
		consoleLogger := zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), sink, zapLevel))
		return LoggerOutputs{DiagnosticLogger: diagnosticLogger, ConsoleLogger: consoleLogger}, nil
	default:
		return LoggerOutputs{}, fmt.Errorf(loggerBuildErrorTemplateConstant, fmt.Errorf(unsupportedLogFormatTemplateConstant, format))
	}
}

func parseLogLevel(level LogLevel) (zapcore.Level, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(level)))) {
	case LogLevelDebug:
		return zapcore.DebugLevel, nil
	case LogLevelInfo:
		return zapcore.InfoLevel, nil
	case LogLevelWarn:
		return zapcore.WarnLevel, nil
	case LogLevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf(loggerBuildErrorTemplateConstant, fmt.Errorf(unsupportedLogLevelTemplateConstant, level))
	}
}
