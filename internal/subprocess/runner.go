// Package subprocess runs package build commands, capturing each invocation's
// output in a per-phase log file and reporting failures as SubcommandFailedError.
package subprocess

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/rakebuild/internal/execshell"
)

const (
	logFileNameTemplateConstant          = "%s-%s.log"
	logDirectoryPermissionConstant       = 0o755
	logFilePermissionConstant            = 0o644
	logHeaderTemplateConstant            = "# invocation: %s\n# started: %s\n# directory: %s\n# command: %s\n\n"
	logFooterTemplateConstant            = "\n# exit code: %d\n"
	logFooterErrorTemplateConstant       = "\n# error: %v\n"
	executorMissingMessageConstant       = "subprocess runner requires a shell executor"
	logDirectoryMissingMessageConstant   = "subprocess runner requires a log directory"
	packageNameMissingMessageConstant    = "subprocess request requires a package name"
	phaseMissingMessageConstant          = "subprocess request requires a phase"
	logFilePreparationErrorTemplate      = "unable to prepare log file for %s/%s: %w"
	subcommandFailedMessageTemplate      = "%s: %s failed, see %s for details"
	subcommandFailedCauseMessageTemplate = "%s: %s failed (%v), see %s for details"
	packageLogFieldNameConstant          = "package"
	phaseLogFieldNameConstant            = "phase"
	logFileLogFieldNameConstant          = "log_file"
	invocationLogFieldNameConstant       = "invocation_id"
	logWriteFailedMessageConstant        = "unable to write subprocess log"
	sanitizedNameReplacementConstant     = "_"
)

var (
	// ErrExecutorNotConfigured indicates the runner was built without a shell executor.
	ErrExecutorNotConfigured = errors.New(executorMissingMessageConstant)
	// ErrLogDirectoryNotConfigured indicates the runner was built without a log directory.
	ErrLogDirectoryNotConfigured = errors.New(logDirectoryMissingMessageConstant)
	// ErrPackageNameMissing indicates a request without a package name.
	ErrPackageNameMissing = errors.New(packageNameMissingMessageConstant)
	// ErrPhaseMissing indicates a request without a phase label.
	ErrPhaseMissing = errors.New(phaseMissingMessageConstant)
)

// Executor runs a single shell command.
type Executor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// Request describes one command invocation on behalf of a package phase.
type Request struct {
	InvocationID     string
	Package          string
	Phase            string
	Executable       string
	Arguments        []string
	WorkingDirectory string
	Environment      map[string]string
}

// CommandLine renders the executable and its arguments separated by spaces.
func (request Request) CommandLine() string {
	return strings.Join(append([]string{request.Executable}, request.Arguments...), " ")
}

// SubcommandFailedError reports a failed invocation. LogFile is always set.
type SubcommandFailedError struct {
	Package  string
	Phase    string
	Command  string
	LogFile  string
	ExitCode int
	Cause    error
}

// Error describes the failed phase and where its output was captured.
func (failure *SubcommandFailedError) Error() string {
	var commandError execshell.CommandFailedError
	if failure.Cause != nil && !errors.As(failure.Cause, &commandError) {
		return fmt.Sprintf(subcommandFailedCauseMessageTemplate, failure.Package, failure.Phase, failure.Cause, failure.LogFile)
	}
	return fmt.Sprintf(subcommandFailedMessageTemplate, failure.Package, failure.Phase, failure.LogFile)
}

// Unwrap exposes the underlying execution error.
func (failure *SubcommandFailedError) Unwrap() error {
	return failure.Cause
}

// Runner executes requests and writes their output to <logDirectory>/<package>-<phase>.log.
type Runner struct {
	executor     Executor
	logDirectory string
	logger       *zap.Logger
	clock        func() time.Time
}

// NewRunner constructs a Runner.
func NewRunner(logger *zap.Logger, executor Executor, logDirectory string) (*Runner, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	trimmedLogDirectory := strings.TrimSpace(logDirectory)
	if len(trimmedLogDirectory) == 0 {
		return nil, ErrLogDirectoryNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		executor:     executor,
		logDirectory: trimmedLogDirectory,
		logger:       logger,
		clock:        time.Now,
	}, nil
}

// LogFilePath returns the log file used for the given package and phase.
func (runner *Runner) LogFilePath(packageName string, phase string) string {
	return filepath.Join(runner.logDirectory, fmt.Sprintf(logFileNameTemplateConstant, sanitizeName(packageName), sanitizeName(phase)))
}

// Run executes the request. Failures are reported as *SubcommandFailedError.
func (runner *Runner) Run(executionContext context.Context, request Request) error {
	if len(strings.TrimSpace(request.Package)) == 0 {
		return ErrPackageNameMissing
	}
	if len(strings.TrimSpace(request.Phase)) == 0 {
		return ErrPhaseMissing
	}

	logFilePath := runner.LogFilePath(request.Package, request.Phase)
	logFile, openError := runner.openLogFile(logFilePath)
	if openError != nil {
		return fmt.Errorf(logFilePreparationErrorTemplate, request.Package, request.Phase, openError)
	}
	defer logFile.Close()

	runner.writeLog(logFile, request, fmt.Sprintf(logHeaderTemplateConstant, request.InvocationID, runner.clock().Format(time.RFC3339), request.WorkingDirectory, request.CommandLine()))

	command := execshell.ShellCommand{
		Name: execshell.CommandName(request.Executable),
		Details: execshell.CommandDetails{
			Arguments:            append([]string{}, request.Arguments...),
			WorkingDirectory:     request.WorkingDirectory,
			EnvironmentVariables: request.Environment,
		},
	}

	result, executionError := runner.executor.Execute(executionContext, command)
	runner.writeLog(logFile, request, result.StandardOutput)
	runner.writeLog(logFile, request, result.StandardError)
	if executionError != nil {
		var commandFailure execshell.CommandFailedError
		if !errors.As(executionError, &commandFailure) {
			runner.writeLog(logFile, request, fmt.Sprintf(logFooterErrorTemplateConstant, executionError))
		} else {
			runner.writeLog(logFile, request, fmt.Sprintf(logFooterTemplateConstant, result.ExitCode))
		}
		return &SubcommandFailedError{
			Package:  request.Package,
			Phase:    request.Phase,
			Command:  request.CommandLine(),
			LogFile:  logFilePath,
			ExitCode: result.ExitCode,
			Cause:    executionError,
		}
	}

	runner.writeLog(logFile, request, fmt.Sprintf(logFooterTemplateConstant, result.ExitCode))
	return nil
}

func (runner *Runner) openLogFile(logFilePath string) (*os.File, error) {
	if mkdirError := os.MkdirAll(filepath.Dir(logFilePath), logDirectoryPermissionConstant); mkdirError != nil {
		return nil, mkdirError
	}
	return os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, logFilePermissionConstant)
}

func (runner *Runner) writeLog(logFile *os.File, request Request, content string) {
	if len(content) == 0 {
		return
	}
	if _, writeError := logFile.WriteString(content); writeError != nil {
		runner.logger.Warn(logWriteFailedMessageConstant,
			zap.String(packageLogFieldNameConstant, request.Package),
			zap.String(phaseLogFieldNameConstant, request.Phase),
			zap.String(logFileLogFieldNameConstant, logFile.Name()),
			zap.String(invocationLogFieldNameConstant, request.InvocationID),
			zap.Error(writeError),
		)
	}
}

func sanitizeName(name string) string {
	trimmed := strings.TrimSpace(name)
	return strings.NewReplacer("/", sanitizedNameReplacementConstant, string(filepath.Separator), sanitizedNameReplacementConstant, " ", sanitizedNameReplacementConstant).Replace(trimmed)
}
