package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant = "shell executor command runner not configured"
	commandNameMissingMessageConstant         = "shell command name not provided"
	commandFailedTemplateConstant             = "%s exited with status %d"
	commandFailedDetailTemplateConstant       = "%s exited with status %d: %s"
	commandUnavailableTemplateConstant        = "%s could not be started"
	diagnosticSeparatorConstant               = " | "
	errorDiagnosticLineLimitConstant          = 3
)

// CommandName identifies an executable, either by bare name or absolute path.
type CommandName string

// CommandDetails carries everything but the executable.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
}

// ShellCommand is one process invocation.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// CommandLine renders the executable followed by its arguments.
func (command ShellCommand) CommandLine() string {
	return strings.Join(append([]string{string(command.Name)}, command.Details.Arguments...), " ")
}

// ExecutionResult captures observable command results.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// Diagnostic returns up to limit non-empty lines of standard error, or of
// standard output when nothing was written to standard error.
func (result ExecutionResult) Diagnostic(limit int) []string {
	for _, stream := range []string{result.StandardError, result.StandardOutput} {
		lines := make([]string, 0, limit)
		for _, line := range strings.Split(stream, "\n") {
			if len(lines) == limit {
				break
			}
			if trimmed := strings.TrimSpace(line); len(trimmed) > 0 {
				lines = append(lines, trimmed)
			}
		}
		if len(lines) > 0 {
			return lines
		}
	}
	return nil
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

var (
	// ErrLoggerNotConfigured indicates the logger dependency was missing.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates the command runner dependency was missing.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
	// ErrCommandNameMissing indicates the command name was not provided.
	ErrCommandNameMissing = errors.New(commandNameMissingMessageConstant)
)

// CommandFailedError reports a command that ran and exited with a non-zero status.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

func (commandError CommandFailedError) Error() string {
	diagnostic := commandError.Result.Diagnostic(errorDiagnosticLineLimitConstant)
	if len(diagnostic) == 0 {
		return fmt.Sprintf(commandFailedTemplateConstant, commandError.Command.CommandLine(), commandError.Result.ExitCode)
	}
	return fmt.Sprintf(commandFailedDetailTemplateConstant, commandError.Command.CommandLine(), commandError.Result.ExitCode, strings.Join(diagnostic, diagnosticSeparatorConstant))
}

// CommandExecutionError reports a command the runner could not start or wait for.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandUnavailableTemplateConstant, executionError.Command.CommandLine())
}

// Unwrap exposes the runner failure.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// ShellExecutor runs commands through a CommandRunner and reports each step
// to the log.
type ShellExecutor struct {
	commandRunner CommandRunner
	events        commandEvents
}

// NewShellExecutor builds an executor. humanReadableLogging selects one-line
// console messages instead of structured fields.
func NewShellExecutor(logger *zap.Logger, commandRunner CommandRunner, humanReadableLogging bool) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if commandRunner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	var events commandEvents = structuredEvents{logger: logger}
	if humanReadableLogging {
		events = consoleEvents{logger: logger}
	}
	return &ShellExecutor{commandRunner: commandRunner, events: events}, nil
}

// Execute runs command. A non-zero exit returns the captured result together
// with a CommandFailedError so callers can keep the output.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if len(strings.TrimSpace(string(command.Name))) == 0 {
		return ExecutionResult{}, ErrCommandNameMissing
	}

	executor.events.started(command)
	result, runnerError := executor.commandRunner.Run(executionContext, command)
	switch {
	case runnerError != nil:
		executor.events.unavailable(command, runnerError)
		return result, CommandExecutionError{Command: command, Cause: runnerError}
	case result.ExitCode != 0:
		executor.events.failed(command, result)
		return result, CommandFailedError{Command: command, Result: result}
	default:
		executor.events.completed(command, result)
		return result, nil
	}
}
