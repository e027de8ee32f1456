package execshell

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	commandStartedMessageConstant       = "command started"
	commandCompletedMessageConstant     = "command completed"
	commandFailedMessageConstant        = "command exited with non-zero status"
	commandUnavailableMessageConstant   = "command could not be started"
	commandFieldNameConstant            = "command"
	argumentsFieldNameConstant          = "arguments"
	workingDirectoryFieldNameConstant   = "working_directory"
	exitCodeFieldNameConstant           = "exit_code"
	standardErrorFieldNameConstant      = "stderr"
	consoleStartedTemplateConstant      = "$ %s"
	consoleDirectoryTemplateConstant    = "$ %s  [%s]"
	consoleCompletedTemplateConstant    = "ok: %s"
	consoleFailedTemplateConstant       = "exit %d: %s"
	consoleFailedDetailTemplateConstant = "exit %d: %s: %s"
	consoleUnavailableTemplateConstant  = "cannot run %s: %v"
)

// commandEvents receives the lifecycle of a single execution.
type commandEvents interface {
	started(command ShellCommand)
	completed(command ShellCommand, result ExecutionResult)
	failed(command ShellCommand, result ExecutionResult)
	unavailable(command ShellCommand, cause error)
}

type structuredEvents struct {
	logger *zap.Logger
}

func (events structuredEvents) started(command ShellCommand) {
	events.logger.Info(commandStartedMessageConstant,
		zap.String(commandFieldNameConstant, string(command.Name)),
		zap.Strings(argumentsFieldNameConstant, command.Details.Arguments),
		zap.String(workingDirectoryFieldNameConstant, command.Details.WorkingDirectory),
	)
}

func (events structuredEvents) completed(command ShellCommand, result ExecutionResult) {
	events.logger.Info(commandCompletedMessageConstant,
		zap.String(commandFieldNameConstant, string(command.Name)),
		zap.Int(exitCodeFieldNameConstant, result.ExitCode),
	)
}

func (events structuredEvents) failed(command ShellCommand, result ExecutionResult) {
	events.logger.Warn(commandFailedMessageConstant,
		zap.String(commandFieldNameConstant, string(command.Name)),
		zap.Int(exitCodeFieldNameConstant, result.ExitCode),
		zap.String(standardErrorFieldNameConstant, result.StandardError),
	)
}

func (events structuredEvents) unavailable(command ShellCommand, cause error) {
	events.logger.Error(commandUnavailableMessageConstant,
		zap.String(commandFieldNameConstant, string(command.Name)),
		zap.Error(cause),
	)
}

// consoleEvents writes shell-transcript style lines for the console format.
type consoleEvents struct {
	logger *zap.Logger
}

func (events consoleEvents) started(command ShellCommand) {
	if len(command.Details.WorkingDirectory) == 0 {
		events.logger.Info(fmt.Sprintf(consoleStartedTemplateConstant, command.CommandLine()))
		return
	}
	events.logger.Info(fmt.Sprintf(consoleDirectoryTemplateConstant, command.CommandLine(), command.Details.WorkingDirectory))
}

func (events consoleEvents) completed(command ShellCommand, _ ExecutionResult) {
	events.logger.Info(fmt.Sprintf(consoleCompletedTemplateConstant, command.CommandLine()))
}

func (events consoleEvents) failed(command ShellCommand, result ExecutionResult) {
	diagnostic := result.Diagnostic(1)
	if len(diagnostic) == 0 {
		events.logger.Warn(fmt.Sprintf(consoleFailedTemplateConstant, result.ExitCode, command.CommandLine()))
		return
	}
	events.logger.Warn(fmt.Sprintf(consoleFailedDetailTemplateConstant, result.ExitCode, command.CommandLine(), diagnostic[0]))
}

func (events consoleEvents) unavailable(command ShellCommand, cause error) {
	events.logger.Error(fmt.Sprintf(consoleUnavailableTemplateConstant, command.CommandLine(), cause))
}
