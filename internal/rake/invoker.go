package rake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tyemirov/rakebuild/internal/environment"
	"github.com/tyemirov/rakebuild/internal/packages"
	"github.com/tyemirov/rakebuild/internal/subprocess"
)

const (
	rubyToolNameConstant                   = "ruby"
	rakeToolNameConstant                   = "rake"
	rubyScriptFlagConstant                 = "-S"
	subprocessRunnerMissingMessageConstant = "task invoker requires a subprocess runner"
	toolResolverMissingMessageConstant     = "task invoker requires a tool resolver"
	progressReporterMissingMessageConstant = "task invoker requires a progress reporter"
	environmentMissingMessageConstant      = "task invoker requires an environment store"
	taskNameMissingMessageConstant         = "rake task name must be provided"
	packageMissingMessageConstant          = "package descriptor must be provided"
	toolResolutionErrorTemplateConstant    = "unable to resolve %s for %s: %w"
	invocationStartedMessageConstant       = "invoking rake task"
	packageLogFieldNameConstant            = "package"
	phaseLogFieldNameConstant              = "phase"
	taskLogFieldNameConstant               = "task"
	invocationLogFieldNameConstant         = "invocation_id"
	logFileLogFieldNameConstant            = "log_file"
	commandLogFieldNameConstant            = "command"
)

var (
	// ErrSubprocessRunnerNotConfigured indicates a missing subprocess runner.
	ErrSubprocessRunnerNotConfigured = errors.New(subprocessRunnerMissingMessageConstant)
	// ErrToolResolverNotConfigured indicates a missing tool resolver.
	ErrToolResolverNotConfigured = errors.New(toolResolverMissingMessageConstant)
	// ErrProgressReporterNotConfigured indicates a missing progress reporter.
	ErrProgressReporterNotConfigured = errors.New(progressReporterMissingMessageConstant)
	// ErrEnvironmentNotConfigured indicates a missing environment store.
	ErrEnvironmentNotConfigured = errors.New(environmentMissingMessageConstant)
	// ErrTaskNameMissing indicates an invocation without a task name.
	ErrTaskNameMissing = errors.New(taskNameMissingMessageConstant)
	// ErrPackageNotConfigured indicates a missing package descriptor.
	ErrPackageNotConfigured = errors.New(packageMissingMessageConstant)
)

type phaseMessages struct {
	start string
	done  string
}

var progressMessagesByPhase = map[string]phaseMessages{
	PhasePostInstall: {start: "running rake setup task for %s", done: "ran rake setup task for %s"},
	PhaseDoc:         {start: "generating documentation for %s", done: "generated documentation for %s"},
	PhaseTest:        {start: "running tests for %s", done: "tests passed for %s"},
	PhaseClean:       {start: "cleaning %s", done: "cleaned %s"},
}

var defaultPhaseMessages = phaseMessages{start: "running rake for %s", done: "ran rake for %s"}

// SubprocessRunner runs a command on behalf of a package phase.
type SubprocessRunner interface {
	Run(executionContext context.Context, request subprocess.Request) error
}

// ToolResolver maps tool names to executables.
type ToolResolver interface {
	Tool(name string) string
	ToolInPath(name string) (string, error)
}

// ProgressReporter wraps a step with start and completion messages.
type ProgressReporter interface {
	Scope(packageName string, startTemplate string, doneTemplate string, step func() error) error
}

// Invocation records a single task runner call.
type Invocation struct {
	ID               string
	Phase            string
	Task             string
	WorkingDirectory string
	Executable       string
	Arguments        []string
}

// TaskInvoker runs Rake tasks as `<ruby> -S <rake> <task>` in a package's source directory.
type TaskInvoker struct {
	logger      *zap.Logger
	runner      SubprocessRunner
	tools       ToolResolver
	progress    ProgressReporter
	environment *environment.Store
	newID       func() string
}

// NewTaskInvoker validates collaborators and builds a TaskInvoker.
func NewTaskInvoker(logger *zap.Logger, runner SubprocessRunner, tools ToolResolver, progress ProgressReporter, store *environment.Store) (*TaskInvoker, error) {
	if runner == nil {
		return nil, ErrSubprocessRunnerNotConfigured
	}
	if tools == nil {
		return nil, ErrToolResolverNotConfigured
	}
	if progress == nil {
		return nil, ErrProgressReporterNotConfigured
	}
	if store == nil {
		return nil, ErrEnvironmentNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskInvoker{
		logger:      logger,
		runner:      runner,
		tools:       tools,
		progress:    progress,
		environment: store,
		newID:       func() string { return uuid.NewString() },
	}, nil
}

// Prepare resolves the interpreter and task runner and builds the invocation
// record without running anything.
func (invoker *TaskInvoker) Prepare(pkg *packages.Package, phase string, task string) (Invocation, error) {
	if pkg == nil {
		return Invocation{}, ErrPackageNotConfigured
	}
	trimmedTask := strings.TrimSpace(task)
	if len(trimmedTask) == 0 {
		return Invocation{}, ErrTaskNameMissing
	}

	rubyExecutable, rubyError := invoker.tools.ToolInPath(rubyToolNameConstant)
	if rubyError != nil {
		return Invocation{}, fmt.Errorf(toolResolutionErrorTemplateConstant, rubyToolNameConstant, pkg.Name(), rubyError)
	}
	rakeTool := invoker.tools.Tool(rakeToolNameConstant)

	return Invocation{
		ID:               invoker.newID(),
		Phase:            phase,
		Task:             trimmedTask,
		WorkingDirectory: pkg.SourceDirectory(),
		Executable:       rubyExecutable,
		Arguments:        []string{rubyScriptFlagConstant, rakeTool, trimmedTask},
	}, nil
}

// Invoke runs task for pkg under the given phase label. Failures of the
// task itself are returned as *subprocess.SubcommandFailedError.
func (invoker *TaskInvoker) Invoke(executionContext context.Context, pkg *packages.Package, phase string, task string) error {
	invocation, prepareError := invoker.Prepare(pkg, phase, task)
	if prepareError != nil {
		return prepareError
	}

	messages, known := progressMessagesByPhase[phase]
	if !known {
		messages = defaultPhaseMessages
	}

	return invoker.progress.Scope(pkg.Name(), messages.start, messages.done, func() error {
		invoker.logger.Debug(invocationStartedMessageConstant,
			zap.String(packageLogFieldNameConstant, pkg.Name()),
			zap.String(phaseLogFieldNameConstant, invocation.Phase),
			zap.String(taskLogFieldNameConstant, invocation.Task),
			zap.String(invocationLogFieldNameConstant, invocation.ID),
			zap.Strings(commandLogFieldNameConstant, append([]string{invocation.Executable}, invocation.Arguments...)),
		)
		return invoker.runner.Run(executionContext, subprocess.Request{
			InvocationID:     invocation.ID,
			Package:          pkg.Name(),
			Phase:            invocation.Phase,
			Executable:       invocation.Executable,
			Arguments:        invocation.Arguments,
			WorkingDirectory: invocation.WorkingDirectory,
			Environment:      invoker.environment.Values(),
		})
	})
}
