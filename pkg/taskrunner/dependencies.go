package taskrunner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/rakebuild/internal/environment"
	"github.com/tyemirov/rakebuild/internal/execshell"
	"github.com/tyemirov/rakebuild/internal/manifest"
	"github.com/tyemirov/rakebuild/internal/metrics"
	"github.com/tyemirov/rakebuild/internal/packages"
	"github.com/tyemirov/rakebuild/internal/progress"
	"github.com/tyemirov/rakebuild/internal/rake"
	"github.com/tyemirov/rakebuild/internal/subprocess"
	"github.com/tyemirov/rakebuild/internal/tools"
)

var errLogDirectoryMissing = errors.New("taskrunner.dependencies.log_directory: log directory must be provided")

// DependenciesConfig captures providers required to build package drivers.
type DependenciesConfig struct {
	LoggerProvider               func() *zap.Logger
	ConsoleLoggerProvider        func() *zap.Logger
	HumanReadableLoggingProvider func() bool
	CommandRunner                execshell.CommandRunner
	PathLookup                   tools.PathLookup
	ToolOverrides                map[string]string
	LogDirectory                 string
	InheritEnvironment           bool
	Environment                  *environment.Store
	Recorder                     metrics.Recorder
}

// DependenciesOptions allows per-command overrides when resolving dependencies.
type DependenciesOptions struct {
	Command *cobra.Command
	Output  io.Writer
	Errors  io.Writer
}

// TargetOptions apply to every package built from a definition.
type TargetOptions struct {
	StampDirectory string
	Documentation  bool
	Tests          bool
}

// DependenciesResult exposes resolved collaborators along with the runner wrapper.
type DependenciesResult struct {
	Runner      Dependencies
	Logger      *zap.Logger
	Invoker     *rake.TaskInvoker
	Tools       *tools.Resolver
	Subprocess  *subprocess.Runner
	Environment *environment.Store
	Progress    *progress.Reporter
	Recorder    metrics.Recorder
}

// BuildDependencies resolves shell, subprocess, tool, progress and environment
// collaborators shared by every package driver of a run.
func BuildDependencies(config DependenciesConfig, options DependenciesOptions) (DependenciesResult, error) {
	logger := resolveLogger(config.LoggerProvider)
	consoleLogger := resolveLogger(config.ConsoleLoggerProvider)
	humanReadable := false
	if config.HumanReadableLoggingProvider != nil {
		humanReadable = config.HumanReadableLoggingProvider()
	}

	commandRunner := config.CommandRunner
	if commandRunner == nil {
		commandRunner = execshell.OSCommandRunner{}
	}
	shellExecutor, executorError := execshell.NewShellExecutor(logger, commandRunner, humanReadable)
	if executorError != nil {
		return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.shell_executor: %w", executorError)
	}

	logDirectory := strings.TrimSpace(config.LogDirectory)
	if len(logDirectory) == 0 {
		return DependenciesResult{}, errLogDirectoryMissing
	}
	subprocessRunner, runnerError := subprocess.NewRunner(logger, shellExecutor, logDirectory)
	if runnerError != nil {
		return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.subprocess_runner: %w", runnerError)
	}

	toolResolver := tools.NewResolver(config.ToolOverrides, config.PathLookup)
	progressReporter := progress.NewReporter(consoleLogger)

	store := config.Environment
	if store == nil {
		store = environment.NewStore(config.InheritEnvironment, nil)
	}

	recorder := config.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	invoker, invokerError := rake.NewTaskInvoker(logger, subprocessRunner, toolResolver, progressReporter, store)
	if invokerError != nil {
		return DependenciesResult{}, fmt.Errorf("taskrunner.dependencies.task_invoker: %w", invokerError)
	}

	return DependenciesResult{
		Runner: Dependencies{
			Logger: logger,
			Output: resolveWriter(options.Output, options.Command, true),
			Errors: resolveWriter(options.Errors, options.Command, false),
		},
		Logger:      logger,
		Invoker:     invoker,
		Tools:       toolResolver,
		Subprocess:  subprocessRunner,
		Environment: store,
		Progress:    progressReporter,
		Recorder:    recorder,
	}, nil
}

// NewTarget builds the Rake driver for a package definition.
func (result DependenciesResult) NewTarget(definition manifest.PackageDefinition, options TargetOptions) (Target, error) {
	pkg, descriptorError := definition.Descriptor(options.StampDirectory)
	if descriptorError != nil {
		return Target{}, fmt.Errorf("taskrunner.dependencies.descriptor: %w", descriptorError)
	}

	base, baseError := packages.NewBaseLifecycle(result.Logger, pkg)
	if baseError != nil {
		return Target{}, fmt.Errorf("taskrunner.dependencies.base_lifecycle: %w", baseError)
	}

	driver, driverError := rake.NewDriver(pkg, rake.Dependencies{
		Logger:      result.Logger,
		Base:        base,
		Invoker:     result.Invoker,
		Environment: result.Environment,
		Progress:    result.Progress,
		Recorder:    result.Recorder,
	})
	if driverError != nil {
		return Target{}, fmt.Errorf("taskrunner.dependencies.driver: %w", driverError)
	}

	driver.EnableDocumentation(options.Documentation)
	driver.EnableTests(options.Tests)
	definition.Configure(driver)

	return Target{Name: pkg.Name(), Package: pkg, Lifecycle: driver}, nil
}

// NewTargets builds drivers for every definition, preserving order.
func (result DependenciesResult) NewTargets(definitions []manifest.PackageDefinition, options TargetOptions) ([]Target, error) {
	targets := make([]Target, 0, len(definitions))
	for _, definition := range definitions {
		target, targetError := result.NewTarget(definition, options)
		if targetError != nil {
			return nil, targetError
		}
		targets = append(targets, target)
	}
	return targets, nil
}

func resolveLogger(provider func() *zap.Logger) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveWriter(provided io.Writer, command *cobra.Command, useStdout bool) io.Writer {
	if provided != nil {
		return provided
	}
	if command != nil {
		if useStdout {
			if writer := command.OutOrStdout(); writer != nil && writer != io.Discard {
				return writer
			}
		} else {
			if writer := command.ErrOrStderr(); writer != nil && writer != io.Discard {
				return writer
			}
		}
	}
	if useStdout {
		return os.Stdout
	}
	return os.Stderr
}
