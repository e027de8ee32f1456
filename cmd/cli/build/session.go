package build

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/rakebuild/internal/execshell"
	"github.com/tyemirov/rakebuild/internal/manifest"
	"github.com/tyemirov/rakebuild/internal/metrics"
	"github.com/tyemirov/rakebuild/internal/tools"
	flagutils "github.com/tyemirov/rakebuild/internal/utils/flags"
	"github.com/tyemirov/rakebuild/internal/utils/sources"
	"github.com/tyemirov/rakebuild/pkg/taskrunner"
)

const (
	environmentFileWriteErrorTemplate = "unable to write environment file %s: %w"
	metricsTextfileWriteErrorTemplate = "unable to write metrics textfile %s: %w"
	environmentFileWrittenMessage     = "environment file written"
	metricsTextfileWrittenMessage     = "metrics textfile written"
	pathLogFieldName                  = "path"
)

// LoggerProvider yields the logger current at command execution time.
type LoggerProvider func() *zap.Logger

// SessionDependencies carries the collaborators shared by every build command.
type SessionDependencies struct {
	LoggerProvider               LoggerProvider
	ConsoleLoggerProvider        LoggerProvider
	HumanReadableLoggingProvider func() bool
	SettingsProvider             func() Settings
	CommandRunner                execshell.CommandRunner
	PathLookup                   tools.PathLookup
	TaskRunnerFactory            taskrunner.Factory
}

type session struct {
	settings     Settings
	logger       *zap.Logger
	dependencies taskrunner.DependenciesResult
	prometheus   *metrics.PrometheusRecorder
}

func (dependencies SessionDependencies) resolveSettings() Settings {
	if dependencies.SettingsProvider == nil {
		return DefaultSettings().sanitize()
	}
	return dependencies.SettingsProvider().sanitize()
}

func (dependencies SessionDependencies) resolveLogger() *zap.Logger {
	if dependencies.LoggerProvider == nil {
		return zap.NewNop()
	}
	if logger := dependencies.LoggerProvider(); logger != nil {
		return logger
	}
	return zap.NewNop()
}

// resolveDefinitions selects packages from the arguments, the configured
// package list or the manifest. Flags override configuration.
func (dependencies SessionDependencies) resolveDefinitions(command *cobra.Command, arguments []string, settings Settings) ([]manifest.PackageDefinition, bool, error) {
	executionFlags, _ := flagutils.ResolveExecutionFlags(command)

	keepGoing := settings.Build.KeepGoing
	if executionFlags.KeepGoingSet {
		keepGoing = executionFlags.KeepGoing
	}

	manifestPath := settings.Build.Manifest
	if executionFlags.ManifestSet {
		manifestPath = executionFlags.Manifest
	}

	positional := arguments
	if len(positional) == 0 && !executionFlags.ManifestSet {
		positional = settings.Build.Packages
	}

	definitions, resolveError := sources.Resolve(command, positional, manifestPath)
	if resolveError != nil {
		return nil, false, resolveError
	}
	return definitions, keepGoing, nil
}

func (dependencies SessionDependencies) newSession(command *cobra.Command, settings Settings) (*session, error) {
	logger := dependencies.resolveLogger()

	var recorder metrics.Recorder
	var prometheusRecorder *metrics.PrometheusRecorder
	if len(settings.Metrics.Textfile) > 0 {
		prometheusRecorder = metrics.NewPrometheusRecorder(prom.NewRegistry())
		recorder = prometheusRecorder
	}

	resolved, buildError := taskrunner.BuildDependencies(
		taskrunner.DependenciesConfig{
			LoggerProvider:               dependencies.LoggerProvider,
			ConsoleLoggerProvider:        dependencies.ConsoleLoggerProvider,
			HumanReadableLoggingProvider: dependencies.HumanReadableLoggingProvider,
			CommandRunner:                dependencies.CommandRunner,
			PathLookup:                   dependencies.PathLookup,
			ToolOverrides:                settings.Tools,
			LogDirectory:                 settings.Build.LogDirectory,
			InheritEnvironment:           settings.Environment.Inherit,
			Recorder:                     recorder,
		},
		taskrunner.DependenciesOptions{Command: command},
	)
	if buildError != nil {
		return nil, buildError
	}

	return &session{
		settings:     settings,
		logger:       logger,
		dependencies: resolved,
		prometheus:   prometheusRecorder,
	}, nil
}

func (activeSession *session) targets(definitions []manifest.PackageDefinition, options taskrunner.TargetOptions) ([]taskrunner.Target, error) {
	options.StampDirectory = activeSession.settings.Build.StampDirectory
	return activeSession.dependencies.NewTargets(definitions, options)
}

// finish exports the environment file and metrics textfile when configured.
func (activeSession *session) finish() error {
	var finishErrors []error

	if environmentFile := activeSession.settings.Environment.File; len(environmentFile) > 0 {
		if writeError := activeSession.dependencies.Environment.WriteFile(environmentFile); writeError != nil {
			finishErrors = append(finishErrors, fmt.Errorf(environmentFileWriteErrorTemplate, environmentFile, writeError))
		} else {
			activeSession.logger.Debug(environmentFileWrittenMessage, zap.String(pathLogFieldName, environmentFile))
		}
	}

	if textfile := activeSession.settings.Metrics.Textfile; len(textfile) > 0 && activeSession.prometheus != nil {
		if writeError := activeSession.prometheus.WriteTextfile(textfile); writeError != nil {
			finishErrors = append(finishErrors, fmt.Errorf(metricsTextfileWriteErrorTemplate, textfile, writeError))
		} else {
			activeSession.logger.Debug(metricsTextfileWrittenMessage, zap.String(pathLogFieldName, textfile))
		}
	}

	return errors.Join(finishErrors...)
}
