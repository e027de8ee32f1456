// Package build provides the Cobra commands that drive package lifecycles
// across a set of Rake packages.
package build

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tyemirov/rakebuild/internal/packages"
	flagutils "github.com/tyemirov/rakebuild/internal/utils/flags"
	"github.com/tyemirov/rakebuild/pkg/taskrunner"
)

const (
	packagesArgumentUsage          = " [srcdir...]"
	documentationFlagName          = "doc"
	documentationFlagUsage         = "Enable the documentation phase for every package"
	testsFlagName                  = "test"
	testsFlagUsage                 = "Enable the test phase for every package"
	environmentFileFlagName        = "file"
	environmentFileFlagUsage       = "Write the environment in dotenv syntax to this file instead of standard output"
	unsupportedOperationTemplate   = "unsupported operation %q"
	statusLineTemplate             = "%s\t%s\t%s\n"
	statusNotInstalledValue        = "not-installed"
	statusStaleValue               = "stale"
	statusCurrentValue             = "up-to-date"
	statusInspectionErrorTemplate  = "unable to inspect %s: %w"
	environmentRenderErrorTemplate = "unable to render environment: %w"
	environmentUseConstant         = "env"
	environmentShortDescription    = "Print the environment contributed by the packages"
	environmentLongDescription     = "env registers every package's installation prefix and Ruby library directory, then prints the resulting variables in dotenv syntax."
	statusUseConstant              = "status"
	statusShortDescription         = "Report packages whose sources changed since install"
	statusLongDescription          = "status compares each package's sources against its install stamp and reports packages that need a rebuild."
)

type operationDescription struct {
	short string
	long  string
}

var operationDescriptions = map[taskrunner.Operation]operationDescription{
	taskrunner.OperationInstall: {
		short: "Install packages",
		long:  "install registers each package's environment, runs its setup task and records the install stamp.",
	},
	taskrunner.OperationRebuild: {
		short: "Clean and reinstall packages",
		long:  "rebuild runs each package's clean task, drops the install stamp and installs again. A failing clean task is reported as a warning.",
	},
	taskrunner.OperationForceBuild: {
		short: "Force a full rebuild of packages",
		long:  "force-build cleans each package, removes generated native extension build files and installs again.",
	},
	taskrunner.OperationDoc: {
		short: "Generate package documentation",
		long:  "doc runs each package's documentation task.",
	},
	taskrunner.OperationTest: {
		short: "Run package tests",
		long:  "test runs each package's test task.",
	},
}

type environmentUpdater interface {
	UpdateEnvironment()
}

// CommandBuilder assembles the package lifecycle commands.
type CommandBuilder struct {
	SessionDependencies
}

// BuildOperation constructs the command running operation over every selected package.
func (builder *CommandBuilder) BuildOperation(operation taskrunner.Operation) (*cobra.Command, error) {
	description, known := operationDescriptions[operation]
	if !known {
		return nil, fmt.Errorf(unsupportedOperationTemplate, operation)
	}

	operationCommand := &cobra.Command{
		Use:   string(operation) + packagesArgumentUsage,
		Short: description.short,
		Long:  description.long,
		Args:  cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runOperation(command, arguments, operation)
		},
	}

	flagutils.AddToggleFlag(operationCommand.Flags(), nil, documentationFlagName, "", false, documentationFlagUsage)
	flagutils.AddToggleFlag(operationCommand.Flags(), nil, testsFlagName, "", false, testsFlagUsage)

	return operationCommand, nil
}

// BuildEnvironment constructs the env command.
func (builder *CommandBuilder) BuildEnvironment() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   environmentUseConstant + packagesArgumentUsage,
		Short: environmentShortDescription,
		Long:  environmentLongDescription,
		Args:  cobra.ArbitraryArgs,
		RunE:  builder.runEnvironment,
	}
	command.Flags().String(environmentFileFlagName, "", environmentFileFlagUsage)
	return command, nil
}

// BuildStatus constructs the status command.
func (builder *CommandBuilder) BuildStatus() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   statusUseConstant + packagesArgumentUsage,
		Short: statusShortDescription,
		Long:  statusLongDescription,
		Args:  cobra.ArbitraryArgs,
		RunE:  builder.runStatus,
	}, nil
}

func (builder *CommandBuilder) runOperation(command *cobra.Command, arguments []string, operation taskrunner.Operation) error {
	settings := builder.resolveSettings()
	definitions, keepGoing, resolveError := builder.resolveDefinitions(command, arguments, settings)
	if resolveError != nil {
		return resolveError
	}

	targetOptions, capabilityError := capabilityOptions(command, settings, operation)
	if capabilityError != nil {
		return capabilityError
	}

	activeSession, sessionError := builder.newSession(command, settings)
	if sessionError != nil {
		return sessionError
	}

	targets, targetsError := activeSession.targets(definitions, targetOptions)
	if targetsError != nil {
		return targetsError
	}

	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}
	if settings.Build.Timeout > 0 {
		var cancel context.CancelFunc
		executionContext, cancel = context.WithTimeout(executionContext, settings.Build.Timeout)
		defer cancel()
	}

	executor := taskrunner.Resolve(builder.TaskRunnerFactory, activeSession.dependencies.Runner)
	_, runError := executor.Run(executionContext, targets, operation, taskrunner.Options{KeepGoing: keepGoing})

	return errors.Join(runError, activeSession.finish())
}

func (builder *CommandBuilder) runEnvironment(command *cobra.Command, arguments []string) error {
	settings := builder.resolveSettings()
	if fileValue, fileChanged, fileError := flagutils.StringFlag(command, environmentFileFlagName); fileError == nil && fileChanged {
		settings.Environment.File = fileValue
		settings = settings.sanitize()
	}

	definitions, _, resolveError := builder.resolveDefinitions(command, arguments, settings)
	if resolveError != nil {
		return resolveError
	}

	activeSession, sessionError := builder.newSession(command, settings)
	if sessionError != nil {
		return sessionError
	}

	targets, targetsError := activeSession.targets(definitions, taskrunner.TargetOptions{})
	if targetsError != nil {
		return targetsError
	}

	for _, target := range targets {
		if updater, supported := target.Lifecycle.(environmentUpdater); supported {
			updater.UpdateEnvironment()
		}
	}

	if len(settings.Environment.File) == 0 {
		rendered, renderError := activeSession.dependencies.Environment.Render()
		if renderError != nil {
			return fmt.Errorf(environmentRenderErrorTemplate, renderError)
		}
		if len(rendered) > 0 {
			fmt.Fprintln(activeSession.dependencies.Runner.Output, rendered)
		}
	}
	return activeSession.finish()
}

func (builder *CommandBuilder) runStatus(command *cobra.Command, arguments []string) error {
	settings := builder.resolveSettings()
	definitions, _, resolveError := builder.resolveDefinitions(command, arguments, settings)
	if resolveError != nil {
		return resolveError
	}

	output := command.OutOrStdout()
	for _, definition := range definitions {
		pkg, descriptorError := definition.Descriptor(settings.Build.StampDirectory)
		if descriptorError != nil {
			return descriptorError
		}

		report, inspectionError := packages.InspectSources(pkg, settings.Build.LogDirectory)
		if inspectionError != nil {
			return fmt.Errorf(statusInspectionErrorTemplate, pkg.Name(), inspectionError)
		}

		state := statusCurrentValue
		switch {
		case !report.Installed:
			state = statusNotInstalledValue
		case report.NeedsRebuild:
			state = statusStaleValue
		}
		fmt.Fprintf(output, statusLineTemplate, pkg.Name(), state, report.LatestFile)
	}
	return nil
}

// capabilityOptions enables documentation and tests from configuration, the
// command being run and the --doc/--test flags, in increasing precedence.
func capabilityOptions(command *cobra.Command, settings Settings, operation taskrunner.Operation) (taskrunner.TargetOptions, error) {
	options := taskrunner.TargetOptions{
		Documentation: settings.Build.Documentation || operation == taskrunner.OperationDoc,
		Tests:         settings.Build.Tests || operation == taskrunner.OperationTest,
	}

	documentationValue, documentationChanged, documentationError := flagutils.BoolFlag(command, documentationFlagName)
	if documentationError != nil && !errors.Is(documentationError, flagutils.ErrFlagNotDefined) {
		return taskrunner.TargetOptions{}, documentationError
	}
	if documentationChanged {
		options.Documentation = documentationValue
	}

	testsValue, testsChanged, testsError := flagutils.BoolFlag(command, testsFlagName)
	if testsError != nil && !errors.Is(testsError, flagutils.ErrFlagNotDefined) {
		return taskrunner.TargetOptions{}, testsError
	}
	if testsChanged {
		options.Tests = testsValue
	}

	return options, nil
}
