package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/rakebuild/cmd/cli/build"
	"github.com/tyemirov/rakebuild/pkg/taskrunner"
)

var lifecycleOperations = []taskrunner.Operation{
	taskrunner.OperationInstall,
	taskrunner.OperationRebuild,
	taskrunner.OperationForceBuild,
	taskrunner.OperationDoc,
	taskrunner.OperationTest,
}

func (application *Application) registerCommands(cobraCommand *cobra.Command) {
	builder := build.CommandBuilder{SessionDependencies: application.sessionDependencies()}

	for _, operation := range lifecycleOperations {
		operationCommand, buildError := builder.BuildOperation(operation)
		if buildError != nil {
			continue
		}
		cobraCommand.AddCommand(operationCommand)
	}

	if environmentCommand, buildError := builder.BuildEnvironment(); buildError == nil {
		cobraCommand.AddCommand(environmentCommand)
	}

	if statusCommand, buildError := builder.BuildStatus(); buildError == nil {
		cobraCommand.AddCommand(statusCommand)
	}
}

func (application *Application) sessionDependencies() build.SessionDependencies {
	return build.SessionDependencies{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConsoleLoggerProvider: func() *zap.Logger {
			return application.consoleLogger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		SettingsProvider:             application.buildSettings,
		CommandRunner:                application.commandRunner,
		PathLookup:                   application.pathLookup,
	}
}
