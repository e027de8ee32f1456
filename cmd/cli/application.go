package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/rakebuild/internal/execshell"
	"github.com/tyemirov/rakebuild/internal/tools"
	"github.com/tyemirov/rakebuild/internal/utils"
	flagutils "github.com/tyemirov/rakebuild/internal/utils/flags"
)

const (
	applicationNameConstant                            = "rakebuild"
	applicationShortDescriptionConstant                = "Build, install, document and test Rake-based Ruby packages"
	applicationLongDescriptionConstant                 = "rakebuild drives the lifecycle of Ruby packages built with Rake: it propagates their environment, runs their setup, clean, documentation and test tasks, and keeps install stamps."
	configFileFlagNameConstant                         = "config"
	configFileFlagUsageConstant                        = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                           = "log-level"
	logLevelFlagUsageConstant                          = "Override the configured log level."
	logFormatFlagNameConstant                          = "log-format"
	logFormatFlagUsageConstant                         = "Override the configured log format (structured or console)."
	environmentPrefixConstant                          = "RAKEBUILD"
	configurationNameConstant                          = "config"
	configurationTypeConstant                          = "yaml"
	configurationFileNameConstant                      = configurationNameConstant + "." + configurationTypeConstant
	userConfigurationDirectoryNameConstant             = ".rakebuild"
	configurationSearchPathEnvironmentVariableConstant = "RAKEBUILD_CONFIG_SEARCH_PATH"
	configurationLoadErrorTemplateConstant             = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant                = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant                    = "unable to flush logger: %w"
	configurationLoadedMessageConstant                 = "configuration loaded"
	configurationLoadedConsoleTemplateConstant         = "configuration loaded from %s (log level %s, log format %s)"
	embeddedConfigurationSourceConstant                = "embedded defaults"
	logFieldConfigFileConstant                         = "config_file"
	logFieldLogLevelConstant                           = "log_level"
	logFieldLogFormatConstant                          = "log_format"
)

// defaultConfigurationValues seed viper so that keys absent from every
// layer still decode to usable values.
var defaultConfigurationValues = map[string]any{
	"common.log_level":      string(utils.LogLevelInfo),
	"common.log_format":     string(utils.LogFormatConsole),
	"build.log_directory":   "log",
	"build.stamp_directory": ".rakebuild",
	"environment.inherit":   true,
}

type loggerOutputsFactory interface {
	CreateLoggerOutputs(utils.LogLevel, utils.LogFormat) (utils.LoggerOutputs, error)
}

// Application owns the root command and the state every subcommand reads
// after configuration has been loaded.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         loggerOutputsFactory
	logger                *zap.Logger
	consoleLogger         *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfigurationMetadata
	configurationFilePath string
	logLevelOverride      string
	logFormatOverride     string
	commandRunner         execshell.CommandRunner
	pathLookup            tools.PathLookup
}

// NewApplication assembles the command tree.
func NewApplication() *Application {
	application := &Application{
		loggerFactory: utils.NewLoggerFactory(),
		logger:        zap.NewNop(),
		consoleLogger: zap.NewNop(),
		commandRunner: execshell.OSCommandRunner{},
	}

	application.configurationLoader = utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		configurationSearchPaths(),
	)
	application.configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	rootCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, _ []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, _ []string) error {
			return command.Help()
		},
	}
	rootCommand.SetContext(context.Background())

	persistentFlags := rootCommand.PersistentFlags()
	persistentFlags.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	persistentFlags.StringVar(&application.logLevelOverride, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	persistentFlags.StringVar(&application.logFormatOverride, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	flagutils.BindExecutionFlags(rootCommand, flagutils.ExecutionDefaults{})

	rootCommand.AddCommand(application.newVersionCommand(), application.newInitCommand())
	application.registerCommands(rootCommand)

	application.rootCommand = rootCommand
	return application
}

// Execute runs the command tree and flushes the loggers afterwards.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLoggers(); syncError != nil {
		return errors.Join(executionError, fmt.Errorf(loggerSyncErrorTemplateConstant, syncError))
	}
	return executionError
}

// Execute builds a fresh application and runs it against os.Args.
func Execute() error {
	return NewApplication().Execute()
}

// Initialize loads configuration and builds the loggers without running a
// subcommand.
func (application *Application) Initialize() error {
	return application.initializeConfiguration(application.rootCommand)
}

// ConfigFileUsed returns the configuration file that was read, or an empty
// string when only embedded defaults applied.
func (application *Application) ConfigFileUsed() string {
	return application.configurationMetadata.ConfigFileUsed
}

// Configuration returns the decoded configuration.
func (application *Application) Configuration() ApplicationConfiguration {
	return application.configuration
}

// configurationSearchPaths honours RAKEBUILD_CONFIG_SEARCH_PATH, a
// list-separator delimited replacement for the default directories.
func configurationSearchPaths() []string {
	searchPaths := []string{}
	for _, candidate := range strings.Split(os.Getenv(configurationSearchPathEnvironmentVariableConstant), string(os.PathListSeparator)) {
		if trimmed := strings.TrimSpace(candidate); len(trimmed) > 0 {
			searchPaths = append(searchPaths, trimmed)
		}
	}
	if len(searchPaths) == 0 {
		return utils.DefaultConfigurationSearchPaths(userConfigurationDirectoryNameConstant)
	}
	return searchPaths
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	metadata, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultConfigurationValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = metadata

	if logLevel, changed, _ := flagutils.StringFlag(command, logLevelFlagNameConstant); changed {
		application.configuration.Common.LogLevel = logLevel
	}
	if logFormat, changed, _ := flagutils.StringFlag(command, logFormatFlagNameConstant); changed {
		application.configuration.Common.LogFormat = logFormat
	}

	loggerOutputs, loggerError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerError)
	}
	application.logger = nopIfNil(loggerOutputs.DiagnosticLogger)
	application.consoleLogger = nopIfNil(loggerOutputs.ConsoleLogger)
	application.reportConfigurationSource()

	if command != nil {
		executionContext := utils.ContextWithExecutionFlags(command.Context(), flagutils.CollectExecutionFlags(command))
		command.SetContext(executionContext)
		command.Root().SetContext(executionContext)
	}
	return nil
}

func (application *Application) reportConfigurationSource() {
	common := application.configuration.Common
	if application.humanReadableLoggingEnabled() {
		source := application.configurationMetadata.ConfigFileUsed
		if len(source) == 0 {
			source = embeddedConfigurationSourceConstant
		}
		application.logger.Debug(fmt.Sprintf(configurationLoadedConsoleTemplateConstant, source, common.LogLevel, common.LogFormat))
		return
	}
	application.logger.Debug(configurationLoadedMessageConstant,
		zap.String(logFieldConfigFileConstant, application.configurationMetadata.ConfigFileUsed),
		zap.String(logFieldLogLevelConstant, common.LogLevel),
		zap.String(logFieldLogFormatConstant, common.LogFormat),
	)
}

func (application *Application) humanReadableLoggingEnabled() bool {
	return strings.EqualFold(strings.TrimSpace(application.configuration.Common.LogFormat), string(utils.LogFormatConsole))
}

func (application *Application) flushLoggers() error {
	for _, logger := range []*zap.Logger{application.logger, application.consoleLogger} {
		if syncError := logger.Sync(); syncError != nil && !terminalSyncError(syncError) {
			return syncError
		}
	}
	return nil
}

// terminalSyncError reports errors zap returns when stderr is a terminal or
// pipe that does not support fsync.
func terminalSyncError(syncError error) bool {
	for _, benign := range []error{syscall.ENOTSUP, syscall.EINVAL, syscall.EBADF, syscall.ENOTTY} {
		if errors.Is(syncError, benign) {
			return true
		}
	}
	return false
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
