package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	flagutils "github.com/tyemirov/rakebuild/internal/utils/flags"
)

const (
	initCommandUseNameConstant               = "init"
	initCommandShortDescriptionConstant      = "Write the default configuration file"
	initCommandLongDescriptionConstant       = "init writes the embedded default configuration to ./config.yaml, or to ~/.rakebuild/config.yaml with --user, so it can be edited."
	initUserFlagNameConstant                 = "user"
	initUserFlagUsageConstant                = "Write to the per-user configuration directory instead of the working directory"
	initForceFlagNameConstant                = "force"
	initForceFlagUsageConstant               = "Replace an existing configuration file"
	initLocationErrorTemplateConstant        = "unable to resolve configuration directory: %w"
	initDirectoryErrorTemplateConstant       = "unable to create configuration directory %s: %w"
	initExistingFileTemplateConstant         = "configuration file already exists at %s (use --force to replace it)"
	initWriteErrorTemplateConstant           = "unable to write configuration file %s: %w"
	initWrittenMessageConstant               = "configuration file written"
	configurationDirectoryPermissionConstant = 0o755
	configurationFilePermissionConstant      = 0o600
)

func (application *Application) newInitCommand() *cobra.Command {
	var userScope bool
	var replaceExisting bool

	command := &cobra.Command{
		Use:   initCommandUseNameConstant,
		Short: initCommandShortDescriptionConstant,
		Long:  initCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			directory, locationError := configurationDirectory(userScope)
			if locationError != nil {
				return fmt.Errorf(initLocationErrorTemplateConstant, locationError)
			}
			content, _ := EmbeddedDefaultConfiguration()
			written, writeError := writeConfigurationFile(directory, content, replaceExisting)
			if writeError != nil {
				return writeError
			}
			application.logger.Info(initWrittenMessageConstant, zap.String(logFieldConfigFileConstant, written))
			fmt.Fprintln(command.OutOrStdout(), written)
			return nil
		},
	}

	flagutils.AddToggleFlag(command.Flags(), &userScope, initUserFlagNameConstant, "", false, initUserFlagUsageConstant)
	command.Flags().BoolVar(&replaceExisting, initForceFlagNameConstant, false, initForceFlagUsageConstant)
	return command
}

func configurationDirectory(userScope bool) (string, error) {
	if !userScope {
		return os.Getwd()
	}
	homeDirectory, homeError := os.UserHomeDir()
	if homeError != nil {
		return "", homeError
	}
	return filepath.Join(homeDirectory, userConfigurationDirectoryNameConstant), nil
}

// writeConfigurationFile creates directory/config.yaml. Without
// replaceExisting an existing file is left untouched and reported.
func writeConfigurationFile(directory string, content []byte, replaceExisting bool) (string, error) {
	if mkdirError := os.MkdirAll(directory, configurationDirectoryPermissionConstant); mkdirError != nil {
		return "", fmt.Errorf(initDirectoryErrorTemplateConstant, directory, mkdirError)
	}

	target := filepath.Join(directory, configurationFileNameConstant)
	openFlags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !replaceExisting {
		openFlags |= os.O_EXCL
	}
	file, openError := os.OpenFile(target, openFlags, configurationFilePermissionConstant)
	if errors.Is(openError, fs.ErrExist) {
		return "", fmt.Errorf(initExistingFileTemplateConstant, target)
	}
	if openError != nil {
		return "", fmt.Errorf(initWriteErrorTemplateConstant, target, openError)
	}

	_, writeError := file.Write(content)
	if combinedError := errors.Join(writeError, file.Close()); combinedError != nil {
		return "", fmt.Errorf(initWriteErrorTemplateConstant, target, combinedError)
	}
	return target, nil
}
