package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tyemirov/rakebuild/internal/execshell"
	"github.com/tyemirov/rakebuild/internal/tools"
	"github.com/tyemirov/rakebuild/internal/version"
)

const (
	versionCommandUseNameConstant          = "version"
	versionCommandShortDescriptionConstant = "Print the rakebuild version"
	versionCommandLongDescriptionConstant  = "version prints the rakebuild release identifier and the versions of the ruby and rake executables it would use."
	versionOutputTemplateConstant          = "rakebuild version: %s\n"
	toolVersionOutputTemplateConstant      = "%s: %s\n"
	toolVersionPathOutputTemplateConstant  = "%s: %s (%s)\n"
	rubyToolNameConstant                   = "ruby"
	rakeToolNameConstant                   = "rake"
)

func (application *Application) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   versionCommandUseNameConstant,
		Short: versionCommandShortDescriptionConstant,
		Long:  versionCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			detector := application.versionDetector()
			output := command.OutOrStdout()

			fmt.Fprintf(output, versionOutputTemplateConstant, detector.Version())
			for _, toolVersion := range detector.ToolVersions(command.Context(), rubyToolNameConstant, rakeToolNameConstant) {
				if len(toolVersion.Path) == 0 {
					fmt.Fprintf(output, toolVersionOutputTemplateConstant, toolVersion.Name, toolVersion.Version)
					continue
				}
				fmt.Fprintf(output, toolVersionPathOutputTemplateConstant, toolVersion.Name, toolVersion.Version, toolVersion.Path)
			}
			return nil
		},
	}
}

// versionDetector resolves tools with the configured overrides so the
// reported executables are the ones a build would run.
func (application *Application) versionDetector() *version.Detector {
	dependencies := version.Dependencies{
		ToolResolver: tools.NewResolver(application.buildSettings().Tools, application.pathLookup),
	}
	if executor, executorError := execshell.NewShellExecutor(application.logger, application.commandRunner, application.humanReadableLoggingEnabled()); executorError == nil {
		dependencies.Executor = executor
	}
	return version.NewDetector(dependencies)
}
