package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/rakebuild/cmd/cli/build"
	"github.com/tyemirov/rakebuild/internal/execshell"
	"github.com/tyemirov/rakebuild/internal/utils"
	flagutils "github.com/tyemirov/rakebuild/internal/utils/flags"
)

const (
	quietConfigurationContentConstant = "common:\n  log_level: error\n  log_format: structured\n"
	rubyExecutablePathConstant        = "/usr/bin/ruby"
	rubyVersionOutputConstant         = "ruby 3.3.0 (2023-12-25 revision 5124f9ac75) [x86_64-linux]\n"
)

type versionCommandRunner struct {
	commands []execshell.ShellCommand
}

func (runner *versionCommandRunner) Run(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	runner.commands = append(runner.commands, command)
	return execshell.ExecutionResult{StandardOutput: rubyVersionOutputConstant}, nil
}

func useQuietConfiguration(t *testing.T) {
	t.Helper()
	configurationDirectory := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(configurationDirectory, configurationFileNameConstant), []byte(quietConfigurationContentConstant), 0o600))
	t.Setenv(configurationSearchPathEnvironmentVariableConstant, configurationDirectory)
}

func TestInitializeConfigurationAttachesExecutionFlags(t *testing.T) {
	useQuietConfiguration(t)

	application := NewApplication()
	rootCommand := application.rootCommand
	rootCommand.SetContext(context.Background())

	require.NoError(t, rootCommand.PersistentFlags().Set(flagutils.KeepGoingFlagName, "true"))
	require.NoError(t, rootCommand.PersistentFlags().Set(flagutils.ManifestFlagName, "packages.yaml"))

	require.NoError(t, application.initializeConfiguration(rootCommand))

	executionFlags, executionFlagsAvailable := utils.ExecutionFlagsFromContext(rootCommand.Context())
	require.True(t, executionFlagsAvailable)
	require.True(t, executionFlags.KeepGoing)
	require.True(t, executionFlags.KeepGoingSet)
	require.Equal(t, "packages.yaml", executionFlags.Manifest)
	require.True(t, executionFlags.ManifestSet)
	require.Equal(t, "error", application.Configuration().Common.LogLevel)
}

func TestWriteConfigurationFile(t *testing.T) {
	content := []byte("common:\n  log_level: warn\n")
	testCases := []struct {
		name            string
		existing        string
		replaceExisting bool
		expectedError   string
		expectedContent string
	}{
		{name: "creates_missing_directory", expectedContent: string(content)},
		{name: "keeps_existing_file", existing: "build:\n  keep_going: true\n", expectedError: "already exists", expectedContent: "build:\n  keep_going: true\n"},
		{name: "replaces_existing_file", existing: "build:\n  keep_going: true\n", replaceExisting: true, expectedContent: string(content)},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			directory := filepath.Join(t.TempDir(), ".rakebuild")
			target := filepath.Join(directory, configurationFileNameConstant)
			if len(testCase.existing) > 0 {
				require.NoError(t, os.MkdirAll(directory, 0o755))
				require.NoError(t, os.WriteFile(target, []byte(testCase.existing), 0o600))
			}

			written, writeError := writeConfigurationFile(directory, content, testCase.replaceExisting)

			if len(testCase.expectedError) > 0 {
				require.ErrorContains(t, writeError, testCase.expectedError)
			} else {
				require.NoError(t, writeError)
				require.Equal(t, target, written)
			}
			stored, readError := os.ReadFile(target)
			require.NoError(t, readError)
			require.Equal(t, testCase.expectedContent, string(stored))
		})
	}
}

func TestConfigurationSearchPathsOverride(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	t.Setenv(configurationSearchPathEnvironmentVariableConstant, first+string(os.PathListSeparator)+" "+string(os.PathListSeparator)+second)

	require.Equal(t, []string{first, second}, configurationSearchPaths())

	t.Setenv(configurationSearchPathEnvironmentVariableConstant, "  ")
	require.Equal(t, utils.DefaultConfigurationSearchPaths(userConfigurationDirectoryNameConstant), configurationSearchPaths())
}

func TestApplicationCommandHierarchy(t *testing.T) {
	application := NewApplication()
	rootCommand := application.rootCommand

	for _, commandName := range []string{"install", "rebuild", "force-build", "doc", "test", "env", "status", "version", "init"} {
		t.Run(commandName, func(t *testing.T) {
			command, _, findError := rootCommand.Find([]string{commandName})
			require.NoError(t, findError)
			require.Equal(t, commandName, command.Name())
			require.NotNil(t, command.Parent())
			require.Equal(t, applicationNameConstant, command.Parent().Name())
		})
	}

	installCommand, _, installError := rootCommand.Find([]string{"install"})
	require.NoError(t, installError)
	require.NotNil(t, installCommand.Flags().Lookup("doc"))
	require.NotNil(t, installCommand.Flags().Lookup("test"))
	require.NotNil(t, installCommand.InheritedFlags().Lookup(flagutils.KeepGoingFlagName))

	environmentCommand, _, environmentError := rootCommand.Find([]string{"env"})
	require.NoError(t, environmentError)
	require.NotNil(t, environmentCommand.Flags().Lookup("file"))

	_, _, unknownError := rootCommand.Find([]string{"repo-folders-rename"})
	require.Error(t, unknownError)
	require.Contains(t, unknownError.Error(), "unknown command")
}

func TestBuildSettingsCarryConfiguration(t *testing.T) {
	application := &Application{
		configuration: ApplicationConfiguration{
			Build: build.Configuration{
				LogDirectory:   "/var/log/rakebuild",
				StampDirectory: "/var/lib/rakebuild",
				KeepGoing:      true,
				Packages:       []string{"gems/alpha"},
			},
			Tools:       map[string]string{"ruby": "/opt/ruby/bin/ruby"},
			Environment: build.EnvironmentConfiguration{File: "build.env", Inherit: false},
			Metrics:     build.MetricsConfiguration{Textfile: "rakebuild.prom"},
		},
	}

	settings := application.buildSettings()

	require.Equal(t, "/var/log/rakebuild", settings.Build.LogDirectory)
	require.Equal(t, "/var/lib/rakebuild", settings.Build.StampDirectory)
	require.True(t, settings.Build.KeepGoing)
	require.Equal(t, []string{"gems/alpha"}, settings.Build.Packages)
	require.Equal(t, "/opt/ruby/bin/ruby", settings.Tools["ruby"])
	require.Equal(t, "build.env", settings.Environment.File)
	require.False(t, settings.Environment.Inherit)
	require.Equal(t, "rakebuild.prom", settings.Metrics.Textfile)
}

func TestVersionCommandReportsToolVersions(t *testing.T) {
	useQuietConfiguration(t)

	runner := &versionCommandRunner{}
	application := NewApplication()
	application.commandRunner = runner
	application.pathLookup = func(name string) (string, error) {
		if name == rubyToolNameConstant {
			return rubyExecutablePathConstant, nil
		}
		return "", errors.New("executable file not found in $PATH")
	}

	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetArgs([]string{versionCommandUseNameConstant})

	require.NoError(t, application.rootCommand.Execute())

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "rakebuild version: "))
	require.Equal(t, "ruby: ruby 3.3.0 (2023-12-25 revision 5124f9ac75) [x86_64-linux] (/usr/bin/ruby)", lines[1])
	require.Equal(t, "rake: unavailable", lines[2])

	require.Len(t, runner.commands, 1)
	require.Equal(t, execshell.CommandName(rubyExecutablePathConstant), runner.commands[0].Name)
	require.Equal(t, []string{"--version"}, runner.commands[0].Details.Arguments)
}
