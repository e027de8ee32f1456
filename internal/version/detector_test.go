package version_test

import (
	"context"
	"errors"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/rakebuild/internal/execshell"
	"github.com/tyemirov/rakebuild/internal/tools"
	"github.com/tyemirov/rakebuild/internal/version"
)

type stubBuildInfoProvider struct {
	info      *debug.BuildInfo
	available bool
}

func (provider stubBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	if !provider.available {
		return nil, false
	}
	return provider.info, true
}

type stubCommandExecutor struct {
	outputs  map[string]string
	failures map[string]error
	commands []execshell.ShellCommand
}

func (executor *stubCommandExecutor) Execute(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	executor.commands = append(executor.commands, command)
	name := string(command.Name)
	if failure, exists := executor.failures[name]; exists {
		return execshell.ExecutionResult{ExitCode: 1}, failure
	}
	return execshell.ExecutionResult{StandardOutput: executor.outputs[name]}, nil
}

func TestVersionUsesBuildInfoWhenAvailable(t *testing.T) {
	provider := stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}}, available: true}
	detector := version.NewDetector(version.Dependencies{BuildInfoProvider: provider})

	require.Equal(t, "v1.2.3", detector.Version())
}

func TestVersionFallsBackToRevision(t *testing.T) {
	testCases := []struct {
		name     string
		settings []debug.BuildSetting
		expected string
	}{
		{
			name:     "clean_revision",
			settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef0123"}, {Key: "vcs.modified", Value: "false"}},
			expected: "0123456789ab",
		},
		{
			name:     "dirty_revision",
			settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}, {Key: "vcs.modified", Value: "true"}},
			expected: "abc123-dirty",
		},
		{
			name:     "no_revision",
			expected: "unknown",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			provider := stubBuildInfoProvider{
				info:      &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}, Settings: testCase.settings},
				available: true,
			}
			require.Equal(t, testCase.expected, version.Detect(version.Dependencies{BuildInfoProvider: provider}))
		})
	}
}

func TestVersionReturnsUnknownWithoutBuildInfo(t *testing.T) {
	detector := version.NewDetector(version.Dependencies{BuildInfoProvider: stubBuildInfoProvider{}})
	require.Equal(t, "unknown", detector.Version())
}

func TestToolVersionsReportFirstLine(t *testing.T) {
	executor := &stubCommandExecutor{
		outputs: map[string]string{
			"/usr/bin/ruby": "\nruby 3.3.0 (2023-12-25 revision 5124f9ac75) [x86_64-linux]\n",
		},
		failures: map[string]error{"/usr/bin/rake": errors.New("exit status 1")},
	}
	resolver := tools.NewResolver(nil, func(name string) (string, error) {
		switch name {
		case "ruby", "rake":
			return "/usr/bin/" + name, nil
		default:
			return "", errors.New("not found")
		}
	})
	detector := version.NewDetector(version.Dependencies{Executor: executor, ToolResolver: resolver})

	versions := detector.ToolVersions(context.Background(), "ruby", "rake", "gem")

	require.Equal(t, []version.ToolVersion{
		{Name: "ruby", Path: "/usr/bin/ruby", Version: "ruby 3.3.0 (2023-12-25 revision 5124f9ac75) [x86_64-linux]"},
		{Name: "rake", Version: "unavailable"},
		{Name: "gem", Version: "unavailable"},
	}, versions)
	require.Len(t, executor.commands, 2)
	require.Equal(t, []string{"--version"}, executor.commands[0].Details.Arguments)
}

func TestToolVersionsWithoutCollaborators(t *testing.T) {
	detector := version.NewDetector(version.Dependencies{})
	require.Equal(t, []version.ToolVersion{{Name: "ruby", Version: "unavailable"}}, detector.ToolVersions(context.Background(), "ruby"))
}
