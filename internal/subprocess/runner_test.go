package subprocess_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/rakebuild/internal/execshell"
	"github.com/tyemirov/rakebuild/internal/subprocess"
)

type stubExecutor struct {
	result   execshell.ExecutionResult
	err      error
	commands []execshell.ShellCommand
}

func (executor *stubExecutor) Execute(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	executor.commands = append(executor.commands, command)
	return executor.result, executor.err
}

func TestNewRunnerValidatesCollaborators(testInstance *testing.T) {
	_, missingExecutorError := subprocess.NewRunner(zap.NewNop(), nil, testInstance.TempDir())
	require.ErrorIs(testInstance, missingExecutorError, subprocess.ErrExecutorNotConfigured)

	_, missingDirectoryError := subprocess.NewRunner(zap.NewNop(), &stubExecutor{}, "  ")
	require.ErrorIs(testInstance, missingDirectoryError, subprocess.ErrLogDirectoryNotConfigured)
}

func TestRunnerWritesLogFileOnSuccess(testInstance *testing.T) {
	logDirectory := filepath.Join(testInstance.TempDir(), "logs")
	executor := &stubExecutor{result: execshell.ExecutionResult{StandardOutput: "compiled\n"}}
	runner, creationError := subprocess.NewRunner(zap.NewNop(), executor, logDirectory)
	require.NoError(testInstance, creationError)

	request := subprocess.Request{
		InvocationID:     "id-1",
		Package:          "gems/mygem",
		Phase:            "post-install",
		Executable:       "/usr/bin/ruby",
		Arguments:        []string{"-S", "rake", "default"},
		WorkingDirectory: "/src/mygem",
		Environment:      map[string]string{"RUBYLIB": "/src/mygem/lib"},
	}
	require.NoError(testInstance, runner.Run(context.Background(), request))

	require.Len(testInstance, executor.commands, 1)
	recorded := executor.commands[0]
	require.Equal(testInstance, execshell.CommandName("/usr/bin/ruby"), recorded.Name)
	require.Equal(testInstance, []string{"-S", "rake", "default"}, recorded.Details.Arguments)
	require.Equal(testInstance, "/src/mygem", recorded.Details.WorkingDirectory)
	require.Equal(testInstance, "/src/mygem/lib", recorded.Details.EnvironmentVariables["RUBYLIB"])

	logFilePath := filepath.Join(logDirectory, "gems_mygem-post-install.log")
	require.Equal(testInstance, logFilePath, runner.LogFilePath("gems/mygem", "post-install"))
	content, readError := os.ReadFile(logFilePath)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(content), "# invocation: id-1")
	require.Contains(testInstance, string(content), "# command: /usr/bin/ruby -S rake default")
	require.Contains(testInstance, string(content), "compiled")
	require.Contains(testInstance, string(content), "# exit code: 0")
}

func TestRunnerReportsFailuresWithLogFile(testInstance *testing.T) {
	testCases := []struct {
		name             string
		result           execshell.ExecutionResult
		err              error
		expectedExitCode int
		expectedLogText  string
	}{
		{
			name:             "non_zero_exit",
			result:           execshell.ExecutionResult{StandardError: "rake aborted!", ExitCode: 1},
			err:              execshell.CommandFailedError{Result: execshell.ExecutionResult{ExitCode: 1}},
			expectedExitCode: 1,
			expectedLogText:  "rake aborted!",
		},
		{
			name:            "spawn_failure",
			err:             execshell.CommandExecutionError{Cause: errors.New("no such file")},
			expectedLogText: "# error:",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			logDirectory := testInstance.TempDir()
			executor := &stubExecutor{result: testCase.result, err: testCase.err}
			runner, creationError := subprocess.NewRunner(zap.NewNop(), executor, logDirectory)
			require.NoError(testInstance, creationError)

			runError := runner.Run(context.Background(), subprocess.Request{Package: "mygem", Phase: "clean", Executable: "ruby"})
			require.Error(testInstance, runError)

			var failure *subprocess.SubcommandFailedError
			require.True(testInstance, errors.As(runError, &failure))
			require.Equal(testInstance, "mygem", failure.Package)
			require.Equal(testInstance, "clean", failure.Phase)
			require.Equal(testInstance, testCase.expectedExitCode, failure.ExitCode)
			require.Equal(testInstance, filepath.Join(logDirectory, "mygem-clean.log"), failure.LogFile)
			require.Contains(testInstance, failure.Error(), failure.LogFile)
			require.IsType(testInstance, testCase.err, errors.Unwrap(runError))

			content, readError := os.ReadFile(failure.LogFile)
			require.NoError(testInstance, readError)
			require.Contains(testInstance, string(content), testCase.expectedLogText)
		})
	}
}

func TestRunnerValidatesRequest(testInstance *testing.T) {
	runner, creationError := subprocess.NewRunner(nil, &stubExecutor{}, testInstance.TempDir())
	require.NoError(testInstance, creationError)

	require.ErrorIs(testInstance, runner.Run(context.Background(), subprocess.Request{Phase: "doc"}), subprocess.ErrPackageNameMissing)
	require.ErrorIs(testInstance, runner.Run(context.Background(), subprocess.Request{Package: "mygem"}), subprocess.ErrPhaseMissing)
}
