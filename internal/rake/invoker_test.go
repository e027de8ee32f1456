package rake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/rakebuild/internal/environment"
	"github.com/tyemirov/rakebuild/internal/packages"
	"github.com/tyemirov/rakebuild/internal/progress"
	"github.com/tyemirov/rakebuild/internal/subprocess"
	"github.com/tyemirov/rakebuild/internal/tools"
)

const (
	testRubyPathConstant     = "/opt/ruby/bin/ruby"
	testInvocationIDConstant = "5f0c6a52-6a5e-4a3d-9a7e-2f4f1d7f8c11"
)

type recordingSubprocessRunner struct {
	requests []subprocess.Request
	err      error
}

func (runner *recordingSubprocessRunner) Run(_ context.Context, request subprocess.Request) error {
	runner.requests = append(runner.requests, request)
	return runner.err
}

func newTestInvoker(testInstance *testing.T, logger *zap.Logger, runner SubprocessRunner, resolver ToolResolver, store *environment.Store) *TaskInvoker {
	testInstance.Helper()
	invoker, invokerError := NewTaskInvoker(logger, runner, resolver, progress.NewReporter(logger), store)
	require.NoError(testInstance, invokerError)
	invoker.newID = func() string { return testInvocationIDConstant }
	return invoker
}

func staticLookup(resolved map[string]string) tools.PathLookup {
	return func(name string) (string, error) {
		if path, exists := resolved[name]; exists {
			return path, nil
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func TestNewTaskInvokerValidatesCollaborators(testInstance *testing.T) {
	runner := &recordingSubprocessRunner{}
	resolver := tools.NewResolver(nil, staticLookup(nil))
	reporter := progress.NewReporter(nil)
	store := environment.NewStore(false, nil)

	testCases := []struct {
		name          string
		runner        SubprocessRunner
		resolver      ToolResolver
		reporter      ProgressReporter
		store         *environment.Store
		expectedError error
	}{
		{name: "missing_runner", resolver: resolver, reporter: reporter, store: store, expectedError: ErrSubprocessRunnerNotConfigured},
		{name: "missing_resolver", runner: runner, reporter: reporter, store: store, expectedError: ErrToolResolverNotConfigured},
		{name: "missing_reporter", runner: runner, resolver: resolver, store: store, expectedError: ErrProgressReporterNotConfigured},
		{name: "missing_store", runner: runner, resolver: resolver, reporter: reporter, expectedError: ErrEnvironmentNotConfigured},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			invoker, invokerError := NewTaskInvoker(nil, testCase.runner, testCase.resolver, testCase.reporter, testCase.store)
			require.ErrorIs(testInstance, invokerError, testCase.expectedError)
			require.Nil(testInstance, invoker)
		})
	}
}

func TestInvokeRunsRakeThroughRuby(testInstance *testing.T) {
	sourceDirectory := testInstance.TempDir()
	pkg, packageError := packages.NewPackage("mygem", sourceDirectory, "")
	require.NoError(testInstance, packageError)

	store := environment.NewStore(false, nil)
	store.AddPath(environment.VariableRubyLibrary, "/deps/json/lib")
	runner := &recordingSubprocessRunner{}
	resolver := tools.NewResolver(nil, staticLookup(map[string]string{"ruby": testRubyPathConstant}))
	invoker := newTestInvoker(testInstance, zap.NewNop(), runner, resolver, store)

	require.NoError(testInstance, invoker.Invoke(context.Background(), pkg, PhaseTest, "test"))

	require.Len(testInstance, runner.requests, 1)
	request := runner.requests[0]
	require.Equal(testInstance, testInvocationIDConstant, request.InvocationID)
	require.Equal(testInstance, "mygem", request.Package)
	require.Equal(testInstance, PhaseTest, request.Phase)
	require.Equal(testInstance, testRubyPathConstant, request.Executable)
	require.Equal(testInstance, []string{"-S", "rake", "test"}, request.Arguments)
	require.Equal(testInstance, sourceDirectory, request.WorkingDirectory)
	require.Equal(testInstance, map[string]string{environment.VariableRubyLibrary: "/deps/json/lib"}, request.Environment)
}

func TestInvokeHonoursToolOverrides(testInstance *testing.T) {
	pkg, packageError := packages.NewPackage("mygem", testInstance.TempDir(), "")
	require.NoError(testInstance, packageError)

	runner := &recordingSubprocessRunner{}
	resolver := tools.NewResolver(
		map[string]string{"ruby": "ruby3.3", "rake": "rake3.3"},
		staticLookup(map[string]string{"ruby3.3": "/usr/bin/ruby3.3"}),
	)
	invoker := newTestInvoker(testInstance, nil, runner, resolver, environment.NewStore(false, nil))

	require.NoError(testInstance, invoker.Invoke(context.Background(), pkg, PhaseDoc, "redocs"))

	require.Equal(testInstance, "/usr/bin/ruby3.3", runner.requests[0].Executable)
	require.Equal(testInstance, []string{"-S", "rake3.3", "redocs"}, runner.requests[0].Arguments)
}

func TestInvokeReportsProgress(testInstance *testing.T) {
	observerCore, observedLogs := observer.New(zap.InfoLevel)
	logger := zap.New(observerCore)
	pkg, packageError := packages.NewPackage("mygem", testInstance.TempDir(), "")
	require.NoError(testInstance, packageError)

	testCases := []struct {
		name             string
		phase            string
		expectedMessages []string
	}{
		{name: "setup", phase: PhasePostInstall, expectedMessages: []string{"running rake setup task for mygem", "ran rake setup task for mygem"}},
		{name: "doc", phase: PhaseDoc, expectedMessages: []string{"generating documentation for mygem", "generated documentation for mygem"}},
		{name: "test", phase: PhaseTest, expectedMessages: []string{"running tests for mygem", "tests passed for mygem"}},
		{name: "clean", phase: PhaseClean, expectedMessages: []string{"cleaning mygem", "cleaned mygem"}},
		{name: "other", phase: "custom", expectedMessages: []string{"running rake for mygem", "ran rake for mygem"}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observedLogs.TakeAll()
			resolver := tools.NewResolver(nil, staticLookup(map[string]string{"ruby": testRubyPathConstant}))
			invoker := newTestInvoker(testInstance, logger, &recordingSubprocessRunner{}, resolver, environment.NewStore(false, nil))

			require.NoError(testInstance, invoker.Invoke(context.Background(), pkg, testCase.phase, "task"))

			messages := []string{}
			for _, entry := range observedLogs.TakeAll() {
				messages = append(messages, entry.Message)
			}
			require.Equal(testInstance, testCase.expectedMessages, messages)
		})
	}
}

func TestInvokeFailures(testInstance *testing.T) {
	pkg, packageError := packages.NewPackage("mygem", testInstance.TempDir(), "")
	require.NoError(testInstance, packageError)
	subcommandFailure := &subprocess.SubcommandFailedError{Package: "mygem", Phase: PhaseTest, LogFile: "/logs/mygem-test.log", ExitCode: 1}

	testCases := []struct {
		name           string
		task           string
		resolved       map[string]string
		runnerError    error
		expectedRuns   int
		assertionCheck func(testInstance *testing.T, invokeError error)
	}{
		{
			name:         "missing_task_name",
			task:         "   ",
			resolved:     map[string]string{"ruby": testRubyPathConstant},
			expectedRuns: 0,
			assertionCheck: func(testInstance *testing.T, invokeError error) {
				require.ErrorIs(testInstance, invokeError, ErrTaskNameMissing)
			},
		},
		{
			name:         "ruby_not_found",
			task:         "test",
			expectedRuns: 0,
			assertionCheck: func(testInstance *testing.T, invokeError error) {
				var notFound tools.ToolNotFoundError
				require.True(testInstance, errors.As(invokeError, &notFound))
				require.Equal(testInstance, "ruby", notFound.Name)
				require.Contains(testInstance, invokeError.Error(), "mygem")
			},
		},
		{
			name:         "task_failure",
			task:         "test",
			resolved:     map[string]string{"ruby": testRubyPathConstant},
			runnerError:  subcommandFailure,
			expectedRuns: 1,
			assertionCheck: func(testInstance *testing.T, invokeError error) {
				require.Same(testInstance, subcommandFailure, invokeError)
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			runner := &recordingSubprocessRunner{err: testCase.runnerError}
			resolver := tools.NewResolver(nil, staticLookup(testCase.resolved))
			invoker := newTestInvoker(testInstance, nil, runner, resolver, environment.NewStore(false, nil))

			invokeError := invoker.Invoke(context.Background(), pkg, PhaseTest, testCase.task)

			require.Error(testInstance, invokeError)
			testCase.assertionCheck(testInstance, invokeError)
			require.Len(testInstance, runner.requests, testCase.expectedRuns)
		})
	}
}

func TestPrepareRequiresPackage(testInstance *testing.T) {
	resolver := tools.NewResolver(nil, staticLookup(nil))
	invoker := newTestInvoker(testInstance, nil, &recordingSubprocessRunner{}, resolver, environment.NewStore(false, nil))

	_, prepareError := invoker.Prepare(nil, PhaseTest, "test")

	require.ErrorIs(testInstance, prepareError, ErrPackageNotConfigured)
}

func TestOptionalTask(testInstance *testing.T) {
	testCases := []struct {
		name            string
		task            OptionalTask
		expectedName    string
		expectedEnabled bool
		expectedString  string
	}{
		{name: "named", task: Task(" spec "), expectedName: "spec", expectedEnabled: true, expectedString: "spec"},
		{name: "blank", task: Task(""), expectedEnabled: false, expectedString: "<disabled>"},
		{name: "disabled", task: DisabledTask(), expectedEnabled: false, expectedString: "<disabled>"},
		{name: "zero_value", task: OptionalTask{}, expectedEnabled: false, expectedString: "<disabled>"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			name, enabled := testCase.task.Name()
			require.Equal(testInstance, testCase.expectedName, name)
			require.Equal(testInstance, testCase.expectedEnabled, enabled)
			require.Equal(testInstance, testCase.expectedEnabled, testCase.task.Enabled())
			require.Equal(testInstance, testCase.expectedString, testCase.task.String())
		})
	}
}
