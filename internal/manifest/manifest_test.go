package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/rakebuild/internal/environment"
	"github.com/tyemirov/rakebuild/internal/manifest"
	"github.com/tyemirov/rakebuild/internal/packages"
	"github.com/tyemirov/rakebuild/internal/progress"
	"github.com/tyemirov/rakebuild/internal/rake"
)

const sampleManifestConstant = `packages:
  - name: mygem
    srcdir: ./gems/mygem
    tasks:
      setup: compile
      doc: ~
      test: ""
    doc: true
    test: true
    exclude:
      - '\.bundle$'
  - name: tools/helper
    stampdir: /var/lib/stamps/helper
`

func TestLoadResolvesPathsAgainstManifestDirectory(testInstance *testing.T) {
	manifestDirectory := testInstance.TempDir()
	manifestPath := filepath.Join(manifestDirectory, "packages.yaml")
	require.NoError(testInstance, os.WriteFile(manifestPath, []byte(sampleManifestConstant), 0o644))

	loaded, loadError := manifest.Load(manifestPath)
	require.NoError(testInstance, loadError)
	require.Len(testInstance, loaded.Packages, 2)

	first := loaded.Packages[0]
	require.Equal(testInstance, "mygem", first.Name)
	require.Equal(testInstance, filepath.Join(manifestDirectory, "gems", "mygem"), first.SourceDirectory)
	require.Empty(testInstance, first.StampDirectory)
	require.True(testInstance, first.Documentation)
	require.True(testInstance, first.Tests)
	require.Equal(testInstance, []string{`\.bundle$`}, first.Exclude)

	second := loaded.Packages[1]
	require.Equal(testInstance, filepath.Join(manifestDirectory, "tools", "helper"), second.SourceDirectory)
	require.Equal(testInstance, "/var/lib/stamps/helper", second.StampDirectory)
	require.False(testInstance, second.Documentation)
}

func TestParseTaskOverrides(testInstance *testing.T) {
	loaded, parseError := manifest.Parse([]byte(sampleManifestConstant), "/workspace")
	require.NoError(testInstance, parseError)

	tasks := loaded.Packages[0].Tasks
	require.True(testInstance, tasks.Setup.Set())
	require.Equal(testInstance, rake.Task("compile"), tasks.Setup.Task())
	require.True(testInstance, tasks.Doc.Set())
	require.False(testInstance, tasks.Doc.Task().Enabled())
	require.True(testInstance, tasks.Test.Set())
	require.False(testInstance, tasks.Test.Task().Enabled())
	require.False(testInstance, tasks.Clean.Set())

	untouched := loaded.Packages[1].Tasks
	require.False(testInstance, untouched.Setup.Set())
	require.False(testInstance, untouched.Doc.Set())
	require.False(testInstance, untouched.Test.Set())
	require.False(testInstance, untouched.Clean.Set())
}

func TestParseErrors(testInstance *testing.T) {
	testCases := []struct {
		name            string
		content         string
		expectedError   error
		expectedMessage string
	}{
		{name: "empty", content: "packages: []\n", expectedError: manifest.ErrManifestEmpty},
		{name: "missing_block", content: "other: 1\n", expectedError: manifest.ErrManifestEmpty},
		{name: "not_a_sequence", content: "packages:\n  name: mygem\n", expectedMessage: "packages block must be defined as a sequence"},
		{name: "missing_name", content: "packages:\n  - srcdir: ./a\n", expectedMessage: "package entry 1 is missing a name"},
		{name: "duplicate_name", content: "packages:\n  - name: a\n  - name: a\n", expectedMessage: `package "a" is declared more than once`},
		{name: "unknown_task", content: "packages:\n  - name: a\n    tasks:\n      build: all\n", expectedMessage: `unknown task "build"`},
		{name: "task_not_scalar", content: "packages:\n  - name: a\n    tasks:\n      clean: [a, b]\n", expectedMessage: "task clean must be a string or null"},
		{name: "tasks_not_mapping", content: "packages:\n  - name: a\n    tasks: [clean]\n", expectedMessage: "tasks must be a mapping"},
		{name: "invalid_yaml", content: "packages: [\n", expectedMessage: "failed to parse package manifest"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			_, parseError := manifest.Parse([]byte(testCase.content), "/workspace")
			require.Error(testInstance, parseError)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, parseError, testCase.expectedError)
			}
			if len(testCase.expectedMessage) > 0 {
				require.Contains(testInstance, parseError.Error(), testCase.expectedMessage)
			}
		})
	}
}

func TestLoadRequiresPath(testInstance *testing.T) {
	_, loadError := manifest.Load("  ")
	require.ErrorIs(testInstance, loadError, manifest.ErrManifestPathMissing)

	_, missingError := manifest.Load(filepath.Join(testInstance.TempDir(), "missing.yaml"))
	require.ErrorIs(testInstance, missingError, os.ErrNotExist)
}

func TestDescriptorAppliesStampDirectoryAndExclusions(testInstance *testing.T) {
	sourceDirectory := testInstance.TempDir()
	stampRoot := testInstance.TempDir()

	definition := manifest.PackageDefinition{Name: "tools/helper", SourceDirectory: sourceDirectory, Exclude: []string{`\.bundle$`}}
	pkg, descriptorError := definition.Descriptor(stampRoot)
	require.NoError(testInstance, descriptorError)
	require.Equal(testInstance, filepath.Join(stampRoot, "tools_helper"), pkg.StampDirectory())
	require.True(testInstance, pkg.IsExcluded("vendor/.bundle"))

	explicit := manifest.PackageDefinition{Name: "mygem", SourceDirectory: sourceDirectory, StampDirectory: filepath.Join(stampRoot, "explicit")}
	explicitPackage, explicitError := explicit.Descriptor(stampRoot)
	require.NoError(testInstance, explicitError)
	require.Equal(testInstance, filepath.Join(stampRoot, "explicit"), explicitPackage.StampDirectory())

	invalid := manifest.PackageDefinition{Name: "broken", SourceDirectory: sourceDirectory, Exclude: []string{"("}}
	_, invalidError := invalid.Descriptor("")
	require.Error(testInstance, invalidError)
	require.Contains(testInstance, invalidError.Error(), "broken")
}

func TestConfigureAppliesOverridesToDriver(testInstance *testing.T) {
	loaded, parseError := manifest.Parse([]byte(sampleManifestConstant), testInstance.TempDir())
	require.NoError(testInstance, parseError)

	pkg, packageError := packages.NewPackage("mygem", testInstance.TempDir(), "")
	require.NoError(testInstance, packageError)
	base, baseError := packages.NewBaseLifecycle(nil, pkg)
	require.NoError(testInstance, baseError)
	driver, driverError := rake.NewDriver(pkg, rake.Dependencies{
		Logger:      zap.NewNop(),
		Base:        base,
		Invoker:     &rake.TaskInvoker{},
		Environment: environment.NewStore(false, nil),
		Progress:    progress.NewReporter(nil),
	})
	require.NoError(testInstance, driverError)

	loaded.Packages[0].Configure(driver)

	require.Equal(testInstance, rake.Task("compile"), driver.SetupTask)
	require.False(testInstance, driver.DocTask.Enabled())
	require.False(testInstance, driver.TestTask.Enabled())
	require.Equal(testInstance, rake.Task(rake.DefaultCleanTask), driver.CleanTask)
	require.True(testInstance, driver.DocumentationEnabled())
	require.True(testInstance, driver.TestsEnabled())
}
