package utils_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/rakebuild/internal/utils"
)

type decodedConfigurationFixture struct {
	Build decodedBuildFixture `mapstructure:"build"`
}

type decodedBuildFixture struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Packages []string      `mapstructure:"packages"`
}

func TestDefaultConfigurationSearchPaths(testInstance *testing.T) {
	homeDirectory := testInstance.TempDir()
	xdgDirectory := filepath.Join(homeDirectory, "xdg")
	testInstance.Setenv("HOME", homeDirectory)
	testInstance.Setenv("XDG_CONFIG_HOME", xdgDirectory)

	workingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)

	searchPaths := utils.DefaultConfigurationSearchPaths(".rakebuild")
	require.Equal(testInstance, []string{
		workingDirectory,
		filepath.Join(xdgDirectory, "rakebuild"),
		filepath.Join(homeDirectory, ".rakebuild"),
	}, searchPaths)
}

func TestConfigurationLoaderDecodesDurationsAndLists(testInstance *testing.T) {
	testInstance.Setenv("TESTRAKEBUILD_BUILD_PACKAGES", "mygem,helper")

	loader := utils.NewConfigurationLoader("config", "yaml", "TESTRAKEBUILD", nil)
	loader.SetEmbeddedConfiguration([]byte("build:\n  timeout: 90s\n  packages: []\n"), "yaml")

	decoded := decodedConfigurationFixture{}
	metadata, loadError := loader.LoadConfiguration("", nil, &decoded)
	require.NoError(testInstance, loadError)
	require.Empty(testInstance, metadata.ConfigFileUsed)
	require.Equal(testInstance, 90*time.Second, decoded.Build.Timeout)
	require.Equal(testInstance, []string{"mygem", "helper"}, decoded.Build.Packages)
}

func TestConfigurationLoaderRejectsUnreadableExplicitFile(testInstance *testing.T) {
	loader := utils.NewConfigurationLoader("config", "yaml", "TESTRAKEBUILD", nil)

	_, loadError := loader.LoadConfiguration(filepath.Join(testInstance.TempDir(), "missing.yaml"), nil, &decodedConfigurationFixture{})
	require.Error(testInstance, loadError)
	require.Contains(testInstance, loadError.Error(), "missing.yaml")
}
