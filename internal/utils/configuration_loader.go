package utils

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	configurationReadErrorTemplateConstant     = "unable to read configuration file %s: %w"
	configurationSearchErrorTemplateConstant   = "unable to read configuration: %w"
	configurationEmbeddedErrorTemplateConstant = "unable to read embedded configuration: %w"
	configurationDecodeErrorTemplateConstant   = "unable to decode configuration: %w"
	environmentKeySeparatorConstant            = "."
	environmentKeyReplacementConstant          = "_"
	sliceSeparatorConstant                     = ","
	xdgConfigHomeEnvironmentVariableConstant   = "XDG_CONFIG_HOME"
	xdgDefaultConfigDirectoryNameConstant      = ".config"
)

// LoadedConfigurationMetadata describes where configuration was read from.
type LoadedConfigurationMetadata struct {
	ConfigFileUsed string
}

// ConfigurationLoader layers defaults, an embedded configuration, a
// configuration file and prefixed environment variables, in increasing
// precedence, and decodes the result with mapstructure tags.
type ConfigurationLoader struct {
	configurationName string
	configurationType string
	environmentPrefix string
	searchPaths       []string
	embeddedContent   []byte
	embeddedType      string
}

// NewConfigurationLoader constructs a loader that searches searchPaths, in
// order, for <configurationName>.<configurationType>.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       append([]string{}, searchPaths...),
	}
}

// SetEmbeddedConfiguration registers configuration content compiled into the binary.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(content []byte, contentType string) {
	loader.embeddedContent = append([]byte{}, content...)
	loader.embeddedType = contentType
}

// LoadConfiguration decodes the layered configuration into target. An
// explicit path replaces the search; a missing searched file is not an error.
func (loader *ConfigurationLoader) LoadConfiguration(explicitPath string, defaultValues map[string]any, target any) (LoadedConfigurationMetadata, error) {
	configuration := viper.New()
	for key, value := range defaultValues {
		configuration.SetDefault(key, value)
	}

	if len(loader.embeddedContent) > 0 {
		configuration.SetConfigType(loader.embeddedType)
		if mergeError := configuration.MergeConfig(bytes.NewReader(loader.embeddedContent)); mergeError != nil {
			return LoadedConfigurationMetadata{}, fmt.Errorf(configurationEmbeddedErrorTemplateConstant, mergeError)
		}
	}

	metadata := LoadedConfigurationMetadata{}
	trimmedExplicitPath := strings.TrimSpace(explicitPath)
	if len(trimmedExplicitPath) > 0 {
		configuration.SetConfigFile(trimmedExplicitPath)
		configuration.SetConfigType(loader.configurationTypeFor(trimmedExplicitPath))
		if mergeError := configuration.MergeInConfig(); mergeError != nil {
			return LoadedConfigurationMetadata{}, fmt.Errorf(configurationReadErrorTemplateConstant, trimmedExplicitPath, mergeError)
		}
		metadata.ConfigFileUsed = trimmedExplicitPath
	} else if len(loader.searchPaths) > 0 {
		configuration.SetConfigName(loader.configurationName)
		configuration.SetConfigType(loader.configurationType)
		for _, searchPath := range loader.searchPaths {
			configuration.AddConfigPath(searchPath)
		}
		mergeError := configuration.MergeInConfig()
		var notFound viper.ConfigFileNotFoundError
		switch {
		case mergeError == nil:
			metadata.ConfigFileUsed = configuration.ConfigFileUsed()
		case errors.As(mergeError, &notFound):
		default:
			return LoadedConfigurationMetadata{}, fmt.Errorf(configurationSearchErrorTemplateConstant, mergeError)
		}
	}

	if len(loader.environmentPrefix) > 0 {
		configuration.SetEnvPrefix(loader.environmentPrefix)
	}
	configuration.SetEnvKeyReplacer(strings.NewReplacer(environmentKeySeparatorConstant, environmentKeyReplacementConstant))
	configuration.AutomaticEnv()

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(sliceSeparatorConstant),
	))
	if decodeError := configuration.Unmarshal(target, decodeHook); decodeError != nil {
		return LoadedConfigurationMetadata{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decodeError)
	}
	return metadata, nil
}

func (loader *ConfigurationLoader) configurationTypeFor(path string) string {
	extension := strings.TrimPrefix(filepath.Ext(path), ".")
	if len(extension) == 0 {
		return loader.configurationType
	}
	return extension
}

// DefaultConfigurationSearchPaths lists the working directory, the XDG
// configuration directory and the home directory for applicationDirectory,
// in that order.
func DefaultConfigurationSearchPaths(applicationDirectory string) []string {
	searchPaths := []string{}
	if workingDirectory, workingDirectoryError := os.Getwd(); workingDirectoryError == nil {
		searchPaths = append(searchPaths, workingDirectory)
	}

	homeDirectory, homeError := os.UserHomeDir()
	xdgConfigHome := strings.TrimSpace(os.Getenv(xdgConfigHomeEnvironmentVariableConstant))
	if len(xdgConfigHome) == 0 && homeError == nil {
		xdgConfigHome = filepath.Join(homeDirectory, xdgDefaultConfigDirectoryNameConstant)
	}
	trimmedApplicationDirectory := strings.TrimPrefix(applicationDirectory, ".")
	if len(xdgConfigHome) > 0 {
		searchPaths = append(searchPaths, filepath.Join(xdgConfigHome, trimmedApplicationDirectory))
	}
	if homeError == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDirectory, "."+trimmedApplicationDirectory))
	}
	return searchPaths
}
