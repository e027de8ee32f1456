package cli

import (
	_ "embed"

	"github.com/tyemirov/rakebuild/cmd/cli/build"
)

//go:embed default_config.yaml
var embeddedDefaultConfiguration []byte

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common      ApplicationCommonConfiguration `mapstructure:"common"`
	Build       build.Configuration            `mapstructure:"build"`
	Tools       map[string]string              `mapstructure:"tools"`
	Environment build.EnvironmentConfiguration `mapstructure:"environment"`
	Metrics     build.MetricsConfiguration     `mapstructure:"metrics"`
}

// ApplicationCommonConfiguration stores logging defaults shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// EmbeddedDefaultConfiguration returns the configuration compiled into the binary and its type.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return append([]byte{}, embeddedDefaultConfiguration...), configurationTypeConstant
}

func (application *Application) buildSettings() build.Settings {
	settings := build.DefaultSettings()
	settings.Build = application.configuration.Build
	settings.Environment = application.configuration.Environment
	settings.Metrics = application.configuration.Metrics
	for name, value := range application.configuration.Tools {
		settings.Tools[name] = value
	}
	return settings
}
