package build

import (
	"strings"
	"time"
)

const (
	defaultLogDirectoryConstant   = "log"
	defaultStampDirectoryConstant = ".rakebuild"
)

// Configuration captures the build defaults read from the build section.
type Configuration struct {
	LogDirectory   string        `mapstructure:"log_directory"`
	StampDirectory string        `mapstructure:"stamp_directory"`
	Manifest       string        `mapstructure:"manifest"`
	Packages       []string      `mapstructure:"packages"`
	KeepGoing      bool          `mapstructure:"keep_going"`
	Documentation  bool          `mapstructure:"documentation"`
	Tests          bool          `mapstructure:"tests"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// EnvironmentConfiguration controls how environment contributions are exported.
type EnvironmentConfiguration struct {
	File    string `mapstructure:"file"`
	Inherit bool   `mapstructure:"inherit"`
}

// MetricsConfiguration controls phase metric export.
type MetricsConfiguration struct {
	Textfile string `mapstructure:"textfile"`
}

// Settings aggregates every configuration section the build commands consume.
type Settings struct {
	Build       Configuration
	Tools       map[string]string
	Environment EnvironmentConfiguration
	Metrics     MetricsConfiguration
}

// DefaultSettings returns the settings used when no configuration is provided.
func DefaultSettings() Settings {
	return Settings{
		Build: Configuration{
			LogDirectory:   defaultLogDirectoryConstant,
			StampDirectory: defaultStampDirectoryConstant,
		},
		Tools:       map[string]string{},
		Environment: EnvironmentConfiguration{Inherit: true},
	}
}

func (settings Settings) sanitize() Settings {
	sanitized := settings
	sanitized.Build.LogDirectory = strings.TrimSpace(settings.Build.LogDirectory)
	if len(sanitized.Build.LogDirectory) == 0 {
		sanitized.Build.LogDirectory = defaultLogDirectoryConstant
	}
	sanitized.Build.StampDirectory = strings.TrimSpace(settings.Build.StampDirectory)
	if len(sanitized.Build.StampDirectory) == 0 {
		sanitized.Build.StampDirectory = defaultStampDirectoryConstant
	}
	sanitized.Build.Manifest = strings.TrimSpace(settings.Build.Manifest)
	if sanitized.Build.Timeout < 0 {
		sanitized.Build.Timeout = 0
	}

	sanitized.Build.Packages = make([]string, 0, len(settings.Build.Packages))
	for _, packageDirectory := range settings.Build.Packages {
		if trimmed := strings.TrimSpace(packageDirectory); len(trimmed) > 0 {
			sanitized.Build.Packages = append(sanitized.Build.Packages, trimmed)
		}
	}

	sanitized.Tools = make(map[string]string, len(settings.Tools))
	for name, value := range settings.Tools {
		if trimmed := strings.TrimSpace(value); len(trimmed) > 0 {
			sanitized.Tools[strings.TrimSpace(name)] = trimmed
		}
	}

	sanitized.Environment.File = strings.TrimSpace(settings.Environment.File)
	sanitized.Metrics.Textfile = strings.TrimSpace(settings.Metrics.Textfile)
	return sanitized
}
