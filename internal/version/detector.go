package version

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"

	"github.com/tyemirov/rakebuild/internal/execshell"
)

const (
	unknownVersionFallbackConstant = "unknown"
	unavailableToolVersionConstant = "unavailable"
	buildInfoDevelVersionValue     = "devel"
	vcsRevisionSettingKeyConstant  = "vcs.revision"
	vcsModifiedSettingKeyConstant  = "vcs.modified"
	vcsModifiedTrueValueConstant   = "true"
	dirtySuffixConstant            = "-dirty"
	shortRevisionLengthConstant    = 12
	toolVersionFlagConstant        = "--version"
	commandExecutorMissingConstant = "command executor not configured"
	toolResolverMissingConstant    = "tool resolver not configured"
	toolVersionEmptyOutputConstant = "tool reported an empty version"
)

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// CommandExecutor runs a tool to query its version.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// ToolResolver maps logical tool names to executables.
type ToolResolver interface {
	ToolInPath(name string) (string, error)
}

// ToolVersion reports the version line of one build tool.
type ToolVersion struct {
	Name    string
	Path    string
	Version string
}

// Detector resolves the application version and the versions of the build tools it drives.
type Detector struct {
	buildInfoProvider BuildInfoProvider
	executor          CommandExecutor
	toolResolver      ToolResolver
}

// Dependencies describes the collaborators required for version detection.
type Dependencies struct {
	BuildInfoProvider BuildInfoProvider
	Executor          CommandExecutor
	ToolResolver      ToolResolver
}

// NewDetector constructs a Detector with the supplied dependencies or sensible defaults.
func NewDetector(dependencies Dependencies) *Detector {
	provider := dependencies.BuildInfoProvider
	if provider == nil {
		provider = runtimeBuildInfoProvider{}
	}
	return &Detector{
		buildInfoProvider: provider,
		executor:          dependencies.Executor,
		toolResolver:      dependencies.ToolResolver,
	}
}

// Detect resolves the application version using the supplied dependencies.
func Detect(dependencies Dependencies) string {
	return NewDetector(dependencies).Version()
}

// Version returns the module version, falling back to the embedded VCS revision.
func (detector *Detector) Version() string {
	if detector == nil || detector.buildInfoProvider == nil {
		return unknownVersionFallbackConstant
	}

	buildInfo, available := detector.buildInfoProvider.Read()
	if !available || buildInfo == nil {
		return unknownVersionFallbackConstant
	}

	trimmedVersion := strings.TrimSpace(buildInfo.Main.Version)
	if len(trimmedVersion) > 0 && !strings.EqualFold(strings.Trim(trimmedVersion, "()"), buildInfoDevelVersionValue) {
		return trimmedVersion
	}

	if revision := revisionFromSettings(buildInfo.Settings); len(revision) > 0 {
		return revision
	}

	return unknownVersionFallbackConstant
}

// ToolVersions runs each tool with --version and keeps the first output line.
// Tools that cannot be resolved or executed report "unavailable".
func (detector *Detector) ToolVersions(executionContext context.Context, names ...string) []ToolVersion {
	versions := make([]ToolVersion, 0, len(names))
	for _, name := range names {
		toolVersion := ToolVersion{Name: name, Version: unavailableToolVersionConstant}
		path, versionLine, versionError := detector.toolVersion(executionContext, name)
		if versionError == nil {
			toolVersion.Path = path
			toolVersion.Version = versionLine
		}
		versions = append(versions, toolVersion)
	}
	return versions
}

func (detector *Detector) toolVersion(executionContext context.Context, name string) (string, string, error) {
	if detector == nil || detector.toolResolver == nil {
		return "", "", errors.New(toolResolverMissingConstant)
	}
	if detector.executor == nil {
		return "", "", errors.New(commandExecutorMissingConstant)
	}

	path, resolveError := detector.toolResolver.ToolInPath(name)
	if resolveError != nil {
		return "", "", resolveError
	}

	result, executionError := detector.executor.Execute(executionContext, execshell.ShellCommand{
		Name:    execshell.CommandName(path),
		Details: execshell.CommandDetails{Arguments: []string{toolVersionFlagConstant}},
	})
	if executionError != nil {
		return "", "", executionError
	}

	for _, line := range strings.Split(result.StandardOutput, "\n") {
		if trimmed := strings.TrimSpace(line); len(trimmed) > 0 {
			return path, trimmed, nil
		}
	}
	return "", "", errors.New(toolVersionEmptyOutputConstant)
}

func revisionFromSettings(settings []debug.BuildSetting) string {
	revision := ""
	modified := false
	for _, setting := range settings {
		switch setting.Key {
		case vcsRevisionSettingKeyConstant:
			revision = strings.TrimSpace(setting.Value)
		case vcsModifiedSettingKeyConstant:
			modified = setting.Value == vcsModifiedTrueValueConstant
		}
	}
	if len(revision) == 0 {
		return ""
	}
	if len(revision) > shortRevisionLengthConstant {
		revision = revision[:shortRevisionLengthConstant]
	}
	if modified {
		revision += dirtySuffixConstant
	}
	return revision
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}
