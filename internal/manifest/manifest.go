// Package manifest loads package set definitions: which Rake packages to
// build, where their sources live, and how their tasks are configured.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tyemirov/rakebuild/internal/packages"
	"github.com/tyemirov/rakebuild/internal/rake"
)

const (
	manifestLoadErrorTemplateConstant       = "failed to load package manifest: %w"
	manifestParseErrorTemplateConstant      = "failed to parse package manifest: %w"
	manifestPathRequiredMessageConstant     = "package manifest path must be provided"
	manifestEmptyMessageConstant            = "package manifest must define at least one package"
	manifestNameMissingTemplateConstant     = "package entry %d is missing a name"
	manifestDuplicateNameTemplateConstant   = "package %q is declared more than once"
	manifestTaskKindTemplateConstant        = "task %s must be a string or null (line %d)"
	manifestUnknownTaskTemplateConstant     = "unknown task %q (line %d)"
	manifestTasksMappingTemplateConstant    = "tasks must be a mapping (line %d)"
	manifestTasksErrorTemplateConstant      = "package %s: %w"
	setupTaskKeyConstant                    = "setup"
	docTaskKeyConstant                      = "doc"
	testTaskKeyConstant                     = "test"
	cleanTaskKeyConstant                    = "clean"
	manifestPackagesSequenceMessageConstant = "packages block must be defined as a sequence"
	exclusionErrorTemplateConstant          = "package %s: %w"
	descriptorErrorTemplateConstant         = "package %s: %w"
	nullTagConstant                         = "!!null"
)

var (
	// ErrManifestPathMissing indicates Load was called without a path.
	ErrManifestPathMissing = errors.New(manifestPathRequiredMessageConstant)
	// ErrManifestEmpty indicates a manifest without packages.
	ErrManifestEmpty = errors.New(manifestEmptyMessageConstant)
)

// Manifest is a parsed package set.
type Manifest struct {
	Packages []PackageDefinition
}

// PackageDefinition declares one Rake package.
type PackageDefinition struct {
	Name            string
	SourceDirectory string
	StampDirectory  string
	Tasks           TaskOverrides
	Documentation   bool
	Tests           bool
	Exclude         []string
}

// TaskOverrides holds per-task settings. Unset entries keep the driver defaults.
type TaskOverrides struct {
	Setup TaskOverride
	Doc   TaskOverride
	Test  TaskOverride
	Clean TaskOverride
}

// TaskOverride is a task entry from the manifest. A missing key leaves it
// unset; null or an empty string disables the task.
type TaskOverride struct {
	set  bool
	task rake.OptionalTask
}

// Set reports whether the manifest mentioned the task.
func (override TaskOverride) Set() bool {
	return override.set
}

// Task returns the configured task; meaningful only when Set is true.
func (override TaskOverride) Task() rake.OptionalTask {
	return override.task
}

type manifestFile struct {
	Packages []packageEntry `yaml:"packages"`
}

type packageEntry struct {
	Name           string    `yaml:"name"`
	SourceDir      string    `yaml:"srcdir"`
	StampDir       string    `yaml:"stampdir"`
	Tasks          yaml.Node `yaml:"tasks"`
	Documentation  bool      `yaml:"doc"`
	Tests          bool      `yaml:"test"`
	ExcludePattern []string  `yaml:"exclude"`
}

// Load reads the manifest at filePath. Relative source and stamp directories
// are resolved against the manifest's directory.
func Load(filePath string) (Manifest, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return Manifest{}, ErrManifestPathMissing
	}

	contentBytes, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return Manifest{}, fmt.Errorf(manifestLoadErrorTemplateConstant, readError)
	}

	absolutePath, absoluteError := filepath.Abs(trimmedPath)
	if absoluteError != nil {
		return Manifest{}, fmt.Errorf(manifestLoadErrorTemplateConstant, absoluteError)
	}
	return Parse(contentBytes, filepath.Dir(absolutePath))
}

// Parse decodes manifest content, resolving relative paths against baseDirectory.
func Parse(contentBytes []byte, baseDirectory string) (Manifest, error) {
	if sequenceError := ensurePackagesSequence(contentBytes); sequenceError != nil {
		return Manifest{}, fmt.Errorf(manifestParseErrorTemplateConstant, sequenceError)
	}

	var parsed manifestFile
	if unmarshalError := yaml.Unmarshal(contentBytes, &parsed); unmarshalError != nil {
		return Manifest{}, fmt.Errorf(manifestParseErrorTemplateConstant, unmarshalError)
	}
	if len(parsed.Packages) == 0 {
		return Manifest{}, ErrManifestEmpty
	}

	manifest := Manifest{Packages: make([]PackageDefinition, 0, len(parsed.Packages))}
	seenNames := make(map[string]struct{}, len(parsed.Packages))
	for entryIndex, entry := range parsed.Packages {
		name := strings.TrimSpace(entry.Name)
		if len(name) == 0 {
			return Manifest{}, fmt.Errorf(manifestNameMissingTemplateConstant, entryIndex+1)
		}
		if _, duplicate := seenNames[name]; duplicate {
			return Manifest{}, fmt.Errorf(manifestDuplicateNameTemplateConstant, name)
		}
		seenNames[name] = struct{}{}

		tasks, tasksError := decodeTaskOverrides(&entry.Tasks)
		if tasksError != nil {
			return Manifest{}, fmt.Errorf(manifestParseErrorTemplateConstant, fmt.Errorf(manifestTasksErrorTemplateConstant, name, tasksError))
		}

		sourceDirectory := strings.TrimSpace(entry.SourceDir)
		if len(sourceDirectory) == 0 {
			sourceDirectory = name
		}

		exclusions := make([]string, 0, len(entry.ExcludePattern))
		for _, pattern := range entry.ExcludePattern {
			if trimmedPattern := strings.TrimSpace(pattern); len(trimmedPattern) > 0 {
				exclusions = append(exclusions, trimmedPattern)
			}
		}

		manifest.Packages = append(manifest.Packages, PackageDefinition{
			Name:            name,
			SourceDirectory: resolvePath(baseDirectory, sourceDirectory),
			StampDirectory:  resolvePath(baseDirectory, strings.TrimSpace(entry.StampDir)),
			Tasks:           tasks,
			Documentation:   entry.Documentation,
			Tests:           entry.Tests,
			Exclude:         exclusions,
		})
	}
	return manifest, nil
}

// Descriptor builds the package descriptor. defaultStampDirectory applies when
// the definition has none; an empty value keeps the descriptor's own default.
func (definition PackageDefinition) Descriptor(defaultStampDirectory string) (*packages.Package, error) {
	stampDirectory := definition.StampDirectory
	if len(stampDirectory) == 0 && len(strings.TrimSpace(defaultStampDirectory)) > 0 {
		stampDirectory = filepath.Join(defaultStampDirectory, strings.ReplaceAll(definition.Name, "/", "_"))
	}
	pkg, packageError := packages.NewPackage(definition.Name, definition.SourceDirectory, stampDirectory)
	if packageError != nil {
		return nil, fmt.Errorf(descriptorErrorTemplateConstant, definition.Name, packageError)
	}
	for _, pattern := range definition.Exclude {
		if exclusionError := pkg.ExcludeExpression(pattern); exclusionError != nil {
			return nil, fmt.Errorf(exclusionErrorTemplateConstant, definition.Name, exclusionError)
		}
	}
	return pkg, nil
}

// Configure applies task overrides and capabilities to driver.
func (definition PackageDefinition) Configure(driver *rake.Driver) {
	if definition.Tasks.Setup.Set() {
		driver.SetupTask = definition.Tasks.Setup.Task()
	}
	if definition.Tasks.Doc.Set() {
		driver.DocTask = definition.Tasks.Doc.Task()
	}
	if definition.Tasks.Test.Set() {
		driver.TestTask = definition.Tasks.Test.Task()
	}
	if definition.Tasks.Clean.Set() {
		driver.CleanTask = definition.Tasks.Clean.Task()
	}
	if definition.Documentation {
		driver.EnableDocumentation(true)
	}
	if definition.Tests {
		driver.EnableTests(true)
	}
}

// decodeTaskOverrides walks the tasks mapping directly: yaml.v3 does not call
// custom unmarshalers for null values, which mark disabled tasks.
func decodeTaskOverrides(node *yaml.Node) (TaskOverrides, error) {
	overrides := TaskOverrides{}
	if node.Kind == 0 || node.Tag == nullTagConstant {
		return overrides, nil
	}
	if node.Kind != yaml.MappingNode {
		return TaskOverrides{}, fmt.Errorf(manifestTasksMappingTemplateConstant, node.Line)
	}

	targets := map[string]*TaskOverride{
		setupTaskKeyConstant: &overrides.Setup,
		docTaskKeyConstant:   &overrides.Doc,
		testTaskKeyConstant:  &overrides.Test,
		cleanTaskKeyConstant: &overrides.Clean,
	}
	for contentIndex := 0; contentIndex+1 < len(node.Content); contentIndex += 2 {
		keyNode := node.Content[contentIndex]
		valueNode := node.Content[contentIndex+1]
		target, known := targets[keyNode.Value]
		if !known {
			return TaskOverrides{}, fmt.Errorf(manifestUnknownTaskTemplateConstant, keyNode.Value, keyNode.Line)
		}
		if valueNode.Kind != yaml.ScalarNode {
			return TaskOverrides{}, fmt.Errorf(manifestTaskKindTemplateConstant, keyNode.Value, valueNode.Line)
		}
		target.set = true
		if valueNode.Tag == nullTagConstant {
			target.task = rake.DisabledTask()
			continue
		}
		target.task = rake.Task(valueNode.Value)
	}
	return overrides, nil
}

func ensurePackagesSequence(contentBytes []byte) error {
	var packagesWrapper struct {
		Packages yaml.Node `yaml:"packages"`
	}
	if unmarshalError := yaml.Unmarshal(contentBytes, &packagesWrapper); unmarshalError != nil {
		return unmarshalError
	}
	switch packagesWrapper.Packages.Kind {
	case 0, yaml.SequenceNode:
		return nil
	default:
		return errors.New(manifestPackagesSequenceMessageConstant)
	}
}

func resolvePath(baseDirectory string, path string) string {
	if len(path) == 0 || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDirectory, path)
}
