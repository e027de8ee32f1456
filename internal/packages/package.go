package packages

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	installStampFileNameTemplateConstant  = "%s-install.stamp"
	packageNameMissingMessageConstant     = "package name must be provided"
	sourceDirectoryMissingMessageConstant = "package source directory must be provided"
	exclusionCompileErrorTemplateConstant = "invalid exclusion pattern %q: %w"
	defaultStampDirectoryNameConstant     = ".rakebuild"
)

var (
	// ErrPackageNameMissing indicates a descriptor without a name.
	ErrPackageNameMissing = errors.New(packageNameMissingMessageConstant)
	// ErrSourceDirectoryMissing indicates a descriptor without a source directory.
	ErrSourceDirectoryMissing = errors.New(sourceDirectoryMissingMessageConstant)
)

var defaultExclusions = []*regexp.Regexp{
	regexp.MustCompile(`(^|/)\.(git|svn|hg)$`),
}

// Package identifies a source package instance.
type Package struct {
	name            string
	sourceDirectory string
	stampDirectory  string
	exclusions      []*regexp.Regexp
}

// NewPackage builds a descriptor. The source directory is made absolute; an
// empty stamp directory defaults to <srcdir>/.rakebuild.
func NewPackage(name string, sourceDirectory string, stampDirectory string) (*Package, error) {
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return nil, ErrPackageNameMissing
	}
	trimmedSourceDirectory := strings.TrimSpace(sourceDirectory)
	if len(trimmedSourceDirectory) == 0 {
		return nil, ErrSourceDirectoryMissing
	}
	absoluteSourceDirectory, absoluteError := filepath.Abs(trimmedSourceDirectory)
	if absoluteError != nil {
		return nil, absoluteError
	}

	resolvedStampDirectory := strings.TrimSpace(stampDirectory)
	if len(resolvedStampDirectory) == 0 {
		resolvedStampDirectory = filepath.Join(absoluteSourceDirectory, defaultStampDirectoryNameConstant)
	}
	absoluteStampDirectory, stampError := filepath.Abs(resolvedStampDirectory)
	if stampError != nil {
		return nil, stampError
	}

	return &Package{
		name:            trimmedName,
		sourceDirectory: absoluteSourceDirectory,
		stampDirectory:  absoluteStampDirectory,
		exclusions:      append([]*regexp.Regexp{}, defaultExclusions...),
	}, nil
}

// Name returns the package name.
func (pkg *Package) Name() string {
	return pkg.name
}

// SourceDirectory returns the absolute source directory.
func (pkg *Package) SourceDirectory() string {
	return pkg.sourceDirectory
}

// StampDirectory returns the directory holding the package's install stamp.
func (pkg *Package) StampDirectory() string {
	return pkg.stampDirectory
}

// InstallStampPath returns the file touched after a successful install.
func (pkg *Package) InstallStampPath() string {
	return filepath.Join(pkg.stampDirectory, fmt.Sprintf(installStampFileNameTemplateConstant, strings.ReplaceAll(pkg.name, "/", "_")))
}

// Exclude adds patterns that remove matching paths from change detection.
func (pkg *Package) Exclude(patterns ...*regexp.Regexp) {
	for _, pattern := range patterns {
		if pattern == nil {
			continue
		}
		pkg.exclusions = append(pkg.exclusions, pattern)
	}
}

// ExcludeExpression compiles and adds a single exclusion pattern.
func (pkg *Package) ExcludeExpression(expression string) error {
	pattern, compileError := regexp.Compile(expression)
	if compileError != nil {
		return fmt.Errorf(exclusionCompileErrorTemplateConstant, expression, compileError)
	}
	pkg.Exclude(pattern)
	return nil
}

// Exclusions returns a copy of the active exclusion patterns.
func (pkg *Package) Exclusions() []*regexp.Regexp {
	return append([]*regexp.Regexp{}, pkg.exclusions...)
}

// IsExcluded reports whether a slash-separated path relative to the source
// directory matches any exclusion pattern.
func (pkg *Package) IsExcluded(relativePath string) bool {
	normalized := filepath.ToSlash(relativePath)
	for _, pattern := range pkg.exclusions {
		if pattern.MatchString(normalized) {
			return true
		}
	}
	return false
}
