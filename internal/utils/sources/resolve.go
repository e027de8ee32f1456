// Package sources determines which packages a command operates on, either
// from positional source directories or from a package set manifest.
package sources

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tyemirov/rakebuild/internal/manifest"
	pathutils "github.com/tyemirov/rakebuild/internal/utils/path"
)

const missingPackagesErrorMessage = "no packages provided; pass source directories or configure a manifest with --manifest"

var sanitizer = pathutils.NewSourcePathSanitizerWithConfiguration(nil, pathutils.SourcePathSanitizerConfiguration{ExcludeBooleanLiteralCandidates: true})

// MissingPackagesError returns the canonical error when no packages are supplied.
func MissingPackagesError() error {
	return errors.New(missingPackagesErrorMessage)
}

// MissingPackagesMessage exposes the canonical missing-packages error text.
func MissingPackagesMessage() string {
	return missingPackagesErrorMessage
}

// Resolve returns package definitions for the command. Positional source
// directories take precedence and are named after their base directory;
// otherwise the manifest at manifestPath is loaded.
func Resolve(command *cobra.Command, positional []string, manifestPath string) ([]manifest.PackageDefinition, error) {
	directories := sanitizer.Sanitize(positional)
	if len(directories) > 0 {
		return DefinitionsForDirectories(directories), nil
	}

	trimmedManifestPath := strings.TrimSpace(manifestPath)
	if len(trimmedManifestPath) > 0 {
		expanded := sanitizer.Sanitize([]string{trimmedManifestPath})
		if len(expanded) > 0 {
			trimmedManifestPath = expanded[0]
		}
		loaded, loadError := manifest.Load(trimmedManifestPath)
		if loadError != nil {
			return nil, loadError
		}
		return loaded.Packages, nil
	}

	if command != nil {
		_ = command.Help()
	}
	return nil, MissingPackagesError()
}

// DefinitionsForDirectories builds default definitions for source directories.
func DefinitionsForDirectories(directories []string) []manifest.PackageDefinition {
	definitions := make([]manifest.PackageDefinition, 0, len(directories))
	for _, directory := range directories {
		definitions = append(definitions, manifest.PackageDefinition{
			Name:            filepath.Base(directory),
			SourceDirectory: directory,
		})
	}
	return definitions
}
