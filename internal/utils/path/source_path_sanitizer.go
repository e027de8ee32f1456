// Package pathutils normalizes user-supplied source directory paths.
package pathutils

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	homeDirectoryPrefixConstant = "~"
	trueLiteralConstant         = "true"
	falseLiteralConstant        = "false"
)

// HomeDirectoryResolver returns the current user's home directory.
type HomeDirectoryResolver func() (string, error)

// SourcePathSanitizerConfiguration toggles optional filters.
type SourcePathSanitizerConfiguration struct {
	ExcludeBooleanLiteralCandidates bool
	PruneNestedPaths                bool
}

// SourcePathSanitizer trims, expands and deduplicates path candidates.
type SourcePathSanitizer struct {
	resolveHomeDirectory HomeDirectoryResolver
	configuration        SourcePathSanitizerConfiguration
}

// NewSourcePathSanitizer builds a sanitizer with default configuration.
func NewSourcePathSanitizer() *SourcePathSanitizer {
	return NewSourcePathSanitizerWithConfiguration(nil, SourcePathSanitizerConfiguration{})
}

// NewSourcePathSanitizerWithConfiguration builds a sanitizer; a nil resolver uses os.UserHomeDir.
func NewSourcePathSanitizerWithConfiguration(resolver HomeDirectoryResolver, configuration SourcePathSanitizerConfiguration) *SourcePathSanitizer {
	if resolver == nil {
		resolver = os.UserHomeDir
	}
	return &SourcePathSanitizer{resolveHomeDirectory: resolver, configuration: configuration}
}

// Sanitize returns absolute, cleaned, distinct paths in input order. It
// returns nil when nothing survives.
func (sanitizer *SourcePathSanitizer) Sanitize(candidates []string) []string {
	seen := map[string]struct{}{}
	var sanitized []string
	for _, candidate := range candidates {
		trimmed := strings.TrimSpace(candidate)
		if len(trimmed) == 0 {
			continue
		}
		if sanitizer.configuration.ExcludeBooleanLiteralCandidates && isBooleanLiteral(trimmed) {
			continue
		}
		expanded := sanitizer.expandHomeDirectory(trimmed)
		absolute, absoluteError := filepath.Abs(expanded)
		if absoluteError != nil {
			continue
		}
		if _, exists := seen[absolute]; exists {
			continue
		}
		seen[absolute] = struct{}{}
		sanitized = append(sanitized, absolute)
	}

	if sanitizer.configuration.PruneNestedPaths {
		sanitized = pruneNestedPaths(sanitized)
	}
	return sanitized
}

func (sanitizer *SourcePathSanitizer) expandHomeDirectory(path string) string {
	if path != homeDirectoryPrefixConstant && !strings.HasPrefix(path, homeDirectoryPrefixConstant+string(filepath.Separator)) {
		return path
	}
	homeDirectory, homeError := sanitizer.resolveHomeDirectory()
	if homeError != nil || len(homeDirectory) == 0 {
		return path
	}
	return filepath.Join(homeDirectory, strings.TrimPrefix(path, homeDirectoryPrefixConstant))
}

func isBooleanLiteral(value string) bool {
	lowered := strings.ToLower(value)
	return lowered == trueLiteralConstant || lowered == falseLiteralConstant
}

func pruneNestedPaths(paths []string) []string {
	if len(paths) == 0 {
		return paths
	}
	ordered := append([]string{}, paths...)
	sort.Slice(ordered, func(left int, right int) bool {
		return len(ordered[left]) < len(ordered[right])
	})

	kept := map[string]struct{}{}
	keptOrder := []string{}
	for _, candidate := range ordered {
		nested := false
		for _, parent := range keptOrder {
			if strings.HasPrefix(candidate, parent+string(filepath.Separator)) {
				nested = true
				break
			}
		}
		if !nested {
			kept[candidate] = struct{}{}
			keptOrder = append(keptOrder, candidate)
		}
	}

	pruned := make([]string, 0, len(kept))
	for _, path := range paths {
		if _, exists := kept[path]; exists {
			pruned = append(pruned, path)
		}
	}
	return pruned
}
