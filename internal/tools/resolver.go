// Package tools resolves the executables used to drive package builds,
// honouring per-tool overrides from configuration.
package tools

import (
	"fmt"
	"os/exec"
	"strings"
)

const toolNotFoundMessageTemplateConstant = "tool %q not found in PATH (configure tools.%s to override)"

// ToolNotFoundError reports a tool that could not be located on PATH.
type ToolNotFoundError struct {
	Name      string
	Candidate string
	Cause     error
}

// Error describes the missing tool.
func (notFound ToolNotFoundError) Error() string {
	return fmt.Sprintf(toolNotFoundMessageTemplateConstant, notFound.Candidate, notFound.Name)
}

// Unwrap exposes the lookup failure.
func (notFound ToolNotFoundError) Unwrap() error {
	return notFound.Cause
}

// PathLookup locates an executable by name.
type PathLookup func(name string) (string, error)

// Resolver maps logical tool names to executables.
type Resolver struct {
	overrides map[string]string
	lookPath  PathLookup
}

// NewResolver builds a Resolver. Empty override values are ignored.
func NewResolver(overrides map[string]string, lookPath PathLookup) *Resolver {
	normalized := make(map[string]string, len(overrides))
	for name, value := range overrides {
		trimmedName := strings.TrimSpace(name)
		trimmedValue := strings.TrimSpace(value)
		if len(trimmedName) == 0 || len(trimmedValue) == 0 {
			continue
		}
		normalized[trimmedName] = trimmedValue
	}
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return &Resolver{overrides: normalized, lookPath: lookPath}
}

// Tool returns the configured override for name, or name itself.
func (resolver *Resolver) Tool(name string) string {
	if override, exists := resolver.overrides[name]; exists {
		return override
	}
	return name
}

// ToolInPath resolves Tool(name) to a full executable path.
func (resolver *Resolver) ToolInPath(name string) (string, error) {
	candidate := resolver.Tool(name)
	resolvedPath, lookupError := resolver.lookPath(candidate)
	if lookupError != nil {
		return "", ToolNotFoundError{Name: name, Candidate: candidate, Cause: lookupError}
	}
	return resolvedPath, nil
}
