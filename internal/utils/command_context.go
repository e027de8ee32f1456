package utils

import (
	"context"
	"strings"
)

type executionFlagsKey struct{}

// ExecutionFlags records the keep-going and manifest flags of one invocation
// together with whether each was given explicitly, so that explicit flags can
// win over the build configuration.
type ExecutionFlags struct {
	KeepGoing    bool
	KeepGoingSet bool
	Manifest     string
	ManifestSet  bool
}

// ContextWithExecutionFlags returns a child of parent carrying flags.
func ContextWithExecutionFlags(parent context.Context, flags ExecutionFlags) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	flags.Manifest = strings.TrimSpace(flags.Manifest)
	return context.WithValue(parent, executionFlagsKey{}, flags)
}

// ExecutionFlagsFromContext returns the flags stored by ContextWithExecutionFlags.
func ExecutionFlagsFromContext(executionContext context.Context) (ExecutionFlags, bool) {
	if executionContext == nil {
		return ExecutionFlags{}, false
	}
	flags, found := executionContext.Value(executionFlagsKey{}).(ExecutionFlags)
	return flags, found
}
