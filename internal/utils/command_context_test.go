package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecutionFlagsRoundTripThroughContext(t *testing.T) {
	stored := ExecutionFlags{KeepGoing: true, KeepGoingSet: true, Manifest: " packages.yaml ", ManifestSet: true}

	flags, found := ExecutionFlagsFromContext(ContextWithExecutionFlags(context.Background(), stored))

	require.True(t, found)
	require.Equal(t, ExecutionFlags{KeepGoing: true, KeepGoingSet: true, Manifest: "packages.yaml", ManifestSet: true}, flags)
}

func TestExecutionFlagsFromContextWithoutFlags(t *testing.T) {
	testCases := []struct {
		name             string
		executionContext context.Context
	}{
		{name: "nil_context", executionContext: nil},
		{name: "empty_context", executionContext: context.Background()},
		{name: "unrelated_value", executionContext: context.WithValue(context.Background(), executionFlagsKey{}, "keep-going")},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			flags, found := ExecutionFlagsFromContext(testCase.executionContext)
			require.False(t, found)
			require.Zero(t, flags)
		})
	}
}
