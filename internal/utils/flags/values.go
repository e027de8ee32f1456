package flags

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tyemirov/rakebuild/internal/utils"
)

const (
	boolFlagParseErrorTemplate = "unable to parse flag %q: %w"
	toggleValueErrorTemplate   = "invalid toggle value %q"
	toggleTrueLiteralConstant  = "true"
	toggleFalseLiteralConstant = "false"
	toggleYesLiteralConstant   = "yes"
	toggleNoLiteralConstant    = "no"
	toggleOnLiteralConstant    = "on"
	toggleOffLiteralConstant   = "off"
	toggleOneLiteralConstant   = "1"
	toggleZeroLiteralConstant  = "0"
)

// ErrFlagNotDefined indicates that the requested flag is not present on the command.
var ErrFlagNotDefined = errors.New("flag not defined")

// BoolFlag reads a boolean flag and whether it was set explicitly.
func BoolFlag(command *cobra.Command, name string) (bool, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return false, false, ErrFlagNotDefined
	}
	value, err := flagSet.GetBool(name)
	if err == nil {
		return value, flag.Changed, nil
	}

	if flag.Value == nil {
		return false, false, err
	}

	parsedValue, parseError := parseToggleValue(flag.Value.String())
	if parseError != nil {
		return false, false, fmt.Errorf(boolFlagParseErrorTemplate, name, parseError)
	}

	return parsedValue, flag.Changed, nil
}

// StringFlag reads a string flag and whether it was set explicitly.
func StringFlag(command *cobra.Command, name string) (string, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return "", false, ErrFlagNotDefined
	}
	value, err := flagSet.GetString(name)
	if err != nil {
		return "", false, err
	}
	return value, flag.Changed, nil
}

func locateFlag(command *cobra.Command, name string) (*pflag.FlagSet, *pflag.Flag) {
	if command == nil {
		return nil, nil
	}

	candidateSets := []*pflag.FlagSet{
		command.Flags(),
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	if root := command.Root(); root != nil {
		candidateSets = append(candidateSets, root.PersistentFlags())
	}

	for _, set := range candidateSets {
		if set == nil {
			continue
		}
		if flag := set.Lookup(name); flag != nil {
			return set, flag
		}
	}

	return nil, nil
}

// CollectExecutionFlags inspects the command's flags to produce execution flag values.
func CollectExecutionFlags(command *cobra.Command) utils.ExecutionFlags {
	executionFlags := utils.ExecutionFlags{}
	if command == nil {
		return executionFlags
	}

	if keepGoingValue, keepGoingChanged, keepGoingError := BoolFlag(command, KeepGoingFlagName); keepGoingError == nil {
		executionFlags.KeepGoing = keepGoingValue
		executionFlags.KeepGoingSet = keepGoingChanged
	}

	if manifestValue, manifestChanged, manifestError := StringFlag(command, ManifestFlagName); manifestError == nil {
		executionFlags.Manifest = strings.TrimSpace(manifestValue)
		executionFlags.ManifestSet = manifestChanged
	}

	return executionFlags
}

// ResolveExecutionFlags returns execution flags from context or flag values, indicating whether any overrides are provided.
func ResolveExecutionFlags(command *cobra.Command) (utils.ExecutionFlags, bool) {
	if command != nil {
		if flags, available := utils.ExecutionFlagsFromContext(command.Context()); available {
			return flags, true
		}
	}

	executionFlags := CollectExecutionFlags(command)
	available := executionFlags.KeepGoingSet || executionFlags.ManifestSet
	return executionFlags, available
}

func parseToggleValue(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case toggleTrueLiteralConstant, toggleYesLiteralConstant, toggleOnLiteralConstant, toggleOneLiteralConstant:
		return true, nil
	case toggleFalseLiteralConstant, toggleNoLiteralConstant, toggleOffLiteralConstant, toggleZeroLiteralConstant:
		return false, nil
	default:
		return false, fmt.Errorf(toggleValueErrorTemplate, raw)
	}
}
