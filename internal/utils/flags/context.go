// Package flags provides helpers for binding standardized execution flags to Cobra commands.
package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	// KeepGoingFlagName exposes the shared keep-going flag name.
	KeepGoingFlagName = "keep-going"
	// KeepGoingFlagShorthand provides the shorthand for the keep-going flag.
	KeepGoingFlagShorthand = "k"
	// KeepGoingFlagUsage describes the shared keep-going flag purpose.
	KeepGoingFlagUsage = "Continue with remaining packages after a failure"
	// ManifestFlagName exposes the shared manifest flag name.
	ManifestFlagName = "manifest"
	// ManifestFlagUsage describes the shared manifest flag purpose.
	ManifestFlagUsage = "Package set manifest (YAML) listing the packages to build"
)

// ExecutionDefaults describes default flag values shared across commands.
type ExecutionDefaults struct {
	KeepGoing bool
	Manifest  string
}

// BindExecutionFlags attaches the keep-going and manifest flags to the
// command using persistent scope. Existing definitions are left untouched.
func BindExecutionFlags(command *cobra.Command, defaults ExecutionDefaults) {
	if command == nil {
		return
	}
	persistentFlagSet := command.PersistentFlags()
	if persistentFlagSet.Lookup(KeepGoingFlagName) == nil {
		persistentFlagSet.BoolP(KeepGoingFlagName, KeepGoingFlagShorthand, defaults.KeepGoing, KeepGoingFlagUsage)
	}
	if persistentFlagSet.Lookup(ManifestFlagName) == nil {
		persistentFlagSet.String(ManifestFlagName, defaults.Manifest, ManifestFlagUsage)
	}
}

// AddToggleFlag registers a boolean flag that also accepts yes/no and on/off.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 || flagSet.Lookup(name) != nil {
		return
	}
	value := &toggleValue{target: target}
	if value.target == nil {
		value.target = new(bool)
	}
	*value.target = defaultValue
	flag := flagSet.VarPF(value, name, shorthand, usage)
	flag.NoOptDefVal = "true"
}

type toggleValue struct {
	target *bool
}

func (value *toggleValue) String() string {
	if value.target == nil || !*value.target {
		return "false"
	}
	return "true"
}

func (value *toggleValue) Set(raw string) error {
	parsed, parseError := parseToggleValue(raw)
	if parseError != nil {
		return parseError
	}
	*value.target = parsed
	return nil
}

func (value *toggleValue) Type() string {
	return "bool"
}
