// Package rake drives packages built with Rake: it propagates the package's
// library directory to dependents, runs the setup, documentation, test and
// clean tasks through `ruby -S rake`, and clears stale native extension build
// caches before forced rebuilds.
package rake

import "strings"

// Default task names.
const (
	DefaultSetupTask = "default"
	DefaultDocTask   = "redocs"
	DefaultTestTask  = "test"
	DefaultCleanTask = "clean"
)

// Phase labels, used for log file names and progress messages.
const (
	PhasePostInstall = "post-install"
	PhaseDoc         = "doc"
	PhaseTest        = "test"
	PhaseClean       = "clean"
	PhaseInstall     = "install"
	PhaseForcedBuild = "forced-build"
)

// ManifestFileName is the file whose presence makes Rake applicable to a source directory.
const ManifestFileName = "Rakefile"

const disabledTaskDescriptionConstant = "<disabled>"

// OptionalTask is a Rake task name that may be disabled. The zero value is disabled.
type OptionalTask struct {
	name string
}

// Task returns an enabled task. A blank name yields a disabled task.
func Task(name string) OptionalTask {
	return OptionalTask{name: strings.TrimSpace(name)}
}

// DisabledTask returns a task that never runs.
func DisabledTask() OptionalTask {
	return OptionalTask{}
}

// Name returns the task name and whether the task is enabled.
func (task OptionalTask) Name() (string, bool) {
	return task.name, len(task.name) > 0
}

// Enabled reports whether the task runs.
func (task OptionalTask) Enabled() bool {
	return len(task.name) > 0
}

// String renders the task name, or a marker when disabled.
func (task OptionalTask) String() string {
	if !task.Enabled() {
		return disabledTaskDescriptionConstant
	}
	return task.name
}
