package rake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/rakebuild/internal/environment"
	"github.com/tyemirov/rakebuild/internal/metrics"
	"github.com/tyemirov/rakebuild/internal/packages"
	"github.com/tyemirov/rakebuild/internal/subprocess"
)

const (
	libraryDirectoryNameConstant        = "lib"
	installStartTemplateConstant        = "setting up Ruby package %s"
	installDoneTemplateConstant         = "set up Ruby package %s"
	baseLifecycleMissingMessageConstant = "rake driver requires a base lifecycle"
	invokerMissingMessageConstant       = "rake driver requires a task invoker"
	cleanFailedWarningTemplateConstant  = "%s: cleaning failed. If this package does not need a clean target, disable its clean task in the package definition. See %s for more details"
	phaseSkippedMessageConstant         = "phase not applicable"
	reasonLogFieldNameConstant          = "reason"
	reasonTaskDisabledConstant          = "task disabled"
	reasonManifestMissingConstant       = "Rakefile missing"
	reasonCapabilityDisabledConstant    = "capability not enabled"
	forcedBuildCachesMessageConstant    = "cleared native build caches"
	removedCountLogFieldNameConstant    = "removed"
	cleanPreparationErrorTemplate       = "unable to clean %s: %w"
)

var (
	// ErrBaseLifecycleNotConfigured indicates a driver built without a base lifecycle.
	ErrBaseLifecycleNotConfigured = errors.New(baseLifecycleMissingMessageConstant)
	// ErrInvokerNotConfigured indicates a driver built without a task invoker.
	ErrInvokerNotConfigured = errors.New(invokerMissingMessageConstant)
)

// Paths produced by native extension builds and generated documentation,
// ignored when deciding whether the package sources changed.
var generatedArtifactExclusions = []*regexp.Regexp{
	regexp.MustCompile(`\.so$`),
	regexp.MustCompile(`Makefile$`),
	regexp.MustCompile(`mkmf.log$`),
	regexp.MustCompile(`\.o$`),
	regexp.MustCompile(`doc$`),
}

// Invoker runs a named task for a package under a phase label.
type Invoker interface {
	Invoke(executionContext context.Context, pkg *packages.Package, phase string, task string) error
}

// CleanStatus describes the outcome of the clean phase.
type CleanStatus int

const (
	// CleanSkipped means the clean task is disabled or no Rakefile exists.
	CleanSkipped CleanStatus = iota
	// CleanSucceeded means the clean task ran and passed.
	CleanSucceeded
	// CleanRecoverableFailure means the clean task failed; the build may continue.
	CleanRecoverableFailure
)

// CleanResult is returned by Driver.Clean.
type CleanResult struct {
	Status  CleanStatus
	LogFile string
	Failure error
}

// Dependencies groups the collaborators of a Driver.
type Dependencies struct {
	Logger      *zap.Logger
	Base        packages.Lifecycle
	Invoker     Invoker
	Environment *environment.Store
	Progress    ProgressReporter
	Recorder    metrics.Recorder
}

// Driver is the lifecycle of a Rake package. It decorates a base lifecycle,
// calling it explicitly before or after its own steps.
//
// The task fields are read each time a phase runs, so they may be changed
// until then. Driver holds no locks: the orchestrator must not run two phases
// of the same package concurrently.
type Driver struct {
	SetupTask OptionalTask
	DocTask   OptionalTask
	TestTask  OptionalTask
	CleanTask OptionalTask

	pkg                  *packages.Package
	base                 packages.Lifecycle
	invoker              Invoker
	environment          *environment.Store
	progress             ProgressReporter
	recorder             metrics.Recorder
	logger               *zap.Logger
	documentationEnabled bool
	testsEnabled         bool
}

// NewDriver builds a driver for pkg with default task names and registers the
// generated-artifact exclusions on the descriptor.
func NewDriver(pkg *packages.Package, dependencies Dependencies) (*Driver, error) {
	if pkg == nil {
		return nil, ErrPackageNotConfigured
	}
	if dependencies.Base == nil {
		return nil, ErrBaseLifecycleNotConfigured
	}
	if dependencies.Invoker == nil {
		return nil, ErrInvokerNotConfigured
	}
	if dependencies.Environment == nil {
		return nil, ErrEnvironmentNotConfigured
	}
	if dependencies.Progress == nil {
		return nil, ErrProgressReporterNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := dependencies.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	pkg.Exclude(generatedArtifactExclusions...)

	return &Driver{
		SetupTask:   Task(DefaultSetupTask),
		DocTask:     Task(DefaultDocTask),
		TestTask:    Task(DefaultTestTask),
		CleanTask:   Task(DefaultCleanTask),
		pkg:         pkg,
		base:        dependencies.Base,
		invoker:     dependencies.Invoker,
		environment: dependencies.Environment,
		progress:    dependencies.Progress,
		recorder:    recorder,
		logger:      logger,
	}, nil
}

// Package returns the driven package descriptor.
func (driver *Driver) Package() *packages.Package {
	return driver.pkg
}

// EnableDocumentation turns the documentation capability on or off.
func (driver *Driver) EnableDocumentation(enabled bool) {
	driver.documentationEnabled = enabled
}

// EnableTests turns the test capability on or off.
func (driver *Driver) EnableTests(enabled bool) {
	driver.testsEnabled = enabled
}

// DocumentationEnabled reports whether documentation generation was requested.
func (driver *Driver) DocumentationEnabled() bool {
	return driver.documentationEnabled
}

// TestsEnabled reports whether test runs were requested.
func (driver *Driver) TestsEnabled() bool {
	return driver.testsEnabled
}

// HasManifest reports whether a Rakefile exists in the source directory.
func (driver *Driver) HasManifest() bool {
	info, statError := os.Stat(filepath.Join(driver.pkg.SourceDirectory(), ManifestFileName))
	return statError == nil && info.Mode().IsRegular()
}

// UpdateEnvironment registers the package's prefix directories and its lib
// directory on RUBYLIB. Missing directories contribute nothing.
func (driver *Driver) UpdateEnvironment() {
	driver.environment.UpdateForPrefix(driver.pkg.SourceDirectory())
	libraryDirectory := filepath.Join(driver.pkg.SourceDirectory(), libraryDirectoryNameConstant)
	if info, statError := os.Stat(libraryDirectory); statError == nil && info.IsDir() {
		driver.environment.AddPath(environment.VariableRubyLibrary, libraryDirectory)
	}
}

// InvokeRake runs task as the post-install setup step when it is enabled and
// a Rakefile exists.
func (driver *Driver) InvokeRake(executionContext context.Context, task OptionalTask) error {
	taskName, enabled := task.Name()
	if !enabled {
		driver.logSkipped(PhasePostInstall, reasonTaskDisabledConstant)
		return nil
	}
	if !driver.HasManifest() {
		driver.logSkipped(PhasePostInstall, reasonManifestMissingConstant)
		return nil
	}
	return driver.invoker.Invoke(executionContext, driver.pkg, PhasePostInstall, taskName)
}

// Install propagates the environment, runs the configured setup task, and then
// the base install. A setup failure aborts before the base install.
func (driver *Driver) Install(executionContext context.Context) error {
	return driver.measure(PhaseInstall, func() error {
		setupError := driver.progress.Scope(driver.pkg.Name(), installStartTemplateConstant, installDoneTemplateConstant, func() error {
			driver.UpdateEnvironment()
			return driver.InvokeRake(executionContext, driver.SetupTask)
		})
		if setupError != nil {
			return setupError
		}
		return driver.base.Install(executionContext)
	})
}

// GenerateDocumentation runs the doc task when documentation is enabled.
func (driver *Driver) GenerateDocumentation(executionContext context.Context) error {
	if !driver.documentationEnabled {
		driver.logSkipped(PhaseDoc, reasonCapabilityDisabledConstant)
		return nil
	}
	return driver.runOptionalPhase(executionContext, PhaseDoc, driver.DocTask)
}

// RunTests runs the test task when tests are enabled.
func (driver *Driver) RunTests(executionContext context.Context) error {
	if !driver.testsEnabled {
		driver.logSkipped(PhaseTest, reasonCapabilityDisabledConstant)
		return nil
	}
	return driver.runOptionalPhase(executionContext, PhaseTest, driver.TestTask)
}

// Clean runs the clean task when it is enabled and a Rakefile exists. A
// failing task yields CleanRecoverableFailure; only errors that prevent
// running the task at all are returned.
func (driver *Driver) Clean(executionContext context.Context) (CleanResult, error) {
	taskName, enabled := driver.CleanTask.Name()
	if !enabled {
		driver.logSkipped(PhaseClean, reasonTaskDisabledConstant)
		driver.recorder.IncPhaseResult(PhaseClean, metrics.ResultSkipped)
		return CleanResult{Status: CleanSkipped}, nil
	}
	if !driver.HasManifest() {
		driver.logSkipped(PhaseClean, reasonManifestMissingConstant)
		driver.recorder.IncPhaseResult(PhaseClean, metrics.ResultSkipped)
		return CleanResult{Status: CleanSkipped}, nil
	}

	startedAt := time.Now()
	invokeError := driver.invoker.Invoke(executionContext, driver.pkg, PhaseClean, taskName)
	driver.recorder.ObservePhaseDuration(PhaseClean, time.Since(startedAt))
	if invokeError == nil {
		driver.recorder.IncPhaseResult(PhaseClean, metrics.ResultSuccess)
		return CleanResult{Status: CleanSucceeded}, nil
	}

	var failure *subprocess.SubcommandFailedError
	if errors.As(invokeError, &failure) {
		driver.recorder.IncPhaseResult(PhaseClean, metrics.ResultWarning)
		return CleanResult{Status: CleanRecoverableFailure, LogFile: failure.LogFile, Failure: invokeError}, nil
	}
	driver.recorder.IncPhaseResult(PhaseClean, metrics.ResultFatal)
	return CleanResult{}, fmt.Errorf(cleanPreparationErrorTemplate, driver.pkg.Name(), invokeError)
}

// PrepareForRebuild runs the base rebuild preparation and then the clean
// task. A failing clean task is reported as a warning and does not stop the
// rebuild.
func (driver *Driver) PrepareForRebuild(executionContext context.Context) error {
	if baseError := driver.base.PrepareForRebuild(executionContext); baseError != nil {
		return baseError
	}
	return driver.cleanForRebuild(executionContext)
}

// PrepareForForcedBuild runs the base forced-build preparation, the clean
// task, and finally removes stale native extension build caches.
func (driver *Driver) PrepareForForcedBuild(executionContext context.Context) error {
	return driver.measure(PhaseForcedBuild, func() error {
		if baseError := driver.base.PrepareForForcedBuild(executionContext); baseError != nil {
			return baseError
		}
		if cleanError := driver.cleanForRebuild(executionContext); cleanError != nil {
			return cleanError
		}
		removed := SanitizeForForcedBuild(driver.pkg.SourceDirectory(), driver.logger)
		driver.logger.Debug(forcedBuildCachesMessageConstant,
			zap.String(packageLogFieldNameConstant, driver.pkg.Name()),
			zap.Int(removedCountLogFieldNameConstant, len(removed)),
		)
		return nil
	})
}

func (driver *Driver) cleanForRebuild(executionContext context.Context) error {
	result, cleanError := driver.Clean(executionContext)
	if cleanError != nil {
		return cleanError
	}
	if result.Status == CleanRecoverableFailure {
		driver.logger.Warn(fmt.Sprintf(cleanFailedWarningTemplateConstant, driver.pkg.Name(), result.LogFile),
			zap.String(packageLogFieldNameConstant, driver.pkg.Name()),
			zap.String(logFileLogFieldNameConstant, result.LogFile),
			zap.Error(result.Failure),
		)
	}
	return nil
}

func (driver *Driver) runOptionalPhase(executionContext context.Context, phase string, task OptionalTask) error {
	taskName, enabled := task.Name()
	if !enabled {
		driver.logSkipped(phase, reasonTaskDisabledConstant)
		driver.recorder.IncPhaseResult(phase, metrics.ResultSkipped)
		return nil
	}
	return driver.measure(phase, func() error {
		return driver.invoker.Invoke(executionContext, driver.pkg, phase, taskName)
	})
}

func (driver *Driver) measure(phase string, step func() error) error {
	startedAt := time.Now()
	stepError := step()
	driver.recorder.ObservePhaseDuration(phase, time.Since(startedAt))
	if stepError != nil {
		driver.recorder.IncPhaseResult(phase, metrics.ResultFatal)
		return stepError
	}
	driver.recorder.IncPhaseResult(phase, metrics.ResultSuccess)
	return nil
}

func (driver *Driver) logSkipped(phase string, reason string) {
	driver.logger.Debug(phaseSkippedMessageConstant,
		zap.String(packageLogFieldNameConstant, driver.pkg.Name()),
		zap.String(phaseLogFieldNameConstant, phase),
		zap.String(reasonLogFieldNameConstant, reason),
	)
}
