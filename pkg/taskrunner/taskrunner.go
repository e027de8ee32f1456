package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/rakebuild/internal/packages"
)

// Operation names a lifecycle action applied to every package of a run.
type Operation string

// Supported operations.
const (
	OperationInstall    Operation = Operation("install")
	OperationRebuild    Operation = Operation("rebuild")
	OperationForceBuild Operation = Operation("force-build")
	OperationDoc        Operation = Operation("doc")
	OperationTest       Operation = Operation("test")
)

const (
	unknownOperationTemplateConstant = "%w: %q"
	packageFailureTemplateConstant   = "%s: %w"
	packageStartedMessageConstant    = "package operation started"
	packageSucceededMessageConstant  = "package operation completed"
	packageFailedMessageConstant     = "package operation failed"
	runStoppedMessageConstant        = "stopping after first failure"
	packageLogFieldNameConstant      = "package"
	operationLogFieldNameConstant    = "operation"
	durationLogFieldNameConstant     = "duration"
)

// ErrUnknownOperation indicates an operation the runner does not support.
var ErrUnknownOperation = errors.New("unknown operation")

// Lifecycle is the set of phases a package exposes to the runner.
type Lifecycle interface {
	packages.Lifecycle
	GenerateDocumentation(executionContext context.Context) error
	RunTests(executionContext context.Context) error
}

// Target is a package scheduled for a run.
type Target struct {
	Name      string
	Package   *packages.Package
	Lifecycle Lifecycle
}

// Options tune a run.
type Options struct {
	KeepGoing bool
}

// PackageResult records the outcome of one package.
type PackageResult struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Outcome summarizes a run.
type Outcome struct {
	Results  []PackageResult
	Duration time.Duration
}

// Succeeded counts packages whose operation completed.
func (outcome Outcome) Succeeded() int {
	count := 0
	for _, result := range outcome.Results {
		if result.Err == nil {
			count++
		}
	}
	return count
}

// Failed counts packages whose operation returned an error.
func (outcome Outcome) Failed() int {
	return len(outcome.Results) - outcome.Succeeded()
}

// Dependencies carries the collaborators shared by executors.
type Dependencies struct {
	Logger         *zap.Logger
	Output         io.Writer
	Errors         io.Writer
	DisableSummary bool
}

// Executor applies an operation to packages.
type Executor interface {
	Run(ctx context.Context, targets []Target, operation Operation, options Options) (Outcome, error)
}

// Factory constructs an Executor given runner dependencies.
type Factory func(Dependencies) Executor

// Resolve returns either the provided factory result or the default serial
// executor, wrapped so that multi-package runs end with a summary line.
func Resolve(factory Factory, dependencies Dependencies) Executor {
	var base Executor
	if factory != nil {
		base = factory(dependencies)
	}
	if base == nil {
		base = NewSerialExecutor(dependencies.Logger)
	}
	return summaryExecutor{
		delegate:     base,
		dependencies: dependencies,
	}
}

// SerialExecutor runs packages one after another in declaration order.
type SerialExecutor struct {
	logger *zap.Logger
	clock  func() time.Time
}

// NewSerialExecutor builds a SerialExecutor; a nil logger silences output.
func NewSerialExecutor(logger *zap.Logger) *SerialExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SerialExecutor{logger: logger, clock: time.Now}
}

// Run applies operation to each target. Without KeepGoing it stops at the
// first failure; otherwise every failure is joined into the returned error.
func (executor *SerialExecutor) Run(ctx context.Context, targets []Target, operation Operation, options Options) (Outcome, error) {
	step, stepError := operationStep(operation)
	if stepError != nil {
		return Outcome{}, stepError
	}

	runStartedAt := executor.clock()
	outcome := Outcome{Results: make([]PackageResult, 0, len(targets))}
	failures := []error{}
	for _, target := range targets {
		if contextError := ctx.Err(); contextError != nil {
			failures = append(failures, contextError)
			break
		}

		executor.logger.Debug(packageStartedMessageConstant,
			zap.String(packageLogFieldNameConstant, target.Name),
			zap.String(operationLogFieldNameConstant, string(operation)),
		)
		packageStartedAt := executor.clock()
		runError := step(ctx, target.Lifecycle)
		result := PackageResult{Name: target.Name, Duration: executor.clock().Sub(packageStartedAt)}
		if runError != nil {
			result.Err = fmt.Errorf(packageFailureTemplateConstant, target.Name, runError)
			executor.logger.Error(packageFailedMessageConstant,
				zap.String(packageLogFieldNameConstant, target.Name),
				zap.String(operationLogFieldNameConstant, string(operation)),
				zap.Error(runError),
			)
		} else {
			executor.logger.Debug(packageSucceededMessageConstant,
				zap.String(packageLogFieldNameConstant, target.Name),
				zap.String(operationLogFieldNameConstant, string(operation)),
				zap.Duration(durationLogFieldNameConstant, result.Duration),
			)
		}
		outcome.Results = append(outcome.Results, result)

		if result.Err != nil {
			failures = append(failures, result.Err)
			if !options.KeepGoing {
				executor.logger.Debug(runStoppedMessageConstant, zap.String(packageLogFieldNameConstant, target.Name))
				break
			}
		}
	}
	outcome.Duration = executor.clock().Sub(runStartedAt)
	return outcome, errors.Join(failures...)
}

type lifecycleStep func(ctx context.Context, lifecycle Lifecycle) error

// installPackage runs the install phase followed by the documentation and
// test phases. The latter two are no-ops unless the capability is enabled
// on the lifecycle.
func installPackage(ctx context.Context, lifecycle Lifecycle) error {
	if installError := lifecycle.Install(ctx); installError != nil {
		return installError
	}
	if documentationError := lifecycle.GenerateDocumentation(ctx); documentationError != nil {
		return documentationError
	}
	return lifecycle.RunTests(ctx)
}

func operationStep(operation Operation) (lifecycleStep, error) {
	switch Operation(strings.TrimSpace(string(operation))) {
	case OperationInstall:
		return installPackage, nil
	case OperationRebuild:
		return func(ctx context.Context, lifecycle Lifecycle) error {
			if prepareError := lifecycle.PrepareForRebuild(ctx); prepareError != nil {
				return prepareError
			}
			return installPackage(ctx, lifecycle)
		}, nil
	case OperationForceBuild:
		return func(ctx context.Context, lifecycle Lifecycle) error {
			if prepareError := lifecycle.PrepareForForcedBuild(ctx); prepareError != nil {
				return prepareError
			}
			return installPackage(ctx, lifecycle)
		}, nil
	case OperationDoc:
		return func(ctx context.Context, lifecycle Lifecycle) error {
			return lifecycle.GenerateDocumentation(ctx)
		}, nil
	case OperationTest:
		return func(ctx context.Context, lifecycle Lifecycle) error {
			return lifecycle.RunTests(ctx)
		}, nil
	default:
		return nil, fmt.Errorf(unknownOperationTemplateConstant, ErrUnknownOperation, operation)
	}
}

type summaryExecutor struct {
	delegate     Executor
	dependencies Dependencies
}

func (executor summaryExecutor) Run(ctx context.Context, targets []Target, operation Operation, options Options) (Outcome, error) {
	outcome, err := executor.delegate.Run(ctx, targets, operation, options)
	executor.printSummary(outcome)
	return outcome, err
}

func (executor summaryExecutor) printSummary(outcome Outcome) {
	if executor.dependencies.DisableSummary {
		return
	}
	writer := executor.summaryWriter()
	if writer == nil {
		return
	}

	summary := RenderSummaryLine(outcome)
	if len(strings.TrimSpace(summary)) == 0 {
		return
	}
	fmt.Fprintln(writer, summary)
}

func (executor summaryExecutor) summaryWriter() io.Writer {
	if executor.dependencies.Errors != nil {
		return executor.dependencies.Errors
	}
	if executor.dependencies.Output != nil {
		return executor.dependencies.Output
	}
	return nil
}
