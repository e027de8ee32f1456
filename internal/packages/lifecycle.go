// Package packages defines the generic package descriptor and the default
// lifecycle every package type builds on: install stamps, rebuild
// preparation, and source change detection.
package packages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	stampDirectoryPermissionConstant = 0o755
	stampFilePermissionConstant      = 0o644
	stampWriteErrorTemplateConstant  = "unable to write install stamp for %s: %w"
	stampRemoveErrorTemplateConstant = "unable to remove install stamp for %s: %w"
	installedMessageConstant         = "package installed"
	stampRemovedMessageConstant      = "install stamp removed"
	packageLogFieldNameConstant      = "package"
	stampLogFieldNameConstant        = "stamp"
	descriptorMissingMessageConstant = "package descriptor must be provided"
)

// ErrPackageNotConfigured indicates a lifecycle built without a descriptor.
var ErrPackageNotConfigured = errors.New(descriptorMissingMessageConstant)

// Lifecycle is the set of phase hooks an orchestrator calls on a package.
// Calls for a single package must be serialized by the caller.
type Lifecycle interface {
	Install(executionContext context.Context) error
	PrepareForRebuild(executionContext context.Context) error
	PrepareForForcedBuild(executionContext context.Context) error
}

// BaseLifecycle provides the default phase behaviour shared by all package types.
type BaseLifecycle struct {
	pkg    *Package
	logger *zap.Logger
	clock  func() time.Time
}

// NewBaseLifecycle builds the default lifecycle for pkg.
func NewBaseLifecycle(logger *zap.Logger, pkg *Package) (*BaseLifecycle, error) {
	if pkg == nil {
		return nil, ErrPackageNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseLifecycle{pkg: pkg, logger: logger, clock: time.Now}, nil
}

// Package returns the descriptor the lifecycle operates on.
func (lifecycle *BaseLifecycle) Package() *Package {
	return lifecycle.pkg
}

// Install records a successful installation by touching the install stamp.
func (lifecycle *BaseLifecycle) Install(executionContext context.Context) error {
	stampPath := lifecycle.pkg.InstallStampPath()
	if mkdirError := os.MkdirAll(lifecycle.pkg.StampDirectory(), stampDirectoryPermissionConstant); mkdirError != nil {
		return fmt.Errorf(stampWriteErrorTemplateConstant, lifecycle.pkg.Name(), mkdirError)
	}
	if writeError := os.WriteFile(stampPath, nil, stampFilePermissionConstant); writeError != nil {
		return fmt.Errorf(stampWriteErrorTemplateConstant, lifecycle.pkg.Name(), writeError)
	}
	now := lifecycle.clock()
	if touchError := os.Chtimes(stampPath, now, now); touchError != nil {
		return fmt.Errorf(stampWriteErrorTemplateConstant, lifecycle.pkg.Name(), touchError)
	}
	lifecycle.logger.Debug(installedMessageConstant,
		zap.String(packageLogFieldNameConstant, lifecycle.pkg.Name()),
		zap.String(stampLogFieldNameConstant, stampPath),
	)
	return nil
}

// PrepareForRebuild removes the install stamp so the next build reinstalls.
func (lifecycle *BaseLifecycle) PrepareForRebuild(executionContext context.Context) error {
	stampPath := lifecycle.pkg.InstallStampPath()
	removeError := os.Remove(stampPath)
	if removeError != nil && !errors.Is(removeError, os.ErrNotExist) {
		return fmt.Errorf(stampRemoveErrorTemplateConstant, lifecycle.pkg.Name(), removeError)
	}
	if removeError == nil {
		lifecycle.logger.Debug(stampRemovedMessageConstant,
			zap.String(packageLogFieldNameConstant, lifecycle.pkg.Name()),
			zap.String(stampLogFieldNameConstant, stampPath),
		)
	}
	return nil
}

// PrepareForForcedBuild has the same effect as PrepareForRebuild.
func (lifecycle *BaseLifecycle) PrepareForForcedBuild(executionContext context.Context) error {
	return lifecycle.PrepareForRebuild(executionContext)
}
