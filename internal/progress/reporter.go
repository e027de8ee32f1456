// Package progress wraps package build steps with start and completion messages.
package progress

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	packageLogFieldNameConstant = "package"
	failedMessageSuffixConstant = " failed"
)

// Reporter emits progress messages through a zap logger.
type Reporter struct {
	logger *zap.Logger
}

// NewReporter builds a Reporter; a nil logger silences output.
func NewReporter(logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{logger: logger}
}

// Scope logs startTemplate, runs step, and logs doneTemplate when step succeeds.
// Both templates take the package name as their single %s verb. The step's
// error is returned unchanged.
func (reporter *Reporter) Scope(packageName string, startTemplate string, doneTemplate string, step func() error) error {
	reporter.logger.Info(formatMessage(startTemplate, packageName), zap.String(packageLogFieldNameConstant, packageName))
	if stepError := step(); stepError != nil {
		reporter.logger.Debug(formatMessage(startTemplate, packageName)+failedMessageSuffixConstant,
			zap.String(packageLogFieldNameConstant, packageName),
			zap.Error(stepError),
		)
		return stepError
	}
	reporter.logger.Info(formatMessage(doneTemplate, packageName), zap.String(packageLogFieldNameConstant, packageName))
	return nil
}

func formatMessage(template string, packageName string) string {
	if !strings.Contains(template, "%s") {
		return template
	}
	return fmt.Sprintf(template, packageName)
}
