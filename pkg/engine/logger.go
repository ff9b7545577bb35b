// SPDX-License-Identifier: Apache-2.0

package engine

import "github.com/pterm/pterm"

// Logger reports lifecycle and reconcile events. Grounded on the
// teacher's pkg/migrations.Logger shape: an interface with one method
// per notable event, a pterm-backed production implementation, and a
// no-op implementation for tests.
type Logger interface {
	LogBootstrapStart(runID string)
	LogBootstrapComplete(runID string)
	LogMigrationApplied(runID, migrationID string)
	LogObjectCreated(runID, id string)
	LogObjectAdopted(runID, id string)
	LogObjectSkipped(runID, id string)
	LogObjectDropped(runID, id string)
	LogDropCascadeRetry(runID string, remaining int, cause error)
	LogWarning(runID, msg string)
	Info(msg string, args ...any)
}

type ptermLogger struct {
	logger pterm.Logger
}

type noopLogger struct{}

// NewLogger returns a pterm-backed production Logger.
func NewLogger() Logger {
	return &ptermLogger{logger: pterm.DefaultLogger}
}

// NewNoopLogger returns a Logger that discards every event.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

func (l *ptermLogger) LogBootstrapStart(runID string) {
	l.logger.Info("bootstrapping database", l.logger.Args("run_id", runID))
}

func (l *ptermLogger) LogBootstrapComplete(runID string) {
	l.logger.Info("bootstrap complete", l.logger.Args("run_id", runID))
}

func (l *ptermLogger) LogMigrationApplied(runID, migrationID string) {
	l.logger.Info("migration applied", l.logger.Args("run_id", runID, "migration_id", migrationID))
}

func (l *ptermLogger) LogObjectCreated(runID, id string) {
	l.logger.Info("object created", l.logger.Args("run_id", runID, "id", id))
}

func (l *ptermLogger) LogObjectAdopted(runID, id string) {
	l.logger.Info("object adopted", l.logger.Args("run_id", runID, "id", id))
}

func (l *ptermLogger) LogObjectSkipped(runID, id string) {
	l.logger.Debug("object unchanged", l.logger.Args("run_id", runID, "id", id))
}

func (l *ptermLogger) LogObjectDropped(runID, id string) {
	l.logger.Info("object dropped", l.logger.Args("run_id", runID, "id", id))
}

func (l *ptermLogger) LogDropCascadeRetry(runID string, remaining int, cause error) {
	l.logger.Warn("drop cascade retrying", l.logger.Args("run_id", runID, "remaining", remaining, "cause", cause))
}

func (l *ptermLogger) LogWarning(runID, msg string) {
	l.logger.Warn(msg, l.logger.Args("run_id", runID))
}

func (l *ptermLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.logger.Args(args))
}

func (l *noopLogger) LogBootstrapStart(runID string)                              {}
func (l *noopLogger) LogBootstrapComplete(runID string)                           {}
func (l *noopLogger) LogMigrationApplied(runID, migrationID string)               {}
func (l *noopLogger) LogObjectCreated(runID, id string)                           {}
func (l *noopLogger) LogObjectAdopted(runID, id string)                           {}
func (l *noopLogger) LogObjectSkipped(runID, id string)                           {}
func (l *noopLogger) LogObjectDropped(runID, id string)                           {}
func (l *noopLogger) LogDropCascadeRetry(runID string, remaining int, cause error) {}
func (l *noopLogger) LogWarning(runID, msg string)                                {}
func (l *noopLogger) Info(msg string, args ...any)                                {}
