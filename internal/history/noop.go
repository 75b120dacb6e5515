package history

import "context"

// Compile-time interface check.
var _ Recorder = (*NoopRecorder)(nil)

// NoopRecorder discards every run. Used when no sqlite path is configured.
type NoopRecorder struct{}

// Record does nothing.
func (NoopRecorder) Record(_ context.Context, _ *Entry) error { return nil }

// List returns no entries.
func (NoopRecorder) List(_ context.Context, _ string, _ int) ([]Entry, error) { return nil, nil }
