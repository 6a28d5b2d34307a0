package publish

import "context"

// NoOp is the publisher used when no downstream topic is configured.
type NoOp struct{}

// NewNoOp returns a publisher that discards every announcement.
func NewNoOp() *NoOp { return &NoOp{} }

// Publish discards the record id.
func (*NoOp) Publish(context.Context, string) error { return nil }

// Close is a no-op.
func (*NoOp) Close() error { return nil }
