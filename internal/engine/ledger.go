// Package engine provides the asynchronous job machinery: a ledger contract
// for recording job outcomes, a bounded worker pool that executes jobs in the
// background, and a poller that tracks long-running external operations.
package engine

import "context"

// Job statuses move strictly forward: pending -> processing -> completed or
// failed. Terminal states never change again; ledger implementations must
// refuse a write that would overwrite one.
type Ledger[R any] interface {
	// MarkProcessing transitions a pending record to processing.
	MarkProcessing(ctx context.Context, id string) error

	// MarkCompleted records the result and moves the record to completed.
	// Returns an error if the record is already terminal.
	MarkCompleted(ctx context.Context, id string, result R) error

	// MarkFailed records the failure reason and moves the record to failed.
	// Returns an error if the record is already terminal.
	MarkFailed(ctx context.Context, id string, reason string) error
}
