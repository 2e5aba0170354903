// Package carverrors defines the sentinel error types the sync pipeline
// raises, so callers can tell a transient RPC failure from a ledger
// consistency violation without parsing error strings.
package carverrors

import "fmt"

// RpcError wraps a failure talking to the chain node. The coordinator
// treats it as retryable on the next invocation since no Block row was
// written for the height in flight.
type RpcError struct {
	Op  string
	Err error
}

func (e *RpcError) Error() string { return fmt.Sprintf("rpc %s: %v", e.Op, e.Err) }
func (e *RpcError) Unwrap() error { return e.Err }

// StoreError wraps a failure reading or writing the document store
// (connection loss, write failure). Recovery depends on the coordinator's
// crash-recovery pass on the next run.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// ReconciliationError indicates the SequenceApplier found an endpoint
// whose stored sequence already equals or exceeds the sequence about to
// be assigned — a caller-ordering bug, never a condition to silently
// correct.
type ReconciliationError struct {
	Label         string
	ExpectedBelow uint64
	Got           uint64
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation error: address %s has sequence %d, expected strictly below %d",
		e.Label, e.Got, e.ExpectedBelow)
}

// UnreconciliationError indicates the Unwinder found an endpoint whose
// sequence is ahead of the movement being reversed — a forward write
// against an older sequence, which cannot happen in a correct log.
type UnreconciliationError struct {
	Label            string
	EndpointSequence uint64
	MovementSequence uint64
}

func (e *UnreconciliationError) Error() string {
	return fmt.Sprintf("unreconciliation error: address %s has sequence %d ahead of unwinding movement sequence %d",
		e.Label, e.EndpointSequence, e.MovementSequence)
}

// DecodeError wraps a failure classifying a scriptPubKey or decoding a
// raw RPC payload into the engine's domain types.
type DecodeError struct {
	Context string
	Err     error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.Context, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }
