package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady indicates that the engine has not finished loading.
	ErrNotReady = errors.New("reconcile: engine not ready")
	// ErrAlreadyLoaded indicates a second Load on the same engine.
	ErrAlreadyLoaded = errors.New("reconcile: engine already loaded")
	// ErrClosed indicates that the engine was used after Close.
	ErrClosed = errors.New("reconcile: engine closed")
	// ErrAlreadyRunning indicates that Run was called while another Run is active.
	ErrAlreadyRunning = errors.New("reconcile: engine already running")

	errMissingStore = errors.New("store is required")
)

// EngineError carries a stable code naming the failed operation and reason.
type EngineError struct {
	code string
	err  error
}

func (e *EngineError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *EngineError) Unwrap() error {
	return e.err
}

func (e *EngineError) Code() string {
	return e.code
}

const (
	opEngineNew     = "reconcile.engine.new"
	opLoad          = "reconcile.load"
	opPersist       = "reconcile.persist"
	opApplyChange   = "reconcile.apply_change"
	opCheckExternal = "reconcile.check_external"
)

const (
	reasonMissingStore   = "missing_store"
	reasonReadFailed     = "read_failed"
	reasonWriteFailed    = "write_failed"
	reasonDecodeFailed   = "decode_failed"
	reasonEncodeFailed   = "encode_failed"
	reasonNormalizeError = "normalize_failed"
)

func newEngineError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &EngineError{code: code, err: cause}
}
