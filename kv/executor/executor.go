package executor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
	"github.com/pingcap/errors"
)

// Executor runs the program registered under codeID on args. Programs are deterministic and have no side effects,
// so the transaction layer may run the same call any number of times while it retries.
type Executor interface {
	Execute(codeID string, args []primitive.Value) (primitive.Value, error)
}

// Program is a builtin implementation of a code id.
type Program func(args []primitive.Value) (primitive.Value, error)

// ErrUnknownCode is returned when no program is registered under a code id.
type ErrUnknownCode struct {
	CodeID string
}

func (e *ErrUnknownCode) Error() string {
	return fmt.Sprintf("code=%s is not registered", e.CodeID)
}

// ErrExecution wraps a failure reported by a program.
type ErrExecution struct {
	CodeID string
	Err    error
}

func (e *ErrExecution) Error() string {
	return fmt.Sprintf("svm execution failed code=%s err=%v", e.CodeID, e.Err)
}

func (e *ErrExecution) Unwrap() error {
	return e.Err
}

// IsUnknownCode reports whether err is (or wraps) an *ErrUnknownCode.
func IsUnknownCode(err error) bool {
	_, ok := errors.Cause(err).(*ErrUnknownCode)
	return ok
}

// IsExecution reports whether err is (or wraps) an *ErrExecution.
func IsExecution(err error) bool {
	_, ok := errors.Cause(err).(*ErrExecution)
	return ok
}

// Registry is an Executor backed by a table of programs. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	programs map[string]Program
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{programs: make(map[string]Program)}
}

// NewBuiltinRegistry returns a registry holding the builtin programs.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.Register(AddCodeID, add)
	r.Register(SubCodeID, sub)
	r.Register(TransferCodeID, transfer)
	return r
}

// Register adds or replaces the program for codeID.
func (r *Registry) Register(codeID string, p Program) {
	r.mu.Lock()
	r.programs[codeID] = p
	r.mu.Unlock()
}

// CodeIDs returns the registered code ids in order.
func (r *Registry) CodeIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.programs))
	for id := range r.programs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Registry) Execute(codeID string, args []primitive.Value) (primitive.Value, error) {
	r.mu.RLock()
	p, ok := r.programs[codeID]
	r.mu.RUnlock()
	if !ok {
		return primitive.Value{}, &ErrUnknownCode{CodeID: codeID}
	}
	result, err := p(args)
	if err != nil {
		return primitive.Value{}, &ErrExecution{CodeID: codeID, Err: err}
	}
	return result, nil
}
