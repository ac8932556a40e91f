// Package errors implements a module-scoped error code registry.
//
// Every error defined with New carries a stable (module, code) pair so
// that it can be identified across a process boundary, the same
// convention used throughout the oasis-core tree (e.g.
// storage/mkvs/db/api.ErrNodeNotFound).
package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
)

// ErrorCode is an error code, unique within a module.
type ErrorCode uint32

// UnknownModule is the module used for errors that weren't registered
// via New.
const UnknownModule = "unknown"

// unknownCode is the code used for errors with no registered code.
const unknownCode ErrorCode = 1

type registeredError struct {
	module string
	code   ErrorCode
	msg    string
}

func (e *registeredError) Error() string {
	return e.msg
}

var (
	registryLock sync.RWMutex
	registry     = make(map[string]map[ErrorCode]*registeredError)
)

// New creates and registers a new error under the given module and code.
//
// It panics if the (module, code) pair is already registered, mirroring
// the fail-fast init()-time behavior used throughout the codebase for
// this kind of static registration.
func New(module string, code ErrorCode, msg string) error {
	registryLock.Lock()
	defer registryLock.Unlock()

	if _, ok := registry[module]; !ok {
		registry[module] = make(map[ErrorCode]*registeredError)
	}
	if _, ok := registry[module][code]; ok {
		panic(fmt.Sprintf("errors: module %q code %d already registered", module, code))
	}

	err := &registeredError{module: module, code: code, msg: msg}
	registry[module][code] = err
	return err
}

// Code returns the (module, code) pair for err, or (UnknownModule,
// unknownCode) if neither err nor anything in its Unwrap chain was
// created via New.
func Code(err error) (string, ErrorCode) {
	var re *registeredError
	if stderrors.As(err, &re) {
		return re.module, re.code
	}
	return UnknownModule, unknownCode
}

// FromCode looks up a previously registered error by its (module, code)
// pair. It returns nil if no such error is registered.
func FromCode(module string, code ErrorCode) error {
	registryLock.RLock()
	defer registryLock.RUnlock()

	mod, ok := registry[module]
	if !ok {
		return nil
	}
	err, ok := mod[code]
	if !ok {
		return nil
	}
	return err
}
