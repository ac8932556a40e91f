package errors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAndCode(t *testing.T) {
	err := New("test/errors", 1, "test: something failed")
	require.Error(t, err)

	module, code := Code(err)
	require.Equal(t, "test/errors", module)
	require.Equal(t, ErrorCode(1), code)
}

func TestFromCode(t *testing.T) {
	err := New("test/errors", 2, "test: another failure")

	got := FromCode("test/errors", 2)
	require.Equal(t, err, got)

	require.Nil(t, FromCode("test/errors", 999))
	require.Nil(t, FromCode("test/nonexistent", 1))
}

func TestCodeOfPlainError(t *testing.T) {
	module, code := Code(fmt_errorf())
	require.Equal(t, UnknownModule, module)
	require.Equal(t, unknownCode, code)
}

func fmt_errorf() error {
	return errPlain{}
}

type errPlain struct{}

func (errPlain) Error() string { return "plain" }

type wrappingError struct {
	cause error
	msg   string
}

func (e *wrappingError) Error() string { return e.msg }
func (e *wrappingError) Unwrap() error { return e.cause }

func TestCodeUnwrapsChain(t *testing.T) {
	sentinel := New("test/errors", 3, "test: wrapped sentinel")
	wrapped := &wrappingError{cause: sentinel, msg: "test: wrapped sentinel: detail"}

	module, code := Code(wrapped)
	require.Equal(t, "test/errors", module)
	require.Equal(t, ErrorCode(3), code)

	// Also confirm a multi-level chain still resolves.
	doublyWrapped := &wrappingError{cause: wrapped, msg: "outer: " + wrapped.Error()}
	module, code = Code(doublyWrapped)
	require.Equal(t, "test/errors", module)
	require.Equal(t, ErrorCode(3), code)
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	New("test/errors/dup", 1, "first")
	require.Panics(t, func() {
		New("test/errors/dup", 1, "second")
	})
}
