package framevk

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
)

// Error classes. Every error produced by this package matches one of them with errors.Is.
var (
	// ErrInitialization is fatal and aborts startup before the frame loop begins.
	ErrInitialization = errors.New("initialization failure")
	// ErrResourceCreation is fatal for the requesting operation.
	ErrResourceCreation = errors.New("resource creation failure")
	// ErrTransientPresentation is recovered by dropping the frame and rebuilding the swapchain.
	ErrTransientPresentation = errors.New("transient presentation failure")
	// ErrUnsupportedCapability has no fallback path.
	ErrUnsupportedCapability = errors.New("unsupported capability")
)

var (
	ErrDeviceNotFound     = &kindError{"no suitable physical device", ErrInitialization}
	ErrLayerMissing       = &kindError{"requested validation layer is not available", ErrInitialization}
	ErrMemoryTypeNotFound = &kindError{"no memory type matches the requirements", ErrUnsupportedCapability}
	ErrFormatUnsupported  = &kindError{"no candidate format is supported", ErrUnsupportedCapability}
	ErrFrameTimeout       = &kindError{"frame wait timed out", ErrTransientPresentation}
)

type kindError struct {
	msg   string
	class error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.class }

// resultError keeps the raw vk.Result of a failed call.
type resultError struct {
	op    string
	ret   vk.Result
	class error
}

func (e *resultError) Error() string {
	if err := vk.Error(e.ret); err != nil {
		return fmt.Sprintf("vulkan error: %s: %s (%d)", e.op, err.Error(), e.ret)
	}
	return fmt.Sprintf("vulkan error: %s: result %d", e.op, e.ret)
}

func (e *resultError) Unwrap() error { return e.class }

// classedError attaches an error class to an underlying cause so that
// errors.Is matches either of them.
type classedError struct {
	cause error
	class error
}

func (e *classedError) Error() string { return e.cause.Error() }

func (e *classedError) Unwrap() []error { return []error{e.cause, e.class} }

// withClass annotates err with a message and an error class. A nil err stays nil.
func withClass(err, class error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.WithMessagef(&classedError{cause: err, class: class}, format, args...)
}

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// newError returns nil on vk.Success, otherwise an error of the given class
// that records the operation and a stack trace.
func newError(ret vk.Result, class error, op string) error {
	if !isError(ret) {
		return nil
	}
	return errors.WithStack(&resultError{op: op, ret: ret, class: class})
}

// ResultOf extracts the vk.Result carried by err, if any.
func ResultOf(err error) (vk.Result, bool) {
	var re *resultError
	if errors.As(err, &re) {
		return re.ret, true
	}
	return vk.Success, false
}

// Fatal runs the finalizers in order, logs err with its stack and terminates
// the process. A nil err is ignored.
func Fatal(log *slog.Logger, err error, finalizers ...func()) {
	if err == nil {
		return
	}
	for _, fn := range finalizers {
		fn()
	}
	log.Error("fatal error", slog.Any("error", err), slog.String("stack", fmt.Sprintf("%+v", err)))
	os.Exit(1)
}
