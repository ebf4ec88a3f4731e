package markup

import (
	"errors"
	"fmt"

	"github.com/razvandimescu/peekvfs/internal/vfs"
)

var (
	// ErrUnsupportedEnvironment means no converter is available; every
	// render becomes a no-op.
	ErrUnsupportedEnvironment = errors.New("no markup converter available")

	// ErrEmptyOutput is reported when non-blank markup converts to nothing.
	ErrEmptyOutput = errors.New("converter produced no output")
)

// RenderError reports a failed conversion of the document at Ref.
type RenderError struct {
	Ref vfs.DocumentRef
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Ref, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
