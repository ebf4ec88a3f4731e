package navigation

import (
	"fmt"

	"github.com/razvandimescu/peekvfs/internal/vfs"
)

// FetchError reports that the content or listing of Ref could not be read.
type FetchError struct {
	Ref vfs.DocumentRef
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ResolutionError reports a relative link that maps to no document.
type ResolutionError struct {
	Href string
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve link %q (%s): %v", e.Href, e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
