package config

import (
	"errors"
	"fmt"
)

// Assembly failures. Errors returned by Assemble match one of these with
// errors.Is, except context cancellation which is returned as is.
var (
	ErrConfigNotFound         = errors.New("config file not found")
	ErrDirectoryMisconfigured = errors.New("directory misconfigured")
	ErrMissingPackageName     = errors.New("missing package name")
	ErrPlanUnreadable         = errors.New("test plan unreadable")
)

// Error is an assembly failure tied to a file on disk.
type Error struct {
	Kind error  // one of the Err* sentinels above
	Path string // file the failure is about
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case ErrConfigNotFound:
		msg = fmt.Sprintf("multi-tester config file '%s' not found", e.Path)
	case ErrDirectoryMisconfigured:
		msg = fmt.Sprintf("set the 'directory' entry to a path containing a composer.json file (looked for '%s')", e.Path)
	case ErrMissingPackageName:
		msg = fmt.Sprintf("the composer.json file must contain a 'name' entry (%s)", e.Path)
	default:
		msg = fmt.Sprintf("%v: %s", e.Kind, e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}
