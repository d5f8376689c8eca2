package project

import "github.com/pkg/errors"

// Sentinel errors corresponding to the "Config missing / malformed" and
// related entries in spec.md §7. Wrap these with errors.Wrapf for context
// and unwrap with errors.Is / errors.Cause.
var (
	ErrMissing       = errors.New("project file missing")
	ErrMalformed     = errors.New("project file malformed")
	ErrInvalidName   = errors.New("invalid project name")
	ErrDuplicateName = errors.New("duplicate repository name")
	ErrDuplicateUUID = errors.New("duplicate repository uuid")
	ErrNotFound      = errors.New("repository not found")
)
