package common

import "errors"

var (
	ErrMalformed         = errors.New("malformed executable container")
	ErrSectionMissing    = errors.New("resource section is missing")
	ErrIconMissing       = errors.New("icon is missing")
	ErrEmptyResourceTree = errors.New("resource tree has no entries")
	ErrBounds            = errors.New("offset out of range")
)
