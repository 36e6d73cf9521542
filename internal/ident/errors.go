package ident

import "errors"

var (
	ErrTooManySegments = errors.New("ident: path has more than 8 segments")
	ErrEmptySegment    = errors.New("ident: path has an empty segment")
	ErrEmptyPath       = errors.New("ident: path is empty")
	ErrInvalidVersion  = errors.New("ident: invalid version")
	ErrInvalidRange    = errors.New("ident: invalid version range")
	ErrInvalidIface    = errors.New("ident: invalid interface")
)
