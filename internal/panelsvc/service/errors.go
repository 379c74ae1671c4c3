package service

import "errors"

var (
	ErrIdentifierTooShort = errors.New("identifier too short")
	ErrLookupFailed       = errors.New("lookup failed")
	ErrNoHistory          = errors.New("no test history")
	ErrSuperseded         = errors.New("scan superseded by a newer scan")
)
