package service

import "errors"

// --- Error Definitions ---
// Validation errors: the caller can fix the request.
var (
	ErrValidationFailed     = errors.New("validation failed")
	ErrUnknownContext       = errors.New("unknown upload context")
	ErrMissingEntityID      = errors.New("required entity id is missing")
	ErrFileTooLarge         = errors.New("file exceeds the size limit")
	ErrUnsupportedType      = errors.New("file type is not allowed")
	ErrInvalidPartNumber    = errors.New("part number must be a positive integer")
	ErrNoParts              = errors.New("no parts have been uploaded for this session")
	ErrInvalidStorageConfig = errors.New("invalid storage configuration")
	ErrInvalidSessionState  = errors.New("operation not allowed in the current session state")
)

// Permission errors: the caller is authenticated but may not touch the resource.
var (
	ErrForbidden = errors.New("not allowed to modify this media")
)

// Not-found errors: the resource is gone or never existed.
var (
	ErrSessionNotFound = errors.New("upload session not found")
	ErrMediaNotFound   = errors.New("media not found")
)

// Internal errors: not the caller's fault.
var (
	ErrMissingPayload = errors.New("upload has no readable payload")
)
