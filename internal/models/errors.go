package models

import "errors"

// Error taxonomy shared by clients, services and the HTTP layer.
// Callers wrap these with fmt.Errorf("...: %w", ...) and match with errors.Is.
var (
	// ErrTransport is a network, DNS, TLS or non-2xx failure reaching an endpoint
	ErrTransport = errors.New("transport error")
	// ErrParse is a response body that is not well-formed
	ErrParse = errors.New("parse error")
	// ErrMetadataUnavailable means the trial session has no site yet
	ErrMetadataUnavailable = errors.New("trial app metadata unavailable")
	// ErrProvisioningIncomplete is returned when a tree node cannot be created
	// because the session is not provisioned
	ErrProvisioningIncomplete = errors.New("trial app provisioning incomplete")
	// ErrUnsupportedOperation means the plan has no management endpoint
	ErrUnsupportedOperation = errors.New("this operation is not supported by this app service plan")
	// ErrSessionNotFound means no trial session is attached for the caller
	ErrSessionNotFound = errors.New("trial session not found")
	// ErrInvalidPath is a file path that is empty or leaves its root folder
	ErrInvalidPath = errors.New("invalid file path")
)
