package core

import "errors"

// Device level failures. Every one of them degrades a single device's outcome
// and never aborts a batch.
var (
	// ErrConnection covers transport handshakes, authentication and a missing
	// secret for the device account.
	ErrConnection = errors.New("connection failure")

	// ErrTransfer covers uploads, copies and archive extraction.
	ErrTransfer = errors.New("transfer failure")

	// ErrInstall covers installer, subprocess or API level rejections.
	ErrInstall = errors.New("install failure")

	// ErrPackageNotFound means the catalog had no candidate for the device.
	ErrPackageNotFound = errors.New("package not found")

	// ErrConfiguration means an unknown ptype, family or edition mapping.
	ErrConfiguration = errors.New("configuration error")
)

// ErrSecretNotFound is returned by credential stores when an account has no secret.
var ErrSecretNotFound = errors.New("secret not found")

// ErrBatchRunning is returned when a batch is started while another one runs.
var ErrBatchRunning = errors.New("a deployment batch is already running")

// Kind returns a short label for the taxonomy member wrapped by err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConnection), errors.Is(err, ErrSecretNotFound):
		return "connection"
	case errors.Is(err, ErrTransfer):
		return "transfer"
	case errors.Is(err, ErrInstall):
		return "install"
	case errors.Is(err, ErrPackageNotFound):
		return "not-found"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "unknown"
	}
}
