package sync

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"

	"github.com/littleweb/sitebox/internal/sitesdk"
)

// ErrorKind buckets sync failures for retry and surfacing decisions.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindAuth
	KindNameConflict
	KindNetwork
	KindFileAccess
	KindSyncConflict
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNameConflict:
		return "name-conflict"
	case KindNetwork:
		return "network"
	case KindFileAccess:
		return "file-access"
	case KindSyncConflict:
		return "sync-conflict"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// ValidationError marks a local precondition failure. Never retried; the
// same input fails the same way every time.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Path + ": " + e.Reason
}

// ClassifyError maps an error to its kind. API errors dominate; transport
// and filesystem errors are recognized by type.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return KindValidation
	}

	var apiErr *sitesdk.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsAuth():
			return KindAuth
		case apiErr.IsNameTaken():
			return KindNameConflict
		case apiErr.StatusCode == 409:
			return KindSyncConflict
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return KindValidation
		default:
			return KindNetwork
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) || errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrNotExist) {
		return KindFileAccess
	}

	return KindUnknown
}

// Retryable reports whether a failure of this kind is worth re-attempting.
// Only transient network failures retry; auth, validation, conflict,
// permission and unclassified failures surface immediately.
func (k ErrorKind) Retryable() bool {
	return k == KindNetwork
}
