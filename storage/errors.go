package storage

import "xdao.co/depot/model"

// NewIOError wraps a backend I/O failure with the typed {namespace, key,
// method, cause} context required of every driver primitive.
func NewIOError(method string, namespace Namespace, key string, cause error) *model.Error {
	return (&model.Error{
		Op:      method,
		Kind:    model.KindIO,
		Message: "backend I/O failure",
		Cause:   cause,
	}).WithNamespace(string(namespace), key)
}

// NewConflictError reports that a write would overwrite an immutable object.
func NewConflictError(method string, namespace Namespace, key string) *model.Error {
	return (&model.Error{
		Op:      method,
		Kind:    model.KindConflict,
		Message: "object already exists",
	}).WithNamespace(string(namespace), key)
}

// NewServerDownError reports that a remote driver sent a request and
// received no response at all, distinct from a generic io failure.
func NewServerDownError(method string, namespace Namespace, key string, cause error) *model.Error {
	return (&model.Error{
		Op:      method,
		Kind:    model.KindServerDown,
		Message: "no response from remote driver",
		Cause:   cause,
	}).WithNamespace(string(namespace), key)
}

// NewInvalidCredentialsError reports notary/credential rejection at a remote
// driver boundary.
func NewInvalidCredentialsError(method string, namespace Namespace, key string) *model.Error {
	return (&model.Error{
		Op:      method,
		Kind:    model.KindInvalidCredentials,
		Message: "credentials rejected",
	}).WithNamespace(string(namespace), key)
}

// IsConflict reports whether err is a conflict-kind structured error.
func IsConflict(err error) bool { return model.IsKind(err, model.KindConflict) }
