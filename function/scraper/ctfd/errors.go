package ctfd

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth is the parent of every login failure.
	ErrAuth               = errors.New("authentication failed")
	ErrTokenNotFound      = fmt.Errorf("%w: nonce not found in login page", ErrAuth)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuth)

	ErrDetection           = errors.New("unable to detect platform version")
	ErrNotLoggedIn         = errors.New("not logged in")
	ErrUnsupportedPlatform = errors.New("unsupported platform version")
)

// TransferError is a failed download of a single asset.
type TransferError struct {
	URL string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// FilesystemError is a failure to create a directory or write a file.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// RecordError reports a challenge record that could not be fetched or
// decoded. Enumeration continues past it.
type RecordError struct {
	ID  int
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("challenge %d: %v", e.ID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
