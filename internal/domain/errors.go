package domain

import "errors"

var (
	ErrNotLoggedIn          = errors.New("not logged in")
	ErrMissingServerAddress = errors.New("session has no server IP")
	ErrNoSession            = errors.New("no active session")
	ErrServerNotFound       = errors.New("server not found")
	ErrKeyNotFound          = errors.New("key not found")
)
