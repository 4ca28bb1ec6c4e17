package cts

import "errors"

// ErrInvalidToken reports that the API rejected the token (HTTP 401).
var ErrInvalidToken = errors.New("invalid CTS API token")

// ErrCannotConnect reports a network failure, a timeout, or a server-side
// technical error (HTTP 500).
var ErrCannotConnect = errors.New("cannot connect to the CTS API")
