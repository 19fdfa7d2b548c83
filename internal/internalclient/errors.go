package internalclient

import "errors"

// ErrTransport wraps a connection-level failure: refused connection,
// DNS failure, or a timeout establishing or reading the response. It is
// retried up to the configured request_tries before being returned to
// the caller.
var ErrTransport = errors.New("internalclient: transport error")

// ErrUnexpectedResponse wraps a non-2xx HTTP status. It is not
// considered transient: retrying it does not change a container's
// existence or a container's trie state, so callers see it immediately.
var ErrUnexpectedResponse = errors.New("internalclient: unexpected response status")
