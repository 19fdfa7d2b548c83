// Package internalclient is the outbound-only HTTP client the sharder
// uses to talk to other containers: fetching a remote trie fragment
// before resolving a key across a distributed branch, and creating a
// new shard container so it shows up in its account's listing.
//
// It follows the same PostJSON/GetJSON shape as torua's cluster package
// (shared *http.Client, context-based cancellation) but adds a
// request_tries retry policy and two distinct failure modes
// (ErrTransport, ErrUnexpectedResponse) that callers treat differently:
// a transport failure aborts the current container's pass, while an
// unexpected response from container creation is logged and the pass
// continues.
package internalclient
