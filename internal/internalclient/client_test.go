package internalclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchTrieFragmentSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Skip-Sharding") != "On" {
			t.Errorf("missing X-Skip-Sharding header")
		}
		if r.URL.Query().Get("format") != "trie" {
			t.Errorf("missing format=trie query param")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("trie-bytes"))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, time.Second, 3)
	body, err := c.FetchTrieFragment(context.Background(), "acct", "shard_a")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "trie-bytes" {
		t.Fatalf("body = %q, want trie-bytes", body)
	}
}

func TestFetchTrieFragmentUnexpectedResponseNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, time.Second, 3)
	_, err := c.FetchTrieFragment(context.Background(), "acct", "shard_a")
	if !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("err = %v, want ErrUnexpectedResponse", err)
	}
	if calls != 1 {
		t.Fatalf("handler called %d times, want 1 (no retry on non-transport error)", calls)
	}
}

func TestFetchTrieFragmentRetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// Drop the connection without a response: a transport failure
		// from the client's side.
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, time.Second, 3)
	_, err := c.FetchTrieFragment(context.Background(), "acct", "shard_a")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("handler called %d times, want 3 (every attempt retried)", got)
	}
}

func TestCreateContainerSetsStoragePolicyHeader(t *testing.T) {
	var gotPolicy string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPolicy = r.Header.Get("X-Storage-Policy")
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, time.Second, 1)
	if err := c.CreateContainer(context.Background(), "acct", "shard_a", "gold"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if gotPolicy != "gold" {
		t.Fatalf("storage policy header = %q, want gold", gotPolicy)
	}
}
