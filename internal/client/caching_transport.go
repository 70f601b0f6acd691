package client

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// NewCachingTransport returns a transport that honours Cache-Control on
// profile responses. With an empty cacheDir the cache lives in memory.
// Responses are keyed by URL, so the server must send Vary: Authorization
// for a cached profile to be tied to the token that fetched it.
func NewCachingTransport(cacheDir string, base http.RoundTripper) *httpcache.Transport {
	var cache httpcache.Cache = httpcache.NewMemoryCache()
	if cacheDir != "" {
		cache = diskcache.New(cacheDir)
	}

	transport := httpcache.NewTransport(cache)
	transport.Transport = base

	return transport
}
