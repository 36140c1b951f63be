// Package server hosts the Fiber HTTP surface in front of the image cache:
// the request-ID middleware chain, the /images fetch endpoint that streams
// cached files, and the /cache/evict admin hook. It also owns the shared,
// timeout-tuned http.Client used for upstream image downloads so transport
// settings stay in one place. Keep exports narrow and accept explicit
// dependencies; the cache itself lives in internal/imagecache.
package server
