// Package imagecache implements a content-addressed disk cache for remotely
// fetched images. URLs map deterministically to <ImagesCacheDir>/<md5(url)><ext>
// files; the directory listing itself is the index, with ModTime/Size supplied
// by the filesystem. Fetch short-circuits on cache hits, retries transient
// network failures with a configured backoff schedule, and falls back to a
// well-known default image when all attempts are exhausted. Evict bounds the
// directory's footprint by deleting the oldest entries first. Neither
// operation ever surfaces an error to the caller; failures are logged and
// absorbed locally.
package imagecache
