// Package provision is the client side of the external credential
// provisioning pipeline.
//
// The pipeline itself (browser automation against stored session cookies)
// is entirely opaque to this process: the core only knows how to ask it for
// a fresh key for a given credential id and how to interpret success or
// failure. The pool health monitor calls Provision asynchronously and
// deduplicates requests per id.
package provision
