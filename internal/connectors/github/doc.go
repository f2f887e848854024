// Package github implements a document source for one GitHub repository.
//
// A fetch resolves the ref (the default branch unless one is given), lists
// the tree with the recursive Trees API and downloads each selected blob.
// Paths are selected by [pathfilter.Filter]: supported extensions,
// include/exclude globs, hidden paths and a per-file size cap. The fetch
// stops after Config.MaxFiles files.
//
// Every document carries the repository ("owner/repo"), path, ref, blob
// SHA and browsable source URL in its metadata.
//
// # Rate limiting
//
// Requests pass a token bucket of about 1.2 requests per second. The
// X-RateLimit headers of each response are tracked and callers pause until
// the reset time when the remaining quota falls below a buffer. Server
// errors and timeouts are retried with exponential backoff; credential and
// quota errors end the fetch.
//
// A token is optional. Anonymous access works for public repositories at
// 60 requests per hour.
package github
