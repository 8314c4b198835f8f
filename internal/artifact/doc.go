// Package artifact resolves the source URL of a model weight file to a path
// in a local cache directory, downloading the file at most once.
//
// # Cache layout
//
// The cache is a flat directory. An artifact is stored under the last path
// segment of its URL, so two different URLs ending in the same file name map
// to the same entry. This is a known limitation and is kept on purpose: it is
// what lets a weight file that was copied into the cache by hand be picked up
// without any download.
//
// # Concurrency
//
// Several processes of a job array may resolve the same artifact at the same
// time. Two mechanisms make sure they converge on one complete file:
//
//   - Content is always written to a uniquely named temporary file in the
//     cache directory, synced, and renamed onto the final path. A reader can
//     only ever observe "absent" or "complete", never a partial file.
//   - Before downloading, a resolver takes an advisory lock on the cache key
//     (on platforms that support flock) and checks for the file again. The
//     losers of the race wait for the winner and then reuse its file instead
//     of downloading a second copy.
//
// Downloads are never retried here; retry policy belongs to the caller. An
// in-flight download is abandoned when its context is cancelled.
package artifact
