// Package build runs a verification build over a corpus.
//
// A build has four phases:
//
//  1. parse: files are parsed on a bounded worker pool through the document
//     cache; declared objects are registered as documents complete.
//  2. barrier: once every worker has finished the registry is frozen and
//     duplicate object names and content item ids are detected.
//  3. validate: every reference is resolved and every content item is
//     checked against its constraints, in parallel, against the frozen
//     registry.
//  4. aggregate: issues are sorted by location and the verdict computed.
//
// No reference is judged before phase 2 completes, so a reference to an
// object declared in a file parsed later still resolves. Unchanged files are
// served from the cache, but phases 2 to 4 always run in full.
package build
