package doccache

import (
	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
)

// Sentinel errors for cache persistence. All of them are recoverable: the
// build falls back to a cold cache.
var (
	// ErrStoreOpenFailed indicates the cache database could not be opened.
	ErrStoreOpenFailed = derrors.CacheError("could not open cache store").Build()

	// ErrSchemaMismatch indicates the database was written by an incompatible version.
	ErrSchemaMismatch = derrors.CacheError("cache store schema mismatch").Build()

	// ErrCorruptEntry indicates a persisted document could not be decoded.
	ErrCorruptEntry = derrors.CacheError("corrupt cache entry").Build()

	// ErrStoreWriteFailed indicates persisting the cache failed.
	ErrStoreWriteFailed = derrors.CacheError("failed to write cache store").Build()
)
