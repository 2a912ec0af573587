// Package errors provides the classified error primitives used across docverify.
//
// Fatal conditions (bad configuration, unreadable sources, a store that cannot be
// opened) travel as *ClassifiedError values so the CLI can pick an exit code and a
// log level without string matching. Per-document and per-item findings are never
// errors; they are report issues.
//
//	err := errors.ConfigError("constraint expression does not compile").
//		WithContext("rule", rule.Name).
//		WithCause(parseErr).
//		Build()
package errors
