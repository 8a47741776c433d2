// Package shared holds helpers used across the engine packages.
//
// The testutil subpackage provides a capturing slog handler with assertion
// helpers and generators for synthetic layouts and chipsets. It is imported
// only from tests.
package shared
