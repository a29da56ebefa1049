// Package types defines the core vocabulary shared by the policy engine:
// registry paths, typed registry values, and typed errors.
//
// Design goals:
//   - Values are a tagged union; comparison is type aware.
//   - Paths are only built by ResolvePath, never assembled by hand.
//   - Typed errors with stable categories (path/malformed/not-found/...).
//
// This package has no dependencies beyond the standard library.
package types
