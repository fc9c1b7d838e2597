// Package internal holds helpers shared by the in-repo test doubles and tools.
// It is not part of the public API.
package internal
