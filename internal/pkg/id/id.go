// Package id mints account identifiers.
package id

import "github.com/oklog/ulid/v2"

// New returns a ULID string. ULIDs sort by creation time, and ulid.Make keeps
// them monotonic within the same millisecond.
func New() string {
	return ulid.Make().String()
}
