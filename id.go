package raft

import "github.com/google/uuid"

// IDGenerator mints a node identity when none is supplied at
// construction, per the `uuid` configuration option.
type IDGenerator func() string

// DefaultIDGenerator generates RFC 4122 v4 identifiers via
// github.com/google/uuid, the same generator most of the identity
// schemes in this codebase's neighboring services use.
func DefaultIDGenerator() string {
	return uuid.NewString()
}
