/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */

package gnsimport

import "time"

const (
	// Upper bound on requests that are in flight at the resolver plus
	// requests waiting on a store operation.
	PendingThreshold = 100

	// Minimum spacing between two consecutive query submissions.
	SubmitSpacing = 10 * time.Microsecond

	// Shortest timer we bother arming; anything below this busy-loops.
	TimerFloor = time.Millisecond

	// A request is abandoned once IssueNum exceeds this (six attempts).
	MaxRetries = 5

	// Recheck interval for names that resolved to an empty record set.
	EmptySetRecheck = 24 * time.Hour

	// How many stdin names we report progress for.
	ReadProgressInterval = 100000

	// How many stored record sets we report progress for.
	StoreProgressInterval = 1000
)

// Record type codes for the namestore record model. Values below 2^16
// are plain DNS type codes; these live above that range.
const (
	TypePKEY    uint32 = 65536
	TypeGNS2DNS uint32 = 65540
)
