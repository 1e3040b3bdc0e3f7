// Package snowflake derives creation instants from snowflake message ids.
// The id's numeric value linearly encodes milliseconds since the platform
// epoch, so ordering and timestamps need no separate stored field.
package snowflake

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Epoch is the platform epoch in unix milliseconds (2015-01-01T00:00:00Z).
const Epoch = 1420070400000

// timestampDivisor folds the worker/process/sequence bits out of an id,
// leaving the millisecond offset from Epoch.
const timestampDivisor = 4194304

// Millis returns the creation instant encoded in id as unix milliseconds.
func Millis(id string) (int64, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric snowflake id %q: %w", id, err)
	}
	return int64(n/timestampDivisor) + Epoch, nil
}

// Time returns the creation instant encoded in id.
func Time(id string) (time.Time, error) {
	ms, err := Millis(id)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Compare orders two ids by their encoded instants: negative when a is
// older than b, zero when equal, positive when newer. Ids that share a
// millisecond are tie-broken by raw numeric value so the order is total.
func Compare(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA != nil || errB != nil {
		// fall back to lexical order for malformed ids
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	default:
		return 0
	}
}

// SortNewestFirst sorts ids in place, most recent first.
func SortNewestFirst(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return Compare(ids[i], ids[j]) > 0 })
}

// SortOldestFirst sorts ids in place, oldest first.
func SortOldestFirst(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return Compare(ids[i], ids[j]) < 0 })
}
