// Package reconcile splices retained-but-deleted messages back into a
// freshly fetched page of live messages at their correct chronological
// position. Only ids whose derived instant falls inside the time range the
// fetch actually covered are re-added; re-inserting outside that window
// would fabricate continuity across gaps the fetch never saw.
package reconcile

import (
	"errors"
	"sort"

	"msgvault/pkg/models"
	"msgvault/pkg/snowflake"
)

// ErrUnorderable is returned when an id in play does not encode a usable
// instant. The caller shows the live batch unmodified rather than merging
// partially or incorrectly.
var ErrUnorderable = errors.New("reconcile: id does not encode a timestamp")

type idTime struct {
	id string
	ms int64
}

// ReAddDeleted merges the retained ids into msgs (live page, newest first)
// and returns the merged slice. channelStart reports that the fetch reached
// the channel's newest message, channelEnd its oldest; at a true history
// boundary there is no further live data to bound against, so the matching
// side of the window is widened to include everything. lookup resolves a
// retained id to its stored snapshot; ids that resolve to nil are dropped.
func ReAddDeleted(msgs []*models.Message, retained []string, channelStart, channelEnd bool, lookup func(id string) *models.Message) ([]*models.Message, error) {
	if len(msgs) == 0 || len(retained) == 0 {
		return msgs, nil
	}

	live := make([]idTime, len(msgs))
	for i, m := range msgs {
		ms, err := snowflake.Millis(m.ID)
		if err != nil {
			return msgs, ErrUnorderable
		}
		live[i] = idTime{id: m.ID, ms: ms}
	}

	saved := make([]idTime, 0, len(retained))
	for _, id := range retained {
		ms, err := snowflake.Millis(id)
		if err != nil {
			return msgs, ErrUnorderable
		}
		if lookup(id) == nil {
			continue
		}
		saved = append(saved, idTime{id: id, ms: ms})
	}
	if len(saved) == 0 {
		return msgs, nil
	}
	sort.Slice(saved, func(i, j int) bool { return saved[i].ms < saved[j].ms })

	// batch is newest first: last entry is the oldest instant fetched
	lowestTime := live[len(live)-1].ms
	highestTime := live[0].ms

	lo := 0
	if !channelEnd {
		lo = -1
		for i, e := range saved {
			if e.ms > lowestTime {
				lo = i
				break
			}
		}
		if lo == -1 {
			return msgs, nil
		}
	}
	hi := len(saved) - 1
	if !channelStart {
		hi = -1
		for i := len(saved) - 1; i >= 0; i-- {
			if saved[i].ms < highestTime {
				hi = i
				break
			}
		}
		if hi == -1 {
			return msgs, nil
		}
	}
	if lo > hi {
		return msgs, nil
	}

	inBatch := make(map[string]int, len(live))
	for i, e := range live {
		inBatch[e.id] = i
	}

	// merge the eligible retained ids with the live ids, newest first; a
	// live message always wins over a retained stand-in with the same id
	merged := make([]idTime, 0, len(live)+hi-lo+1)
	for _, e := range saved[lo : hi+1] {
		if _, ok := inBatch[e.id]; ok {
			continue
		}
		merged = append(merged, e)
	}
	if len(merged) == 0 {
		return msgs, nil
	}
	merged = append(merged, live...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].ms > merged[j].ms })

	out := make([]*models.Message, 0, len(merged))
	for _, e := range merged {
		if i, ok := inBatch[e.id]; ok {
			out = append(out, msgs[i])
			continue
		}
		out = append(out, lookup(e.id))
	}
	return out, nil
}
