package snowflake

import (
	"strconv"
	"testing"
)

// id encodes an instant offset ms after the epoch.
func id(offset int64) string {
	return strconv.FormatInt(offset*timestampDivisor, 10)
}

func TestMillis(t *testing.T) {
	ms, err := Millis(id(1000))
	if err != nil {
		t.Fatalf("Millis: %v", err)
	}
	if ms != Epoch+1000 {
		t.Fatalf("expected %d, got %d", Epoch+1000, ms)
	}
}

func TestMillisNonNumeric(t *testing.T) {
	if _, err := Millis("not-a-number"); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
	if _, err := Millis(""); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestTime(t *testing.T) {
	tm, err := Time(id(0))
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	if got := tm.UnixMilli(); got != Epoch {
		t.Fatalf("expected epoch instant, got %d", got)
	}
}

func TestCompare(t *testing.T) {
	older, newer := id(10), id(20)
	if Compare(older, newer) >= 0 {
		t.Fatalf("older id must compare less than newer")
	}
	if Compare(newer, older) <= 0 {
		t.Fatalf("newer id must compare greater than older")
	}
	if Compare(older, older) != 0 {
		t.Fatalf("equal ids must compare equal")
	}
}

func TestCompareMalformedFallsBackToLexical(t *testing.T) {
	if Compare("abc", "abd") >= 0 {
		t.Fatalf("lexical fallback broken")
	}
	if Compare("abc", "abc") != 0 {
		t.Fatalf("lexical fallback broken for equal strings")
	}
}

func TestSortOrders(t *testing.T) {
	ids := []string{id(30), id(10), id(20)}
	SortOldestFirst(ids)
	if ids[0] != id(10) || ids[2] != id(30) {
		t.Fatalf("oldest-first sort wrong: %v", ids)
	}
	SortNewestFirst(ids)
	if ids[0] != id(30) || ids[2] != id(10) {
		t.Fatalf("newest-first sort wrong: %v", ids)
	}
}
