package ledger_test

import (
	"testing"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/kvstore"
	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/ledger"
)

func TestAppendReadAppendOnly(t *testing.T) {
	store := kvstore.NewMemoryStore()
	l := ledger.New(store, "testLedger")

	l.Append("scope-1", ledger.Entry{Timestamp: "t1", Type: "a"})
	l.Append("scope-1", ledger.Entry{Timestamp: "t2", Type: "b"})

	entries := l.Read("scope-1")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Type != "a" || entries[1].Type != "b" {
		t.Fatalf("expected append order preserved, got %+v", entries)
	}
}

func TestReadMissingScopeIsEmptyNotError(t *testing.T) {
	store := kvstore.NewMemoryStore()
	l := ledger.New(store, "testLedger")

	entries := l.Read("never-written")
	if len(entries) != 0 {
		t.Fatalf("expected empty slice for unknown scope, got %+v", entries)
	}
}

func TestReadCorruptDataReturnsEmpty(t *testing.T) {
	store := kvstore.NewMemoryStore()
	l := ledger.New(store, "testLedger")
	store.Set("ppp:testLedger:v1::scope-1", "not json")

	entries := l.Read("scope-1")
	if len(entries) != 0 {
		t.Fatalf("expected empty slice on corrupt data, got %+v", entries)
	}
}

func TestReadPagePaginates(t *testing.T) {
	store := kvstore.NewMemoryStore()
	l := ledger.New(store, "testLedger")
	for i := 0; i < 5; i++ {
		l.Append("scope-1", ledger.Entry{Timestamp: string(rune('a' + i)), Type: "a"})
	}

	page, next := l.ReadPage("scope-1", 2, 0)
	if len(page) != 2 || next != 2 {
		t.Fatalf("expected page of 2 with next=2, got len=%d next=%d", len(page), next)
	}
	page, next = l.ReadPage("scope-1", 2, next)
	if len(page) != 2 || next != 4 {
		t.Fatalf("expected page of 2 with next=4, got len=%d next=%d", len(page), next)
	}
	page, next = l.ReadPage("scope-1", 2, next)
	if len(page) != 1 || next != -1 {
		t.Fatalf("expected final page of 1 with next=-1, got len=%d next=%d", len(page), next)
	}
}

func TestReadTailWalksBackward(t *testing.T) {
	store := kvstore.NewMemoryStore()
	l := ledger.New(store, "testLedger")
	for i := 0; i < 3; i++ {
		l.Append("scope-1", ledger.Entry{Timestamp: string(rune('a' + i)), Type: "a"})
	}

	page, next := l.ReadTail("scope-1", 2, 0)
	if len(page) != 2 || next != 1 {
		t.Fatalf("expected last 2 entries with next=1, got len=%d next=%d", len(page), next)
	}
	page, next = l.ReadTail("scope-1", 2, next)
	if len(page) != 1 || next != -1 {
		t.Fatalf("expected final older page of 1 with next=-1, got len=%d next=%d", len(page), next)
	}
}

func TestEventIDDistinguishesScopeTimestampType(t *testing.T) {
	if ledger.EventID("s1", "t1", "a") == ledger.EventID("s1", "t1", "b") {
		t.Fatalf("expected different event ids for different types")
	}
}
