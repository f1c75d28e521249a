package store

import (
	"testing"

	"github.com/btorch/btaudiod/internal/macaddr"
)

func TestLiveTableGetOrCreate(t *testing.T) {
	table := NewLiveTable()
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")

	first := table.GetOrCreate(addr)
	first.ConnectingInProgress = true

	second := table.GetOrCreate(addr)
	if second != first {
		t.Fatal("GetOrCreate should return the same pointer for an existing entry")
	}
	if !second.ConnectingInProgress {
		t.Fatal("mutation through the first pointer should be visible through the second")
	}
}

func TestLiveTableGetMissing(t *testing.T) {
	table := NewLiveTable()
	if _, ok := table.Get(macaddr.MustParse("AA:BB:CC:DD:EE:99")); ok {
		t.Fatal("expected no entry for an address never created")
	}
}

func TestLiveTableRemove(t *testing.T) {
	table := NewLiveTable()
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")
	table.GetOrCreate(addr)
	table.Remove(addr)
	if _, ok := table.Get(addr); ok {
		t.Fatal("expected entry to be gone after Remove")
	}
}
