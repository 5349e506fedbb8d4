package dedup

import (
	"fmt"
	"testing"
)

func TestMemoryRoles(t *testing.T) {
	m := NewMemory(10)

	if m.Forwarded("B1") {
		t.Fatal("fresh store must be empty")
	}

	if err := m.MarkCreated("B1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Created("B1") || m.Canceled("B1") {
		t.Fatal("create mark must only affect the create set")
	}
	if !m.Forwarded("B1") {
		t.Fatal("created booking counts as forwarded")
	}

	if err := m.MarkCanceled("B2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Canceled("B2") || !m.Forwarded("B2") {
		t.Fatal("cancel mark missing")
	}
}

func TestMemoryThresholdClearing(t *testing.T) {
	m := NewMemory(5)
	for i := 0; i < 5; i++ {
		_ = m.MarkCreated(fmt.Sprintf("B%d", i))
	}
	// The next mark crosses the threshold and clears the set first.
	_ = m.MarkCreated("B5")

	if m.Created("B0") {
		t.Fatal("set should have been cleared at the threshold")
	}
	if !m.Created("B5") {
		t.Fatal("the triggering id must be recorded after clearing")
	}
}
