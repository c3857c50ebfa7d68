/*
 * Copyright (c) 2026 Anders Skelöf, anders@askelof.net
 */

package gnsimport

import (
	"testing"
	"time"
)

func TestExpiryHeapOrdering(t *testing.T) {
	now := time.Now()
	var eh ExpiryHeap

	reqs := []*Request{
		{Hostname: "c.gnu", Expires: now.Add(3 * time.Hour), index: -1},
		{Hostname: "a.gnu", Expires: now.Add(1 * time.Hour), index: -1},
		{Hostname: "b.gnu", Expires: now.Add(2 * time.Hour), index: -1},
	}
	for _, req := range reqs {
		eh.Insert(req)
	}

	if eh.Len() != 3 {
		t.Fatalf("expected heap size 3, got %d", eh.Len())
	}
	if root := eh.Peek(); root.Hostname != "a.gnu" {
		t.Errorf("expected a.gnu at the root, got %s", root.Hostname)
	}

	var order []string
	for eh.Len() > 0 {
		order = append(order, eh.PopRoot().Hostname)
	}
	want := []string{"a.gnu", "b.gnu", "c.gnu"}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("pop %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestExpiryHeapReschedule(t *testing.T) {
	now := time.Now()
	var eh ExpiryHeap

	early := &Request{Hostname: "early.gnu", Expires: now, index: -1}
	late := &Request{Hostname: "late.gnu", Expires: now.Add(time.Hour), index: -1}
	eh.Insert(early)
	eh.Insert(late)

	// pop, bump expiration, reinsert: the other request must surface
	req := eh.PopRoot()
	if req != early {
		t.Fatalf("expected early.gnu first")
	}
	req.Expires = now.Add(2 * time.Hour)
	eh.Insert(req)

	if root := eh.Peek(); root != late {
		t.Errorf("expected late.gnu at the root after reschedule, got %s", root.Hostname)
	}
}

func TestExpiryHeapRemove(t *testing.T) {
	now := time.Now()
	var eh ExpiryHeap

	reqs := make([]*Request, 5)
	for i := range reqs {
		reqs[i] = &Request{Expires: now.Add(time.Duration(i) * time.Minute), index: -1}
		eh.Insert(reqs[i])
	}

	eh.Remove(reqs[2])
	if eh.Len() != 4 {
		t.Fatalf("expected heap size 4 after remove, got %d", eh.Len())
	}
	if reqs[2].index != -1 {
		t.Errorf("removed request still carries heap index %d", reqs[2].index)
	}
	// removing twice must be harmless
	eh.Remove(reqs[2])
	if eh.Len() != 4 {
		t.Errorf("double remove changed the heap size")
	}

	var prev time.Time
	for eh.Len() > 0 {
		req := eh.PopRoot()
		if req == reqs[2] {
			t.Errorf("removed request popped from the heap")
		}
		if !prev.IsZero() && req.Expires.Before(prev) {
			t.Errorf("heap order violated after remove")
		}
		prev = req.Expires
	}
}
