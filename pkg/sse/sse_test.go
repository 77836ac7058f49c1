package sse

import (
	"strings"
	"testing"
	"time"
)

func TestSameActorConnectionsAreIndependent(t *testing.T) {
	h := NewHub(time.Second)

	first := h.AddClient("staff-1")
	second := h.AddClient("staff-1")
	if first.id == second.id {
		t.Fatal("each connection must get its own id")
	}
	if h.ClientCount() != 2 {
		t.Fatalf("expected 2 connections, got %d", h.ClientCount())
	}

	h.Join(first.id, "staff")
	h.Join(second.id, "staff")

	// 第一个页签断开不影响第二个
	h.RemoveClient(first.id)

	select {
	case <-second.done:
		t.Fatal("second connection's done channel must stay open")
	default:
	}

	h.PublishToGroup("staff", "alert.created", map[string]string{"alertId": "ALT-2026-000001"})
	select {
	case msg := <-second.ch:
		if !strings.Contains(msg, "event: alert.created") {
			t.Errorf("unexpected event frame: %q", msg)
		}
	default:
		t.Error("surviving connection should still receive group events")
	}
}

func TestRemoveClientLeavesGroups(t *testing.T) {
	h := NewHub(time.Second)

	c := h.AddClient("tourist-7")
	h.Join(c.id, "tourist:7")
	h.RemoveClient(c.id)

	h.PublishToGroup("tourist:7", "alert.created", map[string]string{})
	select {
	case <-c.ch:
		t.Error("removed connection must not receive events")
	default:
	}
	if h.ClientCount() != 0 {
		t.Errorf("expected 0 connections, got %d", h.ClientCount())
	}
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	h := NewHub(time.Second)

	c := h.AddClient("staff-1")
	h.Join(c.id, "staff")

	// 填满队列后继续投递不得阻塞
	for i := 0; i < 70; i++ {
		h.PublishToGroup("staff", "ping", map[string]int{"n": i})
	}
	if len(c.ch) != cap(c.ch) {
		t.Errorf("expected full queue, got %d/%d", len(c.ch), cap(c.ch))
	}
}
