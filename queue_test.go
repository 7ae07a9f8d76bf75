// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package girc

import (
	"context"
	"testing"
	"time"
)

func TestSendQueuePriorityOrder(t *testing.T) {
	q := newSendQueue()

	q.Push(&Event{Command: "A"}, PriorityDefault)
	q.Push(&Event{Command: "B"}, PriorityControl)
	q.Push(&Event{Command: "C"}, PriorityRegistration)
	q.Push(&Event{Command: "D"}, PriorityPong)

	want := []string{"C", "D", "B", "A"}
	for _, w := range want {
		e, ok := q.pop()
		if !ok {
			t.Fatalf("expected an event, queue was empty")
		}
		if e.Command != w {
			t.Errorf("pop() = %q, want %q", e.Command, w)
		}
	}

	if _, ok := q.pop(); ok {
		t.Error("pop() on empty queue returned ok = true")
	}
}

func TestSendQueueFIFOWithinPriority(t *testing.T) {
	q := newSendQueue()

	q.Push(&Event{Command: "first"}, PriorityDefault)
	q.Push(&Event{Command: "second"}, PriorityDefault)
	q.Push(&Event{Command: "third"}, PriorityDefault)

	for _, want := range []string{"first", "second", "third"} {
		e, ok := q.pop()
		if !ok || e.Command != want {
			t.Errorf("pop() = %v, %v, want %q", e, ok, want)
		}
	}
}

func TestSendQueueCeilingDropsLowerPriority(t *testing.T) {
	q := newSendQueue()
	q.SetCeiling(PriorityRegistration, true)

	if ok := q.Push(&Event{Command: "USER"}, PriorityDefault); ok {
		t.Error("Push() with priority above ceiling returned ok = true")
	}

	if ok := q.Push(&Event{Command: "NICK"}, PriorityRegistration); !ok {
		t.Error("Push() with priority at ceiling returned ok = false")
	}

	if n := q.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}

	q.SetCeiling(0, false)

	if ok := q.Push(&Event{Command: "PRIVMSG"}, PriorityDefault); !ok {
		t.Error("Push() after ceiling cleared returned ok = false")
	}

	if n := q.Len(); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}
}

func TestSendQueueNextBlocksUntilPush(t *testing.T) {
	q := newSendQueue()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan *Event, 1)
	go func() {
		e, err := q.Next(ctx)
		if err != nil {
			return
		}
		done <- e
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(&Event{Command: "PING"}, PriorityPong)

	select {
	case e := <-done:
		if e.Command != "PING" {
			t.Errorf("Next() = %q, want PING", e.Command)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Next() to unblock")
	}
}

func TestSendQueueNextRespectsContextCancel(t *testing.T) {
	q := newSendQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Next(ctx); err == nil {
		t.Error("Next() on a cancelled context returned nil error")
	}
}

func TestSendQueueDrainReturnsInPriorityOrderAndEmpties(t *testing.T) {
	q := newSendQueue()
	q.Push(&Event{Command: "A"}, PriorityDefault)
	q.Push(&Event{Command: "B"}, PriorityControl)
	q.Push(&Event{Command: "C"}, PriorityRegistration)

	drained := q.Drain()
	if len(drained) != 3 {
		t.Fatalf("Drain() returned %d events, want 3", len(drained))
	}

	want := []string{"C", "B", "A"}
	for i, e := range drained {
		if e.Command != want[i] {
			t.Errorf("Drain()[%d] = %q, want %q", i, e.Command, want[i])
		}
	}

	if n := q.Len(); n != 0 {
		t.Errorf("Len() after Drain() = %d, want 0", n)
	}
}
