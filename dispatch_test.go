// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package girc

import (
	"sync"
	"testing"
	"time"
)

func newDispatchTestClient() *Client {
	return New(Config{Server: "dummy.int", Port: 6667, Nick: "test", User: "test", Name: "Testing"})
}

func TestDispatchRunsBeforeAfterOrder(t *testing.T) {
	c := newDispatchTestClient()

	var mu sync.Mutex
	var order []string
	record := func(name string) func(*Client, Event) {
		return func(_ *Client, _ Event) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	match := []MatchSpec{{Command: MatchFold(PRIVMSG)}}

	c.AddRule(HandlerRule{Name: "second", Match: match, After: []string{"first"}, Callback: record("second")})
	c.AddRule(HandlerRule{Name: "first", Match: match, Callback: record("first")})
	c.AddRule(HandlerRule{Name: "third", Match: match, After: []string{"second"}, Callback: record("third")})

	c.dispatch(&Event{Command: PRIVMSG, Params: []string{"#chan"}, Trailing: "hi"})

	if len(order) != 3 {
		t.Fatalf("order = %v, want 3 entries", order)
	}
	if order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Errorf("order = %v, want [first second third]", order)
	}
}

func TestDispatchSyncBarrierRunsLast(t *testing.T) {
	c := newDispatchTestClient()

	var mu sync.Mutex
	var order []string
	record := func(name string) func(*Client, Event) {
		return func(_ *Client, _ Event) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	match := []MatchSpec{{Command: MatchFold(PRIVMSG)}}

	c.AddRule(HandlerRule{Name: "barrier", Match: match, After: []string{syncPoint}, Callback: record("barrier")})
	c.AddRule(HandlerRule{Name: "a", Match: match, Callback: record("a")})
	c.AddRule(HandlerRule{Name: "b", Match: match, Callback: record("b")})

	c.dispatch(&Event{Command: PRIVMSG, Params: []string{"#chan"}, Trailing: "hi"})

	if len(order) != 3 {
		t.Fatalf("order = %v, want 3 entries", order)
	}
	if order[2] != "barrier" {
		t.Errorf("order = %v, want barrier last", order)
	}
}

func TestDispatchUnmatchedEventSkipsRules(t *testing.T) {
	c := newDispatchTestClient()

	ran := false
	c.AddRule(HandlerRule{
		Name:     "privmsg-only",
		Match:    []MatchSpec{{Command: MatchFold(PRIVMSG)}},
		Callback: func(_ *Client, _ Event) { ran = true },
	})

	c.dispatch(&Event{Command: NOTICE, Params: []string{"#chan"}, Trailing: "hi"})

	if ran {
		t.Error("rule ran for a non-matching event")
	}
}

func TestDispatchCycleFallsBackToUnordered(t *testing.T) {
	c := newDispatchTestClient()

	var mu sync.Mutex
	ran := map[string]bool{}
	record := func(name string) func(*Client, Event) {
		return func(_ *Client, _ Event) {
			mu.Lock()
			ran[name] = true
			mu.Unlock()
		}
	}

	match := []MatchSpec{{Command: MatchFold(PRIVMSG)}}

	c.AddRule(HandlerRule{Name: "x", Match: match, After: []string{"y"}, Callback: record("x")})
	c.AddRule(HandlerRule{Name: "y", Match: match, After: []string{"x"}, Callback: record("y")})

	done := make(chan struct{})
	go func() {
		c.dispatch(&Event{Command: PRIVMSG, Params: []string{"#chan"}, Trailing: "hi"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch() did not return; cycle was not broken")
	}

	if !ran["x"] || !ran["y"] {
		t.Errorf("ran = %v, want both x and y to have run despite the cycle", ran)
	}
}

func TestDispatchNilEventIsNoop(t *testing.T) {
	c := newDispatchTestClient()
	c.dispatch(nil)
}

func TestFindCycleDetectsCycle(t *testing.T) {
	deps := map[string]map[string]bool{
		"a": {"b": true},
		"b": {"c": true},
		"c": {"a": true},
	}

	if got := findCycle(deps); got == "" {
		t.Error("findCycle() = \"\", want a cycle to be detected")
	}
}

func TestFindCycleAcyclic(t *testing.T) {
	deps := map[string]map[string]bool{
		"a": {},
		"b": {"a": true},
		"c": {"b": true},
	}

	if got := findCycle(deps); got != "" {
		t.Errorf("findCycle() = %q, want no cycle", got)
	}
}

func TestRuleRegistryAddGeneratesNameWhenEmpty(t *testing.T) {
	rr := newRuleRegistry()

	name := rr.Add(&HandlerRule{})
	if name == "" {
		t.Error("Add() with empty Name returned empty generated name")
	}

	if len(rr.snapshot()) != 1 {
		t.Errorf("snapshot() has %d rules, want 1", len(rr.snapshot()))
	}
}

func TestRuleRegistryRemove(t *testing.T) {
	rr := newRuleRegistry()
	rr.Add(&HandlerRule{Name: "a"})

	if ok := rr.Remove("a"); !ok {
		t.Error("Remove() of existing rule returned false")
	}
	if ok := rr.Remove("a"); ok {
		t.Error("Remove() of already-removed rule returned true")
	}
	if len(rr.snapshot()) != 0 {
		t.Errorf("snapshot() has %d rules, want 0", len(rr.snapshot()))
	}
}
