// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package girc

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// syncPoint is the special name used in a HandlerRule's After list to mean
// "wait for every other handler matching this event to finish, then run,
// and block the dispatcher until I return".
const syncPoint = "sync"

// HandlerRule is a single registered rule for the dispatch scheduler. A
// rule matches an event if any of its MatchSpecs matches (logical OR
// across Match, logical AND within each MatchSpec). Before and After
// name other rules (by Name) that this rule must run before/after for
// any event they both match; After may also contain the syncPoint
// sentinel, meaning "run after everything else handling this event has
// finished, and block the next event from dispatching until I return".
//
// Rules with no Name cannot be referenced by other rules' Before/After,
// but may still declare their own.
type HandlerRule struct {
	Name     string
	Match    []MatchSpec
	Before   []string
	After    []string
	Callback func(c *Client, e Event)

	// internal marks rules registerBuiltins installs for girc's own
	// state-maintenance (nick/channel tracking, CAP, SASL, CTCP dispatch,
	// etc). DisableTracking/registerBuiltins use it to recompute the
	// built-in rule set without disturbing user-added rules. Can only be
	// set from within the package, so user-constructed HandlerRule
	// literals are never treated as internal.
	internal bool
}

func (r *HandlerRule) matchesEvent(e *Event) bool {
	for i := range r.Match {
		if r.Match[i].matches(e) {
			return true
		}
	}
	return false
}

// wantsEcho reports whether r should still be considered for an
// echo-message event. A rule that matches unconditionally (an empty
// MatchSpec somewhere in its Match list, e.g. ALL_EVENTS) keeps seeing
// echoes; anything that only matches specific commands does not, matching
// how echo-message traffic has always been filtered here.
func (r *HandlerRule) wantsEcho() bool {
	for i := range r.Match {
		if r.Match[i].Command == nil {
			return true
		}
	}
	return false
}

// ruleRegistry stores the HandlerRules registered against a Client,
// keyed by Name for removal and before/after resolution.
type ruleRegistry struct {
	mu    sync.RWMutex
	rules map[string]*HandlerRule
	order []string
}

func newRuleRegistry() *ruleRegistry {
	return &ruleRegistry{rules: map[string]*HandlerRule{}}
}

// Add registers or replaces a rule. If Name is empty, a unique name is
// generated so it can still be tracked for removal.
func (rr *ruleRegistry) Add(r *HandlerRule) string {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if r.Name == "" {
		r.Name = "rule:" + randString(12)
	}

	if _, exists := rr.rules[r.Name]; !exists {
		rr.order = append(rr.order, r.Name)
	}
	rr.rules[r.Name] = r

	return r.Name
}

// Remove unregisters a rule by name. ok reports whether it existed.
func (rr *ruleRegistry) Remove(name string) (ok bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if _, ok = rr.rules[name]; !ok {
		return false
	}

	delete(rr.rules, name)
	for i, n := range rr.order {
		if n == name {
			rr.order = append(rr.order[:i], rr.order[i+1:]...)
			break
		}
	}

	return true
}

// removeInternal drops every rule registerBuiltins marked internal,
// leaving user-added rules (from AddRule) untouched. Used by
// registerBuiltins to recompute the built-in set from scratch on every
// call (including repeat calls from DisableTracking).
func (rr *ruleRegistry) removeInternal() {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	kept := rr.order[:0:0]
	for _, name := range rr.order {
		r, ok := rr.rules[name]
		if ok && r.internal {
			delete(rr.rules, name)
			continue
		}
		kept = append(kept, name)
	}
	rr.order = kept
}

func (rr *ruleRegistry) snapshot() []*HandlerRule {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	out := make([]*HandlerRule, 0, len(rr.order))
	for _, n := range rr.order {
		if r, ok := rr.rules[n]; ok {
			out = append(out, r)
		}
	}
	return out
}

// AddRule registers a new scheduled handler rule and returns its Name
// (generated if r.Name was empty), which can be passed to RemoveRule, or
// referenced by other rules' Before/After.
func (c *Client) AddRule(r HandlerRule) string {
	return c.rules.Add(&r)
}

// RemoveRule unregisters a previously added rule by name.
func (c *Client) RemoveRule(name string) bool {
	return c.rules.Remove(name)
}

// addTmpRule registers a one-shot internal rule for cmd: handler is called
// for every matching event and, once it returns true, the rule removes
// itself; if deadline is greater than 0, the rule is also removed once
// deadline elapses regardless of whether handler ever returned true. done
// is closed the moment the rule is actually removed (by either path),
// exactly once. Used internally for the message-quiescence probe
// (quiescence.go), which needs a deadline/self-removing handler rather
// than ordering against other rules.
func (c *Client) addTmpRule(cmd string, deadline time.Duration, handler func(client *Client, e Event) bool) (name string, done chan struct{}) {
	done = make(chan struct{})
	var once sync.Once
	closeDone := func() { once.Do(func() { close(done) }) }

	name = "tmp:" + randString(12)

	c.rules.Add(&HandlerRule{
		Name:     name,
		Match:    []MatchSpec{{Command: MatchFold(cmd)}},
		internal: true,
		Callback: func(cl *Client, e Event) {
			if handler(cl, e) && cl.RemoveRule(name) {
				closeDone()
			}
		},
	})

	if deadline > 0 {
		go func() {
			select {
			case <-time.After(deadline):
			case <-done:
				return
			}
			if c.RemoveRule(name) {
				closeDone()
			}
		}()
	}

	return name, done
}

// dispatch schedules every registered HandlerRule (built-in state-
// maintenance rules and user AddRule rules alike) that matches e according
// to its before/after/sync constraints, blocking until the event has been
// fully handled -- including any rule waiting on the sync barrier --
// before returning control to execLoop for the next event. This is the
// sole dispatch path; RunHandlers is a thin alias kept for synthetic
// events raised from elsewhere in the package (state.notify, connection
// lifecycle events, etc).
func (c *Client) dispatch(e *Event) {
	if e == nil {
		return
	}

	prefix := "< "
	if e.Echo {
		prefix += "[echo-message] "
	}
	c.debug.Print(prefix + StripRaw(e.String()))
	if c.Config.Out != nil {
		if pretty, ok := e.Pretty(); ok {
			fmt.Fprintln(c.Config.Out, StripRaw(pretty))
		}
	}

	if c.rules == nil {
		return
	}

	var matched []*HandlerRule
	for _, r := range c.rules.snapshot() {
		if !r.matchesEvent(e) {
			continue
		}
		if e.Echo && !r.wantsEcho() {
			continue
		}
		matched = append(matched, r)
	}
	if len(matched) == 0 {
		return
	}

	c.runSchedule(matched, e)
}

// RunHandlers dispatches event exactly as inbound events from the read
// loop are. Useful for raising synthetic notifications (CONNECTED,
// DISCONNECTED, state-change UPDATE_* events, etc).
func (c *Client) RunHandlers(event *Event) {
	c.dispatch(event)
}

// runSchedule builds the per-event dependency DAG for matched rules and
// runs each in its own goroutine, blocking on its dependencies' done
// channels before executing, then returns once every rule (including any
// sync-barrier rule) has completed.
func (c *Client) runSchedule(matched []*HandlerRule, e *Event) {
	byName := make(map[string]*HandlerRule, len(matched))
	for _, r := range matched {
		if r.Name != "" {
			byName[r.Name] = r
		}
	}

	deps := make(map[string]map[string]bool, len(matched))
	syncWaiters := map[string]bool{}

	for _, r := range matched {
		if r.Name == "" {
			continue
		}
		d := map[string]bool{}
		for _, after := range r.After {
			if after == syncPoint {
				syncWaiters[r.Name] = true
				continue
			}
			if _, ok := byName[after]; ok {
				d[after] = true
			}
		}
		deps[r.Name] = d
	}

	for _, r := range matched {
		for _, before := range r.Before {
			if _, ok := byName[before]; ok && r.Name != "" {
				if deps[before] == nil {
					deps[before] = map[string]bool{}
				}
				deps[before][r.Name] = true
			}
		}
	}

	for name := range syncWaiters {
		for _, r := range matched {
			if r.Name == "" || r.Name == name || syncWaiters[r.Name] {
				continue
			}
			deps[name][r.Name] = true
		}
	}

	if cyc := findCycle(deps); cyc != "" {
		c.debug.Printf("dispatch: handler ordering cycle detected at %q, running %s unordered", cyc, e.Command)
		deps = make(map[string]map[string]bool, len(matched))
	}

	done := make(map[string]chan struct{}, len(matched))
	for _, r := range matched {
		if r.Name != "" {
			done[r.Name] = make(chan struct{})
		}
	}

	var wg sync.WaitGroup
	for _, r := range matched {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()

			for dep := range deps[r.Name] {
				if ch, ok := done[dep]; ok {
					<-ch
				}
			}

			c.runRule(r, e)

			if r.Name != "" {
				close(done[r.Name])
			}
		}()
	}
	wg.Wait()
}

// findCycle runs a DFS over deps (name -> set of names it waits on) and
// returns the name of a rule involved in a cycle, or "" if the graph is
// acyclic.
func findCycle(deps map[string]map[string]bool) string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}

	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			return true
		case done:
			return false
		}
		state[name] = visiting
		for dep := range deps[name] {
			if visit(dep) {
				return true
			}
		}
		state[name] = done
		return false
	}

	for name := range deps {
		if visit(name) {
			return name
		}
	}
	return ""
}

// runRule executes a single scheduled rule's callback, recovering from
// any panic via Config.RecoverFunc.
func (c *Client) runRule(r *HandlerRule, e *Event) {
	defer c.recoverRulePanic(r, e)

	if r.Callback != nil {
		r.Callback(c, *e)
	}
}

func (c *Client) recoverRulePanic(r *HandlerRule, e *Event) {
	perr := recover()
	if perr == nil {
		return
	}

	if c.Config.RecoverFunc == nil {
		panic(perr)
	}

	var file, function string
	var line int

	var pcs [10]uintptr
	frames := runtime.CallersFrames(pcs[:runtime.Callers(3, pcs[:])])
	if frame, _ := frames.Next(); frame.PC != 0 {
		file = frame.File
		line = frame.Line
		function = frame.Function
	}

	c.Config.RecoverFunc(c, &HandlerError{
		Event: *e,
		ID:    r.Name,
		File:  file,
		Line:  line,
		Func:  function,
		Panic: perr,
		Stack: debug.Stack(),
		callOk: file != "",
	})
}
