// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package girc

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// nickSnapshot is the last-committed view of a nickState, published via an
// atomic.Value so MatchesNick can read it without taking n.mu -- it must
// stay unblocked even while a change is in flight under the lock (unlike
// Current, which is the authoritative blocking read).
type nickSnapshot struct {
	current string
	pending string
	hasPend bool
}

// nickState implements the three-valued nick state machine: current,
// pending, and a lock serialising changes, per spec 4.7.
type nickState struct {
	mu      sync.Mutex
	current string
	pending string
	hasPend bool

	snap atomic.Value // nickSnapshot

	c *Client
}

func newNickState(c *Client, initial string) *nickState {
	n := &nickState{c: c, current: initial}
	n.snap.Store(nickSnapshot{current: initial})
	return n
}

// publish refreshes the lock-free snapshot from the locked fields. Must be
// called with n.mu held, after any mutation of current/pending/hasPend.
func (n *nickState) publish() {
	n.snap.Store(nickSnapshot{current: n.current, pending: n.pending, hasPend: n.hasPend})
}

// Current returns the active nickname. Blocks until any in-flight change
// (SetNick, onNicknameInUse) has resolved, since n.mu is held for the
// duration of those -- per spec 4.7, reads of the current nick must not
// observe a half-applied change.
func (n *nickState) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// MatchesNick reports whether v is either the current or the pending
// nickname. Reads the lock-free snapshot rather than n.mu, so it never
// blocks on (or behind) a SetNick/onNicknameInUse in progress; it may
// briefly observe a one-change-old snapshot, which is fine for its callers
// (echo/self-detection), which don't need linearizable ordering with
// SetNick the way Current does.
func (n *nickState) MatchesNick(v string) bool {
	snap, _ := n.snap.Load().(nickSnapshot)
	return v == snap.current || (snap.hasPend && v == snap.pending)
}

// forceCurrent is used during registration/welcome, where the server may
// assign a different nick than requested, outside of the normal
// change-nick protocol.
func (n *nickState) forceCurrent(v string) {
	n.mu.Lock()
	n.current = v
	n.hasPend = false
	n.pending = ""
	n.publish()
	n.mu.Unlock()
}

// SetNick runs the full user-initiated nick change algorithm: acquire the
// lock, stage pending, send NICK at control priority, issue a
// message-quiescence probe, and commit the new nick once the probe
// returns, whether or not its PONG arrived. On a send failure it attempts a QUIT at
// PriorityPong and returns the error. n.mu is held for the entire
// operation, so Current() blocks until the change (successful or not) has
// been resolved; MatchesNick reads the separate lock-free snapshot and
// never blocks.
func (n *nickState) SetNick(name string) error {
	if !IsValidNick(name) {
		return &ErrInvalidTarget{Target: name}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.pending = name
	n.hasPend = true
	n.publish()

	if err := n.c.SendPriority(&Event{Command: NICK, Params: []string{name}}, PriorityControl); err != nil {
		n.hasPend = false
		n.pending = ""
		n.publish()
		n.c.SendPriority(&Event{Command: QUIT, Params: []string{"nick change failed"}}, PriorityPong)
		return err
	}

	n.c.waitForMessages(PriorityControl)

	n.current = n.pending
	n.hasPend = false
	n.pending = ""
	n.publish()

	return nil
}

// onServerNick handles an inbound NICK message: if sender matches our
// pending nick, update pending; else if it matches current, update
// current; otherwise (some other user), ignore -- the caller is
// responsible for the unrelated-user bookkeeping (state.renameUser).
func (n *nickState) onServerNick(sender, newNick string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.hasPend && sender == n.pending {
		n.pending = newNick
		n.publish()
		return
	}
	if sender == n.current {
		n.current = newNick
		n.publish()
	}
}

// onNicknameInUse handles ERR_NICKNAMEINUSE/ERR_NICKCOLLISION/
// ERR_UNAVAILRESOURCE for name x, per spec 4.7.
func (n *nickState) onNicknameInUse(x string) {
	n.mu.Lock()

	if n.hasPend {
		if x != n.pending {
			n.mu.Unlock()
			return
		}
		// Cancel the pending change.
		n.pending = n.current
		n.hasPend = false
		n.publish()
		n.mu.Unlock()
		return
	}

	if x != n.current {
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	next := incrementNick(x)
	if n.c.Config.HandleNickCollide != nil {
		if custom := n.c.Config.HandleNickCollide(x); custom != "" {
			next = custom
		}
	}

	n.mu.Lock()
	n.pending = next
	n.hasPend = true
	n.publish()
	n.mu.Unlock()

	n.c.SendPriority(&Event{Command: NICK, Params: []string{next}}, PriorityControl)
}

// incrementNick bumps a colliding nickname: if it ends in "|<digits>", a
// random decimal digit is appended to the number; otherwise "|<digit>" is
// appended. This keeps length bounded under repeated collisions ("nick
// herding"), unlike naively appending underscores forever.
func incrementNick(nick string) string {
	if i := strings.LastIndexByte(nick, '|'); i >= 0 {
		suffix := nick[i+1:]
		if _, err := strconv.Atoi(suffix); err == nil {
			return nick[:i+1] + suffix + strconv.Itoa(rand.Intn(10))
		}
	}
	return nick + "|" + strconv.Itoa(rand.Intn(10))
}
