// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package girc

import "sync"

// friendlyModeOrder maps the well-known rank mode letters (highest first)
// to the friendly tier accessor names exposed on UserListView. Networks
// that don't support a given tier (not present in PREFIX) simply report
// no members for it.
var friendlyModeOrder = []struct {
	mode  string
	level string
}{
	{"q", "owner"},
	{"a", "admin"},
	{"o", "op"},
	{"h", "halfop"},
	{"v", "voice"},
}

// UserListView is a per-channel rank-set tracker (spec C8): an ordered
// list of rank modes (derived from the server's PREFIX ISUPPORT token,
// highest rank first), and for each, the set of case-folded user names
// holding it. The base ("") tier holds users with no rank at all.
//
// A user may appear in more than one mode's set at once (e.g. both "o"
// and "v"); queries like AtOrAbove/Only/GetLevel resolve a user's
// effective rank from modeOrder's precedence.
type UserListView struct {
	mu sync.RWMutex

	// modeOrder lists rank letters from highest to lowest precedence,
	// e.g. "qaohv". Does not include the base "" tier.
	modeOrder []string

	// members maps a mode letter (or "" for the base tier) to the set
	// of case-folded user names holding it.
	members map[string]map[string]bool
}

// newUserListView builds a UserListView for a channel's rank modes,
// derived from the non-prefix half of the server's PREFIX token (e.g.
// "qaohv" out of "(qaohv)~&@%+").
func newUserListView(modeOrder string) *UserListView {
	order := make([]string, len(modeOrder))
	members := make(map[string]map[string]bool, len(modeOrder)+1)
	for i := 0; i < len(modeOrder); i++ {
		order[i] = string(modeOrder[i])
		members[order[i]] = map[string]bool{}
	}
	members[""] = map[string]bool{}

	return &UserListView{modeOrder: order, members: members}
}

// rankIndex returns the precedence index of mode (0 = highest), or -1 if
// mode is unknown to this channel (not present in PREFIX).
func (v *UserListView) rankIndex(mode string) int {
	for i, m := range v.modeOrder {
		if m == mode {
			return i
		}
	}
	return -1
}

// Add inserts user into mode's set (mode == "" for the base tier). Used
// by NAMREPLY processing and base JOINs.
func (v *UserListView) Add(user, mode string) {
	user = ToRFC1459(user)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.members[mode] == nil {
		v.members[mode] = map[string]bool{}
	}
	v.members[mode][user] = true
}

// Remove deletes user from every tracked mode set, including the base
// tier. Used on PART/KICK/QUIT.
func (v *UserListView) Remove(user string) {
	user = ToRFC1459(user)

	v.mu.Lock()
	defer v.mu.Unlock()

	for mode := range v.members {
		delete(v.members[mode], user)
	}
}

// Rename moves user from old to new in every mode set that contains
// them. Used on NICK.
func (v *UserListView) Rename(old, new string) {
	old = ToRFC1459(old)
	new = ToRFC1459(new)

	v.mu.Lock()
	defer v.mu.Unlock()

	for mode, set := range v.members {
		if set[old] {
			delete(set, old)
			set[new] = true
		}
	}
}

// SetMode applies a single rank-mode change for user: if adding, user is
// inserted into mode's set; if removing, user is removed from mode's
// set and re-added to the base tier to preserve presence, per spec
// (lesser modes may be lost this way -- a NAMES refresh recovers them).
func (v *UserListView) SetMode(user, mode string, adding bool) {
	user = ToRFC1459(user)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.members[mode] == nil {
		v.members[mode] = map[string]bool{}
	}

	if adding {
		v.members[mode][user] = true
		return
	}

	delete(v.members[mode], user)
	v.members[""][user] = true
}

// Has reports whether user is tracked at all in this channel (any tier,
// including base).
func (v *UserListView) Has(user string) bool {
	user = ToRFC1459(user)

	v.mu.RLock()
	defer v.mu.RUnlock()

	for _, set := range v.members {
		if set[user] {
			return true
		}
	}
	return false
}

// AtOrAbove returns every user holding mode or any higher-precedence
// mode. This is the UserListView.[mode] accessor from the spec.
func (v *UserListView) AtOrAbove(mode string) []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	idx := v.rankIndex(mode)
	if idx < 0 {
		return nil
	}

	seen := map[string]bool{}
	for i := 0; i <= idx; i++ {
		for user := range v.members[v.modeOrder[i]] {
			seen[user] = true
		}
	}

	return keysOf(seen)
}

// Only returns every user whose highest mode is exactly mode.
func (v *UserListView) Only(mode string) []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if mode == "" {
		var out []string
		for user := range v.members[""] {
			if lvl, ok := v.highestLocked(user); ok && lvl == "" {
				out = append(out, user)
			}
		}
		return out
	}

	var out []string
	for user := range v.members[mode] {
		if lvl, ok := v.highestLocked(user); ok && lvl == mode {
			out = append(out, user)
		}
	}
	return out
}

// Below returns every tracked user not in AtOrAbove(mode) -- the
// complement of AtOrAbove across every tracked user (any tier).
func (v *UserListView) Below(mode string) []string {
	above := map[string]bool{}
	for _, u := range v.AtOrAbove(mode) {
		above[u] = true
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	seen := map[string]bool{}
	for _, set := range v.members {
		for user := range set {
			if !above[user] {
				seen[user] = true
			}
		}
	}
	return keysOf(seen)
}

// GetLevel returns user's highest rank mode, or ok=false if user isn't
// tracked in this channel at all. A user tracked only in the base tier
// returns ("", true).
func (v *UserListView) GetLevel(user string) (mode string, ok bool) {
	user = ToRFC1459(user)

	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.highestLocked(user)
}

// highestLocked is GetLevel's body, assuming v.mu is already held.
func (v *UserListView) highestLocked(user string) (mode string, ok bool) {
	for _, m := range v.modeOrder {
		if v.members[m][user] {
			return m, true
		}
	}
	if v.members[""][user] {
		return "", true
	}
	return "", false
}

// Users returns every user tracked in this channel, at any tier.
func (v *UserListView) Users() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	seen := map[string]bool{}
	for _, set := range v.members {
		for user := range set {
			seen[user] = true
		}
	}
	return keysOf(seen)
}

// Len returns the number of distinct users tracked in this channel.
func (v *UserListView) Len() int {
	return len(v.Users())
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// friendlyTier returns AtOrAbove(letter) if the network's PREFIX
// supports that rank letter, else nil.
func (v *UserListView) friendlyTier(letter string) []string {
	if v.rankIndex(letter) < 0 {
		return nil
	}
	return v.AtOrAbove(letter)
}

// Owners returns users holding owner ("q", non-RFC) or higher.
func (v *UserListView) Owners() []string { return v.friendlyTier("q") }

// Admins returns users holding admin ("a", non-RFC) or higher.
func (v *UserListView) Admins() []string { return v.friendlyTier("a") }

// Ops returns users holding op ("o") or higher.
func (v *UserListView) Ops() []string { return v.friendlyTier("o") }

// HalfOps returns users holding half-op ("h", non-RFC) or higher.
func (v *UserListView) HalfOps() []string { return v.friendlyTier("h") }

// Voiced returns users holding voice ("v") or higher.
func (v *UserListView) Voiced() []string { return v.friendlyTier("v") }

// copy returns a deep copy of the view, safe to hand out without
// sharing the original's lock.
func (v *UserListView) copy() *UserListView {
	v.mu.RLock()
	defer v.mu.RUnlock()

	nv := &UserListView{
		modeOrder: append([]string(nil), v.modeOrder...),
		members:   make(map[string]map[string]bool, len(v.members)),
	}
	for mode, set := range v.members {
		ns := make(map[string]bool, len(set))
		for u := range set {
			ns[u] = true
		}
		nv.members[mode] = ns
	}
	return nv
}
