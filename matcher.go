// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package girc

import (
	"regexp"
	"strings"
)

// ValueMatcher tests a single string value extracted from an event. nil is
// the "match anything" matcher.
type ValueMatcher func(val string) bool

// MatchValue returns a ValueMatcher that requires an exact match.
func MatchValue(v string) ValueMatcher {
	return func(val string) bool { return val == v }
}

// MatchFold returns a ValueMatcher that requires an ASCII case-insensitive
// exact match. Used for the command field, which is always upcased.
func MatchFold(v string) ValueMatcher {
	v = strings.ToUpper(v)
	return func(val string) bool { return strings.ToUpper(val) == v }
}

// MatchRegexp returns a ValueMatcher requiring a full match against re.
func MatchRegexp(re *regexp.Regexp) ValueMatcher {
	return func(val string) bool {
		loc := re.FindStringIndex(val)
		return loc != nil && loc[0] == 0 && loc[1] == len(val)
	}
}

// MatchFunc returns a ValueMatcher wrapping an arbitrary predicate.
func MatchFunc(fn func(string) bool) ValueMatcher {
	return fn
}

// MatchAny returns a ValueMatcher that succeeds if any of the given
// matchers succeed -- the "iterable of matchers" case from the match
// spec algebra.
func MatchAny(matchers ...ValueMatcher) ValueMatcher {
	return func(val string) bool {
		for _, m := range matchers {
			if m == nil || m(val) {
				return true
			}
		}
		return false
	}
}

// AttrExtractor pulls the named accessor values off a command variant for
// attribute matching (e.g. "channels", "modes", "payload", "ctcp").
type AttrExtractor func(e *Event) []string

// attrExtractors maps command name -> attribute name -> extractor. Populated
// by the registerAttrExtractor calls in attrs.go's init for the command
// variants that expose named accessors.
var attrExtractors = map[string]map[string]AttrExtractor{}

// registerAttrExtractor wires an accessor name for a given command (or
// ALL_EVENTS for every command) to an extractor function.
func registerAttrExtractor(command, attr string, fn AttrExtractor) {
	command = strings.ToUpper(command)
	m, ok := attrExtractors[command]
	if !ok {
		m = map[string]AttrExtractor{}
		attrExtractors[command] = m
	}
	m[attr] = fn
}

func lookupAttrExtractor(command, attr string) AttrExtractor {
	if m, ok := attrExtractors[strings.ToUpper(command)]; ok {
		if fn, ok := m[attr]; ok {
			return fn
		}
	}
	if m, ok := attrExtractors[ALL_EVENTS]; ok {
		if fn, ok := m[attr]; ok {
			return fn
		}
	}
	return nil
}

// MatchSpec is one clause of a HandlerRule's Match list: a logical AND over
// every non-nil field. A HandlerRule matches if any of its MatchSpecs
// succeeds (logical OR across specs).
type MatchSpec struct {
	// Command matches the event command (numeric or textual), compared
	// case-insensitively.
	Command ValueMatcher
	// Sender matches the prefix nick/servername.
	Sender ValueMatcher
	// User matches the prefix ident.
	User ValueMatcher
	// Host matches the prefix hostname.
	Host ValueMatcher
	// Params matches positionally: Params[i] tests event.Params[i] if
	// present; a nil entry means "any". Params may be shorter than the
	// event's actual parameter count.
	Params []ValueMatcher
	// ParamsFunc, if set, is given the full parameter list and must
	// return true for the spec to match. Evaluated in addition to
	// Params.
	ParamsFunc func([]string) bool
	// Attrs matches named accessors on the command variant (e.g.
	// "channels", "modes", "payload", "ctcp"), resolved via
	// registerAttrExtractor. A named attribute may yield more than one
	// string (e.g. multiple channels); the matcher succeeds if any of
	// them match.
	Attrs map[string]ValueMatcher
}

// matches reports whether every non-nil field of spec matches e.
func (spec *MatchSpec) matches(e *Event) bool {
	if spec.Command != nil && !spec.Command(strings.ToUpper(e.Command)) {
		return false
	}

	if e.Source == nil {
		if spec.Sender != nil || spec.User != nil || spec.Host != nil {
			return false
		}
	} else {
		if spec.Sender != nil && !spec.Sender(e.Source.Name) {
			return false
		}
		if spec.User != nil && !spec.User(e.Source.Ident) {
			return false
		}
		if spec.Host != nil && !spec.Host(e.Source.Host) {
			return false
		}
	}

	for i, m := range spec.Params {
		if m == nil {
			continue
		}
		if i >= len(e.Params) || !m(e.Params[i]) {
			return false
		}
	}

	if spec.ParamsFunc != nil && !spec.ParamsFunc(e.Params) {
		return false
	}

	for attr, m := range spec.Attrs {
		fn := lookupAttrExtractor(e.Command, attr)
		if fn == nil {
			return false
		}
		values := fn(e)
		ok := false
		for _, v := range values {
			if m == nil || m(v) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	return true
}
