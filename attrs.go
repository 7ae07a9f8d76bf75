// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package girc

// init wires the named accessors that MatchSpec.Attrs can reference for
// the command variants that expose them (spec examples: channels=, modes=,
// payload=, ctcp=).
func init() {
	payload := func(e *Event) []string {
		if e.Trailing == "" && !e.EmptyTrailing {
			return nil
		}
		return []string{e.Trailing}
	}
	registerAttrExtractor(PRIVMSG, "payload", payload)
	registerAttrExtractor(NOTICE, "payload", payload)

	channels := func(e *Event) []string {
		var out []string
		for _, p := range e.Params {
			if IsValidChannel(p) {
				out = append(out, p)
			}
		}
		return out
	}
	registerAttrExtractor(PRIVMSG, "channels", channels)
	registerAttrExtractor(NOTICE, "channels", channels)
	registerAttrExtractor(JOIN, "channels", channels)
	registerAttrExtractor(PART, "channels", channels)

	ctcp := func(e *Event) []string {
		c := DecodeCTCP(e.Copy())
		if c == nil {
			return nil
		}
		return []string{c.Command}
	}
	registerAttrExtractor(PRIVMSG, "ctcp", ctcp)
	registerAttrExtractor(NOTICE, "ctcp", ctcp)

	modes := func(e *Event) []string {
		if e.Command != MODE || len(e.Params) < 2 {
			return nil
		}
		var out []string
		flags := e.Params[1]
		for i := 0; i < len(flags); i++ {
			if flags[i] == '+' || flags[i] == '-' {
				continue
			}
			out = append(out, string(flags[i]))
		}
		return out
	}
	registerAttrExtractor(MODE, "modes", modes)
}
