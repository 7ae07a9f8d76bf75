// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package girc

import "testing"

func TestIsValidChannelMode(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"b,k,l,imnpst", true},
		{"", false},
		{"b,k,l,imn12st", false},
		{"BKLimnpst", true},
	}

	for _, tt := range tests {
		if got := isValidChannelMode(tt.in); got != tt.want {
			t.Errorf("isValidChannelMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsValidUserPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"(ov)@+", true},
		{"(qaohv)~&@%+", true},
		{"ov)@+", false},
		{"(ov)@", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := isValidUserPrefix(tt.in); got != tt.want {
			t.Errorf("isValidUserPrefix(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParsePrefixes(t *testing.T) {
	modes, prefixes := parsePrefixes("(qaohv)~&@%+")
	if modes != "qaohv" {
		t.Errorf("modes = %q, want %q", modes, "qaohv")
	}
	if prefixes != "~&@%+" {
		t.Errorf("prefixes = %q, want %q", prefixes, "~&@%+")
	}
}

func TestParsePrefixesInvalid(t *testing.T) {
	modes, prefixes := parsePrefixes("invalid")
	if modes != "" || prefixes != "" {
		t.Errorf("parsePrefixes(invalid) = %q, %q, want empty", modes, prefixes)
	}
}

func TestPrefixToMode(t *testing.T) {
	tests := []struct {
		symbol     byte
		wantLetter string
		wantOK     bool
	}{
		{'@', ModeOperator, true},
		{'+', ModeVoice, true},
		{'~', ModeOwner, true},
		{'&', ModeAdmin, true},
		{'%', ModeHalfOperator, true},
		{'!', "", false},
	}

	for _, tt := range tests {
		letter, ok := prefixToMode(tt.symbol)
		if letter != tt.wantLetter || ok != tt.wantOK {
			t.Errorf("prefixToMode(%q) = %q, %v, want %q, %v", tt.symbol, letter, ok, tt.wantLetter, tt.wantOK)
		}
	}
}

func TestParseUserPrefix(t *testing.T) {
	modes, nick, ok := parseUserPrefix("@+nick")
	if !ok {
		t.Fatal("parseUserPrefix() ok = false")
	}
	if modes != "@+" {
		t.Errorf("modes = %q, want %q", modes, "@+")
	}
	if nick != "nick" {
		t.Errorf("nick = %q, want %q", nick, "nick")
	}
}

func TestParseUserPrefixNoPrefix(t *testing.T) {
	modes, nick, ok := parseUserPrefix("nick")
	if !ok {
		t.Fatal("parseUserPrefix() ok = false")
	}
	if modes != "" {
		t.Errorf("modes = %q, want empty", modes)
	}
	if nick != "nick" {
		t.Errorf("nick = %q, want %q", nick, "nick")
	}
}

func TestParseUserPrefixInvalidNick(t *testing.T) {
	_, _, ok := parseUserPrefix("@+!invalid")
	if ok {
		t.Error("parseUserPrefix() with invalid nick returned ok = true")
	}
}

func TestCModesParseAndApply(t *testing.T) {
	cm := newCModes("b,k,l,imnpst", "(ov)@+")

	modes := cm.parse("+mk-l", []string{"secret"})
	if len(modes) != 3 {
		t.Fatalf("parse() returned %d modes, want 3", len(modes))
	}

	if modes[0].name != 'm' || !modes[0].add || !modes[0].setting {
		t.Errorf("modes[0] = %+v, want add +m setting", modes[0])
	}
	if modes[1].name != 'k' || !modes[1].add || modes[1].args != "secret" {
		t.Errorf("modes[1] = %+v, want add +k with arg secret", modes[1])
	}
	if modes[2].name != 'l' || modes[2].add {
		t.Errorf("modes[2] = %+v, want remove -l", modes[2])
	}

	cm.apply(modes)

	if got := cm.String(); got != "+mk secret" {
		t.Errorf("String() = %q, want %q", got, "+mk secret")
	}
}

func TestCModesApplyRemovesMode(t *testing.T) {
	cm := newCModes("b,k,l,imnpst", "(ov)@+")
	cm.apply(cm.parse("+m", nil))

	if got := cm.String(); got != "+m" {
		t.Fatalf("String() after +m = %q, want %q", got, "+m")
	}

	cm.apply(cm.parse("-m", nil))

	if got := cm.String(); got != "" {
		t.Errorf("String() after -m = %q, want empty", got)
	}
}

func TestCModesCopyIsIndependent(t *testing.T) {
	cm := newCModes("b,k,l,imnpst", "(ov)@+")
	cm.apply(cm.parse("+m", nil))

	cp := cm.Copy()
	cp.apply(cp.parse("+n", nil))

	if cm.String() == cp.String() {
		t.Error("Copy() shares underlying modes slice with the original")
	}
}

func TestNewCModesPadsShortChanmodes(t *testing.T) {
	cm := newCModes("b,k", "(ov)@+")

	if cm.modesListArgs != "b" || cm.modesArgs != "k" || cm.modesSetArgs != "" || cm.modesNoArgs != "" {
		t.Errorf("newCModes() with short CHANMODES did not pad empty groups: %+v", cm)
	}
}
