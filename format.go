// Copyright 2016 Liam Stanley <me@liamstanley.io>. All rights reserved.
// Use of this source code is governed by the MIT license that can be
// found in the LICENSE file.

package girc

import (
	"regexp"
	"strings"
)

type color struct {
	aliases []string
	val     string
}

var colors = []*color{
	{aliases: []string{"white"}, val: "\x0300"},
	{aliases: []string{"black"}, val: "\x0301"},
	{aliases: []string{"blue", "navy"}, val: "\x0302"},
	{aliases: []string{"green"}, val: "\x0303"},
	{aliases: []string{"red"}, val: "\x0304"},
	{aliases: []string{"brown", "maroon"}, val: "\x0305"},
	{aliases: []string{"purple"}, val: "\x0306"},
	{aliases: []string{"orange", "olive", "gold"}, val: "\x0307"},
	{aliases: []string{"yellow"}, val: "\x0308"},
	{aliases: []string{"lightgreen", "lime"}, val: "\x0309"},
	{aliases: []string{"teal"}, val: "\x0310"},
	{aliases: []string{"cyan"}, val: "\x0311"},
	{aliases: []string{"lightblue", "royal"}, val: "\x0312"},
	{aliases: []string{"lightpurple", "pink", "fuchsia"}, val: "\x0313"},
	{aliases: []string{"grey", "gray"}, val: "\x0314"},
	{aliases: []string{"lightgrey", "silver"}, val: "\x0315"},
	{aliases: []string{"bold", "b"}, val: "\x02"},
	{aliases: []string{"italic", "i"}, val: "\x1d"},
	{aliases: []string{"reset", "r"}, val: "\x0f"},
	{aliases: []string{"clear", "c"}, val: "\x03"},
	{aliases: []string{"reverse"}, val: "\x16"},
	{aliases: []string{"underline", "ul"}, val: "\x1f"},
}

// colorCode returns the raw control-code value for a given color/format
// alias (e.g. "red", "b", "ul"), and whether it was found.
func colorCode(name string) (val string, ok bool) {
	if name == "" {
		return "", false
	}

	for i := 0; i < len(colors); i++ {
		for a := 0; a < len(colors[i].aliases); a++ {
			if colors[i].aliases[a] == name {
				return colors[i].val, true
			}
		}
	}

	return "", false
}

// formatTokenRegex matches "{name}" and "{fg,bg}" style format tokens.
var formatTokenRegex = regexp.MustCompile(`\{([a-zA-Z]*)(,([a-zA-Z]*))?\}`)

// Fmt takes color strings like "{red}" and turns them into the resulting
// ASCII color code for IRC. "{fg,bg}" is also supported for combined
// foreground/background color codes. Unknown tokens are left untouched.
func Fmt(text string) string {
	return formatTokenRegex.ReplaceAllStringFunc(text, func(tok string) string {
		m := formatTokenRegex.FindStringSubmatch(tok)
		fg, bg := m[1], m[3]

		if bg != "" {
			if fg == "" {
				// Background-only combos aren't representable in a
				// single mIRC color code; drop them.
				return ""
			}

			fgVal, fgOK := colorCode(fg)
			bgVal, bgOK := colorCode(bg)
			if !fgOK || !bgOK || len(fgVal) < 2 || len(bgVal) < 2 {
				return tok
			}

			return fgVal + "," + bgVal[1:]
		}

		val, ok := colorCode(fg)
		if !ok {
			return tok
		}

		return val
	})
}

// TrimFmt strips all "{color}" formatting tokens from the input text,
// without touching any raw control codes already in the string. See Fmt
// for more information.
func TrimFmt(text string) string {
	return formatTokenRegex.ReplaceAllString(text, "")
}

// rawFormatRegex matches the raw control codes Fmt produces: a color code
// (with an optional one-or-two digit foreground, and an optional
// one-or-two digit background), or one of the single-byte style toggles.
var rawFormatRegex = regexp.MustCompile("\x03(\\d{1,2}(,\\d{1,2})?)?|[\x02\x0f\x16\x1d\x1f]")

// StripRaw tries to strip all raw ASCII formatting/color codes used for
// IRC, as would be produced by Fmt.
func StripRaw(text string) string {
	return rawFormatRegex.ReplaceAllString(text, "")
}

// Glob reports whether subj matches pattern, where pattern may contain
// "*" wildcards matching any run of characters (including none).
func Glob(subj, pattern string) bool {
	if pattern == "" {
		return subj == ""
	}

	if pattern == "*" {
		return true
	}

	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return subj == pattern
	}

	leadingGlob := strings.HasPrefix(pattern, "*")
	trailingGlob := strings.HasSuffix(pattern, "*")
	end := len(parts) - 1

	if !leadingGlob && !strings.HasPrefix(subj, parts[0]) {
		return false
	}

	if !trailingGlob && !strings.HasSuffix(subj, parts[end]) {
		return false
	}

	for i := 1; i < end; i++ {
		idx := strings.Index(subj, parts[i])
		if idx < 0 {
			return false
		}

		subj = subj[idx+len(parts[i]):]
	}

	return true
}
