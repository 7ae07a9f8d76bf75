// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package girc

import (
	"reflect"
	"sort"
	"testing"
)

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func TestUserListViewAddAndHas(t *testing.T) {
	v := newUserListView("qaohv")

	v.Add("Dan", "o")
	v.Add("Joe", "")

	if !v.Has("dan") {
		t.Fatal("expected Has to fold case")
	}
	if !v.Has("joe") {
		t.Fatal("expected base-tier user to be tracked")
	}
	if v.Has("nobody") {
		t.Fatal("unexpected user reported as tracked")
	}
}

func TestUserListViewGetLevel(t *testing.T) {
	v := newUserListView("qaohv")
	v.Add("dan", "o")
	v.Add("dan", "v")
	v.Add("joe", "")

	lvl, ok := v.GetLevel("dan")
	if !ok || lvl != "o" {
		t.Fatalf("GetLevel(dan) = (%q, %v), want (\"o\", true)", lvl, ok)
	}

	lvl, ok = v.GetLevel("joe")
	if !ok || lvl != "" {
		t.Fatalf("GetLevel(joe) = (%q, %v), want (\"\", true)", lvl, ok)
	}

	if _, ok := v.GetLevel("ghost"); ok {
		t.Fatal("GetLevel(ghost) should report not-tracked")
	}
}

func TestUserListViewAtOrAbove(t *testing.T) {
	v := newUserListView("qaohv")
	v.Add("owner1", "q")
	v.Add("op1", "o")
	v.Add("voice1", "v")
	v.Add("plain1", "")

	got := sortedStrings(v.AtOrAbove("o"))
	want := []string{"op1", "owner1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("AtOrAbove(o) = %v, want %v", got, want)
	}

	if got := v.AtOrAbove("z"); got != nil {
		t.Fatalf("AtOrAbove of unknown mode = %v, want nil", got)
	}
}

func TestUserListViewOnly(t *testing.T) {
	v := newUserListView("qaohv")
	v.Add("dan", "o")
	v.Add("dan", "v")
	v.Add("joe", "v")
	v.Add("plain", "")

	got := sortedStrings(v.Only("v"))
	want := []string{"joe"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Only(v) = %v, want %v (dan's highest is o, so v shouldn't claim him)", got, want)
	}

	got = sortedStrings(v.Only("o"))
	want = []string{"dan"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Only(o) = %v, want %v", got, want)
	}

	got = sortedStrings(v.Only(""))
	want = []string{"plain"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Only(\"\") = %v, want %v", got, want)
	}
}

func TestUserListViewBelow(t *testing.T) {
	v := newUserListView("qaohv")
	v.Add("op1", "o")
	v.Add("voice1", "v")
	v.Add("plain1", "")

	got := sortedStrings(v.Below("o"))
	want := []string{"plain1", "voice1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Below(o) = %v, want %v", got, want)
	}
}

func TestUserListViewSetModeRevertsToBase(t *testing.T) {
	v := newUserListView("qaohv")
	v.Add("dan", "o")

	v.SetMode("dan", "o", false)

	lvl, ok := v.GetLevel("dan")
	if !ok || lvl != "" {
		t.Fatalf("after de-op, GetLevel(dan) = (%q, %v), want (\"\", true)", lvl, ok)
	}

	v.SetMode("dan", "v", true)
	lvl, ok = v.GetLevel("dan")
	if !ok || lvl != "v" {
		t.Fatalf("after +v, GetLevel(dan) = (%q, %v), want (\"v\", true)", lvl, ok)
	}
}

func TestUserListViewRename(t *testing.T) {
	v := newUserListView("qaohv")
	v.Add("dan", "o")
	v.Add("dan", "")

	v.Rename("dan", "daniel")

	if v.Has("dan") {
		t.Fatal("old nick still tracked after Rename")
	}
	lvl, ok := v.GetLevel("daniel")
	if !ok || lvl != "o" {
		t.Fatalf("GetLevel(daniel) = (%q, %v), want (\"o\", true)", lvl, ok)
	}
}

func TestUserListViewRemove(t *testing.T) {
	v := newUserListView("qaohv")
	v.Add("dan", "o")
	v.Add("dan", "v")

	v.Remove("dan")

	if v.Has("dan") {
		t.Fatal("user still tracked after Remove")
	}
	if _, ok := v.GetLevel("dan"); ok {
		t.Fatal("GetLevel should report not-tracked after Remove")
	}
}

func TestUserListViewFriendlyTiers(t *testing.T) {
	v := newUserListView("ohv")
	v.Add("owner1", "o")
	v.Add("voice1", "v")

	if got := v.Owners(); got != nil {
		t.Fatalf("Owners() on a network without \"q\" = %v, want nil", got)
	}
	if got := v.Admins(); got != nil {
		t.Fatalf("Admins() on a network without \"a\" = %v, want nil", got)
	}
	if got := v.HalfOps(); got != nil {
		t.Fatalf("HalfOps() on a network without \"h\" = %v, want nil", got)
	}

	got := sortedStrings(v.Ops())
	want := []string{"owner1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Ops() = %v, want %v", got, want)
	}

	got = sortedStrings(v.Voiced())
	want = []string{"owner1", "voice1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Voiced() = %v, want %v", got, want)
	}
}

func TestUserListViewUsersAndLen(t *testing.T) {
	v := newUserListView("qaohv")
	v.Add("dan", "o")
	v.Add("joe", "")
	v.Add("dan", "v")

	if n := v.Len(); n != 2 {
		t.Fatalf("Len() = %d, want 2", n)
	}

	got := sortedStrings(v.Users())
	want := []string{"dan", "joe"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Users() = %v, want %v", got, want)
	}
}

func TestUserListViewCopyIsIndependent(t *testing.T) {
	v := newUserListView("qaohv")
	v.Add("dan", "o")

	cp := v.copy()
	v.Add("joe", "v")

	if cp.Has("joe") {
		t.Fatal("copy should not observe additions made to the original after copying")
	}
	if !cp.Has("dan") {
		t.Fatal("copy should retain members present at copy time")
	}
}
