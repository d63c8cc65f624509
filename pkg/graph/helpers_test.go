// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package graph

import (
	"strings"
	"testing"
)

func TestEscapeBacktick(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Person", "Person"},
		{"", ""},
		{"with`tick", "with``tick"},
		{"``", "````"},
		{"http://example.org/name", "http://example.org/name"},
	}
	for _, tt := range tests {
		if got := escapeBacktick(tt.in); got != tt.want {
			t.Errorf("escapeBacktick(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuoteName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"name", "`name`"},
		{"odd`name", "`odd``name`"},
	}
	for _, tt := range tests {
		if got := quoteName(tt.in); got != tt.want {
			t.Errorf("quoteName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLabelSetKey(t *testing.T) {
	tests := []struct {
		labels []string
		want   string
	}{
		{nil, "Resource"},
		{[]string{}, "Resource"},
		{[]string{"Person"}, "Person"},
		{[]string{"Person", "Agent"}, "Agent" + labelKeySep + "Person"},
		{[]string{"Agent", "Person"}, "Agent" + labelKeySep + "Person"},
	}
	for _, tt := range tests {
		if got := labelSetKey(tt.labels); got != tt.want {
			t.Errorf("labelSetKey(%v) = %q, want %q", tt.labels, got, tt.want)
		}
	}
}

func TestLabelSetKeyLeavesInputAlone(t *testing.T) {
	labels := []string{"Zebra", "Agent"}
	labelSetKey(labels)
	if labels[0] != "Zebra" || labels[1] != "Agent" {
		t.Errorf("labelSetKey reordered its input: %v", labels)
	}
}

func TestAppendUnique(t *testing.T) {
	got := appendUnique(nil, "a")
	got = appendUnique(got, "b")
	got = appendUnique(got, "a")
	got = appendUnique(got, "c")
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("appendUnique order = %v, want [a b c]", got)
	}
}

func TestContainsValue(t *testing.T) {
	values := []any{int64(1), "two", 3.0, true}
	tests := []struct {
		v    any
		want bool
	}{
		{int64(1), true},
		{"two", true},
		{3.0, true},
		{true, true},
		{int64(2), false},
		{"1", false},
		{1, false},
	}
	for _, tt := range tests {
		if got := containsValue(values, tt.v); got != tt.want {
			t.Errorf("containsValue(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}
