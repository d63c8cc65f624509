// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package graph

import (
	"sort"
	"strings"
)

// baseLabel is carried by every node so the uniqueness constraint on the
// uri property has a single anchor label.
const baseLabel = "Resource"

// labelKeySep joins sorted labels into a composer group key. The unit
// separator cannot appear in names produced by any sane vocabulary.
const labelKeySep = "\x1f"

// escapeBacktick escapes a name for embedding between backticks in Cypher.
// Labels, property names and relationship types are caller-controlled (the
// KEEP strategy passes whole URIs through), so every identifier is quoted.
func escapeBacktick(name string) string {
	return strings.ReplaceAll(name, "`", "``")
}

// quoteName wraps a name in backticks, escaped.
func quoteName(name string) string {
	return "`" + escapeBacktick(name) + "`"
}

// labelSetKey returns the grouping key for a set of labels: the sorted
// labels joined, or the base label as sentinel when there are none.
func labelSetKey(labels []string) string {
	if len(labels) == 0 {
		return baseLabel
	}
	return strings.Join(sortedCopy(labels), labelKeySep)
}

// sortedCopy returns a sorted copy, leaving the input alone.
func sortedCopy(ss []string) []string {
	out := make([]string, len(ss))
	copy(out, ss)
	sort.Strings(out)
	return out
}

// appendUnique appends name if the slice does not already contain it,
// preserving first-seen order.
func appendUnique(list []string, name string) []string {
	for _, have := range list {
		if have == name {
			return list
		}
	}
	return append(list, name)
}

// containsValue reports whether a deduplicated value list already holds v.
// Converted scalars are comparable types (string, int64, float64, bool,
// time.Time, dbtype.Date), so interface equality is the set membership test.
func containsValue(values []any, v any) bool {
	for _, have := range values {
		if have == v {
			return true
		}
	}
	return false
}
