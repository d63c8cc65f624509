// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

// Package vocab rewrites vocabulary URIs into graph property, label and
// relationship-type names. Four strategies are supported: IGNORE keeps only
// the local part of a URI, KEEP uses the URI verbatim, SHORTEN rewrites it
// to prefix__local using a registered prefix table and fails hard when the
// namespace is unregistered, and MAP consults a custom mapping table and
// degrades to IGNORE on a miss. Only SHORTEN can fail.
package vocab

import (
	"fmt"
	"sort"
	"strings"
)

// Strategy selects how vocabulary URIs become graph names.
type Strategy int

// Supported URI handling strategies. The zero value is StrategyIgnore.
const (
	StrategyIgnore Strategy = iota
	StrategyKeep
	StrategyShorten
	StrategyMap
)

// String returns the lowercase config-file spelling of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyIgnore:
		return "ignore"
	case StrategyKeep:
		return "keep"
	case StrategyShorten:
		return "shorten"
	case StrategyMap:
		return "map"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy parses a config-file strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ignore":
		return StrategyIgnore, nil
	case "keep":
		return StrategyKeep, nil
	case "shorten":
		return StrategyShorten, nil
	case "map":
		return StrategyMap, nil
	default:
		return 0, fmt.Errorf("unknown vocab strategy %q (want ignore, keep, shorten, or map)", s)
	}
}

// MultivalStrategy selects how repeated values for one predicate are stored.
type MultivalStrategy int

// Supported multivalue strategies. The zero value is MultivalOverwrite.
const (
	// MultivalOverwrite stores every property single-valued, last write wins.
	MultivalOverwrite MultivalStrategy = iota
	// MultivalArray stores predicates on the allow-list (or all predicates
	// when the list is empty) as deduplicated arrays.
	MultivalArray
)

// String returns the lowercase config-file spelling of the strategy.
func (s MultivalStrategy) String() string {
	switch s {
	case MultivalOverwrite:
		return "overwrite"
	case MultivalArray:
		return "array"
	default:
		return fmt.Sprintf("multival(%d)", int(s))
	}
}

// ParseMultivalStrategy parses a config-file multivalue strategy name.
func ParseMultivalStrategy(s string) (MultivalStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "overwrite":
		return MultivalOverwrite, nil
	case "array":
		return MultivalArray, nil
	default:
		return 0, fmt.Errorf("unknown multival strategy %q (want overwrite or array)", s)
	}
}

// ShortenStrictError reports a URI whose namespace has no registered prefix
// under the SHORTEN strategy. Shortening never falls back to another
// strategy.
type ShortenStrictError struct {
	URI string
}

func (e *ShortenStrictError) Error() string {
	return fmt.Sprintf("vocab: no registered prefix covers %q (shorten strategy is strict)", e.URI)
}

// Config holds the URI strategy, the multivalue strategy, the registered
// prefixes, the custom mappings and the multivalued-predicate allow-list.
// The zero value is usable and means IGNORE + OVERWRITE with empty tables;
// use the Add methods to register entries so duplicates and unknown prefix
// references fail fast.
type Config struct {
	Strategy Strategy
	Multival MultivalStrategy

	prefixes map[string]string
	mappings map[string]string
	multival map[string]struct{}
}

// NewConfig returns an empty Config with the given strategies.
func NewConfig(strategy Strategy, multival MultivalStrategy) *Config {
	return &Config{Strategy: strategy, Multival: multival}
}

// AddPrefix registers prefix as shorthand for a namespace URI. Registering
// the same prefix twice is a configuration error regardless of the value.
func (c *Config) AddPrefix(prefix, namespace string) error {
	if prefix == "" {
		return fmt.Errorf("vocab: empty prefix")
	}
	if namespace == "" {
		return fmt.Errorf("vocab: prefix %q has empty namespace", prefix)
	}
	if _, ok := c.prefixes[prefix]; ok {
		return fmt.Errorf("vocab: prefix %q already registered", prefix)
	}
	if c.prefixes == nil {
		c.prefixes = make(map[string]string)
	}
	c.prefixes[prefix] = namespace
	return nil
}

// AddMapping maps the URI formed by a registered prefix plus a local name to
// a custom graph name. Referencing an unregistered prefix is a configuration
// error.
func (c *Config) AddMapping(prefix, local, name string) error {
	ns, ok := c.prefixes[prefix]
	if !ok {
		return fmt.Errorf("vocab: mapping %s:%s references unknown prefix %q", prefix, local, prefix)
	}
	c.AddMappingURI(ns+local, name)
	return nil
}

// AddMappingURI maps a full URI to a custom graph name.
func (c *Config) AddMappingURI(uri, name string) {
	if c.mappings == nil {
		c.mappings = make(map[string]string)
	}
	c.mappings[uri] = name
}

// AddMultivalPredicate marks the URI formed by a registered prefix plus a
// local name as multivalued. Referencing an unregistered prefix is a
// configuration error.
func (c *Config) AddMultivalPredicate(prefix, local string) error {
	ns, ok := c.prefixes[prefix]
	if !ok {
		return fmt.Errorf("vocab: multival predicate %s:%s references unknown prefix %q", prefix, local, prefix)
	}
	c.AddMultivalPredicateURI(ns + local)
	return nil
}

// AddMultivalPredicateURI marks a full predicate URI as multivalued.
func (c *Config) AddMultivalPredicateURI(uri string) {
	if c.multival == nil {
		c.multival = make(map[string]struct{})
	}
	c.multival[uri] = struct{}{}
}

// IsMultival reports whether values for the given predicate URI accumulate
// into an array. Under OVERWRITE nothing is multivalued. Under ARRAY an
// empty allow-list means every predicate is multivalued; otherwise only
// listed predicates are. Membership is tested against the full predicate
// URI, before any strategy rewriting.
func (c *Config) IsMultival(predicateURI string) bool {
	if c.Multival != MultivalArray {
		return false
	}
	if len(c.multival) == 0 {
		return true
	}
	_, ok := c.multival[predicateURI]
	return ok
}

// ResolveName rewrites a predicate or type URI into a graph name according
// to the configured strategy. Only SHORTEN can fail.
func (c *Config) ResolveName(uri string) (string, error) {
	switch c.Strategy {
	case StrategyKeep:
		return uri, nil
	case StrategyShorten:
		return c.shorten(uri)
	case StrategyMap:
		if name, ok := c.mappings[uri]; ok {
			return name, nil
		}
		return LocalPart(uri), nil
	default:
		return LocalPart(uri), nil
	}
}

// shorten rewrites uri to prefix__local using the registered prefix whose
// namespace is the longest match; ties go to the lexicographically smallest
// prefix so resolution is deterministic.
func (c *Config) shorten(uri string) (string, error) {
	bestPrefix, bestNS := "", ""
	for prefix, ns := range c.prefixes {
		if !strings.HasPrefix(uri, ns) {
			continue
		}
		if len(ns) > len(bestNS) || (len(ns) == len(bestNS) && prefix < bestPrefix) {
			bestPrefix, bestNS = prefix, ns
		}
	}
	if bestNS == "" {
		return "", &ShortenStrictError{URI: uri}
	}
	return bestPrefix + "__" + uri[len(bestNS):], nil
}

// Prefixes returns the registered prefixes in sorted order, for reporting.
func (c *Config) Prefixes() []string {
	out := make([]string, 0, len(c.prefixes))
	for p := range c.prefixes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// LocalPart returns the fragment of a URI after the last '#', else the last
// '/', else the last ':', else the URI itself. This is the IGNORE strategy
// and the MAP fallback.
func LocalPart(uri string) string {
	for _, sep := range []byte{'#', '/', ':'} {
		if idx := strings.LastIndexByte(uri, sep); idx >= 0 {
			return uri[idx+1:]
		}
	}
	return uri
}
