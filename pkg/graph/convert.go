// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package graph

import (
	"strconv"
	"time"

	"github.com/knakk/rdf"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

const xsdNS = "http://www.w3.org/2001/XMLSchema#"

// dateTimeLocal accepts xsd:dateTime values without a zone offset, which
// RFC 3339 rejects.
const dateTimeLocal = "2006-01-02T15:04:05"

// xsdIntegerTypes covers the whole XSD integer hierarchy. All of them map
// to int64 on the wire.
var xsdIntegerTypes = map[string]bool{
	xsdNS + "integer":            true,
	xsdNS + "int":                true,
	xsdNS + "long":               true,
	xsdNS + "short":              true,
	xsdNS + "byte":               true,
	xsdNS + "nonNegativeInteger": true,
	xsdNS + "nonPositiveInteger": true,
	xsdNS + "negativeInteger":    true,
	xsdNS + "positiveInteger":    true,
	xsdNS + "unsignedLong":       true,
	xsdNS + "unsignedInt":        true,
	xsdNS + "unsignedShort":      true,
	xsdNS + "unsignedByte":       true,
}

var xsdFloatTypes = map[string]bool{
	xsdNS + "float":   true,
	xsdNS + "double":  true,
	xsdNS + "decimal": true,
}

// convertLiteral maps an RDF literal to the value stored on the node.
// Typed literals convert according to their datatype; a lexical form that
// does not parse falls back to the raw string rather than failing the
// triple. Language-tagged literals stay strings, tag dropped. Plain
// literals get numeric inference so "30" round-trips as an integer.
func convertLiteral(lit rdf.Literal) any {
	lex := lit.String()
	if lit.Lang() != "" {
		return lex
	}
	dt := lit.DataType.String()
	switch {
	case dt == "" || dt == xsdNS+"string":
		return inferScalar(lex)
	case xsdIntegerTypes[dt]:
		if n, err := strconv.ParseInt(lex, 10, 64); err == nil {
			return n
		}
		return lex
	case xsdFloatTypes[dt]:
		if f, err := strconv.ParseFloat(lex, 64); err == nil {
			return f
		}
		return lex
	case dt == xsdNS+"boolean":
		switch lex {
		case "true", "1":
			return true
		case "false", "0":
			return false
		}
		return lex
	case dt == xsdNS+"dateTime":
		if t, err := time.Parse(time.RFC3339, lex); err == nil {
			return t
		}
		if t, err := time.Parse(dateTimeLocal, lex); err == nil {
			return t
		}
		return lex
	case dt == xsdNS+"date":
		if t, err := time.Parse("2006-01-02", lex); err == nil {
			return dbtype.Date(t)
		}
		return lex
	default:
		// Unrecognized datatypes keep their lexical form with no inference.
		return lex
	}
}

// inferScalar applies numeric inference to an untyped lexical form.
func inferScalar(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
