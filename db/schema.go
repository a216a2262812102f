// Package db carries the relational schema for documents, invoices and line items.
package db

import (
	_ "embed"
	"strings"
)

//go:embed postgres.sql
var postgresDDL string

//go:embed sqlite.sql
var sqliteDDL string

// Statements returns the DDL for dialect ("postgres" or "sqlite"), one
// statement per element. Full-line "--" comments are dropped before the
// source is split on ";".
func Statements(dialect string) []string {
	src := postgresDDL
	if dialect == "sqlite" {
		src = sqliteDDL
	}
	var out []string
	for _, stmt := range strings.Split(stripComments(src), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stripComments(src string) string {
	lines := strings.Split(src, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
