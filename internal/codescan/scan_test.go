package codescan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

func names(symbols []domain.Symbol, kind domain.SymbolKind) []string {
	var out []string
	for _, s := range symbols {
		if s.Kind == kind {
			out = append(out, s.Name)
		}
	}
	return out
}

func TestScan_Python(t *testing.T) {
	src := `import os
from typing import List


class Repo:
    """A repository."""

    @property
    def name(self):
        return self._name


async def fetch(url):
    pass
`
	s, ok := For("python")
	require.True(t, ok)

	symbols := s.Scan(src)

	assert.Equal(t, []string{"os", "typing"}, names(symbols, domain.SymbolImport))
	assert.Equal(t, []string{"Repo"}, names(symbols, domain.SymbolClass))
	assert.Equal(t, []string{"name", "fetch"}, names(symbols, domain.SymbolFunction))

	// The decorated method starts at its decorator line.
	for _, sym := range symbols {
		if sym.Name == "name" {
			assert.Equal(t, strings.Index(src, "    @property"), sym.Offset)
		}
	}
}

func TestScan_Go(t *testing.T) {
	src := `package store

import (
	"context"
	sq "database/sql"
)

import "errors"

type Store struct {
	db *sq.DB
}

func (s *Store) Close() error {
	return nil
}

func New() *Store { return nil }
`
	s, ok := For("go")
	require.True(t, ok)

	symbols := s.Scan(src)

	assert.Equal(t, []string{"context", "database/sql", "errors"}, names(symbols, domain.SymbolImport))
	assert.Equal(t, []string{"Store"}, names(symbols, domain.SymbolClass))
	assert.Equal(t, []string{"Close", "New"}, names(symbols, domain.SymbolFunction))
}

func TestScan_JavaScript(t *testing.T) {
	src := `import React, { useState } from 'react';
const lodash = require("lodash");

export function useCounter(initial) {
  const [n, setN] = useState(initial);
}

export const useToggle = (value) => !value;

export default class Widget extends React.Component {}
`
	s, ok := For("javascript")
	require.True(t, ok)

	symbols := s.Scan(src)

	assert.Equal(t, []string{"react", "lodash"}, names(symbols, domain.SymbolImport))
	assert.Equal(t, []string{"useCounter", "useToggle"}, names(symbols, domain.SymbolFunction))
	assert.Equal(t, []string{"Widget"}, names(symbols, domain.SymbolClass))

	ts, ok := For("typescript")
	require.True(t, ok)
	assert.Equal(t, "typescript", ts.Language())
}

func TestScan_Rust(t *testing.T) {
	src := "use std::io;\n\n#[derive(Debug)]\npub struct Config {}\n\nimpl Config {\n    pub fn load() -> Self { todo!() }\n}\n"
	s, _ := For("rust")

	symbols := s.Scan(src)

	assert.Equal(t, []string{"std::io"}, names(symbols, domain.SymbolImport))
	assert.Equal(t, []string{"Config", "Config"}, names(symbols, domain.SymbolClass))
	assert.Equal(t, []string{"load"}, names(symbols, domain.SymbolFunction))
	assert.Equal(t, strings.Index(src, "#[derive"), symbols[1].Offset)
}

func TestScan_CIgnoresControlFlow(t *testing.T) {
	src := "#include <stdio.h>\n\nint main(int argc, char **argv) {\nif (argc) {\n}\nreturn helper(argc);\n}\n"
	s, _ := For("c")

	symbols := s.Scan(src)

	assert.Equal(t, []string{"stdio.h"}, names(symbols, domain.SymbolImport))
	assert.Equal(t, []string{"main"}, names(symbols, domain.SymbolFunction))
}

func TestFor_Unknown(t *testing.T) {
	_, ok := For("markdown")
	assert.False(t, ok)
	assert.False(t, Supports("text"))
	assert.True(t, Supports("csharp"))
}

func TestScan_EmptyText(t *testing.T) {
	s, _ := For("go")
	assert.Empty(t, s.Scan(""))
}

func TestBoundaries(t *testing.T) {
	symbols := []domain.Symbol{
		{Name: "os", Kind: domain.SymbolImport, Offset: 0},
		{Name: "b", Kind: domain.SymbolFunction, Offset: 40},
		{Name: "A", Kind: domain.SymbolClass, Offset: 10},
		{Name: "dup", Kind: domain.SymbolFunction, Offset: 40},
	}

	assert.Equal(t, []int{10, 40}, Boundaries(symbols))
}

func TestWithin(t *testing.T) {
	symbols := []domain.Symbol{
		{Name: "a", Kind: domain.SymbolFunction, Offset: 5},
		{Name: "b", Kind: domain.SymbolFunction, Offset: 15},
		{Name: "b", Kind: domain.SymbolFunction, Offset: 18},
		{Name: "c", Kind: domain.SymbolFunction, Offset: 19},
		{Name: "K", Kind: domain.SymbolClass, Offset: 12},
		{Name: "late", Kind: domain.SymbolFunction, Offset: 20},
	}

	got := Within(symbols, domain.Span{Start: 10, End: 20}, 0)
	assert.Equal(t, []string{"b", "c"}, got[domain.SymbolFunction])
	assert.Equal(t, []string{"K"}, got[domain.SymbolClass])

	capped := Within(symbols, domain.Span{Start: 0, End: 100}, 2)
	assert.Equal(t, []string{"a", "b"}, capped[domain.SymbolFunction])
}
