// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package bindgen

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// namer turns reflected names into Go identifiers. A Caser is stateful,
// so each Reflect call owns its namer.
type namer struct {
	title cases.Caser
}

func newNamer() *namer {
	return &namer{title: cases.Title(language.Und, cases.NoLower)}
}

// exported converts names like "tex_sampler" or "light.color" into
// "TexSampler" and "LightColor". It returns "" when name has no letters
// or digits.
func (n *namer) exported(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(n.title.String(p))
	}
	out := sb.String()
	if r, _ := utf8.DecodeRuneInString(out); unicode.IsDigit(r) {
		out = "X" + out
	}
	return out
}

// unexported lower-cases the first rune of an exported identifier.
func unexported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 {
		return name
	}
	return string(unicode.ToLower(r)) + name[size:]
}

// uniqueNames hands out identifiers, suffixing repeats with a counter.
type uniqueNames map[string]int

func (u uniqueNames) take(name string) string {
	n := u[name]
	u[name] = n + 1
	if n == 0 {
		return name
	}
	return name + strconv.Itoa(n+1)
}

// TypeName returns the Go type name Reflect generates for a shader, or ""
// when the name has nothing to build an identifier from.
func TypeName(shader string) string {
	return newNamer().exported(shader)
}
