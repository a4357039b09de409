package model

import (
	"strings"
	"unicode/utf8"
)

// Echo returns every request unchanged, optionally prefixed by the "prefix"
// parameter.
type Echo struct {
	prefix string
}

func (m *Echo) Initialize(params map[string]string) error {
	m.prefix = params["prefix"]
	return nil
}

func (m *Echo) RunInference(requests []string) ([]string, error) {
	out := make([]string, len(requests))
	for i, r := range requests {
		out[i] = m.prefix + r
	}
	return out, nil
}

// Reverse returns every request with its bytes in reverse order. Valid UTF-8
// input is reversed by rune when the "runes" parameter is "true".
type Reverse struct {
	runes bool
}

func (m *Reverse) Initialize(params map[string]string) error {
	m.runes = params["runes"] == "true"
	return nil
}

func (m *Reverse) RunInference(requests []string) ([]string, error) {
	out := make([]string, len(requests))
	for i, r := range requests {
		if m.runes && utf8.ValidString(r) {
			rs := []rune(r)
			for a, b := 0, len(rs)-1; a < b; a, b = a+1, b-1 {
				rs[a], rs[b] = rs[b], rs[a]
			}
			out[i] = string(rs)
			continue
		}
		b := []byte(r)
		for x, y := 0, len(b)-1; x < y; x, y = x+1, y-1 {
			b[x], b[y] = b[y], b[x]
		}
		out[i] = string(b)
	}
	return out, nil
}

// Upper upper-cases every request.
type Upper struct{}

func (Upper) Initialize(map[string]string) error { return nil }

func (Upper) RunInference(requests []string) ([]string, error) {
	out := make([]string, len(requests))
	for i, r := range requests {
		out[i] = strings.ToUpper(r)
	}
	return out, nil
}
