// Package huffman builds canonical prefix codes — both frequency-optimal
// (via the classical merge) and length-limited (via package-merge) — and
// the tree representation used to walk them bit by bit during decode.
package huffman

import (
	"errors"
	"math/bits"
	"sort"

	"github.com/pschultz/pmflate/internal/packagemerge"
)

// ErrBadKraft is returned when a set of code lengths is over-subscribed:
// too many symbols chase too few codes of their length to form a valid
// prefix code (sum of 2^-length exceeds 1).
var ErrBadKraft = errors.New("huffman: code lengths violate the Kraft inequality")

// PrefixCode is a single symbol's code: the low Length bits of Code, to be
// written/read LSB-first. Length == 0 means the symbol does not occur.
type PrefixCode struct {
	Code   uint32
	Length uint8
}

// Table maps a symbol id (its index) to its canonical PrefixCode.
type Table []PrefixCode

// Code returns the PrefixCode for symbol.
func (t Table) Code(symbol int) PrefixCode {
	return t[symbol]
}

// FromLengths builds the canonical table for the given per-symbol code
// lengths, per RFC 1951 §3.2.2: symbols are ordered by (length, symbol),
// assigned consecutive integers starting from 0 for the shortest length,
// and shifted left by one for each step the length increases.
func FromLengths(lengths []byte) (Table, error) {
	t := make(Table, len(lengths))
	for i, l := range lengths {
		t[i].Length = l
	}
	if err := t.Canonicalize(); err != nil {
		return nil, err
	}
	return t, nil
}

// BuildLengthLimited derives a canonical table whose lengths are at most
// maxLength and minimize sum(freq[i]*length[i]), via package-merge.
func BuildLengthLimited(freqs []uint32, maxLength int) (Table, error) {
	lengths, err := packagemerge.Lengths(freqs, maxLength)
	if err != nil {
		return nil, err
	}
	return FromLengths(lengths)
}

// Canonicalize re-derives every symbol's Code from the table's current
// Lengths, per the same rule as FromLengths. Calling it twice in a row
// yields identical codes. It returns ErrBadKraft if the lengths are
// over-subscribed, i.e. do not admit a valid prefix code.
func (t Table) Canonicalize() error {
	type entry struct {
		symbol int
		length byte
	}

	var entries []entry
	for i, c := range t {
		if c.Length > 0 {
			if c.Length > 31 {
				panic("huffman: code length > 31")
			}
			entries = append(entries, entry{i, c.Length})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].length != entries[j].length {
			return entries[i].length < entries[j].length
		}
		return entries[i].symbol < entries[j].symbol
	})

	if len(entries) > 0 {
		maxLength := entries[len(entries)-1].length
		var kraft uint64
		for _, e := range entries {
			kraft += uint64(1) << (maxLength - e.length)
		}
		if kraft > uint64(1)<<maxLength {
			return ErrBadKraft
		}
	}

	var code uint32
	var prevLength byte
	for _, e := range entries {
		if e.length != prevLength {
			code <<= e.length - prevLength
		}
		t[e.symbol] = PrefixCode{
			Code:   bits.Reverse32(code) >> (32 - e.length),
			Length: e.length,
		}
		code++
		prevLength = e.length
	}
	return nil
}
