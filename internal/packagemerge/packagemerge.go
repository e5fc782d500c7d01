// Package packagemerge computes length-limited canonical Huffman code
// lengths via the Larmore-Hirschberg package-merge (coin collector)
// algorithm.
package packagemerge

import (
	"errors"
	"sort"
)

// ErrInvalidMaxLength is returned when maxLength cannot address the number
// of distinct non-zero-frequency symbols (1<<maxLength < count).
var ErrInvalidMaxLength = errors.New("packagemerge: max length too small for alphabet size")

type symFreq struct {
	symbol int
	freq   uint64
}

// coin is one entry in a package-merge level list: either a copy of a
// single symbol's frequency ("pure") or the sum of a packaged pair from
// the level below.
type coin struct {
	weight uint64
	isPkg  bool
}

// Lengths returns, for each symbol, a code length in [0, maxLength] that
// minimizes sum(freq[i]*length[i]) subject to the Kraft inequality.
// Symbols with freq[i] == 0 always get length 0.
func Lengths(freqs []uint32, maxLength int) ([]byte, error) {
	lengths := make([]byte, len(freqs))

	var nonzero []symFreq
	for i, f := range freqs {
		if f > 0 {
			nonzero = append(nonzero, symFreq{symbol: i, freq: uint64(f)})
		}
	}
	nz := len(nonzero)

	if nz == 0 {
		return lengths, nil
	}
	if nz <= 2 {
		for _, s := range nonzero {
			lengths[s.symbol] = 1
		}
		return lengths, nil
	}
	if maxLength < 1 || maxLength > 62 {
		return nil, ErrInvalidMaxLength
	}
	if (uint64(1) << uint(maxLength)) < uint64(nz) {
		return nil, ErrInvalidMaxLength
	}
	if (uint64(1) << uint(maxLength)) == uint64(nz) {
		// A complete binary tree of depth maxLength has exactly this many
		// leaves, so every symbol is forced to length maxLength: any leaf
		// at a shallower depth would block off more than one of the
		// available slots, leaving too few for the rest.
		for _, s := range nonzero {
			lengths[s.symbol] = byte(maxLength)
		}
		return lengths, nil
	}

	sort.SliceStable(nonzero, func(i, j int) bool {
		return nonzero[i].freq < nonzero[j].freq
	})

	pure := make([]uint64, nz)
	for i, s := range nonzero {
		pure[i] = s.freq
	}

	// levelBits[l] holds, for denomination l (l=2..maxLength), whether
	// each position in that level's merged coin list originated from a
	// package (true) or a fresh pure copy (false).
	levelBits := make([][]bool, maxLength+1)

	prev := make([]coin, nz)
	for i, w := range pure {
		prev[i] = coin{weight: w}
	}

	for denom := 1; denom < maxLength; denom++ {
		var packaged []coin
		for i := 0; i+1 < len(prev); i += 2 {
			packaged = append(packaged, coin{weight: prev[i].weight + prev[i+1].weight, isPkg: true})
		}

		cur := make([]coin, 0, nz+len(packaged))
		bitsAtLevel := make([]bool, 0, nz+len(packaged))

		i, j := 0, 0
		for i < nz || j < len(packaged) {
			takePure := j >= len(packaged) || (i < nz && pure[i] <= packaged[j].weight)
			if takePure {
				cur = append(cur, coin{weight: pure[i]})
				bitsAtLevel = append(bitsAtLevel, false)
				i++
			} else {
				cur = append(cur, packaged[j])
				bitsAtLevel = append(bitsAtLevel, true)
				j++
			}
		}

		levelBits[denom+1] = bitsAtLevel
		prev = cur
	}

	// Recovery: walk from the top denomination (maxLength) downward.
	relevant := 2 * (nz - 1)
	for level := maxLength; level >= 2; level-- {
		bitsAtLevel := levelBits[level]
		if relevant > len(bitsAtLevel) {
			relevant = len(bitsAtLevel)
		}

		pureSeen := 0
		packageSeen := 0
		for p := 0; p < relevant; p++ {
			if bitsAtLevel[p] {
				packageSeen++
			} else {
				lengths[nonzero[pureSeen].symbol]++
				pureSeen++
			}
		}
		relevant = 2 * packageSeen
	}

	if relevant > nz {
		relevant = nz
	}
	for p := 0; p < relevant; p++ {
		lengths[nonzero[p].symbol]++
	}

	return lengths, nil
}
