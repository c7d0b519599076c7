// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package kmer enumerates k-mer candidates from candidate regions.
package kmer

var complement [256]byte

var isACGT [256]bool

func init() {
	for i := range complement {
		complement[i] = 'N'
	}
	pairs := []string{"AT", "CG", "RY", "KM", "BV", "DH", "SS", "WW", "NN", "--", ".."}
	for _, p := range pairs {
		a, b := p[0], p[1]
		complement[a], complement[b] = b, a
		if a >= 'A' && a <= 'Z' {
			complement[a+32], complement[b+32] = b+32, a+32
		}
	}
	complement['U'], complement['u'] = 'A', 'a'

	for _, b := range []byte("ACGT") {
		isACGT[b] = true
	}
}

// RevComp returns the reverse complement of s in a new slice.
func RevComp(s []byte) []byte {
	return RevCompInto(make([]byte, len(s)), s)
}

// RevCompInto writes the reverse complement of s into dst, which is
// resized to len(s) and returned.
func RevCompInto(dst, s []byte) []byte {
	if cap(dst) < len(s) {
		dst = make([]byte, len(s))
	}
	dst = dst[:len(s)]
	n := len(s) - 1
	for i, b := range s {
		dst[n-i] = complement[b]
	}
	return dst
}

// IsCanonical tells whether s is not larger than its reverse complement.
func IsCanonical(s []byte) bool {
	n := len(s) - 1
	var c byte
	for i := 0; i <= n; i++ {
		c = complement[s[n-i]]
		if s[i] < c {
			return true
		}
		if s[i] > c {
			return false
		}
	}
	return true
}

// Canonical returns the lexicographically smaller one of s and its
// reverse complement. s itself is returned if it is canonical.
func Canonical(s []byte) []byte {
	if IsCanonical(s) {
		return s
	}
	return RevComp(s)
}

// CanonicalInto is like Canonical but writes the reverse complement into buf.
func CanonicalInto(buf, s []byte) []byte {
	if IsCanonical(s) {
		return s
	}
	return RevCompInto(buf, s)
}

// IsACGTBase tells whether b is one of upper-case A, C, G, T.
func IsACGTBase(b byte) bool { return isACGT[b] }

// IsACGT tells whether s contains only upper-case A, C, G, T.
func IsACGT(s []byte) bool {
	for _, b := range s {
		if !isACGT[b] {
			return false
		}
	}
	return true
}

// GC returns the GC content of s in percentage.
func GC(s []byte) float64 {
	if len(s) == 0 {
		return 0
	}
	var n int
	for _, b := range s {
		switch b {
		case 'G', 'C', 'g', 'c', 'S', 's':
			n++
		}
	}
	return float64(n) * 100 / float64(len(s))
}

// LongestHomopolymer returns the length of the longest run of a single base.
func LongestHomopolymer(s []byte) int {
	if len(s) == 0 {
		return 0
	}
	max, run := 1, 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run > max {
				max = run
			}
		} else {
			run = 1
		}
	}
	return max
}

// Complexity scores a sequence by its longest homopolymer, from 0 for a single
// run to 1-1/len for no repeated adjacent bases.
func Complexity(s []byte) float64 {
	if len(s) == 0 {
		return 0
	}
	return 1 - float64(LongestHomopolymer(s))/float64(len(s))
}

// CenterIndex is the index of the center base of a k-mer.
func CenterIndex(k int) int {
	return (k - 1) >> 1
}
