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

// Package membership provides the k-mer membership structures of
// off-target indexes and their binary file format.
package membership

import (
	"fmt"
	"io"
	"strings"

	"github.com/shenwei356/kmers"
	"github.com/shenwei356/visiogen/visiogen/cmd/util"
	"github.com/willf/bloom"
	"github.com/zeebo/wyhash"
)

// Kind is the kind of membership structure.
type Kind uint8

const (
	// Exact stores sorted k-mer codes and gives no false positives
	// for k <= 32, and hash collisions only for longer k-mers.
	Exact Kind = iota + 1
	// Bloom is a bloom filter with a configured false positive rate.
	Bloom
)

func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Bloom:
		return "bloom"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// ParseKind parses the name of a structure kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "exact":
		return Exact, nil
	case "bloom":
		return Bloom, nil
	}
	return 0, fmt.Errorf("unknown structure: %s, available: exact, bloom", s)
}

// Set is a k-mer membership structure.
// It is filled with Add, sealed with Freeze, and only read afterwards.
type Set interface {
	Add(kmer []byte)
	Freeze()
	Contains(kmer []byte) bool

	// Len returns the number of distinct k-mers of an exact set,
	// or the number of insertions of a bloom filter.
	Len() int

	WriteTo(w io.Writer) (int64, error)
	ReadFrom(r io.Reader) (int64, error)
}

func newSet(kind Kind, k int, n int, fpr float64) (Set, error) {
	switch kind {
	case Exact:
		return newExactSet(k, n), nil
	case Bloom:
		return newBloomSet(n, fpr), nil
	}
	return nil, ErrUnknownStructure
}

// ---------------------------------------------------------------

// hashSeed is the seed of wyhash for k-mers longer than 32 bp.
const hashSeed uint64 = 1

type exactSet struct {
	k     int
	codes []uint64
}

func newExactSet(k int, n int) *exactSet {
	if n < 0 {
		n = 0
	}
	return &exactSet{k: k, codes: make([]uint64, 0, n)}
}

// k-mers up to 32 bp are 2-bit encoded, longer ones are hashed.
func (s *exactSet) code(kmer []byte) (uint64, bool) {
	if s.k <= 32 {
		code, err := kmers.Encode(kmer)
		if err != nil {
			return 0, false
		}
		return code, true
	}
	return wyhash.Hash(kmer, hashSeed), true
}

func (s *exactSet) Add(kmer []byte) {
	if code, ok := s.code(kmer); ok {
		s.codes = append(s.codes, code)
	}
}

func (s *exactSet) Freeze() {
	util.UniqUint64s(&s.codes)
}

func (s *exactSet) Contains(kmer []byte) bool {
	code, ok := s.code(kmer)
	if !ok {
		return false
	}
	return util.SearchUint64s(s.codes, code)
}

func (s *exactSet) Len() int { return len(s.codes) }

func (s *exactSet) WriteTo(w io.Writer) (int64, error) {
	return util.WriteSortedUint64s(w, s.codes)
}

func (s *exactSet) ReadFrom(r io.Reader) (int64, error) {
	codes, n, err := util.ReadSortedUint64s(r)
	if err != nil {
		return n, err
	}
	s.codes = codes
	return n, nil
}

// ---------------------------------------------------------------

type bloomSet struct {
	filter *bloom.BloomFilter
	n      int
}

func newBloomSet(n int, fpr float64) *bloomSet {
	if n < 1 {
		n = 1
	}
	return &bloomSet{filter: bloom.NewWithEstimates(uint(n), fpr)}
}

func (s *bloomSet) Add(kmer []byte) {
	s.filter.Add(kmer)
	s.n++
}

func (s *bloomSet) Freeze() {}

func (s *bloomSet) Contains(kmer []byte) bool { return s.filter.Test(kmer) }

func (s *bloomSet) Len() int { return s.n }

func (s *bloomSet) WriteTo(w io.Writer) (int64, error) {
	return s.filter.WriteTo(w)
}

func (s *bloomSet) ReadFrom(r io.Reader) (int64, error) {
	f := new(bloom.BloomFilter)
	n, err := f.ReadFrom(r)
	if err != nil {
		return n, err
	}
	s.filter = f
	return n, nil
}
