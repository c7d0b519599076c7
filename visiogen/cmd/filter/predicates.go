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

package filter

import (
	"fmt"

	"github.com/shenwei356/visiogen/visiogen/cmd/kmer"
)

// GCContent checks if the GC content in percentage is in [Min, Max].
// With Halves, both halves of the k-mer are checked.
type GCContent struct {
	Min, Max float64
	Halves   bool
}

func (p *GCContent) Name() string {
	if p.Halves {
		return fmt.Sprintf("gc-halves[%v,%v]", p.Min, p.Max)
	}
	return fmt.Sprintf("gc[%v,%v]", p.Min, p.Max)
}

func (p *GCContent) Reason() string { return ReasonGC }

func (p *GCContent) Check(c *kmer.Candidate) bool {
	if !p.Halves {
		return p.in(kmer.GC(c.Seq))
	}
	h := len(c.Seq) >> 1
	return p.in(kmer.GC(c.Seq[:h])) && p.in(kmer.GC(c.Seq[h:]))
}

func (p *GCContent) in(gc float64) bool {
	return gc >= p.Min && gc <= p.Max
}

// CenterBase checks the base at index (k-1)/2.
type CenterBase struct {
	base byte // upper case
}

// NewCenterBase returns a CenterBase predicate, the base is case-insensitive.
func NewCenterBase(b byte) *CenterBase {
	if b >= 'a' && b <= 'z' {
		b -= 32
	}
	return &CenterBase{base: b}
}

func (p *CenterBase) Name() string { return fmt.Sprintf("center-base[%c]", p.base) }

func (p *CenterBase) Reason() string { return ReasonCenterBase }

func (p *CenterBase) Check(c *kmer.Candidate) bool {
	if len(c.Seq) == 0 {
		return false
	}
	b := c.Seq[kmer.CenterIndex(len(c.Seq))]
	if b >= 'a' && b <= 'z' {
		b -= 32
	}
	return b == p.base
}

// Homopolymer rejects k-mers with a run of a single base longer than Max.
type Homopolymer struct {
	Max int
}

func (p *Homopolymer) Name() string { return fmt.Sprintf("homopolymer[%d]", p.Max) }

func (p *Homopolymer) Reason() string { return ReasonHomopolymer }

func (p *Homopolymer) Check(c *kmer.Candidate) bool {
	return kmer.LongestHomopolymer(c.Seq) <= p.Max
}
