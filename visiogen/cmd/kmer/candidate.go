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

package kmer

import (
	"strconv"

	"github.com/shenwei356/visiogen/visiogen/cmd/region"
)

// Candidate is a k-mer of a candidate region.
type Candidate struct {
	Seq       []byte // shares the underlying array with the region sequence
	Canonical []byte
	Strand    byte

	Region    *region.Region
	RegionIdx int
	Offset    int // 0-based offset in the region sequence

	id string
}

// ID returns "<region>:<1-based offset>".
func (c *Candidate) ID() string {
	if c.id == "" {
		c.id = c.Region.ID + ":" + strconv.Itoa(c.Offset+1)
	}
	return c.id
}

// OriginSpan returns the 1-based coordinates of the candidate on the origin sequence.
func (c *Candidate) OriginSpan() (start, end int) {
	return c.Region.OriginSpan(c.Offset, len(c.Seq))
}

// Options contains the options of candidate generation.
type Options struct {
	K             int
	AllowOutside  bool // allow windows outside of the biological region, i.e., in flanks
	KeepAmbiguous bool // keep windows with bases other than A, C, G, T
}

// Stats counts windows of candidate generation.
type Stats struct {
	Regions      int
	ShortRegions int // regions shorter than k
	Windows      int
	Outside      int
	Ambiguous    int
	Generated    int
}

// Add adds up another Stats.
func (s *Stats) Add(o Stats) {
	s.Regions += o.Regions
	s.ShortRegions += o.ShortRegions
	s.Windows += o.Windows
	s.Outside += o.Outside
	s.Ambiguous += o.Ambiguous
	s.Generated += o.Generated
}

// Generate slides a window of size k over the region sequence.
// Windows leaving the biological region are skipped unless AllowOutside,
// windows with non-ACGT bases are skipped unless KeepAmbiguous.
func Generate(r *region.Region, opt *Options) ([]*Candidate, Stats) {
	k := opt.K
	stats := Stats{Regions: 1}
	if k <= 0 || len(r.Seq) < k {
		stats.ShortRegions++
		return nil, stats
	}

	n := len(r.Seq) - k + 1
	cands := make([]*Candidate, 0, n)

	// index of the last non-ACGT base
	lastBad := -1
	for i := 0; i < k-1; i++ {
		if !isACGT[r.Seq[i]] {
			lastBad = i
		}
	}

	var w []byte
	var e int
	for o := 0; o < n; o++ {
		e = o + k
		if !isACGT[r.Seq[e-1]] {
			lastBad = e - 1
		}
		stats.Windows++

		if !opt.AllowOutside && (o < r.BioStart || e > r.BioEnd) {
			stats.Outside++
			continue
		}
		if !opt.KeepAmbiguous && lastBad >= o {
			stats.Ambiguous++
			continue
		}

		w = r.Seq[o:e:e]
		cands = append(cands, &Candidate{
			Seq:       w,
			Canonical: Canonical(w),
			Strand:    r.Strand,
			Region:    r,
			RegionIdx: r.Idx,
			Offset:    o,
		})
	}
	stats.Generated = len(cands)

	return cands, stats
}

// GenerateAll generates candidates of all regions, in the order of regions.
func GenerateAll(regions []*region.Region, opt *Options) ([]*Candidate, Stats) {
	var stats Stats
	cands := make([]*Candidate, 0, 1024)
	for _, r := range regions {
		c, s := Generate(r, opt)
		cands = append(cands, c...)
		stats.Add(s)
	}
	return cands, stats
}
