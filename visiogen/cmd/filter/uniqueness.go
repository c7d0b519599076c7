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
	"github.com/rdleal/intervalst/interval"
	"github.com/shenwei356/visiogen/visiogen/cmd/kmer"
	"github.com/shenwei356/visiogen/visiogen/cmd/region"
)

type occurrence struct {
	kmer   string
	region int
}

// Uniqueness rejects k-mers which also occur in the reference outside
// the biological span of their own region.
type Uniqueness struct {
	outside map[occurrence]interface{}
}

func (p *Uniqueness) Name() string { return "reference-uniqueness" }

func (p *Uniqueness) Reason() string { return ReasonOutsideRegion }

func (p *Uniqueness) Check(c *kmer.Candidate) bool {
	_, ok := p.outside[occurrence{kmer: string(c.Canonical), region: c.RegionIdx}]
	return !ok
}

// Outside returns the number of (k-mer, region) pairs found elsewhere.
func (p *Uniqueness) Outside() int { return len(p.outside) }

// NewUniqueness scans every k-mer of the reference sequences, and records
// candidates whose canonical k-mers occur out of the biological span of
// their regions. Regions are located with an interval tree per sequence.
func NewUniqueness(refs []*region.Sequence, regions []*region.Region, cands []*kmer.Candidate) (*Uniqueness, error) {
	p := &Uniqueness{outside: make(map[occurrence]interface{}, 64)}
	if len(cands) == 0 {
		return p, nil
	}
	k := len(cands[0].Seq)

	// canonical k-mer -> indexes of regions
	targets := make(map[string][]int, len(cands))
	var key string
	var list []int
	var ok bool
	for _, c := range cands {
		key = string(c.Canonical)
		list = targets[key]
		if len(list) > 0 && list[len(list)-1] == c.RegionIdx {
			continue
		}
		targets[key] = append(list, c.RegionIdx)
	}

	byIdx := make(map[int]*region.Region, len(regions))
	cmpFn := func(x, y int) int { return x - y }
	trees := make(map[string]*interval.SearchTree[int, int], len(refs))
	var tree *interval.SearchTree[int, int]
	for _, r := range regions {
		byIdx[r.Idx] = r
		if tree, ok = trees[r.SeqID]; !ok {
			tree = interval.NewSearchTree[int, int](cmpFn)
			trees[r.SeqID] = tree
		}
		// 0-based, closed
		if err := tree.Insert(r.Start-1, r.End-1, r.Idx); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, k)
	var canonical []byte
	var hits []int
	var contained map[int]interface{}
	for _, ref := range refs {
		tree = trees[ref.ID]

		s := ref.Seq
		lastBad := -1
		for i := 0; i < k-1 && i < len(s); i++ {
			if !kmer.IsACGTBase(s[i]) {
				lastBad = i
			}
		}
		for o := 0; o+k <= len(s); o++ {
			if !kmer.IsACGTBase(s[o+k-1]) {
				lastBad = o + k - 1
			}
			if lastBad >= o {
				continue
			}

			canonical = kmer.CanonicalInto(buf, s[o:o+k])
			if list, ok = targets[string(canonical)]; !ok {
				continue
			}

			contained = nil
			if tree != nil {
				if hits, ok = tree.AllIntersections(o, o+k-1); ok {
					contained = make(map[int]interface{}, len(hits))
					for _, i := range hits {
						r := byIdx[i]
						if r.Start-1 <= o && o+k <= r.End {
							contained[i] = struct{}{}
						}
					}
				}
			}

			for _, i := range list {
				if _, ok = contained[i]; ok {
					continue
				}
				p.outside[occurrence{kmer: string(canonical), region: i}] = struct{}{}
			}
		}
	}

	return p, nil
}
