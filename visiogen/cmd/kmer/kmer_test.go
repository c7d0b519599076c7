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
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/shenwei356/visiogen/visiogen/cmd/region"
)

func TestRevComp(t *testing.T) {
	tests := [][2]string{
		{"ACGT", "ACGT"},
		{"AAAA", "TTTT"},
		{"ATGC", "GCAT"},
		{"acgN", "Ncgt"},
		{"RYKM", "KMRY"},
		{"", ""},
	}
	for _, test := range tests {
		if s := string(RevComp([]byte(test[0]))); s != test[1] {
			t.Errorf("revcomp of %s: expected %s, returned %s", test[0], test[1], s)
		}
	}
}

func TestCanonicalSymmetry(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	bases := []byte("ACGT")
	buf := make([]byte, 0, 64)
	for i := 0; i < 10000; i++ {
		s := make([]byte, 1+r.Intn(64))
		for j := range s {
			s[j] = bases[r.Intn(4)]
		}
		rc := RevComp(s)
		c1, c2 := Canonical(s), Canonical(rc)
		if !bytes.Equal(c1, c2) {
			t.Fatalf("canonical(%s)=%s != canonical(%s)=%s", s, c1, rc, c2)
		}
		if bytes.Compare(c1, s) > 0 || bytes.Compare(c1, rc) > 0 {
			t.Fatalf("canonical(%s)=%s is not the smaller one", s, c1)
		}
		if !bytes.Equal(CanonicalInto(buf, rc), c1) {
			t.Fatalf("CanonicalInto differs from Canonical: %s", s)
		}
	}
}

func TestComposition(t *testing.T) {
	if gc := GC([]byte("ATGC")); gc != 50 {
		t.Errorf("gc of ATGC: %f", gc)
	}
	if gc := GC([]byte("GGGA")); gc != 75 {
		t.Errorf("gc of GGGA: %f", gc)
	}
	if n := LongestHomopolymer([]byte("ACCCGTTTTA")); n != 4 {
		t.Errorf("longest homopolymer: expected 4, returned %d", n)
	}
	for _, c := range []struct {
		seq        string
		complexity float64
	}{
		{"AAAA", 0},
		{"ACGT", 0.75},
		{"ACCCGTTTTA", 0.6},
		{"", 0},
	} {
		if x := Complexity([]byte(c.seq)); math.Abs(x-c.complexity) > 1e-9 {
			t.Errorf("complexity of %s: expected %f, returned %f", c.seq, c.complexity, x)
		}
	}
	if CenterIndex(50) != 24 || CenterIndex(51) != 25 || CenterIndex(4) != 1 {
		t.Errorf("unexpected center index")
	}
	if !IsACGT([]byte("ACGT")) || IsACGT([]byte("ACGN")) || IsACGT([]byte("acgt")) {
		t.Errorf("unexpected IsACGT")
	}
}

func newRegion(seq string) *region.Region {
	return &region.Region{
		ID:       "r",
		Seq:      []byte(seq),
		Strand:   '+',
		SeqID:    "chr",
		Start:    1,
		End:      len(seq),
		BioStart: 0,
		BioEnd:   len(seq),
	}
}

func TestGenerateSingle(t *testing.T) {
	cands, stats := Generate(newRegion("ATGC"), &Options{K: 4})
	if len(cands) != 1 || stats.Generated != 1 {
		t.Fatalf("expected one candidate, returned %d", len(cands))
	}
	c := cands[0]
	if string(c.Seq) != "ATGC" || string(c.Canonical) != "ATGC" {
		t.Errorf("unexpected candidate: %s/%s", c.Seq, c.Canonical)
	}
	if c.ID() != "r:1" || c.Offset != 0 {
		t.Errorf("unexpected id: %s", c.ID())
	}
	if s, e := c.OriginSpan(); s != 1 || e != 4 {
		t.Errorf("unexpected span: %d-%d", s, e)
	}
}

func TestGenerateLength(t *testing.T) {
	r := newRegion("ACGTTGCAAGGCTTANCGATCGGA")
	for k := 1; k <= len(r.Seq)+1; k++ {
		cands, stats := Generate(r, &Options{K: k, KeepAmbiguous: true})
		if k > len(r.Seq) {
			if len(cands) != 0 || stats.ShortRegions != 1 {
				t.Errorf("k=%d: region shorter than k should give nothing", k)
			}
			continue
		}
		if len(cands) != len(r.Seq)-k+1 {
			t.Errorf("k=%d: expected %d candidates, returned %d", k, len(r.Seq)-k+1, len(cands))
		}
		for _, c := range cands {
			if len(c.Seq) != k || len(c.Canonical) != k {
				t.Errorf("k=%d: candidate %s of length %d", k, c.ID(), len(c.Seq))
			}
			if c.Offset < 0 || c.Offset > len(r.Seq)-k {
				t.Errorf("k=%d: offset out of range: %d", k, c.Offset)
			}
		}
	}
}

func TestGenerateAmbiguous(t *testing.T) {
	r := newRegion("ACGTNACGTA")
	cands, stats := Generate(r, &Options{K: 4})
	// windows without N: 0 (ACGT), 5 (ACGT), 6 (CGTA)
	if len(cands) != 3 || stats.Ambiguous != 4 {
		t.Fatalf("expected 3 candidates and 4 ambiguous windows, returned %d, %d", len(cands), stats.Ambiguous)
	}
	if cands[0].Offset != 0 || cands[1].Offset != 5 || cands[2].Offset != 6 {
		t.Errorf("unexpected offsets")
	}
}

func TestGenerateOutside(t *testing.T) {
	// 3 bases of flanks on both sides
	r := newRegion("TTTACGTACGGGG")
	r.BioStart, r.BioEnd = 3, 10

	cands, stats := Generate(r, &Options{K: 4})
	if stats.Windows != 10 || stats.Outside != 6 || len(cands) != 4 {
		t.Fatalf("windows: %d, outside: %d, candidates: %d", stats.Windows, stats.Outside, len(cands))
	}
	for _, c := range cands {
		if c.Offset < r.BioStart || c.Offset+4 > r.BioEnd {
			t.Errorf("window outside the region generated: %s", c.ID())
		}
	}

	cands, stats = Generate(r, &Options{K: 4, AllowOutside: true})
	if len(cands) != 10 || stats.Outside != 0 {
		t.Errorf("all windows should be kept with AllowOutside, returned %d", len(cands))
	}
}

func TestGenerateAll(t *testing.T) {
	regions := []*region.Region{newRegion("ACGTAC"), newRegion("AC"), newRegion("GGGCC")}
	for i, r := range regions {
		r.Idx = i
	}
	cands, stats := GenerateAll(regions, &Options{K: 3})
	if stats.Regions != 3 || stats.ShortRegions != 1 || len(cands) != 4+3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if cands[4].RegionIdx != 2 {
		t.Errorf("candidates should follow the order of regions")
	}
}
