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

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/shenwei356/visiogen/visiogen/cmd/errs"
	"github.com/shenwei356/visiogen/visiogen/cmd/kmer"
	"github.com/shenwei356/visiogen/visiogen/cmd/membership"
	"github.com/shenwei356/visiogen/visiogen/cmd/region"
)

// writeIndex saves an exact canonical index of the given k-mers.
func writeIndex(t *testing.T, file string, k int, kmers ...string) {
	list := make([][]byte, len(kmers))
	for i, s := range kmers {
		list[i] = []byte(s)
	}
	idx, err := membership.Build(membership.Exact, k, true, list, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err = idx.Save(file); err != nil {
		t.Fatal(err)
	}
}

func candidatesOf(t *testing.T, id string, idx int, seq string, k int) []*kmer.Candidate {
	r := &region.Region{
		ID:     id,
		Idx:    idx,
		Seq:    []byte(seq),
		Strand: '+',
		Start:  1,
		End:    len(seq),
		BioEnd: len(seq),
	}
	cands, _ := kmer.Generate(r, &kmer.Options{K: k})
	if len(cands) == 0 {
		t.Fatalf("no candidates generated from %s", seq)
	}
	return cands
}

func loadTestIndexes(t *testing.T, dir string, k int) *IndexSet {
	files, err := DiscoverIndexes(dir, true, 2)
	if err != nil {
		t.Fatal(err)
	}
	return LoadIndexes(files, &IndexLoadingOptions{NumCPUs: 2, Dir: dir, K: k})
}

func TestQueryMaxHits(t *testing.T) {
	dir := t.TempDir()
	// ACGTTGCA is in all 6 indexes, CCGGAATT in 2
	for i := 0; i < 6; i++ {
		kmers := []string{"ACGTTGCA", "TTTTTTTT"}
		if i < 2 {
			kmers = append(kmers, "CCGGAATT")
		}
		writeIndex(t, filepath.Join(dir, fmt.Sprintf("idx%d%s", i, membership.IndexFileExt)), 8, kmers...)
	}

	set := loadTestIndexes(t, dir, 8)
	if len(set.Indexes) != 6 || len(set.Failed) != 0 {
		t.Fatalf("expected 6 indexes loaded, returned %d (%d failed)", len(set.Indexes), len(set.Failed))
	}

	cands := append(candidatesOf(t, "a", 0, "ACGTTGCA", 8), candidatesOf(t, "b", 1, "AATTCCGG", 8)...)
	cands = append(cands, candidatesOf(t, "c", 2, "GGGGACCC", 8)...)

	results := set.Query(cands, &QueryOptions{NumCPUs: 2, MaxHits: 5})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, returned %d", len(results))
	}

	a, b, c := results[0], results[1], results[2]
	if a.Candidate != cands[0] || b.Candidate != cands[1] || c.Candidate != cands[2] {
		t.Fatalf("results should follow the order of candidates")
	}
	if a.HitCount != 6 || a.Retained {
		t.Errorf("a: expected 6 hits and discarded, returned %d, %v", a.HitCount, a.Retained)
	}
	// AATTCCGG is the reverse complement of CCGGAATT
	if b.HitCount != 2 || !b.Retained || b.Hits[0] != "idx0" || b.Hits[1] != "idx1" {
		t.Errorf("b: unexpected result: %+v", b)
	}
	if c.HitCount != 0 || !c.Retained {
		t.Errorf("c: unexpected result: %+v", c)
	}
	for _, r := range results {
		if r.Retained != (r.HitCount <= 5) {
			t.Errorf("%s: retained should be hits <= max hits", r.Candidate.ID())
		}
	}
}

func TestQueryShortCircuit(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 8; i++ {
		writeIndex(t, filepath.Join(dir, fmt.Sprintf("idx%d%s", i, membership.IndexFileExt)), 8, "ACGTTGCA")
	}
	set := loadTestIndexes(t, dir, 8)
	cands := candidatesOf(t, "a", 0, "ACGTTGCA", 8)

	r := set.Query(cands, &QueryOptions{NumCPUs: 1, MaxHits: 2})[0]
	if r.HitCount != 3 || !r.Truncated || r.Retained {
		t.Errorf("expected to stop at 3 hits, returned %+v", r)
	}

	r = set.Query(cands, &QueryOptions{NumCPUs: 1, MaxHits: 2, CountAllHits: true})[0]
	if r.HitCount != 8 || r.Truncated || r.Retained {
		t.Errorf("expected all 8 hits, returned %+v", r)
	}
}

func TestQueryManyCandidates(t *testing.T) {
	dir := t.TempDir()
	seq := "ACGATCGGCTAGCTAGGCTAGCATCGACTACGACTAGCATTTAGCGCGCATATCGGCTAGAGGACCCA"
	cands := candidatesOf(t, "r", 0, seq, 10)

	// every third k-mer is an off-target
	var kmers []string
	for i, c := range cands {
		if i%3 == 0 {
			kmers = append(kmers, string(c.Seq))
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0777); err != nil {
		t.Fatal(err)
	}
	writeIndex(t, filepath.Join(dir, "sub", "x"+membership.IndexFileExt), 10, kmers...)

	set := loadTestIndexes(t, dir, 10)
	if len(set.Indexes) != 1 || set.Indexes[0].ID != filepath.Join("sub", "x") {
		t.Fatalf("unexpected indexes: %d", len(set.Indexes))
	}
	for _, threads := range []int{1, 3, 8, 100} {
		results := set.Query(cands, &QueryOptions{NumCPUs: threads, MaxHits: 0})
		for i, r := range results {
			if r.Candidate != cands[i] {
				t.Fatalf("threads %d: results out of order", threads)
			}
			if i%3 == 0 && r.Retained {
				t.Errorf("threads %d: %s should be discarded", threads, r.Candidate.ID())
			}
		}
	}
}

func TestLoadIndexesFailures(t *testing.T) {
	dir := t.TempDir()
	writeIndex(t, filepath.Join(dir, "good"+membership.IndexFileExt), 8, "ACGTTGCA")
	writeIndex(t, filepath.Join(dir, "k7"+membership.IndexFileExt), 7, "ACGTTGC")
	if err := os.WriteFile(filepath.Join(dir, "broken"+membership.IndexFileExt), []byte(".vg-kidx\x00"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	set := loadTestIndexes(t, dir, 8)
	if len(set.Indexes) != 1 || set.Indexes[0].ID != "good" {
		t.Fatalf("only the good index should be loaded")
	}
	if len(set.Failed) != 2 {
		t.Fatalf("expected 2 failures, returned %d", len(set.Failed))
	}
	for _, f := range set.Failed {
		if !errs.Is(f.Err, errs.IndexError) {
			t.Errorf("%s: expected an IndexError, returned %v", f.Path, f.Err)
		}
	}

	results := set.Query(candidatesOf(t, "a", 0, "ACGTTGCA", 8), &QueryOptions{NumCPUs: 1, MaxHits: 0})
	if results[0].HitCount != 1 || results[0].Hits[0] != "good" {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestRetainAll(t *testing.T) {
	cands := candidatesOf(t, "a", 0, "ACGTTGCAAC", 8)
	for _, r := range RetainAll(cands) {
		if !r.Retained || r.HitCount != 0 {
			t.Errorf("all candidates should be retained without hits")
		}
	}
}
