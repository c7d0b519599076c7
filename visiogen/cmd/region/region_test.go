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

package region

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/shenwei356/visiogen/visiogen/cmd/errs"
)

const gfaText = `H	VN:Z:1.0
S	s1	ACGTACGTAC	SR:i:4	SO:i:0	SN:Z:chr1
S	s2	ggccaattgg	SR:i:3	SO:i:10
S	s3	TTTTAAAACC	SR:i:1
S	s4	CCCCGGGGAA
L	s1	+	s2	+	0M
L	s2	+	s3	+	0M
L	s2	+	s4	+	0M
P	p1	s1+,s2+	*
`

func writeFile(t *testing.T, name, text string) string {
	file := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(file, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
	return file
}

func TestReadGFA(t *testing.T) {
	g, err := ReadGFA(writeFile(t, "test.gfa", gfaText))
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Segments) != 4 {
		t.Fatalf("segments: expected 4, returned %d", len(g.Segments))
	}
	if g.Links != 3 {
		t.Errorf("links: expected 3, returned %d", g.Links)
	}

	s := g.Segments[1]
	if string(s.Seq) != "GGCCAATTGG" {
		t.Errorf("sequence not upper-cased: %s", s.Seq)
	}
	if s.Support != 3 || !s.HasSupport || s.Offset != 10 || s.Origin != "s2" {
		t.Errorf("unexpected tags: %+v", s)
	}
	if g.Segments[0].Origin != "chr1" {
		t.Errorf("origin: expected chr1, returned %s", g.Segments[0].Origin)
	}
	if g.Segments[3].HasSupport || g.Segments[3].Support != 0 {
		t.Errorf("missing SR tag should give support 0")
	}
}

func TestReadGFAMissingSequence(t *testing.T) {
	_, err := ReadGFA(writeFile(t, "bad.gfa", "S\ts1\t*\tSR:i:2\n"))
	if !errs.Is(err, errs.InputError) {
		t.Errorf("expected an InputError, returned %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "s1") {
		t.Errorf("error should name the segment: %v", err)
	}
}

func TestCutoff(t *testing.T) {
	tests := []struct {
		threshold float64
		max       int
		rounding  Rounding
		cutoff    int
	}{
		{0.95, 4, Ceil, 4},
		{0.95, 4, Floor, 3},
		{0.95, 4, Round, 4},
		{0.3, 10, Ceil, 3},
		{0.3, 10, Floor, 3},
		{0.5, 5, Round, 3},
		{0, 7, Ceil, 0},
		{1, 7, Ceil, 7},
		{0.5, 0, Ceil, 0},
	}
	for _, test := range tests {
		c, err := Cutoff(test.threshold, test.max, test.rounding)
		if err != nil {
			t.Error(err)
			continue
		}
		if c != test.cutoff {
			t.Errorf("cutoff(%v x %d, %s): expected %d, returned %d",
				test.threshold, test.max, test.rounding, test.cutoff, c)
		}
	}
}

func TestThresholdOutOfRange(t *testing.T) {
	for _, threshold := range []float64{-0.1, 1.01, 2} {
		_, err := Cutoff(threshold, 4, Ceil)
		if !errs.Is(err, errs.ConfigError) || !errors.Is(err, ErrThresholdOutOfRange) {
			t.Errorf("threshold %v: expected ConfigError, returned %v", threshold, err)
		}
	}

	// validated before reading the file
	src := &GraphSource{File: "not-existed.gfa", Threshold: 1.5}
	_, err := src.Load()
	if !errs.Is(err, errs.ConfigError) {
		t.Errorf("expected ConfigError, returned %v", err)
	}
}

func TestSelectCoreSegments(t *testing.T) {
	src := &GraphSource{File: writeFile(t, "test.gfa", gfaText), Threshold: 0.95}
	ing, err := src.Load()
	if err != nil {
		t.Fatal(err)
	}

	sel := ing.Selection
	if sel.MaxStrain != 4 || sel.Cutoff != 4 {
		t.Errorf("max strain: %d, cutoff: %d", sel.MaxStrain, sel.Cutoff)
	}
	if len(ing.Regions) != 1 || ing.Regions[0].ID != "s1" {
		t.Fatalf("only s1 should be selected, returned %d regions", len(ing.Regions))
	}
	r := ing.Regions[0]
	if !r.HasSupport || r.Support != 4 || r.Kind != Graph || r.Strand != '+' {
		t.Errorf("unexpected region: %+v", r)
	}
	if r.Start != 1 || r.End != 10 || r.SeqID != "chr1" {
		t.Errorf("unexpected coordinates: %s", r)
	}
}

func TestSelectionMonotonicity(t *testing.T) {
	g, err := ReadGFA(writeFile(t, "test.gfa", gfaText))
	if err != nil {
		t.Fatal(err)
	}

	for _, rounding := range []Rounding{Ceil, Floor, Round} {
		pre := len(g.Segments) + 1
		for i := 0; i <= 100; i++ {
			selected, sel, err := SelectCoreSegments(g, float64(i)/100, rounding)
			if err != nil {
				t.Fatal(err)
			}
			if len(selected) > pre {
				t.Errorf("%s: threshold %.2f selected %d > %d", rounding, float64(i)/100, len(selected), pre)
			}
			for _, s := range selected {
				if s.Support < sel.Cutoff {
					t.Errorf("segment %s with support %d < cutoff %d", s.Name, s.Support, sel.Cutoff)
				}
			}
			pre = len(selected)
		}
	}
}

const gffText = `##gff-version 3
chr1	test	gene	3	8	.	+	.	ID=gene-a;Name=geneA
chr1	test	CDS	3	8	.	+	0	ID=cds-a;Parent=gene-a;gene=geneA
chr1	test	gene	11	16	.	-	.	ID=gene-b;gene=geneB
chr2	test	gene	1	4	.	?	.	ID=gene-c;Name=gene%3BC
##FASTA
>chr1
AAAAAA
`

const refText = `>chr1 test
AAGGCCAATTCCCGTTTTAA
>chr2
acgtacgt
`

func TestReadGFF3(t *testing.T) {
	features, err := ReadGFF3(writeFile(t, "test.gff3", gffText))
	if err != nil {
		t.Fatal(err)
	}
	if len(features) != 4 {
		t.Fatalf("features: expected 4, returned %d", len(features))
	}
	if features[2].Strand != '-' || features[3].Strand != '+' {
		t.Errorf("unexpected strands")
	}
	if features[3].Name() != "gene;C" {
		t.Errorf("attribute not unescaped: %s", features[3].Name())
	}

	_, err = ReadGFF3(writeFile(t, "bad.gff3", "chr1\ttest\tgene\t8\t3\t.\t+\t.\tID=x\n"))
	if !errs.Is(err, errs.InputError) || !strings.Contains(err.Error(), "line 1") {
		t.Errorf("expected an InputError with line number, returned %v", err)
	}
}

func TestFindGenes(t *testing.T) {
	features, err := ReadGFF3(writeFile(t, "test.gff3", gffText))
	if err != nil {
		t.Fatal(err)
	}

	found, err := FindGenes(features, []string{"geneA", "geneB", "gene-c"})
	if err != nil {
		t.Fatal(err)
	}
	if found[0].Type != "gene" { // Name is preferred over gene
		t.Errorf("geneA should match the gene record, returned %s", found[0].Type)
	}
	if found[1].Start != 11 || found[2].SeqID != "chr2" {
		t.Errorf("unexpected matches")
	}

	_, err = FindGenes(features, []string{"geneA", "geneX", "geneY"})
	if !errors.Is(err, ErrUnknownGene) || !errs.Is(err, errs.InputError) {
		t.Errorf("expected unknown gene error, returned %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "geneX, geneY") {
		t.Errorf("error should name all unknown genes: %v", err)
	}
}

func TestAnnotationSource(t *testing.T) {
	src := &AnnotationSource{
		Reference:  writeFile(t, "ref.fa", refText),
		Annotation: writeFile(t, "test.gff3", gffText),
		Genes:      []string{"geneB", "geneA"},
	}
	ing, err := src.Load()
	if err != nil {
		t.Fatal(err)
	}
	if ing.Features != 4 || len(ing.Reference) != 2 || len(ing.Regions) != 2 {
		t.Fatalf("unexpected ingestion: %d features, %d sequences, %d regions",
			ing.Features, len(ing.Reference), len(ing.Regions))
	}

	// ingestion order follows the requested genes
	b, a := ing.Regions[0], ing.Regions[1]
	if b.ID != "geneB" || b.Idx != 0 || a.Idx != 1 {
		t.Errorf("unexpected order: %s, %s", b.ID, a.ID)
	}
	if string(a.Seq) != "GGCCAA" || a.BioStart != 0 || a.BioEnd != 6 {
		t.Errorf("geneA: unexpected region: %s %s", a, a.Seq)
	}
	// chr1[10:16] = CCCGTT, reverse complement: AACGGG
	if string(b.Seq) != "AACGGG" || b.Strand != '-' {
		t.Errorf("geneB: unexpected region: %s %s", b, b.Seq)
	}
}

func TestAnnotationFlank(t *testing.T) {
	refs := []*Sequence{{ID: "chr1", Seq: []byte("AAGGCCAATTCCCGTTTTAA")}}
	features := []*Feature{
		{SeqID: "chr1", Start: 3, End: 8, Strand: '+', Attributes: map[string]string{"Name": "a"}},
		{SeqID: "chr1", Start: 11, End: 16, Strand: '-', Attributes: map[string]string{"Name": "b"}},
	}
	regions, err := FromAnnotation(refs, features, 4)
	if err != nil {
		t.Fatal(err)
	}

	a := regions[0] // [0, 12), left flank clipped to 2
	if string(a.Seq) != "AAGGCCAATTCC" || a.BioStart != 2 || a.BioEnd != 8 {
		t.Errorf("a: unexpected region: %s %s [%d, %d)", a, a.Seq, a.BioStart, a.BioEnd)
	}
	if s, e := a.OriginSpan(a.BioStart, 6); s != 3 || e != 8 {
		t.Errorf("a: origin span: %d-%d", s, e)
	}

	b := regions[1] // [6, 20), reverse complemented
	if string(b.Seq) != "TTAAAACGGGAATT" || b.BioStart != 4 || b.BioEnd != 10 {
		t.Errorf("b: unexpected region: %s %s [%d, %d)", b, b.Seq, b.BioStart, b.BioEnd)
	}
	if string(b.Seq[b.BioStart:b.BioEnd]) != "AACGGG" {
		t.Errorf("b: unexpected biological sequence: %s", b.Seq[b.BioStart:b.BioEnd])
	}
	if s, e := b.OriginSpan(b.BioStart, 6); s != 11 || e != 16 {
		t.Errorf("b: origin span: %d-%d", s, e)
	}
	if s, e := b.OriginSpan(0, 2); s != 19 || e != 20 {
		t.Errorf("b: origin span of the flank: %d-%d", s, e)
	}

	features[1].End = 30
	_, err = FromAnnotation(refs, features, 0)
	if !errs.Is(err, errs.InputError) {
		t.Errorf("expected an InputError, returned %v", err)
	}
}

func TestReadGeneList(t *testing.T) {
	genes, err := ReadGeneList(writeFile(t, "genes.txt", "# genes\ngeneA\tx\n\n geneB \n"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(genes, ",") != "geneA,geneB" {
		t.Errorf("unexpected genes: %v", genes)
	}
}
