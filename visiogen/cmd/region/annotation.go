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
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/visiogen/visiogen/cmd/errs"
	"github.com/shenwei356/xopen"
)

// ErrUnknownGene means a requested gene is absent from the annotation.
var ErrUnknownGene = errors.New("unknown gene")

// ErrMissingSequence means the annotation refers to a sequence absent from the reference.
var ErrMissingSequence = errors.New("sequence not found in the reference")

// ErrMalformedRecord means a line of an annotation or graph file can not be parsed.
var ErrMalformedRecord = errors.New("malformed record")

// Feature is one record of a GFF3 file.
type Feature struct {
	SeqID  string
	Source string
	Type   string
	Start  int // 1-based
	End    int // 1-based, inclusive
	Strand byte

	Attributes map[string]string

	Line int
}

// Name returns the most descriptive name of the feature.
func (f *Feature) Name() string {
	for _, key := range geneKeys {
		if v, ok := f.Attributes[key]; ok {
			return v
		}
	}
	return fmt.Sprintf("%s:%d-%d", f.SeqID, f.Start, f.End)
}

// attributes used to match gene identifiers, in order of priority.
var geneKeys = []string{"Name", "gene", "ID"}

// ReadGFF3 reads all features of a GFF3 file, plain or compressed.
// The embedded FASTA section, if any, is ignored.
func ReadGFF3(file string) ([]*Feature, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errs.IO(file, err)
	}
	defer fh.Close()

	features, err := parseGFF3(fh)
	if err != nil {
		return nil, errs.Input(file, err)
	}
	return features, nil
}

func parseGFF3(r io.Reader) ([]*Feature, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 1<<30)

	features := make([]*Feature, 0, 1024)
	items := make([]string, 9)
	var line string
	var n int
	var err error
	for scanner.Scan() {
		n++
		line = strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		if line[0] == '#' {
			if strings.HasPrefix(line, "##FASTA") {
				break
			}
			continue
		}
		if line[0] == '>' { // FASTA section without the directive
			break
		}

		stringSplitNByByte(line, '\t', 9, &items)
		if len(items) < 9 {
			return nil, errors.Wrapf(ErrMalformedRecord, "line %d: 9 columns expected, %d given", n, len(items))
		}

		f := &Feature{
			SeqID:  items[0],
			Source: items[1],
			Type:   items[2],
			Line:   n,
		}
		if f.Start, err = strconv.Atoi(items[3]); err != nil || f.Start < 1 {
			return nil, errors.Wrapf(ErrMalformedRecord, "line %d: invalid start: %s", n, items[3])
		}
		if f.End, err = strconv.Atoi(items[4]); err != nil || f.End < f.Start {
			return nil, errors.Wrapf(ErrMalformedRecord, "line %d: invalid end: %s", n, items[4])
		}
		switch items[6] {
		case "+", ".", "?":
			f.Strand = '+'
		case "-":
			f.Strand = '-'
		default:
			return nil, errors.Wrapf(ErrMalformedRecord, "line %d: invalid strand: %s", n, items[6])
		}
		f.Attributes = parseAttributes(items[8])

		features = append(features, f)
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	return features, nil
}

func parseAttributes(s string) map[string]string {
	m := make(map[string]string, 8)
	if s == "." {
		return m
	}
	var k, v string
	var i int
	var err error
	for _, kv := range strings.Split(s, ";") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		i = strings.IndexByte(kv, '=')
		if i < 0 {
			continue
		}
		k = kv[:i]
		v = kv[i+1:]
		if strings.IndexByte(v, '%') >= 0 {
			if v, err = url.PathUnescape(v); err != nil {
				v = kv[i+1:]
			}
		}
		m[k] = v
	}
	return m
}

// FindGenes maps every requested gene to a feature. A gene matches the
// first feature whose Name, gene or ID attribute equals it, with Name
// preferred. All unknown genes are reported together.
func FindGenes(features []*Feature, genes []string) ([]*Feature, error) {
	index := make([]map[string]*Feature, len(geneKeys))
	for i := range index {
		index[i] = make(map[string]*Feature, len(features))
	}
	var v string
	var ok bool
	for _, f := range features {
		for i, key := range geneKeys {
			if v, ok = f.Attributes[key]; !ok {
				continue
			}
			if _, ok = index[i][v]; !ok {
				index[i][v] = f
			}
		}
	}

	found := make([]*Feature, 0, len(genes))
	var unknown []string
	var f *Feature
	for _, gene := range genes {
		f = nil
		for _, m := range index {
			if f, ok = m[gene]; ok {
				break
			}
		}
		if f == nil {
			unknown = append(unknown, gene)
			continue
		}
		found = append(found, f)
	}
	if len(unknown) > 0 {
		return nil, errs.Input(strings.Join(unknown, ", "), ErrUnknownGene)
	}
	return found, nil
}

// Sequence is a reference sequence.
type Sequence struct {
	ID  string
	Seq []byte // upper case
}

// ReadReference reads all sequences of a FASTA/Q file.
func ReadReference(file string) ([]*Sequence, error) {
	fastxReader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, errs.IO(file, err)
	}
	defer fastxReader.Close()

	seqs := make([]*Sequence, 0, 8)
	var record *fastx.Record
	for {
		record, err = fastxReader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errs.Input(file, err)
		}
		seqs = append(seqs, &Sequence{
			ID:  string(record.ID),
			Seq: bytes.ToUpper(record.Seq.Seq),
		})
	}
	if len(seqs) == 0 {
		return nil, errs.Input(file, errors.New("no sequences found"))
	}
	return seqs, nil
}

// FromAnnotation slices the regions of the given features out of the reference.
// With flank > 0, flanking bases are kept on both sides, clipped to the sequence.
func FromAnnotation(refs []*Sequence, features []*Feature, flank int) ([]*Region, error) {
	m := make(map[string]*Sequence, len(refs))
	for _, s := range refs {
		m[s.ID] = s
	}
	if flank < 0 {
		flank = 0
	}

	regions := make([]*Region, 0, len(features))
	var ref *Sequence
	var ok bool
	var lo, hi int
	for i, f := range features {
		if len(refs) == 1 {
			ref = refs[0]
		} else if ref, ok = m[f.SeqID]; !ok {
			return nil, errs.Input(f.Name(), errors.Wrap(ErrMissingSequence, f.SeqID))
		}
		if f.End > len(ref.Seq) {
			return nil, errs.Input(f.Name(),
				fmt.Errorf("end position %d exceeds the length of sequence %s (%d)", f.End, ref.ID, len(ref.Seq)))
		}

		lo = f.Start - 1 - flank
		if lo < 0 {
			lo = 0
		}
		hi = f.End + flank
		if hi > len(ref.Seq) {
			hi = len(ref.Seq)
		}

		s := make([]byte, hi-lo)
		copy(s, ref.Seq[lo:hi])

		r := &Region{
			ID:       f.Name(),
			Idx:      i,
			Kind:     Annotation,
			Seq:      s,
			Strand:   f.Strand,
			SeqID:    ref.ID,
			Start:    f.Start,
			End:      f.End,
			BioStart: f.Start - 1 - lo,
			BioEnd:   f.End - lo,
		}

		if f.Strand == '-' {
			_s, err := seq.NewSeqWithoutValidation(seq.DNAredundant, s)
			if err != nil {
				return nil, errs.Input(f.Name(), err)
			}
			_s.RevComInplace()
			r.Seq = _s.Seq
			r.BioStart, r.BioEnd = hi-f.End, hi-f.Start+1
		}

		regions = append(regions, r)
	}
	return regions, nil
}

// AnnotationSource produces regions of requested genes on a reference.
type AnnotationSource struct {
	Reference  string
	Annotation string
	Genes      []string
	Flank      int
}

// Kind returns Annotation.
func (s *AnnotationSource) Kind() Kind { return Annotation }

// Load reads the annotation and the reference, and slices the gene regions.
func (s *AnnotationSource) Load() (*Ingestion, error) {
	if len(s.Genes) == 0 {
		return nil, errs.Config("genes", errors.New("no gene given"))
	}

	features, err := ReadGFF3(s.Annotation)
	if err != nil {
		return nil, err
	}
	found, err := FindGenes(features, s.Genes)
	if err != nil {
		return nil, err
	}

	refs, err := ReadReference(s.Reference)
	if err != nil {
		return nil, err
	}

	regions, err := FromAnnotation(refs, found, s.Flank)
	if err != nil {
		return nil, err
	}

	return &Ingestion{
		Kind:      Annotation,
		Regions:   regions,
		Reference: refs,
		Features:  len(features),
	}, nil
}

// ReadGeneList reads gene identifiers, one per line, from the first
// tab-delimited column. Empty lines and lines starting with '#' are skipped.
func ReadGeneList(file string) ([]string, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errs.IO(file, err)
	}
	defer fh.Close()

	genes := make([]string, 0, 64)
	scanner := bufio.NewScanner(fh)
	var line string
	var i int
	for scanner.Scan() {
		line = strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if i = strings.IndexByte(line, '\t'); i >= 0 {
			line = line[:i]
		}
		genes = append(genes, line)
	}
	if err = scanner.Err(); err != nil {
		return nil, errs.IO(file, err)
	}
	return genes, nil
}

// stringSplitNByByte splits a string by a byte, and stores the result into a given slice.
func stringSplitNByByte(s string, sep byte, n int, a *[]string) {
	if n < 1 {
		return
	}
	*a = (*a)[:0]
	n--
	for n > 0 {
		m := strings.IndexByte(s, sep)
		if m < 0 {
			break
		}
		*a = append(*a, s[:m])
		s = s[m+1:]
		n--
	}
	*a = append(*a, s)
}
