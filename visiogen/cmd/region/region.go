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

// Package region turns annotation records or graph segments into
// candidate regions, the common input of k-mer generation.
package region

import (
	"fmt"
)

// Kind is the input modality a region comes from.
type Kind uint8

const (
	// Annotation regions are genes sliced from a reference sequence.
	Annotation Kind = iota + 1
	// Graph regions are segments of an assembly graph.
	Graph
)

func (k Kind) String() string {
	switch k {
	case Annotation:
		return "annotation"
	case Graph:
		return "graph"
	}
	return "unknown"
}

// Region is a candidate region. It is immutable once created.
type Region struct {
	ID   string
	Idx  int // ordinal in ingestion order
	Kind Kind

	// Seq is upper-cased, and already reverse-complemented for the negative strand.
	Seq    []byte
	Strand byte // '+' or '-'

	SeqID      string // sequence on the origin
	Start, End int    // 1-based, inclusive, coordinates of the biological region on the origin

	// [BioStart, BioEnd) is the biological region inside Seq.
	// It covers the whole Seq unless flanking bases were added.
	BioStart, BioEnd int

	Support    int // strain support, graph mode only
	HasSupport bool
}

func (r *Region) String() string {
	return fmt.Sprintf("%s (%s:%d-%d:%c, %d bp)", r.ID, r.SeqID, r.Start, r.End, r.Strand, len(r.Seq))
}

// OriginSpan returns the 1-based inclusive coordinates on the origin
// of the window [offset, offset+k) of Seq.
func (r *Region) OriginSpan(offset, k int) (start, end int) {
	if r.Strand == '-' {
		end = r.End + r.BioStart - offset
		return end - k + 1, end
	}
	start = r.Start - r.BioStart + offset
	return start, start + k - 1
}

// Source produces candidate regions from one input modality.
// AnnotationSource and GraphSource are the two implementations.
type Source interface {
	Kind() Kind
	Load() (*Ingestion, error)
}

// Ingestion is the result of loading a Source.
type Ingestion struct {
	Kind    Kind
	Regions []*Region

	// annotation mode
	Reference []*Sequence
	Features  int

	// graph mode
	Selection *Selection
}
