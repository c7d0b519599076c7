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

// Package filter decides which k-mer candidates are acceptable probes.
package filter

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shenwei356/visiogen/visiogen/cmd/errs"
	"github.com/shenwei356/visiogen/visiogen/cmd/kmer"
)

// Reason codes of failed predicates.
const (
	ReasonGC            = "gc_out_of_range"
	ReasonCenterBase    = "center_base_mismatch"
	ReasonHomopolymer   = "homopolymer_run"
	ReasonOutsideRegion = "outside_region"
)

// Predicate is a sequence property a candidate must have.
type Predicate interface {
	// Name is the textual ID of the predicate.
	Name() string

	// Reason is the code recorded when the check fails.
	Reason() string

	// Check returns true if the candidate is acceptable.
	// It must be safe for concurrent use.
	Check(c *kmer.Candidate) bool
}

// Decision is the filter result of a candidate.
type Decision struct {
	Candidate *kmer.Candidate
	Passed    bool
	Reasons   []string
}

// Engine evaluates predicates in order.
type Engine struct {
	predicates []Predicate

	// ShortCircuit stops at the first failed predicate.
	ShortCircuit bool
}

// New returns an engine which stops at the first failure.
func New(predicates ...Predicate) *Engine {
	return &Engine{predicates: predicates, ShortCircuit: true}
}

// Add appends a predicate.
func (e *Engine) Add(p Predicate) { e.predicates = append(e.predicates, p) }

// Predicates returns the installed predicates in evaluation order.
func (e *Engine) Predicates() []Predicate { return e.predicates }

// Decide evaluates all predicates on a candidate.
func (e *Engine) Decide(c *kmer.Candidate) *Decision {
	d := &Decision{Candidate: c, Passed: true}
	for _, p := range e.predicates {
		if p.Check(c) {
			continue
		}
		d.Passed = false
		d.Reasons = append(d.Reasons, p.Reason())
		if e.ShortCircuit {
			break
		}
	}
	return d
}

// Apply decides all candidates, and returns decisions in the input order
// and the candidates that passed.
func (e *Engine) Apply(cands []*kmer.Candidate) ([]*Decision, []*kmer.Candidate) {
	decisions := make([]*Decision, len(cands))
	passed := make([]*kmer.Candidate, 0, len(cands))
	var d *Decision
	for i, c := range cands {
		d = e.Decide(c)
		decisions[i] = d
		if d.Passed {
			passed = append(passed, c)
		}
	}
	return decisions, passed
}

// Options contains the options of sequence composition filters.
type Options struct {
	SkipGC   bool
	MinGC    float64
	MaxGC    float64
	GCHalves bool

	CenterBase byte // 0 for no check

	MaxHomopolymer int // 0 for no check
}

// CheckOptions checks the options.
func CheckOptions(opt *Options) error {
	if !opt.SkipGC {
		if opt.MinGC < 0 || opt.MaxGC > 100 {
			return errs.Config("gc", fmt.Errorf("GC bounds should be in range of [0, 100], given %v-%v", opt.MinGC, opt.MaxGC))
		}
		if opt.MinGC > opt.MaxGC {
			return errs.Config("gc", fmt.Errorf("min GC (%v) should not be greater than max GC (%v)", opt.MinGC, opt.MaxGC))
		}
	}
	if opt.CenterBase != 0 {
		switch opt.CenterBase {
		case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
		default:
			return errs.Config("center base", errors.Errorf("one of A, C, G, T expected, given %c", opt.CenterBase))
		}
	}
	if opt.MaxHomopolymer < 0 {
		return errs.Config("max homopolymer", errors.Errorf("non-negative number expected, given %d", opt.MaxHomopolymer))
	}
	return nil
}

// FromOptions creates an engine with composition predicates in the order:
// GC content, center base, homopolymer.
func FromOptions(opt *Options) (*Engine, error) {
	if err := CheckOptions(opt); err != nil {
		return nil, err
	}

	e := New()
	if !opt.SkipGC {
		e.Add(&GCContent{Min: opt.MinGC, Max: opt.MaxGC, Halves: opt.GCHalves})
	}
	if opt.CenterBase != 0 {
		e.Add(NewCenterBase(opt.CenterBase))
	}
	if opt.MaxHomopolymer > 0 {
		e.Add(&Homopolymer{Max: opt.MaxHomopolymer})
	}
	return e, nil
}

// Counts returns the numbers of passed candidates and failures per reason.
func Counts(decisions []*Decision) (passed int, reasons map[string]int) {
	reasons = make(map[string]int, 4)
	for _, d := range decisions {
		if d.Passed {
			passed++
			continue
		}
		for _, r := range d.Reasons {
			reasons[r]++
		}
	}
	return passed, reasons
}
