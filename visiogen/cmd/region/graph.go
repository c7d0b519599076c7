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
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/visiogen/visiogen/cmd/errs"
	"github.com/shenwei356/xopen"
)

// ErrThresholdOutOfRange means a support threshold is outside [0, 1].
var ErrThresholdOutOfRange = errors.New("threshold out of range [0, 1]")

// Segment is a segment of an assembly graph.
type Segment struct {
	Name string
	Seq  []byte // upper case

	Support    int // SR:i, strain support
	HasSupport bool
	Offset     int    // SO:i, 0-based offset on the origin sequence
	Origin     string // SN:Z, name of the origin sequence
}

// GFA holds the segments of a GFA file in file order.
type GFA struct {
	Segments []*Segment
	Links    int
}

// ReadGFA reads segments and counts links of a GFA file.
// Other record types are ignored.
func ReadGFA(file string) (*GFA, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errs.IO(file, err)
	}
	defer fh.Close()

	g, err := parseGFA(fh)
	if err != nil {
		return nil, errs.Input(file, err)
	}
	return g, nil
}

func parseGFA(r io.Reader) (*GFA, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), 1<<30)

	g := &GFA{Segments: make([]*Segment, 0, 1024)}
	names := make(map[string]interface{}, 1024)
	var line string
	var n int
	var err error
	var ok bool
	var items []string
	for scanner.Scan() {
		n++
		line = strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}

		switch line[0] {
		case 'S':
		case 'L':
			g.Links++
			continue
		default:
			continue
		}

		items = strings.Split(line, "\t")
		if len(items) < 3 {
			return nil, errors.Wrapf(ErrMalformedRecord, "line %d: segment with %d columns", n, len(items))
		}
		if items[2] == "*" {
			return nil, errors.Wrapf(ErrMalformedRecord, "line %d: segment %s has no sequence", n, items[1])
		}
		if _, ok = names[items[1]]; ok {
			return nil, errors.Wrapf(ErrMalformedRecord, "line %d: duplicated segment: %s", n, items[1])
		}
		names[items[1]] = struct{}{}

		s := &Segment{
			Name:   items[1],
			Seq:    []byte(strings.ToUpper(items[2])),
			Origin: items[1],
		}
		for _, tag := range items[3:] {
			switch {
			case strings.HasPrefix(tag, "SR:i:"):
				if s.Support, err = strconv.Atoi(tag[5:]); err != nil || s.Support < 0 {
					return nil, errors.Wrapf(ErrMalformedRecord, "line %d: invalid strain support of segment %s: %s", n, s.Name, tag)
				}
				s.HasSupport = true
			case strings.HasPrefix(tag, "SO:i:"):
				if s.Offset, err = strconv.Atoi(tag[5:]); err != nil || s.Offset < 0 {
					return nil, errors.Wrapf(ErrMalformedRecord, "line %d: invalid offset of segment %s: %s", n, s.Name, tag)
				}
			case strings.HasPrefix(tag, "SN:Z:"):
				s.Origin = tag[5:]
			}
		}

		g.Segments = append(g.Segments, s)
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	return g, nil
}

// Rounding is the rule to turn threshold × max strain into an integer cutoff.
type Rounding uint8

const (
	Ceil Rounding = iota
	Floor
	Round
)

func (r Rounding) String() string {
	switch r {
	case Ceil:
		return "ceil"
	case Floor:
		return "floor"
	case Round:
		return "round"
	}
	return "unknown"
}

// ParseRounding parses a rounding rule name.
func ParseRounding(s string) (Rounding, error) {
	switch strings.ToLower(s) {
	case "ceil":
		return Ceil, nil
	case "floor":
		return Floor, nil
	case "round":
		return Round, nil
	}
	return Ceil, errs.Config("rounding", fmt.Errorf("unknown rounding rule: %s, available: ceil, floor, round", s))
}

const roundingEpsilon = 1e-9

// CheckThreshold returns a ConfigError if t is not in [0, 1].
func CheckThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return errs.Config(fmt.Sprintf("threshold %v", t), ErrThresholdOutOfRange)
	}
	return nil
}

// Cutoff computes the minimum strain support of core segments.
func Cutoff(threshold float64, maxStrain int, rounding Rounding) (int, error) {
	if err := CheckThreshold(threshold); err != nil {
		return 0, err
	}
	x := threshold * float64(maxStrain)
	switch rounding {
	case Floor:
		return int(math.Floor(x + roundingEpsilon)), nil
	case Round:
		return int(math.Round(x)), nil
	default:
		return int(math.Ceil(x - roundingEpsilon)), nil
	}
}

// Selection summarizes the core segment selection.
type Selection struct {
	Threshold float64
	Rounding  Rounding

	Segments  int
	Links     int
	MaxStrain int
	Cutoff    int
	Selected  int
}

// SelectCoreSegments returns segments with support >= cutoff, in file order.
func SelectCoreSegments(g *GFA, threshold float64, rounding Rounding) ([]*Segment, *Selection, error) {
	var maxStrain int
	for _, s := range g.Segments {
		if s.Support > maxStrain {
			maxStrain = s.Support
		}
	}
	cutoff, err := Cutoff(threshold, maxStrain, rounding)
	if err != nil {
		return nil, nil, err
	}

	selected := make([]*Segment, 0, len(g.Segments))
	for _, s := range g.Segments {
		if s.Support >= cutoff {
			selected = append(selected, s)
		}
	}

	return selected, &Selection{
		Threshold: threshold,
		Rounding:  rounding,
		Segments:  len(g.Segments),
		Links:     g.Links,
		MaxStrain: maxStrain,
		Cutoff:    cutoff,
		Selected:  len(selected),
	}, nil
}

// FromSegments converts segments into regions on the forward strand.
func FromSegments(segments []*Segment) []*Region {
	regions := make([]*Region, len(segments))
	for i, s := range segments {
		regions[i] = &Region{
			ID:         s.Name,
			Idx:        i,
			Kind:       Graph,
			Seq:        s.Seq,
			Strand:     '+',
			SeqID:      s.Origin,
			Start:      s.Offset + 1,
			End:        s.Offset + len(s.Seq),
			BioStart:   0,
			BioEnd:     len(s.Seq),
			Support:    s.Support,
			HasSupport: s.HasSupport,
		}
	}
	return regions
}

// GraphSource produces regions of core segments of an assembly graph.
type GraphSource struct {
	File      string
	Threshold float64
	Rounding  Rounding
}

// Kind returns Graph.
func (s *GraphSource) Kind() Kind { return Graph }

// Load reads the graph and selects core segments.
func (s *GraphSource) Load() (*Ingestion, error) {
	if err := CheckThreshold(s.Threshold); err != nil {
		return nil, err
	}

	g, err := ReadGFA(s.File)
	if err != nil {
		return nil, err
	}

	selected, sel, err := SelectCoreSegments(g, s.Threshold, s.Rounding)
	if err != nil {
		return nil, err
	}

	return &Ingestion{
		Kind:      Graph,
		Regions:   FromSegments(selected),
		Selection: sel,
	}, nil
}
