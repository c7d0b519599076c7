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

package membership

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shenwei356/visiogen/visiogen/cmd/errs"
	"github.com/shenwei356/visiogen/visiogen/cmd/kmer"
)

var be = binary.BigEndian

// Magic number for checking file format
var Magic = [8]byte{'.', 'v', 'g', '-', 'k', 'i', 'd', 'x'}

// IndexFileExt is the file extension of off-target index files.
var IndexFileExt = ".vgi"

// MainVersion is use for checking compatibility
var MainVersion uint8 = 0

// MinorVersion is less important
var MinorVersion uint8 = 1

// DefaultFPR is the default false positive rate of bloom filters.
const DefaultFPR = 0.001

// ErrInvalidFileFormat means invalid file format.
var ErrInvalidFileFormat = errors.New("off-target index: invalid binary format")

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("off-target index: broken file")

// ErrVersionMismatch means version mismatch between files and program
var ErrVersionMismatch = errors.New("off-target index: version mismatch")

// ErrKOverflow means K < 1 or K > 65535.
var ErrKOverflow = errors.New("off-target index: k-mer size [1, 65535] overflow")

// ErrUnknownStructure means the structure kind is not supported.
var ErrUnknownStructure = errors.New("off-target index: unknown structure")

// ErrInvalidFPR means the false positive rate is not in (0, 1).
var ErrInvalidFPR = errors.New("off-target index: false positive rate should be in range of (0, 1)")

// Index is a k-mer membership index of one sequence file.
// Inserting is not thread safe, while an Index can be queried
// concurrently once finished.
//
// Header (32 bytes):
//
//	Magic number, 8 bytes, ".vg-kidx".
//	Main and minor versions, 2 bytes.
//	Structure kind, 1 byte.
//	Canonical flag, 1 byte.
//	K size, 2 bytes.
//	Blank, 2 bytes.
//	Number of k-mers, 8 bytes.
//	False positive rate, 8 bytes, IEEE 754 bits, 0 for exact sets.
//
// Structure data:
//
//	exact: number of codes (8 bytes) + group varint encoded deltas of sorted codes.
//	bloom: serialized bloom filter.
type Index struct {
	Kind      Kind
	K         int
	Canonical bool
	FPR       float64
	NumKmers  uint64

	set Set
	buf []byte
}

// NewIndex creates an empty index. n is the estimated number of k-mers,
// used for allocating memory and sizing bloom filters.
func NewIndex(kind Kind, k int, canonical bool, n int, fpr float64) (*Index, error) {
	if k < 1 || k > math.MaxUint16 {
		return nil, ErrKOverflow
	}
	if kind == Exact {
		fpr = 0
	} else if fpr <= 0 || fpr >= 1 {
		return nil, ErrInvalidFPR
	}
	set, err := newSet(kind, k, n, fpr)
	if err != nil {
		return nil, err
	}
	return &Index{
		Kind:      kind,
		K:         k,
		Canonical: canonical,
		FPR:       fpr,
		set:       set,
		buf:       make([]byte, k),
	}, nil
}

// Build creates an index from a list of k-mers of the same size.
// K-mers are canonicalized when canonical is true.
func Build(kind Kind, k int, canonical bool, kmers [][]byte, fpr float64) (*Index, error) {
	idx, err := NewIndex(kind, k, canonical, len(kmers), fpr)
	if err != nil {
		return nil, err
	}
	for _, s := range kmers {
		if len(s) != k {
			return nil, errors.Errorf("off-target index: k-mer %s of length %d, expected %d", s, len(s), k)
		}
		idx.Insert(s)
	}
	idx.Finish()
	return idx, nil
}

// Insert adds a k-mer. Only call it before Finish.
func (idx *Index) Insert(s []byte) {
	if idx.Canonical {
		s = kmer.CanonicalInto(idx.buf, s)
	}
	idx.set.Add(s)
}

// InsertSeq adds all k-mers consisting of A, C, G, T only of an
// upper-case sequence, and returns the number of inserted k-mers.
func (idx *Index) InsertSeq(s []byte) int {
	k := idx.K
	if len(s) < k {
		return 0
	}
	if cap(idx.buf) < k {
		idx.buf = make([]byte, k)
	}

	var n int
	lastBad := -1
	for i := 0; i < k-1; i++ {
		if !kmer.IsACGTBase(s[i]) {
			lastBad = i
		}
	}
	var e int
	for o := 0; o+k <= len(s); o++ {
		e = o + k
		if !kmer.IsACGTBase(s[e-1]) {
			lastBad = e - 1
		}
		if lastBad >= o {
			continue
		}
		idx.Insert(s[o:e])
		n++
	}
	return n
}

// Finish seals the index. It must be called before querying or saving.
func (idx *Index) Finish() {
	idx.set.Freeze()
	idx.NumKmers = uint64(idx.set.Len())
	idx.buf = nil
}

// Contains tells whether a k-mer is present. For a non-canonical index,
// both the k-mer and its reverse complement are checked.
// K-mers with bases other than A, C, G, T are never present.
// It's safe for concurrent use.
func (idx *Index) Contains(s []byte) bool {
	if len(s) != idx.K || !kmer.IsACGT(s) {
		return false
	}
	if idx.Canonical {
		return idx.set.Contains(kmer.Canonical(s))
	}
	return idx.set.Contains(s) || idx.set.Contains(kmer.RevComp(s))
}

// WriteTo writes the index to a writer.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	var N int64
	buf := make([]byte, 32)
	copy(buf[:8], Magic[:])
	buf[8] = MainVersion
	buf[9] = MinorVersion
	buf[10] = uint8(idx.Kind)
	if idx.Canonical {
		buf[11] = 1
	}
	be.PutUint16(buf[12:14], uint16(idx.K))
	be.PutUint64(buf[16:24], idx.NumKmers)
	be.PutUint64(buf[24:32], math.Float64bits(idx.FPR))

	n, err := w.Write(buf)
	N += int64(n)
	if err != nil {
		return N, err
	}

	m, err := idx.set.WriteTo(w)
	N += m
	return N, err
}

// ReadFrom reads an index from a reader.
func (idx *Index) ReadFrom(r io.Reader) (int64, error) {
	var N int64
	buf := make([]byte, 32)

	// check the magic number
	n, err := io.ReadFull(r, buf[:8])
	N += int64(n)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return N, ErrBrokenFile
		}
		return N, err
	}
	if !bytes.Equal(buf[:8], Magic[:]) {
		return N, ErrInvalidFileFormat
	}

	n, err = io.ReadFull(r, buf[8:])
	N += int64(n)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return N, ErrBrokenFile
		}
		return N, err
	}
	// check compatibility
	if MainVersion != buf[8] {
		return N, ErrVersionMismatch
	}
	kind := Kind(buf[10])
	canonical := buf[11] > 0
	k := int(be.Uint16(buf[12:14]))
	numKmers := be.Uint64(buf[16:24])
	fpr := math.Float64frombits(be.Uint64(buf[24:32]))
	if k == 0 {
		return N, ErrKOverflow
	}

	set, err := newSet(kind, k, 0, DefaultFPR)
	if err != nil {
		return N, err
	}
	m, err := set.ReadFrom(r)
	N += m
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return N, ErrBrokenFile
		}
		return N, errors.Wrap(ErrBrokenFile, err.Error())
	}
	if kind == Exact && uint64(set.Len()) != numKmers {
		return N, ErrBrokenFile
	}

	idx.Kind = kind
	idx.K = k
	idx.Canonical = canonical
	idx.FPR = fpr
	idx.NumKmers = numKmers
	idx.set = set
	idx.buf = nil
	return N, nil
}

// Marshal returns the serialized bytes of an index.
func Marshal(idx *Index) ([]byte, error) {
	var buf bytes.Buffer
	_, err := idx.WriteTo(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal restores an index from serialized bytes.
func Unmarshal(data []byte) (*Index, error) {
	idx := &Index{}
	_, err := idx.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Save writes the index to a file. The file is written to a temporary
// file first and then renamed.
func (idx *Index) Save(file string) error {
	tmp := file + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return errs.IO(file, err)
	}
	w := bufio.NewWriterSize(fh, 1<<20)

	_, err = idx.WriteTo(w)
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		fh.Close()
		os.Remove(tmp)
		return errs.IO(file, err)
	}
	if err = fh.Close(); err != nil {
		os.Remove(tmp)
		return errs.IO(file, err)
	}
	if err = os.Rename(tmp, file); err != nil {
		return errs.IO(file, err)
	}
	return nil
}

// Load reads an index file. Unreadable files give IOErrors, while
// corrupt or incompatible files give IndexErrors.
func Load(file string) (*Index, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, errs.IO(file, err)
	}
	defer fh.Close()

	idx := &Index{}
	_, err = idx.ReadFrom(bufio.NewReaderSize(fh, 1<<20))
	if err != nil {
		if errors.Is(err, ErrBrokenFile) || errors.Is(err, ErrInvalidFileFormat) ||
			errors.Is(err, ErrVersionMismatch) || errors.Is(err, ErrKOverflow) ||
			errors.Is(err, ErrUnknownStructure) {
			return nil, errs.Index(file, err)
		}
		return nil, errs.IO(file, err)
	}
	return idx, nil
}

// FileName returns the index file name of a sequence file.
func FileName(outDir, seqFile, trimmedBase string) string {
	if outDir == "" {
		outDir = filepath.Dir(seqFile)
	}
	return filepath.Join(outDir, trimmedBase+IndexFileExt)
}
