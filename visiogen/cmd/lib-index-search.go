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
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shenwei356/visiogen/visiogen/cmd/errs"
	"github.com/shenwei356/visiogen/visiogen/cmd/kmer"
	"github.com/shenwei356/visiogen/visiogen/cmd/membership"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var reIndexFile = regexp.MustCompile(regexp.QuoteMeta(membership.IndexFileExt) + `$`)

// OffTargetIndex is a loaded off-target index, read-only.
type OffTargetIndex struct {
	ID   string // path relative to the index directory, without the extension
	Path string

	*membership.Index
}

// IndexLoadFailure records an index file that could not be used.
type IndexLoadFailure struct {
	Path string
	Err  error
}

// IndexSet holds all loaded off-target indexes, sorted by path.
type IndexSet struct {
	Indexes []*OffTargetIndex
	Failed  []*IndexLoadFailure
}

// IndexLoadingOptions contains the options of loading off-target indexes.
type IndexLoadingOptions struct {
	NumCPUs int
	Verbose bool

	Dir string // index directory, for naming indexes
	K   int    // required k-mer size
}

// DiscoverIndexes returns index files in a directory, sorted by path.
func DiscoverIndexes(dir string, recursive bool, threads int) ([]string, error) {
	files, err := getFileListFromDir(dir, reIndexFile, recursive, threads)
	if err != nil {
		return nil, errs.IO(dir, err)
	}
	return files, nil
}

func indexID(dir, file string) string {
	id, err := filepath.Rel(dir, file)
	if err != nil || strings.HasPrefix(id, "..") {
		id = filepath.Base(file)
	}
	return strings.TrimSuffix(id, membership.IndexFileExt)
}

// LoadIndexes loads all index files up front, with at most NumCPUs files read in parallel.
// Unreadable, corrupt, incompatible files, or ones with a different k,
// are recorded in Failed and excluded.
func LoadIndexes(files []string, opt *IndexLoadingOptions) *IndexSet {
	set := &IndexSet{
		Indexes: make([]*OffTargetIndex, 0, len(files)),
	}

	// process bar
	var pbs *mpb.Progress
	var bar *mpb.Bar
	if opt.Verbose && len(files) > 1 {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(files)),
			mpb.PrependDecorators(
				decor.Name("loaded indexes: ", decor.WC{W: len("loaded indexes: "), C: decor.DindentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
	}

	type result struct {
		file string
		idx  *membership.Index
		err  error
		t    time.Duration
	}

	ch := make(chan *result, opt.NumCPUs)
	done := make(chan int)
	go func() {
		for r := range ch {
			if bar != nil {
				bar.EwmaIncrBy(1, r.t)
			}
			if r.err != nil {
				set.Failed = append(set.Failed, &IndexLoadFailure{Path: r.file, Err: r.err})
				continue
			}
			set.Indexes = append(set.Indexes, &OffTargetIndex{
				ID:    indexID(opt.Dir, r.file),
				Path:  r.file,
				Index: r.idx,
			})
		}
		done <- 1
	}()

	var wg sync.WaitGroup
	tokens := make(chan int, opt.NumCPUs)
	for _, file := range files {
		tokens <- 1
		wg.Add(1)

		go func(file string) {
			defer func() {
				<-tokens
				wg.Done()
			}()
			timeStart := time.Now()

			idx, err := membership.Load(file)
			if err == nil && idx.K != opt.K {
				err = errs.Index(file, fmt.Errorf("k-mer size mismatch: %d != %d", idx.K, opt.K))
				idx = nil
			}
			ch <- &result{file: file, idx: idx, err: err, t: time.Since(timeStart)}
		}(file)
	}
	wg.Wait()
	close(ch)
	<-done

	if pbs != nil {
		pbs.Wait()
	}

	sort.Slice(set.Indexes, func(i, j int) bool { return set.Indexes[i].Path < set.Indexes[j].Path })
	sort.Slice(set.Failed, func(i, j int) bool { return set.Failed[i].Path < set.Failed[j].Path })

	return set
}

// QueryOptions contains the options of querying off-target indexes.
type QueryOptions struct {
	NumCPUs int

	MaxHits      int  // maximum number of indexes a probe can hit
	CountAllHits bool // do not stop querying once MaxHits is exceeded
}

// QueryResult is the off-target result of a candidate.
type QueryResult struct {
	Candidate *kmer.Candidate
	Hits      []string // IDs of indexes containing the k-mer, in the order of the indexes
	HitCount  int
	Retained  bool // HitCount <= MaxHits

	// Truncated means querying stopped once MaxHits was exceeded,
	// HitCount is then a lower bound.
	Truncated bool

	// Selected marks retained probes kept by the per-region limit, see Report.SelectProbes.
	Selected bool
}

// hits of a chunk of unique k-mers
type queryChunk struct {
	begin int
	hits  [][]int
	trunc []bool
}

// Query checks every candidate against all indexes, returning results
// in the order of candidates. Each distinct canonical k-mer is queried once,
// and chunks of them are processed by NumCPUs workers, the results of which
// are gathered by a single collector.
func (s *IndexSet) Query(cands []*kmer.Candidate, opt *QueryOptions) []*QueryResult {
	// unique canonical k-mers
	uniq := make(map[string]int, len(cands))
	kmers := make([][]byte, 0, len(cands))
	var ok bool
	for _, c := range cands {
		if _, ok = uniq[string(c.Canonical)]; !ok {
			uniq[string(c.Canonical)] = len(kmers)
			kmers = append(kmers, c.Canonical)
		}
	}

	hits := make([][]int, len(kmers))
	truncated := make([]bool, len(kmers))

	if len(kmers) > 0 && len(s.Indexes) > 0 {
		threads := opt.NumCPUs
		if threads < 1 {
			threads = 1
		}
		chunkSize := (len(kmers) + threads - 1) / threads

		ch := make(chan *queryChunk, threads)
		done := make(chan int)
		go func() {
			for r := range ch {
				copy(hits[r.begin:], r.hits)
				copy(truncated[r.begin:], r.trunc)
			}
			done <- 1
		}()

		var wg sync.WaitGroup
		tokens := make(chan int, threads)
		var end int
		for begin := 0; begin < len(kmers); begin += chunkSize {
			end = begin + chunkSize
			if end > len(kmers) {
				end = len(kmers)
			}

			tokens <- 1
			wg.Add(1)
			go func(begin, end int) {
				defer func() {
					<-tokens
					wg.Done()
				}()

				r := &queryChunk{
					begin: begin,
					hits:  make([][]int, end-begin),
					trunc: make([]bool, end-begin),
				}
				for i, km := range kmers[begin:end] {
					r.hits[i], r.trunc[i] = s.queryKmer(km, opt)
				}
				ch <- r
			}(begin, end)
		}
		wg.Wait()
		close(ch)
		<-done
	}

	results := make([]*QueryResult, len(cands))
	var h []int
	var i int
	for j, c := range cands {
		i = uniq[string(c.Canonical)]
		h = hits[i]
		r := &QueryResult{
			Candidate: c,
			Hits:      make([]string, len(h)),
			HitCount:  len(h),
			Retained:  len(h) <= opt.MaxHits,
			Truncated: truncated[i],
		}
		for k, x := range h {
			r.Hits[k] = s.Indexes[x].ID
		}
		results[j] = r
	}
	return results
}

// queryKmer returns the positions of indexes containing the k-mer.
func (s *IndexSet) queryKmer(km []byte, opt *QueryOptions) ([]int, bool) {
	var hits []int
	for i, idx := range s.Indexes {
		if !idx.Contains(km) {
			continue
		}
		hits = append(hits, i)
		if !opt.CountAllHits && len(hits) > opt.MaxHits {
			return hits, i < len(s.Indexes)-1
		}
	}
	return hits, false
}

// RetainAll returns results with no hits for all candidates,
// used when no off-target index is given.
func RetainAll(cands []*kmer.Candidate) []*QueryResult {
	results := make([]*QueryResult, len(cands))
	for i, c := range cands {
		results[i] = &QueryResult{Candidate: c, Retained: true}
	}
	return results
}
