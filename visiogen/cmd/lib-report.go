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
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/shenwei356/visiogen/visiogen/cmd/errs"
	"github.com/shenwei356/visiogen/visiogen/cmd/filter"
	"github.com/shenwei356/visiogen/visiogen/cmd/kmer"
	"github.com/shenwei356/visiogen/visiogen/cmd/region"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Report gathers results of all stages of a run.
type Report struct {
	RunID string
	Time  time.Time

	Ingestion  *region.Ingestion
	Generation kmer.Stats

	// in the order of (region ordinal, offset)
	Decisions []*filter.Decision
	Results   []*QueryResult // one for each passed candidate

	results map[*kmer.Candidate]*QueryResult

	Queried       bool // whether off-target indexes were queried
	Indexes       []string
	FailedIndexes []string

	MaxProbes int // maximum number of selected probes per region, 0 for all
}

// NewReport sorts decisions and results by (region ordinal, offset).
func NewReport(ing *region.Ingestion, gstats kmer.Stats, decisions []*filter.Decision, results []*QueryResult) *Report {
	sort.SliceStable(decisions, func(i, j int) bool {
		return lessCandidate(decisions[i].Candidate, decisions[j].Candidate)
	})
	sort.SliceStable(results, func(i, j int) bool {
		return lessCandidate(results[i].Candidate, results[j].Candidate)
	})

	m := make(map[*kmer.Candidate]*QueryResult, len(results))
	for _, r := range results {
		m[r.Candidate] = r
	}

	return &Report{
		RunID:      uuid.New().String(),
		Time:       time.Now(),
		Ingestion:  ing,
		Generation: gstats,
		Decisions:  decisions,
		Results:    results,
		results:    m,
	}
}

func lessCandidate(a, b *kmer.Candidate) bool {
	if a.RegionIdx != b.RegionIdx {
		return a.RegionIdx < b.RegionIdx
	}
	return a.Offset < b.Offset
}

// Result returns the query result of a candidate, nil for candidates failed filtering.
func (r *Report) Result(c *kmer.Candidate) *QueryResult {
	return r.results[c]
}

// QueryCounts counts retained probes with hits (found) or without (missing),
// and probes discarded for excess hits.
func (r *Report) QueryCounts() (found, missing, discarded int) {
	for _, q := range r.Results {
		switch {
		case !q.Retained:
			discarded++
		case q.HitCount > 0:
			found++
		default:
			missing++
		}
	}
	return
}

// SelectProbes marks, for each region, the n retained probes with the highest
// complexity, ties broken by offset. All retained probes are selected if n <= 0.
func (r *Report) SelectProbes(n int) {
	r.MaxProbes = n

	// results are sorted by region
	var i, j int
	for i = 0; i < len(r.Results); i = j {
		for j = i; j < len(r.Results) && r.Results[j].Candidate.RegionIdx == r.Results[i].Candidate.RegionIdx; j++ {
		}
		selectProbes(r.Results[i:j], n)
	}
}

func selectProbes(results []*QueryResult, n int) {
	list := make([]*QueryResult, 0, len(results))
	for _, q := range results {
		q.Selected = false
		if q.Retained {
			list = append(list, q)
		}
	}
	if n > 0 && len(list) > n {
		sort.Slice(list, func(i, j int) bool {
			a, b := kmer.Complexity(list[i].Candidate.Seq), kmer.Complexity(list[j].Candidate.Seq)
			if a != b {
				return a > b
			}
			return list[i].Candidate.Offset < list[j].Candidate.Offset
		})
		list = list[:n]
	}
	for _, q := range list {
		q.Selected = true
	}
}

// Selected returns results of probes written to the FASTA output.
func (r *Report) Selected() []*QueryResult {
	list := make([]*QueryResult, 0, len(r.Results))
	for _, q := range r.Results {
		if q.Selected {
			list = append(list, q)
		}
	}
	return list
}

// Retained returns results of probes passing the off-target check.
func (r *Report) Retained() []*QueryResult {
	list := make([]*QueryResult, 0, len(r.Results))
	for _, q := range r.Results {
		if q.Retained {
			list = append(list, q)
		}
	}
	return list
}

// regionCounts counts generated, passed, retained, and selected k-mers of each region.
func (r *Report) regionCounts() [][4]int {
	counts := make([][4]int, len(r.Ingestion.Regions))
	for _, d := range r.Decisions {
		counts[d.Candidate.RegionIdx][0]++
		if d.Passed {
			counts[d.Candidate.RegionIdx][1]++
		}
	}
	for _, q := range r.Results {
		if q.Retained {
			counts[q.Candidate.RegionIdx][2]++
		}
		if q.Selected {
			counts[q.Candidate.RegionIdx][3]++
		}
	}
	return counts
}

// Log logs counts of every stage, and dispositions of k-mers at the debug level.
func (r *Report) Log(verboseKmers bool) {
	counts := r.regionCounts()

	log.Info()
	log.Infof("regions:")
	for i, reg := range r.Ingestion.Regions {
		if reg.HasSupport {
			log.Infof("  %s, strand: %c, start: %d, end: %d, support: %d, k-mers: %d/%d/%d/%d (generated/passed/retained/selected)",
				reg.ID, reg.Strand, reg.Start, reg.End, reg.Support, counts[i][0], counts[i][1], counts[i][2], counts[i][3])
		} else {
			log.Infof("  %s, strand: %c, start: %d, end: %d, k-mers: %d/%d/%d/%d (generated/passed/retained/selected)",
				reg.ID, reg.Strand, reg.Start, reg.End, counts[i][0], counts[i][1], counts[i][2], counts[i][3])
		}
		if counts[i][2] == 0 {
			log.Warningf("  no probes left for %s (%s:%d-%d)", reg.ID, reg.SeqID, reg.Start, reg.End)
		}
	}

	passed, reasons := filter.Counts(r.Decisions)
	log.Info()
	log.Infof("filtering: %d of %d k-mers passed", passed, len(r.Decisions))
	for _, reason := range sortedKeys(reasons) {
		log.Infof("  %s: %d", reason, reasons[reason])
	}

	log.Info()
	if !r.Queried {
		log.Infof("off-target checking skipped: all %d k-mers passing filters are kept", len(r.Results))
	} else {
		found, missing, discarded := r.QueryCounts()
		log.Infof("off-target checking with %d indexes:", len(r.Indexes))
		log.Infof("  found in some indexes and kept: %d", found)
		log.Infof("  missing in all indexes: %d", missing)
		log.Infof("  discarded for excess hits: %d", discarded)
	}
	if r.MaxProbes > 0 {
		log.Infof("top %d probes with the highest complexity kept for each region: %d in total", r.MaxProbes, len(r.Selected()))
	}

	if !verboseKmers {
		return
	}
	var q *QueryResult
	for _, d := range r.Decisions {
		if !d.Passed {
			log.Debugf("%s %s failed: %s", d.Candidate.ID(), d.Candidate.Seq, strings.Join(d.Reasons, ","))
			continue
		}
		q = r.results[d.Candidate]
		switch {
		case !q.Retained:
			log.Debugf("%s %s discarded: excess hits: %s", d.Candidate.ID(), d.Candidate.Seq, hitCountString(q))
		case q.HitCount > 0:
			log.Debugf("%s %s found in %d indexes: %s", d.Candidate.ID(), d.Candidate.Seq, q.HitCount, strings.Join(q.Hits, ","))
		default:
			log.Debugf("%s %s missing", d.Candidate.ID(), d.Candidate.Seq)
		}
	}
}

func hitCountString(q *QueryResult) string {
	if q.Truncated {
		return ">=" + strconv.Itoa(q.HitCount)
	}
	return strconv.Itoa(q.HitCount)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteTSV writes one row for each generated k-mer.
func (r *Report) WriteTSV(file string, gzipped bool, level int) error {
	outfh, gw, w, err := outStream(file, gzipped, level)
	if err != nil {
		return errs.IO(file, err)
	}

	fmt.Fprintf(outfh, "region\tstrand\toffset\tstart\tend\tkmer\tcanonical\tgc\tcomplexity\tfilter\treasons\thits\tretained\tselected\tindexes\n")

	var c *kmer.Candidate
	var q *QueryResult
	var start, end int
	for _, d := range r.Decisions {
		c = d.Candidate
		start, end = c.OriginSpan()
		fmt.Fprintf(outfh, "%s\t%c\t%d\t%d\t%d\t%s\t%s\t%.2f\t%.3f\t",
			c.Region.ID, c.Strand, c.Offset+1, start, end, c.Seq, c.Canonical, kmer.GC(c.Seq), kmer.Complexity(c.Seq))
		if !d.Passed {
			fmt.Fprintf(outfh, "fail\t%s\t\t\t\t\n", strings.Join(d.Reasons, ","))
			continue
		}
		q = r.results[c]
		if q == nil {
			fmt.Fprintf(outfh, "pass\t\t\t\t\t\n")
			continue
		}
		fmt.Fprintf(outfh, "pass\t\t%s\t%s\t%s\t%s\n", hitCountString(q), yesOrNo(q.Retained), yesOrNo(q.Selected), strings.Join(q.Hits, ","))
	}

	err = outfh.Flush()
	if gw != nil {
		if e := gw.Close(); err == nil {
			err = e
		}
	}
	if e := w.Close(); err == nil {
		err = e
	}
	if err != nil {
		return errs.IO(file, err)
	}
	return nil
}

func yesOrNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// WriteFASTA writes selected probes, numbered per region.
func (r *Report) WriteFASTA(file string) error {
	fh, err := os.Create(file)
	if err != nil {
		return errs.IO(file, err)
	}
	w := bufio.NewWriter(fh)

	var c *kmer.Candidate
	var start, end int
	pre := -1
	var n int
	for _, q := range r.Results {
		if !q.Selected {
			continue
		}
		c = q.Candidate
		if c.RegionIdx != pre {
			pre = c.RegionIdx
			n = 0
		}
		n++
		start, end = c.OriginSpan()
		fmt.Fprintf(w, ">%s_%d %d-%d %c hits:%d complexity:%.3f\n%s\n",
			c.Region.ID, n, start, end, c.Strand, q.HitCount, kmer.Complexity(c.Seq), c.Seq)
	}

	err = w.Flush()
	if e := fh.Close(); err == nil {
		err = e
	}
	if err != nil {
		return errs.IO(file, err)
	}
	return nil
}

type runSummary struct {
	RunID   string `toml:"run_id"`
	Version string `toml:"version"`
	Time    string `toml:"time"`
	Mode    string `toml:"mode"`

	Parameters summaryParameters `toml:"parameters"`
	Counts     summaryCounts     `toml:"counts"`
	GC         summaryGC         `toml:"gc"`
	Indexes    summaryIndexes    `toml:"indexes"`
	Graph      *summaryGraph     `toml:"graph,omitempty"`

	Regions []summaryRegion `toml:"regions"`
}

type summaryParameters struct {
	K              int     `toml:"k"`
	AllowOutside   bool    `toml:"allow_outside"`
	KeepAmbiguous  bool    `toml:"keep_ambiguous"`
	SkipGC         bool    `toml:"skip_gc"`
	MinGC          float64 `toml:"min_gc"`
	MaxGC          float64 `toml:"max_gc"`
	GCHalves       bool    `toml:"gc_halves"`
	CenterBase     string  `toml:"center_base"`
	MaxHomopolymer int     `toml:"max_homopolymer"`
	OffTargetDir   string  `toml:"off_target_dir"`
	Recursive      bool    `toml:"recursive"`
	MaxHits        int     `toml:"max_hits"`
	CountAllHits   bool    `toml:"count_all_hits"`
	MaxProbes      int     `toml:"max_probes"`
}

type summaryGraph struct {
	Segments  int     `toml:"segments"`
	Links     int     `toml:"links"`
	Threshold float64 `toml:"threshold"`
	Rounding  string  `toml:"rounding"`
	MaxStrain int     `toml:"max_strain"`
	Cutoff    int     `toml:"cutoff"`
	Selected  int     `toml:"selected"`
}

type summaryCounts struct {
	Regions      int            `toml:"regions"`
	ShortRegions int            `toml:"short_regions"`
	Windows      int            `toml:"windows"`
	Outside      int            `toml:"outside"`
	Ambiguous    int            `toml:"ambiguous"`
	Generated    int            `toml:"generated"`
	Passed       int            `toml:"passed"`
	Failed       map[string]int `toml:"failed"`
	Found        int            `toml:"found"`
	Missing      int            `toml:"missing"`
	Discarded    int            `toml:"discarded"`
	Retained     int            `toml:"retained"`
	Selected     int            `toml:"selected"`
}

type summaryGC struct {
	Mean   float64 `toml:"mean"`
	StdDev float64 `toml:"stdev"`
}

type summaryIndexes struct {
	Queried bool     `toml:"queried"`
	Loaded  []string `toml:"loaded"`
	Failed  []string `toml:"failed"`
}

type summaryRegion struct {
	ID        string `toml:"id"`
	SeqID     string `toml:"seqid"`
	Start     int    `toml:"start"`
	End       int    `toml:"end"`
	Strand    string `toml:"strand"`
	Support   int    `toml:"support,omitempty"`
	Generated int    `toml:"generated"`
	Passed    int    `toml:"passed"`
	Retained  int    `toml:"retained"`
	Selected  int    `toml:"selected"`
}

// GCStats returns the mean and standard deviation of GC content of retained probes.
func (r *Report) GCStats() (mean, std float64) {
	gcs := make([]float64, 0, len(r.Results))
	for _, q := range r.Results {
		if q.Retained {
			gcs = append(gcs, kmer.GC(q.Candidate.Seq))
		}
	}
	switch len(gcs) {
	case 0:
		return 0, 0
	case 1:
		return gcs[0], 0
	}
	return stat.MeanStdDev(gcs, nil)
}

// WriteSummary writes the run summary in TOML format.
func (r *Report) WriteSummary(file string, popt *ProbeOptions) error {
	g := r.Generation
	passed, reasons := filter.Counts(r.Decisions)
	found, missing, discarded := r.QueryCounts()
	mean, std := r.GCStats()

	s := &runSummary{
		RunID:      r.RunID,
		Version:    VERSION,
		Time:       r.Time.Format(time.RFC3339),
		Mode:       r.Ingestion.Kind.String(),
		Parameters: summaryParameters{
			K:              popt.K,
			AllowOutside:   popt.AllowOutside,
			KeepAmbiguous:  popt.KeepAmbiguous,
			SkipGC:         popt.Filter.SkipGC,
			MinGC:          popt.Filter.MinGC,
			MaxGC:          popt.Filter.MaxGC,
			GCHalves:       popt.Filter.GCHalves,
			MaxHomopolymer: popt.Filter.MaxHomopolymer,
			OffTargetDir:   popt.OffTargetDir,
			Recursive:      popt.Recursive,
			MaxHits:        popt.MaxHits,
			CountAllHits:   popt.CountAllHits,
			MaxProbes:      popt.MaxProbes,
		},
		Counts: summaryCounts{
			Regions:      g.Regions,
			ShortRegions: g.ShortRegions,
			Windows:      g.Windows,
			Outside:      g.Outside,
			Ambiguous:    g.Ambiguous,
			Generated:    g.Generated,
			Passed:       passed,
			Failed:       reasons,
			Found:        found,
			Missing:      missing,
			Discarded:    discarded,
			Retained:     found + missing,
			Selected:     len(r.Selected()),
		},
		GC: summaryGC{Mean: mean, StdDev: std},
		Indexes: summaryIndexes{
			Queried: r.Queried,
			Loaded:  r.Indexes,
			Failed:  r.FailedIndexes,
		},
	}
	if popt.Filter.CenterBase != 0 {
		s.Parameters.CenterBase = string(popt.Filter.CenterBase)
	}
	if sel := r.Ingestion.Selection; sel != nil {
		s.Graph = &summaryGraph{
			Segments:  sel.Segments,
			Links:     sel.Links,
			Threshold: sel.Threshold,
			Rounding:  sel.Rounding.String(),
			MaxStrain: sel.MaxStrain,
			Cutoff:    sel.Cutoff,
			Selected:  sel.Selected,
		}
	}

	counts := r.regionCounts()
	s.Regions = make([]summaryRegion, len(r.Ingestion.Regions))
	for i, reg := range r.Ingestion.Regions {
		s.Regions[i] = summaryRegion{
			ID:        reg.ID,
			SeqID:     reg.SeqID,
			Start:     reg.Start,
			End:       reg.End,
			Strand:    string(reg.Strand),
			Support:   reg.Support,
			Generated: counts[i][0],
			Passed:    counts[i][1],
			Retained:  counts[i][2],
			Selected:  counts[i][3],
		}
	}

	data, err := toml.Marshal(s)
	if err != nil {
		return err
	}
	if err = os.WriteFile(file, data, 0644); err != nil {
		return errs.IO(file, err)
	}
	return nil
}

// PlotHits plots a histogram of off-target hits of probes passing filters.
func (r *Report) PlotHits(file string) error {
	values := make(plotter.Values, len(r.Results))
	var max int
	for i, q := range r.Results {
		values[i] = float64(q.HitCount)
		if q.HitCount > max {
			max = q.HitCount
		}
	}
	if len(values) == 0 {
		values = append(values, 0)
	}

	p := plot.New()
	p.Title.Text = "Off-target hits"
	p.X.Label.Text = "Number of indexes hit"
	p.Y.Label.Text = "Number of probes"

	h, err := plotter.NewHist(values, max+1)
	if err != nil {
		return err
	}
	p.Add(h)

	if err = p.Save(6*vg.Inch, 4*vg.Inch, file); err != nil {
		return errs.IO(file, err)
	}
	return nil
}
