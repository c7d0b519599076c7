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
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"github.com/shenwei356/visiogen/visiogen/cmd/errs"
	"github.com/shenwei356/visiogen/visiogen/cmd/filter"
	"github.com/shenwei356/visiogen/visiogen/cmd/kmer"
	"github.com/shenwei356/visiogen/visiogen/cmd/region"
	"github.com/spf13/cobra"
)

// ProbeOptions contains the options of probe design shared by all modes.
type ProbeOptions struct {
	// general
	NumCPUs      int
	Verbose      bool // show log
	VerboseKmers bool // log dispositions of all k-mers

	// k-mer generation
	K             int
	AllowOutside  bool
	KeepAmbiguous bool

	// filter
	Filter filter.Options

	// off-target
	OffTargetDir string
	Recursive    bool
	MaxHits      int
	CountAllHits bool

	// selection
	MaxProbes int // probes with the highest complexity kept per region, 0 for all

	// output
	OutPrefix string
	Gzip      bool
	Plot      bool
}

// CheckProbeOptions check the options
func CheckProbeOptions(opt *ProbeOptions) error {
	if opt.NumCPUs < 1 {
		return errs.Config("threads", fmt.Errorf("invalid number of CPUs: %d, should be >= 1", opt.NumCPUs))
	}
	if opt.K < 1 || opt.K > 65535 {
		return errs.Config("kmer", fmt.Errorf("invalid k value: %d, valid range: [1, 65535]", opt.K))
	}
	if opt.MaxHits < 0 {
		return errs.Config("max-hits", fmt.Errorf("invalid max hits: %d, should be >= 0", opt.MaxHits))
	}
	if opt.MaxProbes < 0 {
		return errs.Config("max-probes", fmt.Errorf("invalid max probes: %d, should be >= 0", opt.MaxProbes))
	}
	if opt.OutPrefix == "" {
		return errs.Config("out-prefix", errors.New("empty output prefix"))
	}
	return filter.CheckOptions(&opt.Filter)
}

func getProbeOptions(cmd *cobra.Command, opt *Options) *ProbeOptions {
	popt := &ProbeOptions{
		NumCPUs:      opt.NumCPUs,
		Verbose:      opt.Verbose,
		VerboseKmers: getFlagBool(cmd, "verbose-kmers"),

		K:             getFlagPositiveInt(cmd, "kmer"),
		AllowOutside:  getFlagBool(cmd, "allow-outside"),
		KeepAmbiguous: getFlagBool(cmd, "keep-ambiguous"),

		Filter: filter.Options{
			SkipGC:         getFlagBool(cmd, "skip-gc"),
			MinGC:          getFlagNonNegativeFloat64(cmd, "min-gc"),
			MaxGC:          getFlagNonNegativeFloat64(cmd, "max-gc"),
			GCHalves:       getFlagBool(cmd, "gc-halves"),
			MaxHomopolymer: getFlagNonNegativeInt(cmd, "max-homopolymer"),
		},

		OffTargetDir: getFlagPath(cmd, "off-target-dir"),
		Recursive:    getFlagBool(cmd, "recursive"),
		MaxHits:      getFlagNonNegativeInt(cmd, "max-hits"),
		CountAllHits: getFlagBool(cmd, "count-all-hits"),

		MaxProbes: getFlagNonNegativeInt(cmd, "max-probes"),

		OutPrefix: getFlagPath(cmd, "out-prefix"),
		Gzip:      getFlagBool(cmd, "gzip"),
		Plot:      getFlagBool(cmd, "plot"),
	}

	centerBase := getFlagString(cmd, "center-base")
	switch len(centerBase) {
	case 0:
	case 1:
		popt.Filter.CenterBase = centerBase[0]
	default:
		checkError(errs.Config("center-base", fmt.Errorf("a single base expected, given %s", centerBase)))
	}

	checkError(prepareProbeDesign(popt))
	return popt
}

// prepareProbeDesign checks the options before touching the file system,
// and then the off-target directory.
func prepareProbeDesign(opt *ProbeOptions) error {
	if err := CheckProbeOptions(opt); err != nil {
		return err
	}
	if opt.OffTargetDir == "" {
		return nil
	}
	isDir, err := pathutil.IsDir(opt.OffTargetDir)
	if err != nil {
		return errs.IO(opt.OffTargetDir, errors.Wrap(err, "checking -i/--off-target-dir"))
	}
	if !isDir {
		return errs.Config(opt.OffTargetDir, errors.New("value of -i/--off-target-dir should be a directory"))
	}
	return nil
}

// DesignProbes runs the pipeline: region ingestion, k-mer generation,
// filtering, off-target checking.
func DesignProbes(src region.Source, opt *ProbeOptions) (*Report, error) {
	// ---------------------------------------------------------------
	// regions

	if opt.Verbose {
		log.Infof("reading %s input ...", src.Kind())
	}
	ing, err := src.Load()
	if err != nil {
		return nil, err
	}
	if opt.Verbose {
		switch ing.Kind {
		case region.Annotation:
			log.Infof("  %d features read, %d reference sequences", ing.Features, len(ing.Reference))
		case region.Graph:
			sel := ing.Selection
			log.Infof("  %d segments and %d links read", sel.Segments, sel.Links)
			log.Infof("  strains found: %d, cutoff: %s(%v x %d) = %d",
				sel.MaxStrain, sel.Rounding, sel.Threshold, sel.MaxStrain, sel.Cutoff)
			log.Infof("  core segments selected: %d", sel.Selected)
		}
		log.Infof("  %d candidate regions", len(ing.Regions))
	}

	// ---------------------------------------------------------------
	// k-mers

	cands, gstats := kmer.GenerateAll(ing.Regions, &kmer.Options{
		K:             opt.K,
		AllowOutside:  opt.AllowOutside,
		KeepAmbiguous: opt.KeepAmbiguous,
	})
	if opt.Verbose {
		log.Infof("generating %d-mers ...", opt.K)
		log.Infof("  %s windows, %s k-mers generated", humanize.Comma(int64(gstats.Windows)), humanize.Comma(int64(gstats.Generated)))
		if gstats.Outside > 0 {
			log.Infof("  %s windows out of regions skipped", humanize.Comma(int64(gstats.Outside)))
		}
		if gstats.Ambiguous > 0 {
			log.Infof("  %s windows with ambiguous bases skipped", humanize.Comma(int64(gstats.Ambiguous)))
		}
	}
	if gstats.ShortRegions > 0 {
		log.Warningf("  %d regions shorter than k (%d) skipped", gstats.ShortRegions, opt.K)
	}

	// ---------------------------------------------------------------
	// filter

	engine, err := filter.FromOptions(&opt.Filter)
	if err != nil {
		return nil, err
	}
	if ing.Kind == region.Annotation && !opt.AllowOutside {
		if opt.Verbose {
			log.Infof("checking uniqueness of k-mers in the reference ...")
		}
		uniq, err := filter.NewUniqueness(ing.Reference, ing.Regions, cands)
		if err != nil {
			return nil, err
		}
		engine.Add(uniq)
	}
	if opt.Verbose {
		log.Infof("filtering k-mers with:")
		for _, p := range engine.Predicates() {
			log.Infof("  %s", p.Name())
		}
	}
	decisions, passed := engine.Apply(cands)
	if opt.Verbose {
		log.Infof("  %s of %s k-mers passed", humanize.Comma(int64(len(passed))), humanize.Comma(int64(len(cands))))
	}

	// ---------------------------------------------------------------
	// off-target

	var results []*QueryResult
	var indexes, failedIndexes []string
	queried := opt.OffTargetDir != ""
	if !queried {
		if opt.Verbose {
			log.Infof("skipping off-target checking as no off-target directory was given")
		}
		results = RetainAll(passed)
	} else {
		set, err := loadOffTargetIndexes(opt)
		if err != nil {
			return nil, err
		}
		for _, idx := range set.Indexes {
			indexes = append(indexes, idx.ID)
		}
		for _, f := range set.Failed {
			failedIndexes = append(failedIndexes, f.Path)
		}

		timeStart := time.Now()
		if opt.Verbose {
			log.Infof("querying %d k-mers against %d indexes ...", len(passed), len(set.Indexes))
		}
		results = set.Query(passed, &QueryOptions{
			NumCPUs:      opt.NumCPUs,
			MaxHits:      opt.MaxHits,
			CountAllHits: opt.CountAllHits,
		})
		if opt.Verbose {
			log.Infof("  finished in %s", time.Since(timeStart))
		}
	}

	report := NewReport(ing, gstats, decisions, results)
	report.Queried = queried
	report.Indexes = indexes
	report.FailedIndexes = failedIndexes

	report.SelectProbes(opt.MaxProbes)
	if opt.Verbose && opt.MaxProbes > 0 {
		log.Infof("selecting at most %d probes with the highest complexity for each region", opt.MaxProbes)
	}
	return report, nil
}

func loadOffTargetIndexes(opt *ProbeOptions) (*IndexSet, error) {
	if opt.Verbose {
		log.Infof("loading off-target indexes from %s ...", opt.OffTargetDir)
	}
	files, err := DiscoverIndexes(opt.OffTargetDir, opt.Recursive, opt.NumCPUs)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		log.Warningf("  no index files (*.vgi) found in %s", opt.OffTargetDir)
	}

	set := LoadIndexes(files, &IndexLoadingOptions{
		NumCPUs: opt.NumCPUs,
		Verbose: opt.Verbose,
		Dir:     opt.OffTargetDir,
		K:       opt.K,
	})
	for _, f := range set.Failed {
		log.Warningf("  index skipped: %s", f.Err)
	}
	if opt.Verbose {
		log.Infof("  %d indexes loaded", len(set.Indexes))
	}
	return set, nil
}

// writeOutputs writes all output files of a report.
func writeOutputs(report *Report, opt *ProbeOptions, compressionLevel int) error {
	dir := filepath.Dir(opt.OutPrefix)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return errs.IO(dir, err)
	}

	fileTSV := opt.OutPrefix + ".tsv"
	if opt.Gzip {
		fileTSV += ".gz"
	}
	if err := report.WriteTSV(fileTSV, opt.Gzip, compressionLevel); err != nil {
		return err
	}

	fileFASTA := opt.OutPrefix + ".fasta"
	if err := report.WriteFASTA(fileFASTA); err != nil {
		return err
	}

	fileSummary := opt.OutPrefix + ".summary.toml"
	if err := report.WriteSummary(fileSummary, opt); err != nil {
		return err
	}

	if opt.Verbose {
		log.Info()
		log.Infof("k-mer details saved to %s", fileTSV)
		log.Infof("probes saved to %s", fileFASTA)
		log.Infof("summary saved to %s", fileSummary)
	}

	if opt.Plot {
		filePlot := opt.OutPrefix + ".hits.png"
		if err := report.PlotHits(filePlot); err != nil {
			return err
		}
		if opt.Verbose {
			log.Infof("histogram of off-target hits saved to %s", filePlot)
		}
	}
	return nil
}

// runProbeDesign is the shared body of the gff and graph commands.
func runProbeDesign(opt *Options, popt *ProbeOptions, src region.Source) {
	var fhLog *os.File
	if opt.Log2File {
		fhLog = addLog(opt.LogFile, opt.Verbose)
	}
	setLogLevel(popt.VerboseKmers)
	defer startProfile(opt.Profile)()

	verbose := opt.Verbose || opt.Log2File
	popt.Verbose = verbose

	timeStart := time.Now()
	defer func() {
		if verbose {
			log.Info()
			log.Infof("elapsed time: %s", time.Since(timeStart))
			log.Info()
		}
		if opt.Log2File {
			fhLog.Close()
		}
	}()

	if verbose {
		log.Infof("VisioGen v%s", VERSION)
		log.Info("  https://github.com/shenwei356/visiogen")
		log.Info()
	}

	report, err := DesignProbes(src, popt)
	checkError(err)

	if verbose {
		report.Log(popt.VerboseKmers)
	}

	checkError(writeOutputs(report, popt, opt.CompressionLevel))
}
