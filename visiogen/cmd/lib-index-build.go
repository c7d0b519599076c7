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
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/util/pathutil"
	"github.com/shenwei356/visiogen/visiogen/cmd/errs"
	"github.com/shenwei356/visiogen/visiogen/cmd/membership"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// FileBuildInfo is the name of the build manifest in the output directory.
const FileBuildInfo = "build-info.toml"

// extensions trimmed from sequence file names to name index files.
var seqFileExts = []string{".gz", ".xz", ".zst", ".bz2"}

// IndexBuildingOptions contains the options of building off-target indexes.
type IndexBuildingOptions struct {
	// general
	NumCPUs int
	Verbose bool // show log
	Force   bool // overwrite existed index files

	OutDir string // output directory, the directory of each input file if empty

	K         int             // k-mer size
	Canonical bool            // store canonical k-mers
	Structure membership.Kind // exact or bloom
	FPR       float64         // false positive rate of bloom filters
}

// CheckIndexBuildingOptions check the options
func CheckIndexBuildingOptions(opt *IndexBuildingOptions) error {
	if opt.NumCPUs < 1 {
		return errs.Config("threads", fmt.Errorf("invalid number of CPUs: %d, should be >= 1", opt.NumCPUs))
	}
	if opt.K < 1 || opt.K > 65535 {
		return errs.Config("kmer", fmt.Errorf("invalid k value: %d, valid range: [1, 65535]", opt.K))
	}
	switch opt.Structure {
	case membership.Exact:
	case membership.Bloom:
		if opt.FPR <= 0 || opt.FPR >= 1 {
			return errs.Config("fpr", fmt.Errorf("invalid false positive rate: %v, valid range: (0, 1)", opt.FPR))
		}
	default:
		return errs.Config("structure", membership.ErrUnknownStructure)
	}
	return nil
}

// prepareIndexBuilding checks the options before touching the file system,
// then checks the input directory and creates the output directory.
func prepareIndexBuilding(inDir string, opt *IndexBuildingOptions) error {
	if err := CheckIndexBuildingOptions(opt); err != nil {
		return err
	}

	isDir, err := pathutil.IsDir(inDir)
	if err != nil {
		return errs.IO(inDir, errors.Wrapf(err, "checking -I/--in-dir"))
	}
	if !isDir {
		return errs.Config(inDir, fmt.Errorf("value of -I/--in-dir should be a directory"))
	}

	if opt.OutDir != "" {
		if err = os.MkdirAll(opt.OutDir, 0777); err != nil {
			return errs.IO(opt.OutDir, err)
		}
	}
	return nil
}

// BuiltIndex describes an index built from a sequence file.
type BuiltIndex struct {
	Source    string `toml:"source"`
	Index     string `toml:"index"`
	Sequences int    `toml:"sequences"`
	Bases     int    `toml:"bases"`
	Kmers     uint64 `toml:"kmers"`
}

// FailedFile is a sequence file failed to be indexed.
type FailedFile struct {
	Source string `toml:"source"`
	Error  string `toml:"error"`

	err error
}

// BuildSummary is the result of BuildIndexes.
type BuildSummary struct {
	Built  []*BuiltIndex
	Failed []*FailedFile
}

type buildInfo struct {
	Version   string        `toml:"version"`
	Format    string        `toml:"format"`
	Time      string        `toml:"time"`
	K         int           `toml:"k"`
	Canonical bool          `toml:"canonical"`
	Structure string        `toml:"structure"`
	FPR       float64       `toml:"fpr"`
	Indexes   []*BuiltIndex `toml:"indexes"`
	Failed    []*FailedFile `toml:"failed"`
}

// indexFileOf returns the index file path of a sequence file.
func indexFileOf(file string, outDir string) string {
	name, _, _ := filepathTrimExtension(filepath.Base(file), seqFileExts)
	return membership.FileName(outDir, file, name)
}

// BuildIndexes builds an index file for each sequence file.
// Failures of single files are recorded and do not stop the batch.
// An IndexError is returned only if no index is built at all.
func BuildIndexes(files []string, opt *IndexBuildingOptions) (*BuildSummary, error) {
	if err := CheckIndexBuildingOptions(opt); err != nil {
		return nil, err
	}

	summary := &BuildSummary{
		Built:  make([]*BuiltIndex, 0, len(files)),
		Failed: make([]*FailedFile, 0, 8),
	}

	// output files
	jobs := make([]string, 0, len(files))
	outFiles := make(map[string]string, len(files))
	var outFile string
	var ok bool
	for _, file := range files {
		outFile = indexFileOf(file, opt.OutDir)
		if _, ok = outFiles[outFile]; ok {
			summary.addFailure(file, errs.Config(file,
				fmt.Errorf("output file %s conflicts with that of %s", outFile, outFiles[outFile])))
			continue
		}
		outFiles[outFile] = file
		jobs = append(jobs, file)
	}

	// process bar
	var pbs *mpb.Progress
	var bar *mpb.Bar
	var chDuration chan time.Duration
	var doneDuration chan int
	if opt.Verbose {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(jobs)),
			mpb.PrependDecorators(
				decor.Name("processed files: ", decor.WC{W: len("processed files: "), C: decor.DindentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)

		chDuration = make(chan time.Duration, opt.NumCPUs)
		doneDuration = make(chan int)
		go func() {
			for t := range chDuration {
				bar.EwmaIncrBy(1, t)
			}
			doneDuration <- 1
		}()
	}

	type result struct {
		file  string
		index *BuiltIndex
		err   error
	}

	// collector
	ch := make(chan *result, opt.NumCPUs)
	done := make(chan int)
	go func() {
		for r := range ch {
			if r.err != nil {
				summary.addFailure(r.file, r.err)
				continue
			}
			summary.Built = append(summary.Built, r.index)
		}
		done <- 1
	}()

	var wg sync.WaitGroup
	tokens := make(chan int, opt.NumCPUs)
	for _, file := range jobs {
		tokens <- 1
		wg.Add(1)

		go func(file string) {
			timeStart := time.Now()
			defer func() {
				if opt.Verbose {
					chDuration <- time.Since(timeStart)
				}
				<-tokens
				wg.Done()
			}()

			idx, err := buildIndexFromFile(file, indexFileOf(file, opt.OutDir), opt)
			ch <- &result{file: file, index: idx, err: err}
		}(file)
	}
	wg.Wait()
	close(ch)
	<-done

	if opt.Verbose {
		close(chDuration)
		<-doneDuration
		pbs.Wait()
	}

	sort.Slice(summary.Built, func(i, j int) bool { return summary.Built[i].Source < summary.Built[j].Source })
	sort.Slice(summary.Failed, func(i, j int) bool { return summary.Failed[i].Source < summary.Failed[j].Source })

	for _, f := range summary.Failed {
		log.Warningf("skip file: %s", f.err)
	}

	if len(summary.Built) == 0 {
		return summary, errs.Index("off-target indexes", errors.New("no index built"))
	}
	return summary, nil
}

func (s *BuildSummary) addFailure(file string, err error) {
	s.Failed = append(s.Failed, &FailedFile{Source: file, Error: err.Error(), err: err})
}

// buildIndexFromFile indexes all k-mers of sequences in a file.
func buildIndexFromFile(file string, outFile string, opt *IndexBuildingOptions) (*BuiltIndex, error) {
	if !opt.Force {
		existed, err := pathutil.Exists(outFile)
		if err != nil {
			return nil, errs.IO(outFile, err)
		}
		if existed {
			return nil, errs.IO(outFile, errors.New("index file existed, use --force to overwrite"))
		}
	}

	fastxReader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, errs.IO(file, err)
	}
	defer fastxReader.Close()

	seqs := make([][]byte, 0, 8)
	var record *fastx.Record
	var n, bases int
	k := opt.K
	for {
		record, err = fastxReader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errs.IO(file, err)
		}
		bases += len(record.Seq.Seq)
		if len(record.Seq.Seq) < k {
			continue
		}
		seqs = append(seqs, bytes.ToUpper(record.Seq.Seq))
		n += len(record.Seq.Seq) - k + 1
	}
	if len(seqs) == 0 {
		return nil, errs.Input(file, fmt.Errorf("no sequences longer than k (%d)", k))
	}

	idx, err := membership.NewIndex(opt.Structure, k, opt.Canonical, n, opt.FPR)
	if err != nil {
		return nil, errs.Config(file, err)
	}
	for _, s := range seqs {
		idx.InsertSeq(s)
	}
	idx.Finish()

	if err = idx.Save(outFile); err != nil {
		return nil, err
	}

	return &BuiltIndex{
		Source:    file,
		Index:     outFile,
		Sequences: len(seqs),
		Bases:     bases,
		Kmers:     idx.NumKmers,
	}, nil
}

// writeBuildInfo writes the build manifest in TOML format.
func writeBuildInfo(file string, summary *BuildSummary, opt *IndexBuildingOptions) error {
	info := &buildInfo{
		Version:   VERSION,
		Format:    fmt.Sprintf("%d.%d", membership.MainVersion, membership.MinorVersion),
		Time:      time.Now().Format(time.RFC3339),
		K:         opt.K,
		Canonical: opt.Canonical,
		Structure: opt.Structure.String(),
		FPR:       opt.FPR,
		Indexes:   summary.Built,
		Failed:    summary.Failed,
	}
	if opt.Structure == membership.Exact {
		info.FPR = 0
	}

	data, err := toml.Marshal(info)
	if err != nil {
		return err
	}
	if err = os.WriteFile(file, data, 0644); err != nil {
		return errs.IO(file, err)
	}
	return nil
}
