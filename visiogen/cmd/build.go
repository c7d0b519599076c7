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
	"time"

	"github.com/pkg/errors"
	"github.com/shenwei356/visiogen/visiogen/cmd/errs"
	"github.com/shenwei356/visiogen/visiogen/cmd/membership"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build off-target indexes from FASTA/Q files",
	Long: `Build off-target indexes from FASTA/Q files

Input:
  A directory containing plain or compressed FASTA/Q files (-I/--in-dir).
  Sub-directories are searched with -R/--recursive. A regular expression
  for matching sequence files is available via the flag -r/--file-regexp.

Output:
  One index file (.vgi) for each sequence file, named after the file
  with extensions removed, e.g., GCF_000005845.2.fa.gz -> GCF_000005845.2.vgi.
  Index files are saved in -O/--out-dir if given, or in the directory of
  each sequence file. A manifest "build-info.toml" is also written.

Index structures:
  exact:  sorted k-mers (k <= 32) or k-mer hashes (k > 32), no false positives
          for k <= 32.
  bloom:  bloom filters with a false positive rate of --fpr, smaller.

Attention:
  1. All k-mers consisting of A, C, G, T only are indexed. Use the same
     -k/--kmer value for probe design.
  2. Failures of some files are reported and these files are skipped.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		setLogLevel(false)
		defer startProfile(opt.Profile)()

		verbose := opt.Verbose || opt.Log2File
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

		// ---------------------------------------------------------------
		// basic flags

		k := getFlagPositiveInt(cmd, "kmer")
		canonical := getFlagBool(cmd, "canonical")
		force := getFlagBool(cmd, "force")
		recursive := getFlagBool(cmd, "recursive")
		fpr := getFlagFloat64(cmd, "fpr")

		structure, err := membership.ParseKind(getFlagString(cmd, "structure"))
		if err != nil {
			checkError(errs.Config("structure", err))
		}

		inDir := getFlagPath(cmd, "in-dir")
		if inDir == "" {
			checkError(errs.Config("in-dir", fmt.Errorf("flag -I/--in-dir needed")))
		}

		outDir := getFlagPath(cmd, "out-dir")
		if outDir != "" {
			outDir = filepath.Clean(outDir)
		}

		reFileStr := getFlagString(cmd, "file-regexp")
		if !reIgnoreCase.MatchString(reFileStr) {
			reFileStr = reIgnoreCaseStr + reFileStr
		}
		reFile, err := regexp.Compile(reFileStr)
		if err != nil {
			checkError(errs.Config("file-regexp", errors.Wrapf(err, "failed to parse regular expression for matching file: %s", reFileStr)))
		}

		bopt := &IndexBuildingOptions{
			NumCPUs:   opt.NumCPUs,
			Verbose:   opt.Verbose,
			Force:     force,
			OutDir:    outDir,
			K:         k,
			Canonical: canonical,
			Structure: structure,
			FPR:       fpr,
		}
		checkError(prepareIndexBuilding(inDir, bopt))

		// ---------------------------------------------------------------
		// input files

		if verbose {
			log.Infof("VisioGen v%s", VERSION)
			log.Info("  https://github.com/shenwei356/visiogen")
			log.Info()

			log.Info("checking input files ...")
		}

		files, err := getFileListFromDir(inDir, reFile, recursive, opt.NumCPUs)
		if err != nil {
			checkError(errs.IO(inDir, errors.Wrapf(err, "walking dir")))
		}
		if len(files) == 0 {
			checkError(errs.Input(inDir, fmt.Errorf("no files matching regular expression: %s", reFileStr)))
		}
		if verbose {
			log.Infof("  %d input file(s) given", len(files))

			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Infof("input directory: %s (recursive: %v)", inDir, recursive)
			log.Infof("  regular expression of input files: %s", reFileStr)
			if outDir != "" {
				log.Infof("output directory: %s", outDir)
			} else {
				log.Infof("output directory: directories of input files")
			}
			log.Infof("k-mer size: %d", k)
			log.Infof("canonical k-mers: %v", canonical)
			if structure == membership.Bloom {
				log.Infof("structure: %s, false positive rate: %v", structure, fpr)
			} else {
				log.Infof("structure: %s", structure)
			}
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
			log.Infof("building indexes ...")
		}

		// ---------------------------------------------------------------

		summary, err := BuildIndexes(files, bopt)
		if summary != nil {
			infoDir := outDir
			if infoDir == "" {
				infoDir = inDir
			}
			fileInfo := filepath.Join(infoDir, FileBuildInfo)
			if e := writeBuildInfo(fileInfo, summary, bopt); e != nil {
				log.Warningf("failed to write build information: %s", e)
			} else if verbose {
				log.Infof("build information saved to %s", fileInfo)
			}
		}
		checkError(err)

		if verbose {
			log.Infof("finished building %d off-target indexes from %d files in %s",
				len(summary.Built), len(files), time.Since(timeStart))
			if len(summary.Failed) > 0 {
				log.Warningf("%d files failed", len(summary.Failed))
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(buildCmd)

	// -----------------------------  input  -----------------------------

	buildCmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory containing FASTA/Q files. Directory symlinks are followed.`))

	buildCmd.Flags().StringP("file-regexp", "r", `\.(f[aq](st[aq])?|fna)(\.gz|\.xz|\.zst|\.bz2)?$`,
		formatFlagUsage(`Regular expression for matching sequence files in -I/--in-dir, case ignored.`))

	// -----------------------------  output  -----------------------------

	buildCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory. By default, index files are saved along with sequence files.`))

	buildCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existed index files.`))

	// -----------------------------  index  -----------------------------

	buildCmd.Flags().BoolP("canonical", "c", true,
		formatFlagUsage(`Index canonical k-mers. Use --canonical=false to index k-mers as they are.`))

	buildCmd.Flags().StringP("structure", "", "exact",
		formatFlagUsage(`Index structure. Available: exact, bloom.`))

	buildCmd.Flags().Float64P("fpr", "", membership.DefaultFPR,
		formatFlagUsage(`False positive rate of bloom filters.`))

	buildCmd.SetUsageTemplate(usageTemplate("-I <seqs dir> [-O <out dir>] [-k <k>]"))
}

var reIgnoreCaseStr = "(?i)"
var reIgnoreCase = regexp.MustCompile(`\(\?i\)`)
