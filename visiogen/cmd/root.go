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

	"github.com/spf13/cobra"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "visiogen",
	Short: "k-mer probe design from annotated genes or assembly graphs",
	Long: fmt.Sprintf(`   VisioGen: k-mer probe design from annotated genes or assembly graphs

 Version: v%s
  Author: Wei Shen <shenwei356@gmail.com>
    Code: https://github.com/shenwei356/visiogen

Steps:
  1. Optionally build off-target indexes from a directory of genomes:
       visiogen build -I genomes/ -O off-target/
  2. Design probes for genes of a reference:
       visiogen gff -f ref.fa -a ref.gff3 -g geneA,geneB -i off-target/
     or for core segments of an assembly graph:
       visiogen graph -g graph.gfa -t 0.95 -i off-target/

`, VERSION),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	RootCmd.CompletionOptions.DisableDefaultCmd = true
	RootCmd.SetUsageTemplate(usageTemplate(""))
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}

func init() {
	// -----------------------------  general  -----------------------------

	RootCmd.PersistentFlags().IntP("threads", "j", 0,
		formatFlagUsage("Number of CPU cores to use. By default, all available cores are used."))

	RootCmd.PersistentFlags().BoolP("quiet", "", false,
		formatFlagUsage("Do not print any verbose information. But you can write them to a file with --log."))

	RootCmd.PersistentFlags().StringP("log", "", "",
		formatFlagUsage("Log file."))

	RootCmd.PersistentFlags().StringP("profile", "", "",
		formatFlagUsage("Write a CPU (cpu) or memory (mem) profile to the current directory."))
	RootCmd.PersistentFlags().MarkHidden("profile")

	// -----------------------------  off-target  -----------------------------

	RootCmd.PersistentFlags().StringP("off-target-dir", "i", "",
		formatFlagUsage(`Directory containing off-target index files (*.vgi) created by "visiogen build". `+
			`Without it, all probes passing the filters are kept.`))

	RootCmd.PersistentFlags().BoolP("recursive", "R", false,
		formatFlagUsage("Search index files or sequence files in sub-directories too. Directory symlinks are followed."))

	RootCmd.PersistentFlags().IntP("max-hits", "", 5,
		formatFlagUsage("Maximum number of off-target indexes a probe can hit."))

	RootCmd.PersistentFlags().BoolP("count-all-hits", "", false,
		formatFlagUsage("Query all indexes for each probe, instead of stopping once --max-hits is exceeded."))

	// -----------------------------  k-mer  -----------------------------

	RootCmd.PersistentFlags().IntP("kmer", "k", 50,
		formatFlagUsage("K-mer size, i.e., the length of probes."))

	RootCmd.PersistentFlags().BoolP("allow-outside", "", false,
		formatFlagUsage("Allow k-mers extending out of the biological region, i.e., into flanks (gff --flank). "+
			"It also disables the reference uniqueness check of the gff command."))

	RootCmd.PersistentFlags().BoolP("keep-ambiguous", "", false,
		formatFlagUsage("Keep k-mers containing bases other than A, C, G, T."))

	// -----------------------------  filter  -----------------------------

	RootCmd.PersistentFlags().StringP("center-base", "b", "",
		formatFlagUsage("The base at the center of probes, i.e., the ((k-1)/2)-th base (0-based), case ignored."))

	RootCmd.PersistentFlags().Float64P("min-gc", "l", 44,
		formatFlagUsage("Minimum GC content (%) of probes."))

	RootCmd.PersistentFlags().Float64P("max-gc", "m", 72,
		formatFlagUsage("Maximum GC content (%) of probes."))

	RootCmd.PersistentFlags().BoolP("skip-gc", "", false,
		formatFlagUsage("Do not filter probes by GC content."))

	RootCmd.PersistentFlags().BoolP("gc-halves", "", false,
		formatFlagUsage("Check GC content of both halves of probes instead of the whole sequences."))

	RootCmd.PersistentFlags().IntP("max-homopolymer", "", 0,
		formatFlagUsage("Maximum length of homopolymers in probes (0 for no limit)."))

	// -----------------------------  selection  -----------------------------

	RootCmd.PersistentFlags().IntP("max-probes", "n", 0,
		formatFlagUsage("Maximum number of probes kept for each region, ranked by complexity, "+
			"i.e., 1 - (longest homopolymer length)/k. Ties are broken by the position (0 for all)."))

	// -----------------------------  output  -----------------------------

	RootCmd.PersistentFlags().StringP("out-prefix", "o", "probes",
		formatFlagUsage(`Output prefix. Output files: <prefix>.tsv, <prefix>.fasta, <prefix>.summary.toml.`))

	RootCmd.PersistentFlags().BoolP("gzip", "", false,
		formatFlagUsage(`Compress the TSV output with gzip.`))

	RootCmd.PersistentFlags().BoolP("plot", "", false,
		formatFlagUsage(`Plot a histogram of off-target hits to <prefix>.hits.png.`))

	RootCmd.PersistentFlags().BoolP("verbose-kmers", "", false,
		formatFlagUsage(`Log the disposition of every k-mer at the debug level.`))
}
