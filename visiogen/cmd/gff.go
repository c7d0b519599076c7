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

	"github.com/shenwei356/visiogen/visiogen/cmd/errs"
	"github.com/shenwei356/visiogen/visiogen/cmd/region"
	"github.com/spf13/cobra"
)

var gffCmd = &cobra.Command{
	Use:   "gff",
	Short: "Design probes for genes of an annotated reference",
	Long: `Design probes for genes of an annotated reference

Input:
  1. A reference sequence file in FASTA/Q format (-f/--fasta), plain or compressed.
  2. The GFF3 annotation of the reference (-a/--gff).
  3. Genes (-g/--genes and/or --gene-file), matched against the attributes
     "Name", "gene", and "ID" in order. All genes must exist.

Steps:
  1. Regions of genes are extracted from the reference, and reverse
     complemented for genes on the negative strand. Flanking bases
     can be added with --flank, which only take effects with --allow-outside.
  2. K-mers (-k/--kmer) are generated with a sliding window, k-mers with
     bases other than A, C, G, T are skipped unless --keep-ambiguous.
  3. K-mers are filtered by GC content (-l/--min-gc, -m/--max-gc, --gc-halves,
     --skip-gc), the center base (-b/--center-base), homopolymers
     (--max-homopolymer), and the uniqueness in the reference, i.e.,
     k-mers also found outside of the gene are removed.
  4. K-mers are searched in off-target indexes (-i/--off-target-dir),
     and those found in more than --max-hits indexes are discarded.
  5. Optionally, only the top -n/--max-probes probes with the highest
     complexity, i.e., 1 - (longest homopolymer length)/k, are kept for each gene.

Output:
  <prefix>.tsv          details of all k-mers.
  <prefix>.fasta        retained (and selected) probes.
  <prefix>.summary.toml summary of the run.
  <prefix>.hits.png     histogram of off-target hits (--plot).

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		popt := getProbeOptions(cmd, opt)

		// ---------------------------------------------------------------
		// input

		fileRef := getFlagPath(cmd, "fasta")
		fileGFF := getFlagPath(cmd, "gff")
		if fileRef == "" {
			checkError(errs.Config("fasta", fmt.Errorf("flag -f/--fasta needed")))
		}
		if fileGFF == "" {
			checkError(errs.Config("gff", fmt.Errorf("flag -a/--gff needed")))
		}

		genes := splitGenes(getFlagStringSlice(cmd, "genes"))
		if fileGenes := getFlagPath(cmd, "gene-file"); fileGenes != "" {
			_genes, err := region.ReadGeneList(fileGenes)
			checkError(err)
			genes = append(genes, _genes...)
		}
		if len(genes) == 0 {
			checkError(errs.Config("genes", fmt.Errorf("no genes given, please use -g/--genes or --gene-file")))
		}

		flank := getFlagNonNegativeInt(cmd, "flank")
		if flank > 0 && !popt.AllowOutside {
			log.Warningf("flanking bases are added but k-mers in them are skipped without --allow-outside")
		}

		src := &region.AnnotationSource{
			Reference:  fileRef,
			Annotation: fileGFF,
			Genes:      genes,
			Flank:      flank,
		}

		runProbeDesign(opt, popt, src)
	},
}

func init() {
	RootCmd.AddCommand(gffCmd)

	gffCmd.Flags().StringP("fasta", "f", "",
		formatFlagUsage(`Reference sequence file in FASTA/Q format.`))

	gffCmd.Flags().StringP("gff", "a", "",
		formatFlagUsage(`Annotation file in GFF3 format.`))

	gffCmd.Flags().StringSliceP("genes", "g", []string{},
		formatFlagUsage(`Comma-separated gene names/IDs.`))

	gffCmd.Flags().StringP("gene-file", "", "",
		formatFlagUsage(`File of gene names/IDs, one per line.`))

	gffCmd.Flags().IntP("flank", "", 0,
		formatFlagUsage(`Number of flanking bases added to both sides of genes.`))

	gffCmd.SetUsageTemplate(usageTemplate("-f <ref.fa> -a <ref.gff3> -g <genes> [-i <off-target dir>] [-o <prefix>]"))
}
