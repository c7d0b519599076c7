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

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Design probes for core segments of an assembly graph",
	Long: `Design probes for core segments of an assembly graph

Input:
  A graph in GFA format (-g/--gfa), where the strain support of each
  segment is given in the tag "SR:i". Optional tags "SO:i" and "SN:Z"
  give the offset and name of the sequence a segment comes from.

Core segments:
  cutoff = rounding(threshold x maximum strain support)
  Segments with a strain support >= cutoff are used as candidate regions.
  The rounding rule is set by --rounding, e.g., 0.95 x 4 gives 4 with ceil,
  and 3 with floor.

The following steps are the same as the gff command.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		popt := getProbeOptions(cmd, opt)

		fileGFA := getFlagPath(cmd, "gfa")
		if fileGFA == "" {
			checkError(errs.Config("gfa", fmt.Errorf("flag -g/--gfa needed")))
		}

		threshold := getFlagFloat64(cmd, "threshold")
		checkError(region.CheckThreshold(threshold))

		rounding, err := region.ParseRounding(getFlagString(cmd, "rounding"))
		checkError(err)

		src := &region.GraphSource{
			File:      fileGFA,
			Threshold: threshold,
			Rounding:  rounding,
		}

		runProbeDesign(opt, popt, src)
	},
}

func init() {
	RootCmd.AddCommand(graphCmd)

	graphCmd.Flags().StringP("gfa", "g", "",
		formatFlagUsage(`Graph file in GFA format.`))

	graphCmd.Flags().Float64P("threshold", "t", 0.95,
		formatFlagUsage(`Minimum fraction of the maximum strain support, range: [0, 1].`))

	graphCmd.Flags().StringP("rounding", "", "ceil",
		formatFlagUsage(`Rounding rule of the strain support cutoff. Available: ceil, floor, round.`))

	graphCmd.SetUsageTemplate(usageTemplate("-g <graph.gfa> [-t <threshold>] [-i <off-target dir>] [-o <prefix>]"))
}
