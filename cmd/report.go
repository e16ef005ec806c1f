/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/epubtran/internal/quality"
)

var reportTop int

var reportCmd = &cobra.Command{
	Use:   "report <report.csv>",
	Short: "Summarise a CSV quality report",
	Long: `Read a quality report written by "epubtran translate --quality --report"
and print how many paragraphs were flagged, by signal and by part.

Example:
  epubtran report ./reports/book.csv --top 5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open report: %w", err)
		}
		defer f.Close()

		sum, err := quality.ReadSummary(f)
		if err != nil {
			return fmt.Errorf("failed to read report: %w", err)
		}

		pct := 0.0
		if sum.Paragraphs > 0 {
			pct = 100 * float64(sum.Flagged) / float64(sum.Paragraphs)
		}
		fmt.Printf("Paragraphs: %d\n", sum.Paragraphs)
		fmt.Printf("Flagged:    %d (%.1f%%)\n", sum.Flagged, pct)
		if sum.Flagged == 0 {
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\nSIGNAL\tFLAGGED")
		for _, r := range sum.Reasons() {
			fmt.Fprintf(w, "%s\t%d\n", r, sum.ByReason[r])
		}
		fmt.Fprintln(w, "\nPART\tFLAGGED")
		for i, p := range sum.Parts() {
			if reportTop > 0 && i >= reportTop {
				break
			}
			fmt.Fprintf(w, "%s\t%d\n", p, sum.ByPart[p])
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().IntVar(&reportTop, "top", 10, "Parts to list, most flagged first (0 = all)")
}
