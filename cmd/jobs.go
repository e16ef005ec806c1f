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
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent translation jobs",
	Long:  `List translation jobs recorded in the SQLite database, newest first.`,
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, map[string]string{"db": "cache.db"})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(v.GetString("cache.db"))
		if err != nil {
			return err
		}
		defer db.Close()

		jobs, err := db.ListJobs(cmd.Context(), jobsLimit)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tPAIR\tBACKEND\tPARTS\tSENTENCES\tCACHED\tFLAGGED\tSTARTED\tSOURCE\tERROR")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s→%s\t%s\t%d/%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
				j.ID, j.State, j.SourceLang, j.TargetLang, j.Backend,
				j.Parts-j.Skipped, j.Parts, j.Sentences, j.CacheHits, j.Flagged,
				j.StartedAt.Format("2006-01-02 15:04"), j.SourcePath, j.Error)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().String("db", "./data/epubtran.db", "Database path")
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "Number of jobs to show")
}
