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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/epubtran/internal/store"
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Manage the terminology glossary",
	Long: `Add, import, list, and delete terminology glossary entries.

LLM backends (openai, ollama) are told to render each source term as its
glossary target term. Useful for character names, places and invented
vocabulary that must stay consistent across a book.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return v.BindPFlag("cache.db", cmd.Flags().Lookup("db"))
	},
}

var (
	glossaryListSource string
	glossaryListTarget string
)

var glossaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all glossary entries",
	RunE: withStore(func(cmd *cobra.Command, args []string, db *store.Store) error {
		entries, err := db.ListGlossaryTerms(cmd.Context(), glossaryListSource, glossaryListTarget)
		if err != nil {
			return fmt.Errorf("failed to list glossary: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("Glossary is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSOURCE LANG\tTARGET LANG\tSOURCE TERM\tTARGET TERM")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.SourceLang, e.TargetLang, e.SourceTerm, e.TargetTerm)
		}
		return w.Flush()
	}),
}

var (
	glossaryAddSource string
	glossaryAddTarget string
)

var glossaryAddCmd = &cobra.Command{
	Use:   "add <source-term> <target-term>",
	Short: "Add or update a glossary entry",
	Long: `Add a glossary entry mapping a source-language term to a target-language term.

Example:
  epubtran glossary add "Hogwarts" "Гоґвортс" --source en --target uk`,
	Args: cobra.ExactArgs(2),
	RunE: withStore(func(cmd *cobra.Command, args []string, db *store.Store) error {
		if err := db.AddGlossaryTerm(cmd.Context(), glossaryAddSource, glossaryAddTarget, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to add glossary entry: %w", err)
		}
		fmt.Printf("Added: [%s→%s] %q → %q\n", glossaryAddSource, glossaryAddTarget, args[0], args[1])
		return nil
	}),
}

var glossaryImportCmd = &cobra.Command{
	Use:   "import <terms.csv>",
	Short: "Import glossary entries from a two-column CSV file",
	Long: `Import source,target term pairs from a CSV file. A header row whose
first cell is "source" is skipped; existing terms are updated. Nothing is
stored if any row is invalid.

Example:
  epubtran glossary import names.csv --source en --target pt`,
	Args: cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, args []string, db *store.Store) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()

		pairs, err := readTermPairs(f)
		if err != nil {
			return err
		}
		if err := db.ImportGlossary(cmd.Context(), glossaryAddSource, glossaryAddTarget, pairs); err != nil {
			return fmt.Errorf("failed to import glossary: %w", err)
		}
		fmt.Printf("Imported %d terms [%s→%s]\n", len(pairs), glossaryAddSource, glossaryAddTarget)
		return nil
	}),
}

func readTermPairs(r io.Reader) ([][2]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	var pairs [][2]string
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return pairs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read terms: %w", err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "source") {
			continue
		}
		src, dst := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if src == "" || dst == "" {
			return nil, fmt.Errorf("line %d: empty term", line)
		}
		pairs = append(pairs, [2]string{src, dst})
	}
}

var glossaryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a glossary entry by ID",
	Long: `Delete a glossary entry by its ID (shown in "epubtran glossary list").

Example:
  epubtran glossary delete gl_0f8fad5b-d9cb-469f-a165-70867728950e`,
	Args: cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, args []string, db *store.Store) error {
		if err := db.DeleteGlossaryTerm(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete glossary entry: %w", err)
		}
		fmt.Printf("Deleted glossary entry: %s\n", args[0])
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(glossaryCmd)

	glossaryCmd.PersistentFlags().String("db", "./data/epubtran.db", "Database path")

	glossaryListCmd.Flags().StringVarP(&glossaryListSource, "source", "s", "", "Filter by source language code (e.g. en)")
	glossaryListCmd.Flags().StringVarP(&glossaryListTarget, "target", "t", "", "Filter by target language code (e.g. uk)")

	for _, c := range []*cobra.Command{glossaryAddCmd, glossaryImportCmd} {
		c.Flags().StringVarP(&glossaryAddSource, "source", "s", "", "Source language code (e.g. en)")
		c.Flags().StringVarP(&glossaryAddTarget, "target", "t", "", "Target language code (e.g. uk)")
		c.MarkFlagRequired("source")
		c.MarkFlagRequired("target")
	}

	glossaryCmd.AddCommand(glossaryListCmd)
	glossaryCmd.AddCommand(glossaryAddCmd)
	glossaryCmd.AddCommand(glossaryImportCmd)
	glossaryCmd.AddCommand(glossaryDeleteCmd)
}
