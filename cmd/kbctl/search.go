package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kunskapsportal-search-api/internal/app"
	"github.com/kunskapsportal-search-api/internal/config"
	"github.com/kunskapsportal-search-api/internal/models"
	schemaconfig "github.com/kunskapsportal-search-api/pkg/schema/config"
)

var (
	searchMode        string
	searchDepartments []int64
	searchLimit       int
	searchJSON        bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a hybrid search against the configured backends",
	Long: `Runs the same exact, semantic or hybrid search as GET /search and prints
the ranked articles with score and match type.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", string(models.ModeHybrid), "exact, semantic or hybrid")
	searchCmd.Flags().Int64SliceVarP(&searchDepartments, "department", "d", nil, "restrict to department ids (subtrees included)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	a, err := app.New(cmd.Context(), config.Load(), schemaconfig.Load(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.Search.HybridSearch(cmd.Context(), models.HybridSearchRequest{
		Query:         args[0],
		Mode:          models.ParseSearchMode(searchMode),
		DepartmentIDs: searchDepartments,
		Limit:         searchLimit,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "%d of %d results (%s, %d ms)\n\n", len(resp.Results), resp.Total, resp.Mode, resp.Timings.TotalMs)
	for i, r := range resp.Results {
		fmt.Fprintf(out, "  [%d] %s (%.2f, %s)\n", i+1, r.Article.Title, r.Score, r.MatchType)
		if name := r.Article.Department.Name(); name != "" {
			fmt.Fprintf(out, "      %s\n", name)
		}
		if r.Article.URL != "" {
			fmt.Fprintf(out, "      %s\n", r.Article.URL)
		}
	}
	return nil
}
