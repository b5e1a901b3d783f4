package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var sourcesJSON bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect external knowledge sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enabled external sources",
	Args:  cobra.NoArgs,
	RunE:  runSourcesList,
}

var sourcesValidateCmd = &cobra.Command{
	Use:   "validate <id>...",
	Short: "Show which source ids would be accepted by the API",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSourcesValidate,
}

func init() {
	sourcesListCmd.Flags().BoolVar(&sourcesJSON, "json", false, "output the catalog as JSON")
	sourcesCmd.AddCommand(sourcesListCmd, sourcesValidateCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSourcesList(cmd *cobra.Command, _ []string) error {
	registry, err := loadRegistry(newLogger())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sourcesJSON {
		data, err := json.MarshalIndent(registry.Catalog(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal catalog: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if registry.Len() == 0 {
		fmt.Fprintln(out, "No external sources configured.")
		return nil
	}
	for _, s := range registry.Sources() {
		fmt.Fprintf(out, "%s\t%s\t(collection %s)\n", s.ID, s.Label, s.Collection)
		for _, sub := range s.SubSources {
			fmt.Fprintf(out, "  %s.%s\t%s\n", s.ID, sub.ID, sub.Label)
		}
	}
	return nil
}

func runSourcesValidate(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry(newLogger())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	valid := make(map[string]bool)
	for _, id := range registry.ValidateIDs(args) {
		valid[id] = true
	}
	for _, id := range args {
		if valid[id] {
			fmt.Fprintf(out, "ok\t%s\t%s\n", id, registry.Label(id))
		} else {
			fmt.Fprintf(out, "unknown\t%s\n", id)
		}
	}
	return nil
}
