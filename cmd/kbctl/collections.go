package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kunskapsportal-search-api/internal/config"
	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository/qdrantdb"
	schemaconfig "github.com/kunskapsportal-search-api/pkg/schema/config"
)

var collectionDimensions int

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Manage the internal Qdrant collection",
}

var collectionsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the article collection and its payload indexes if missing",
	Args:  cobra.NoArgs,
	RunE:  runCollectionsInit,
}

func init() {
	collectionsInitCmd.Flags().IntVar(&collectionDimensions, "dimensions", 0, "vector size (default EMBEDDING_DIMENSIONS)")
	collectionsCmd.AddCommand(collectionsInitCmd)
	rootCmd.AddCommand(collectionsCmd)
}

func runCollectionsInit(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	dims := collectionDimensions
	if dims <= 0 {
		dims = schemaconfig.Load().EmbeddingDimensions
	}

	client, err := qdrantdb.NewClient(models.Connection{
		Host:   cfg.QdrantHost,
		Port:   cfg.QdrantPort,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: cfg.QdrantUseTLS,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	created, err := qdrantdb.EnsureCollection(cmd.Context(), client, cfg.QdrantCollection, dims)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if created {
		fmt.Fprintf(out, "created collection %s (%d dimensions, cosine)\n", cfg.QdrantCollection, dims)
	} else {
		fmt.Fprintf(out, "collection %s already exists\n", cfg.QdrantCollection)
	}
	return nil
}
