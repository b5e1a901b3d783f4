package qdrantdb

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// payloadIndexes are created on the internal collection so department and article filters stay fast
var payloadIndexes = []struct {
	field     string
	fieldType qdrant.FieldType
}{
	{FieldArticleID, qdrant.FieldType_FieldTypeInteger},
	{FieldDepartment, qdrant.FieldType_FieldTypeInteger},
	{FieldSlug, qdrant.FieldType_FieldTypeKeyword},
}

// EnsureCollection creates the internal article collection and its payload indexes when missing.
// It reports whether the collection was created.
func EnsureCollection(ctx context.Context, client *qdrant.Client, collection string, dimensions int) (bool, error) {
	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", collection, err)
	}
	if exists {
		return false, nil
	}

	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return false, fmt.Errorf("create collection %s: %w", collection, err)
	}

	for _, idx := range payloadIndexes {
		_, err := client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			FieldName:      idx.field,
			FieldType:      qdrant.PtrOf(idx.fieldType),
		})
		if err != nil {
			return true, fmt.Errorf("create payload index %s: %w", idx.field, err)
		}
	}
	return true, nil
}

// Ping checks that the Qdrant server answers
func Ping(ctx context.Context, client *qdrant.Client) error {
	if _, err := client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}
