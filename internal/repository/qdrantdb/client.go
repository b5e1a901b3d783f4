// Package qdrantdb implements the internal article index and external source
// searchers on top of Qdrant's gRPC API.
package qdrantdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxMessageSize = 32 * 1024 * 1024

// pointQuerier is the subset of *qdrant.Client used by the searchers
type pointQuerier interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

// NewClient opens a gRPC client for one Qdrant connection
func NewClient(conn models.Connection) (*qdrant.Client, error) {
	port := conn.Port
	if port == 0 {
		port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   conn.Host,
		Port:   port,
		APIKey: conn.APIKey,
		UseTLS: conn.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant %s:%d: %w", conn.Host, port, err)
	}
	return client, nil
}

// wrapQueryError maps a missing collection to repository.ErrCollectionNotFound
func wrapQueryError(collection string, err error) error {
	if status.Code(err) == codes.NotFound || errors.Is(err, repository.ErrCollectionNotFound) {
		return fmt.Errorf("query collection %s: %w", collection, repository.ErrCollectionNotFound)
	}
	return fmt.Errorf("query collection %s: %w", collection, err)
}

// pointID renders a point id as a string
func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}
