// Package vertex queries a deployed Vertex AI Vector Search index of article chunks.
package vertex

import (
	"context"
	"fmt"
	"strconv"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	aiplatformpb "cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/kunskapsportal-search-api/internal/models"
	"github.com/kunskapsportal-search-api/internal/repository"
	"google.golang.org/api/option"
)

var _ repository.VectorSearchRepository = (*ArticleIndex)(nil)

// DepartmentNamespace is the restrict namespace holding each datapoint's department id
const DepartmentNamespace = "department"

// Config locates the deployed index
type Config struct {
	ProjectID       string
	Location        string
	IndexEndpointID string
	DeployedIndexID string
	// PublicEndpointDomain overrides the regional API host
	PublicEndpointDomain string
}

// IndexEndpoint returns the index endpoint resource name
func (c Config) IndexEndpoint() string {
	return fmt.Sprintf("projects/%s/locations/%s/indexEndpoints/%s", c.ProjectID, c.Location, c.IndexEndpointID)
}

func (c Config) apiEndpoint() string {
	if c.PublicEndpointDomain != "" {
		return c.PublicEndpointDomain + ":443"
	}
	return c.Location + "-aiplatform.googleapis.com:443"
}

// NeighborFinder is the part of aiplatform.MatchClient the index needs
type NeighborFinder interface {
	FindNeighbors(ctx context.Context, req *aiplatformpb.FindNeighborsRequest, opts ...gax.CallOption) (*aiplatformpb.FindNeighborsResponse, error)
}

// ChunkLookup hydrates datapoint ids into hits; Vertex stores vectors only
type ChunkLookup interface {
	ChunksByID(ctx context.Context, ids []string) (map[string]models.SearchHit, error)
}

// ArticleIndex implements repository.VectorSearchRepository on Vertex AI Vector Search
type ArticleIndex struct {
	config Config
	finder NeighborFinder
	chunks ChunkLookup
	close  func() error
}

// NewArticleIndex dials the match service for cfg
func NewArticleIndex(ctx context.Context, cfg Config, chunks ChunkLookup) (*ArticleIndex, error) {
	client, err := aiplatform.NewMatchClient(ctx, option.WithEndpoint(cfg.apiEndpoint()))
	if err != nil {
		return nil, fmt.Errorf("create match client: %w", err)
	}
	idx := NewArticleIndexWith(cfg, client, chunks)
	idx.close = client.Close
	return idx, nil
}

// NewArticleIndexWith wraps an existing finder
func NewArticleIndexWith(cfg Config, finder NeighborFinder, chunks ChunkLookup) *ArticleIndex {
	return &ArticleIndex{config: cfg, finder: finder, chunks: chunks}
}

// Close releases the match client
func (r *ArticleIndex) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// SearchArticles finds the nearest chunks and returns them hydrated, in index order
func (r *ArticleIndex) SearchArticles(ctx context.Context, q repository.VectorQuery) ([]models.SearchHit, error) {
	resp, err := r.finder.FindNeighbors(ctx, &aiplatformpb.FindNeighborsRequest{
		IndexEndpoint:   r.config.IndexEndpoint(),
		DeployedIndexId: r.config.DeployedIndexID,
		Queries: []*aiplatformpb.FindNeighborsRequest_Query{{
			Datapoint: &aiplatformpb.IndexDatapoint{
				FeatureVector: q.Vector,
				Restricts:     departmentRestricts(q.DepartmentIDs),
			},
			NeighborCount: int32(q.Limit),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("find neighbors: %w", err)
	}

	ids, scores := rankNeighbors(resp)
	if len(ids) == 0 {
		return []models.SearchHit{}, nil
	}

	found, err := r.chunks.ChunksByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	hits := make([]models.SearchHit, 0, len(ids))
	for _, id := range ids {
		hit, ok := found[id]
		if !ok {
			continue
		}
		hit.Score = scores[id]
		hits = append(hits, hit)
	}
	return hits, nil
}

// rankNeighbors reads datapoint ids in relevance order with cosine similarity scores
func rankNeighbors(resp *aiplatformpb.FindNeighborsResponse) ([]string, map[string]float64) {
	if resp == nil || len(resp.NearestNeighbors) == 0 {
		return nil, nil
	}
	neighbors := resp.NearestNeighbors[0].GetNeighbors()
	ids := make([]string, 0, len(neighbors))
	scores := make(map[string]float64, len(neighbors))
	for _, n := range neighbors {
		id := n.GetDatapoint().GetDatapointId()
		if id == "" {
			continue
		}
		if _, dup := scores[id]; dup {
			continue
		}
		ids = append(ids, id)
		scores[id] = 1 - n.GetDistance()
	}
	return ids, scores
}

func departmentRestricts(departmentIDs []int64) []*aiplatformpb.IndexDatapoint_Restriction {
	if len(departmentIDs) == 0 {
		return nil
	}
	allow := make([]string, len(departmentIDs))
	for i, id := range departmentIDs {
		allow[i] = strconv.FormatInt(id, 10)
	}
	return []*aiplatformpb.IndexDatapoint_Restriction{
		{Namespace: DepartmentNamespace, AllowList: allow},
	}
}
