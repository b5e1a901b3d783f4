package services

import (
	"context"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/kunskapsportal-search-api/pkg/schema/config"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

// Predictor is the part of aiplatform.PredictionClient the embedder calls
type Predictor interface {
	Predict(ctx context.Context, req *aiplatformpb.PredictRequest, opts ...gax.CallOption) (*aiplatformpb.PredictResponse, error)
}

// VertexEmbedder embeds with a Vertex AI text embedding model
type VertexEmbedder struct {
	predictor  Predictor
	model      string
	dimensions int
	close      func() error
}

// NewVertexEmbedder dials the regional prediction endpoint for cfg.VertexModel
func NewVertexEmbedder(ctx context.Context, cfg *config.Config) (*VertexEmbedder, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("GCP_PROJECT_ID is required for Vertex AI embeddings")
	}
	client, err := aiplatform.NewPredictionClient(ctx,
		option.WithEndpoint(cfg.GCPLocation+"-aiplatform.googleapis.com:443"))
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}
	e := NewVertexEmbedderWith(client, vertexModelName(cfg.GCPProjectID, cfg.GCPLocation, cfg.VertexModel), cfg.EmbeddingDimensions)
	e.close = client.Close
	return e, nil
}

// NewVertexEmbedderWith wraps an existing predictor
func NewVertexEmbedderWith(p Predictor, model string, dimensions int) *VertexEmbedder {
	return &VertexEmbedder{predictor: p, model: model, dimensions: dimensions}
}

func vertexModelName(project, location, model string) string {
	return fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", project, location, model)
}

// Close closes the prediction client
func (e *VertexEmbedder) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

// Embed sends one instance with its task type and reads the single prediction back
func (e *VertexEmbedder) Embed(ctx context.Context, text string, task TaskType) ([]float32, error) {
	req, err := e.request(text, task)
	if err != nil {
		return nil, err
	}
	resp, err := e.predictor.Predict(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vertex AI prediction failed: %w", err)
	}
	if len(resp.GetPredictions()) == 0 {
		return nil, fmt.Errorf("vertex AI returned no predictions")
	}
	return parsePrediction(resp.GetPredictions()[0])
}

func (e *VertexEmbedder) request(text string, task TaskType) (*aiplatformpb.PredictRequest, error) {
	instance, err := structpb.NewValue(map[string]any{
		"content":   text,
		"task_type": string(task),
	})
	if err != nil {
		return nil, fmt.Errorf("build instance: %w", err)
	}
	req := &aiplatformpb.PredictRequest{
		Endpoint:  e.model,
		Instances: []*structpb.Value{instance},
	}
	if e.dimensions > 0 {
		req.Parameters, err = structpb.NewValue(map[string]any{"outputDimensionality": e.dimensions})
		if err != nil {
			return nil, fmt.Errorf("build parameters: %w", err)
		}
	}
	return req, nil
}

// parsePrediction reads {"embeddings": {"values": [...]}}
func parsePrediction(prediction *structpb.Value) ([]float32, error) {
	values := prediction.GetStructValue().GetFields()["embeddings"].GetStructValue().GetFields()["values"].GetListValue()
	if values == nil {
		return nil, fmt.Errorf("prediction has no embeddings.values")
	}
	vec := make([]float32, len(values.GetValues()))
	for i, v := range values.GetValues() {
		vec[i] = float32(v.GetNumberValue())
	}
	return vec, nil
}
