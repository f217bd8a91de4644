// internal/scoring/client.go

// Package scoring calls the external resume-scoring service. The service is
// a black box: any transport failure, non-2xx status, or payload that
// deviates from the response schema is a hard failure for the run.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"recruiter-backend/internal/common/errors"
	"recruiter-backend/internal/models"
)

// Request is the scoring service wire request.
type Request struct {
	JobID          string                     `json:"jobId"`
	JobDescription string                     `json:"job_description"`
	HumanFeedback  *models.StructuredFeedback `json:"human_feedback,omitempty"`
}

// Response is the scoring service wire response.
type Response struct {
	Candidates []models.CandidateScore `json:"candidates"`
}

// responseSchema rejects structurally invalid payloads before they reach the
// mapping stage.
const responseSchema = `{
	"type": "object",
	"required": ["candidates"],
	"properties": {
		"candidates": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["filename", "score", "explanation"],
				"properties": {
					"filename": {"type": "string"},
					"score": {"type": "number", "minimum": 0, "maximum": 100},
					"explanation": {"type": "string"}
				}
			}
		}
	}
}`

type Client struct {
	baseURL    string
	httpClient *http.Client
	schema     *gojsonschema.Schema
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(responseSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile response schema: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		schema: schema,
	}, nil
}

// Rank submits the scoring request and returns the per-candidate scores.
func (c *Client) Rank(ctx context.Context, req *Request) ([]models.CandidateScore, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewScoringFailedError(fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, errors.NewScoringFailedError(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NewScoringFailedError(fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewScoringFailedError(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.NewScoringFailedError(
			fmt.Errorf("scoring service returned status %d: %s", resp.StatusCode, string(body)))
	}

	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, errors.NewSchemaValidationFailedError(err.Error())
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, errors.NewSchemaValidationFailedError(strings.Join(details, "; "))
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.NewSchemaValidationFailedError(err.Error())
	}

	return parsed.Candidates, nil
}
