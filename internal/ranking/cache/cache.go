// internal/ranking/cache/cache.go

// Package cache is the JSON result cache for ranking runs. It stores three
// kinds of entries: run status records, run-scoped results, and the stable
// job+feedback result slot consulted by the synchronous read path. An absent
// key is a normal negative result, not an error. Entries carry no TTL and
// persist until overwritten.
package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/redis/go-redis/v9"

	"recruiter-backend/internal/common/database"
	"recruiter-backend/internal/common/errors"
	"recruiter-backend/internal/models"
	"recruiter-backend/internal/ranking/keys"
)

type ResultCache struct {
	redis *database.RedisClient
}

func New(rdb *database.RedisClient) *ResultCache {
	return &ResultCache{redis: rdb}
}

// SetStatus overwrites the status record for a run.
func (c *ResultCache) SetStatus(ctx context.Context, runID string, status models.RunStatus) error {
	return c.setJSON(ctx, keys.StatusKey(runID), status)
}

// GetStatus returns the status record for a run, or ok=false when the run id
// is unknown.
func (c *ResultCache) GetStatus(ctx context.Context, runID string) (models.RunStatus, bool, error) {
	var status models.RunStatus
	ok, err := c.getJSON(ctx, keys.StatusKey(runID), &status)
	return status, ok, err
}

// SetResult writes the merged snapshot under the run-scoped result key.
func (c *ResultCache) SetResult(ctx context.Context, runID string, result *models.JobSnapshot) error {
	return c.setJSON(ctx, keys.ResultKey(runID), result)
}

// GetResult returns the run-scoped result, or ok=false while the run has not
// finished (or the run id is unknown).
func (c *ResultCache) GetResult(ctx context.Context, runID string) (*models.JobSnapshot, bool, error) {
	var snap models.JobSnapshot
	ok, err := c.getJSON(ctx, keys.ResultKey(runID), &snap)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &snap, true, nil
}

// SetStable writes the merged snapshot under the stable job+feedback key.
// Last writer wins across runs sharing the key.
func (c *ResultCache) SetStable(ctx context.Context, jobID, fingerprint string, result *models.JobSnapshot) error {
	return c.setJSON(ctx, keys.StableKey(jobID, fingerprint), result)
}

// GetStable returns the memoized result for a job+feedback pair, if any.
func (c *ResultCache) GetStable(ctx context.Context, jobID, fingerprint string) (*models.JobSnapshot, bool, error) {
	var snap models.JobSnapshot
	ok, err := c.getJSON(ctx, keys.StableKey(jobID, fingerprint), &snap)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &snap, true, nil
}

func (c *ResultCache) setJSON(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.NewCacheFailureError(err)
	}
	if err := c.redis.Set(ctx, key, raw, 0); err != nil {
		return errors.NewCacheFailureError(err)
	}
	return nil
}

func (c *ResultCache) getJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	raw, err := c.redis.Get(ctx, key)
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, errors.NewCacheFailureError(err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, errors.NewCacheFailureError(err)
	}
	return true, nil
}
