package frontier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

// LoadSeedFile reads seed descriptors from a JSON file. Entries with an
// empty URL are rejected here so enqueue results stay meaningful.
func LoadSeedFile(path string) ([]rfp.Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	var seeds []rfp.Seed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	for i := range seeds {
		if seeds[i].URL == "" {
			return nil, fmt.Errorf("seed %d has no url", i)
		}
		if seeds[i].Priority == 0 {
			seeds[i].Priority = DefaultPriority
		}
	}
	return seeds, nil
}

// EnqueueSeeds adds each seed to the frontier and returns per-seed results.
// A failing seed never aborts the rest of the batch.
func EnqueueSeeds(ctx context.Context, f rfp.Frontier, seeds []rfp.Seed, logger *zap.Logger) []rfp.SeedResult {
	results := make([]rfp.SeedResult, 0, len(seeds))
	for _, seed := range seeds {
		added, err := f.Add(ctx, seed.URL, seed.Priority, seed.Depth, seed.Meta)
		if err != nil {
			logger.Warn("seed enqueue failed", zap.String("url", seed.URL), zap.Error(err))
		}
		results = append(results, rfp.SeedResult{URL: seed.URL, Added: added, Err: err})
	}
	return results
}
