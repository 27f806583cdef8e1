package blockv

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the most ids one GetVatoms call may carry
const DefaultBatchSize = 100

// fetchConcurrency bounds parallel id batches
const fetchConcurrency = 4

// FetchVatoms fetches ids in batches of at most batchSize, concurrently,
// preserving batch order in the result
func FetchVatoms(ctx context.Context, api API, ids []string, batchSize int) (Objects, error) {
	if len(ids) == 0 {
		return Objects{}, nil
	}
	if batchSize <= 0 || batchSize > DefaultBatchSize {
		batchSize = DefaultBatchSize
	}

	batches := Chunk(ids, batchSize)
	results := make([]Objects, len(batches))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			objs, err := api.GetVatoms(ctx, batch)
			if err != nil {
				return err
			}
			results[i] = objs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Objects{}, err
	}

	var out Objects
	for _, r := range results {
		out.Merge(r)
	}
	return out, nil
}

// Chunk splits ids into slices of at most size elements
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

