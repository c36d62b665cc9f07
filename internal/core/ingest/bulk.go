package ingest

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/agenthands/strata/internal/logger"
)

// AddEpisodeBulk ingests a batch of episodes across a bounded worker pool.
// Statuses come back in input order; a failed episode records its error and
// the rest of the batch proceeds.
func (p *Pipeline) AddEpisodeBulk(ctx context.Context, episodes []EpisodeInput, opts Options) []Status {
	statuses := make([]Status, len(episodes))
	if len(episodes) == 0 {
		return statuses
	}

	workers := p.BulkWorkers
	if workers > len(episodes) {
		workers = len(episodes)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				statuses[i] = p.ingestOne(ctx, i, episodes[i], opts)
			}
		}()
	}

	for i := range episodes {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return statuses
}

func (p *Pipeline) ingestOne(ctx context.Context, index int, episode EpisodeInput, opts Options) Status {
	status := Status{Index: index}
	result, err := p.AddEpisode(ctx, episode, opts)
	if err != nil {
		status.Err = err
		status.Error = err.Error()
		logger.Get().Error("episode ingestion failed",
			zap.Int("index", index),
			zap.String("episode_name", episode.Name),
			zap.Error(err))
		return status
	}
	status.EpisodeUUID = result.EpisodeUUID
	status.Result = result
	return status
}
