package llm

import (
	"context"
	"log/slog"
	"sync"
)

// Reply is the outcome of one fan-out call
type Reply struct {
	Model string
	Text  string
	Err   error
}

// CallAll issues the same messages to every model concurrently and joins
// before returning. Failed models are reported in their Reply but never
// abort the batch; results keep the input model order regardless of
// completion order.
func CallAll(ctx context.Context, p Provider, models []string, messages []Message) []Reply {
	replies := make([]Reply, len(models))
	var wg sync.WaitGroup

	for i, m := range models {
		wg.Add(1)
		go func(idx int, modelID string) {
			defer wg.Done()

			text, err := p.Call(ctx, modelID, messages)
			if err != nil {
				slog.Warn("model call failed", "model", modelID, "error", err)
			}
			replies[idx] = Reply{Model: modelID, Text: text, Err: err}
		}(i, m)
	}

	wg.Wait()
	return replies
}

// CallEach issues a distinct prompt per model concurrently. prompts must be
// parallel to models. Same failure isolation as CallAll.
func CallEach(ctx context.Context, p Provider, models []string, prompts [][]Message) []Reply {
	replies := make([]Reply, len(models))
	var wg sync.WaitGroup

	for i, m := range models {
		wg.Add(1)
		go func(idx int, modelID string) {
			defer wg.Done()

			text, err := p.Call(ctx, modelID, prompts[idx])
			if err != nil {
				slog.Warn("model call failed", "model", modelID, "error", err)
			}
			replies[idx] = Reply{Model: modelID, Text: text, Err: err}
		}(i, m)
	}

	wg.Wait()
	return replies
}
