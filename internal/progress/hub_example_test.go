package progress

import (
	"context"
	"fmt"
	"time"
)

type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error {
	return f(ctx, batch)
}

func (sinkFunc) Close(context.Context) error {
	return nil
}

// ExampleHub_Emit counts expanded nodes through a custom sink.
func ExampleHub_Emit() {
	expanded := 0
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 1,
		MaxBatchWait:   time.Second,
	}, sinkFunc(func(_ context.Context, batch []Event) error {
		for _, evt := range batch {
			if evt.Stage == StageNodeDone && evt.State == "expanded" {
				expanded++
			}
		}
		return nil
	}))

	hub.Emit(Event{RunID: "run", TS: time.Unix(0, 0), Stage: StageNodeDone, Key: "A", State: "expanded"})
	hub.Emit(Event{RunID: "run", TS: time.Unix(0, 0), Stage: StageNodeDone, Key: "B", State: "dropped"})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("expanded nodes: %d\n", expanded)
	// Output:
	// expanded nodes: 1
}
