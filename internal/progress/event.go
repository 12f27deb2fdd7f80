package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageNodeDone   Stage = "NODE_DONE"
	StageCheckpoint Stage = "CHECKPOINT"
	StageRunDone    Stage = "RUN_DONE"
	StageRunError   Stage = "RUN_ERROR"
)

// Event captures one crawl milestone.
type Event struct {
	// RunID identifies the crawl run.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Key and Depth describe the node for NODE_DONE events.
	Key   string
	Depth int
	// State is the terminal node state for NODE_DONE events.
	State string
	// Nodes and Edges are graph sizes after the milestone.
	Nodes int
	Edges int
	// Sequence numbers checkpoints from 1.
	Sequence int
	// URI points at the written nodes table for snapshot milestones.
	URI string
	// Dur is the fetch latency for nodes and the run duration for RUN_DONE.
	Dur time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageNodeDone:
		if e.Key == "" {
			return errors.New("node done requires key")
		}
		if e.State == "" {
			return errors.New("node done requires state")
		}
	case StageCheckpoint:
		if e.Sequence <= 0 {
			return errors.New("checkpoint requires sequence")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
