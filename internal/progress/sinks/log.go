package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/youtube-graph-crawler/internal/progress"
)

// LogSink writes progress events as structured logs. Node completions are
// logged at debug level; run and checkpoint milestones at info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("progress")}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.Int("nodes", evt.Nodes),
			zap.Int("edges", evt.Edges),
		}
		switch evt.Stage {
		case progress.StageNodeDone:
			fields = append(fields,
				zap.String("key", evt.Key),
				zap.Int("depth", evt.Depth),
				zap.String("state", evt.State),
				zap.Duration("dur", evt.Dur),
			)
			s.logger.Debug("node done", fields...)
		case progress.StageCheckpoint:
			fields = append(fields, zap.Int("sequence", evt.Sequence), zap.String("uri", evt.URI))
			s.logger.Info("checkpoint written", fields...)
		case progress.StageRunError:
			fields = append(fields, zap.String("note", evt.Note))
			s.logger.Warn("run error", fields...)
		default:
			if evt.URI != "" {
				fields = append(fields, zap.String("uri", evt.URI))
			}
			if evt.Dur > 0 {
				fields = append(fields, zap.Duration("dur", evt.Dur))
			}
			s.logger.Info("run progress", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
