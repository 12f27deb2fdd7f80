// Package classifier assigns size/activity tiers to fetched channels and
// promotes heavily referenced channels to connectors after a crawl.
package classifier

import (
	"time"

	"github.com/JakeFAU/youtube-graph-crawler/internal/crawler"
	"github.com/JakeFAU/youtube-graph-crawler/internal/graph"
)

// Config holds the tier thresholds.
type Config struct {
	RecencyYears        int
	MinVideos           uint64
	MajorSubscribers    uint64
	ConnectorMinTargets int
}

// DefaultConfig returns the thresholds used when none are configured.
func DefaultConfig() Config {
	return Config{
		RecencyYears:        5,
		MinVideos:           150,
		MajorSubscribers:    1_000_000,
		ConnectorMinTargets: 3,
	}
}

// Classifier implements the tier rules relative to a fixed crawl-start time.
type Classifier struct {
	cfg       Config
	threshold time.Time
}

// New creates a classifier whose recency threshold is now minus RecencyYears.
func New(cfg Config, now time.Time) *Classifier {
	def := DefaultConfig()
	if cfg.RecencyYears <= 0 {
		cfg.RecencyYears = def.RecencyYears
	}
	if cfg.MinVideos == 0 {
		cfg.MinVideos = def.MinVideos
	}
	if cfg.MajorSubscribers == 0 {
		cfg.MajorSubscribers = def.MajorSubscribers
	}
	if cfg.ConnectorMinTargets <= 0 {
		cfg.ConnectorMinTargets = def.ConnectorMinTargets
	}
	return &Classifier{
		cfg:       cfg,
		threshold: now.AddDate(-cfg.RecencyYears, 0, 0),
	}
}

// Threshold returns the creation-date cutoff for tiers 1 and 2.
func (c *Classifier) Threshold() time.Time {
	return c.threshold
}

// Classify returns the tier for rec. Records missing any field the rules read
// are unclassified.
func (c *Classifier) Classify(rec crawler.Record) crawler.Class {
	if rec.VideoCount == nil || rec.CreatedAt == nil || rec.SubscriberCount == nil {
		return crawler.ClassUnclassified
	}
	if *rec.VideoCount <= c.cfg.MinVideos || !rec.CreatedAt.Before(c.threshold) {
		return crawler.ClassUnclassified
	}
	if *rec.SubscriberCount > c.cfg.MajorSubscribers {
		return crawler.ClassMajor
	}
	return crawler.ClassEstablished
}

// PromoteConnectors marks every record targeted more than ConnectorMinTargets
// times and ranked below tier 2 as a connector. It returns how many records
// changed; a second pass changes none.
func (c *Classifier) PromoteConnectors(store *graph.Store) int {
	promoted := 0
	for _, rec := range store.Records() {
		if rec.TargetedCount <= c.cfg.ConnectorMinTargets || rec.Class <= crawler.ClassEstablished {
			continue
		}
		if rec.Class == crawler.ClassConnector {
			continue
		}
		if err := store.SetClass(rec.Key, crawler.ClassConnector); err == nil {
			promoted++
		}
	}
	return promoted
}
