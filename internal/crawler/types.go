package crawler

import (
	"strconv"
	"time"
)

// Class is the size/activity tier assigned to a channel. Lower numbers rank higher.
type Class int

// Tier values assigned by the classifier and connector promotion.
const (
	ClassMajor        Class = 1
	ClassEstablished  Class = 2
	ClassConnector    Class = 3
	ClassUnclassified Class = 4
)

// String returns the tier name used in logs.
func (c Class) String() string {
	switch c {
	case ClassMajor:
		return "major"
	case ClassEstablished:
		return "established"
	case ClassConnector:
		return "connector"
	case ClassUnclassified:
		return "unclassified"
	default:
		return "class(" + strconv.Itoa(int(c)) + ")"
	}
}

// Attr names a channel attribute as it appears in node snapshots.
type Attr string

// Snapshot attribute names.
const (
	AttrID            Attr = "id"
	AttrTitle         Attr = "title"
	AttrDescription   Attr = "description"
	AttrCreatedAt     Attr = "created_at"
	AttrSubscribers   Attr = "subscribers"
	AttrVideoCount    Attr = "video_count"
	AttrViewCount     Attr = "view_count"
	AttrTopics        Attr = "topics"
	AttrSeedGroup     Attr = "seed_group"
	AttrDepth         Attr = "depth"
	AttrFound         Attr = "found"
	AttrClass         Attr = "class"
	AttrTargetedCount Attr = "targeted_count"
)

// Record is the crawl's view of one channel. Optional attributes stay nil
// until metadata for them has been fetched.
type Record struct {
	Key             string
	ID              *string
	Title           *string
	Description     *string
	CreatedAt       *time.Time
	SubscriberCount *uint64
	VideoCount      *uint64
	ViewCount       *uint64
	// Topics is nil when unknown and empty when the channel has none.
	Topics        []string
	SeedGroup     string
	Depth         int
	Class         Class
	TargetedCount int
}

// Found reports whether channel metadata was fetched for the record.
func (r Record) Found() bool {
	return r.ID != nil
}

// Attributes lists the attribute names the record currently carries.
func (r Record) Attributes() []Attr {
	attrs := []Attr{AttrSeedGroup, AttrDepth, AttrFound, AttrClass, AttrTargetedCount}
	if r.ID != nil {
		attrs = append(attrs, AttrID)
	}
	if r.Title != nil {
		attrs = append(attrs, AttrTitle)
	}
	if r.Description != nil {
		attrs = append(attrs, AttrDescription)
	}
	if r.CreatedAt != nil {
		attrs = append(attrs, AttrCreatedAt)
	}
	if r.SubscriberCount != nil {
		attrs = append(attrs, AttrSubscribers)
	}
	if r.VideoCount != nil {
		attrs = append(attrs, AttrVideoCount)
	}
	if r.ViewCount != nil {
		attrs = append(attrs, AttrViewCount)
	}
	if r.Topics != nil {
		attrs = append(attrs, AttrTopics)
	}
	return attrs
}

// Clone returns a deep copy so callers cannot mutate store-owned memory.
func (r Record) Clone() Record {
	out := r
	out.ID = cloneString(r.ID)
	out.Title = cloneString(r.Title)
	out.Description = cloneString(r.Description)
	if r.CreatedAt != nil {
		t := *r.CreatedAt
		out.CreatedAt = &t
	}
	out.SubscriberCount = cloneUint(r.SubscriberCount)
	out.VideoCount = cloneUint(r.VideoCount)
	out.ViewCount = cloneUint(r.ViewCount)
	if r.Topics != nil {
		out.Topics = append([]string{}, r.Topics...)
	}
	return out
}

// Patch carries a partial update for a Record. Nil fields leave the stored
// value untouched. Depth and SeedGroup only apply when the record is created.
type Patch struct {
	ID              *string
	Title           *string
	Description     *string
	CreatedAt       *time.Time
	SubscriberCount *uint64
	VideoCount      *uint64
	ViewCount       *uint64
	Topics          []string
	SeedGroup       *string
	Depth           *int
	Class           *Class
}

// Edge is a directed "features" relation between two channel identifiers.
type Edge struct {
	Source string
	Target string
}

// NodeState tracks where a channel is in the crawl lifecycle.
type NodeState string

// Node lifecycle states.
const (
	StatePending     NodeState = "pending"
	StateFetching    NodeState = "fetching"
	StateExpanded    NodeState = "expanded"
	StateLeafFetched NodeState = "leaf_fetched"
	StateDropped     NodeState = "dropped"
	StateFailed      NodeState = "failed"
)

// FetchRequest captures everything needed to fetch one channel.
type FetchRequest struct {
	Identifier string
	// IsUsername selects handle lookup; only seeds are given as handles.
	IsUsername bool
	// WithNeighbors requests the featured-channel list. Leaf fetches skip it.
	WithNeighbors bool
}

// Outcome distinguishes a resolved channel from a confirmed-missing one.
type Outcome int

// Fetch outcomes. Indeterminate failures are reported as errors instead.
const (
	OutcomeFound Outcome = iota + 1
	OutcomeNotFound
)

// ChannelMetadata is the adapter's translation of a remote channel document.
type ChannelMetadata struct {
	ID              string
	Title           *string
	Description     *string
	CreatedAt       *time.Time
	SubscriberCount *uint64
	VideoCount      *uint64
	ViewCount       *uint64
	Topics          []string
	Neighbors       []string
	// Degraded names the response sections that were missing or unparsable.
	Degraded []string
}

// Patch converts fetched metadata into a store update.
func (m ChannelMetadata) Patch() Patch {
	id := m.ID
	return Patch{
		ID:              &id,
		Title:           m.Title,
		Description:     m.Description,
		CreatedAt:       m.CreatedAt,
		SubscriberCount: m.SubscriberCount,
		VideoCount:      m.VideoCount,
		ViewCount:       m.ViewCount,
		Topics:          m.Topics,
	}
}

// FetchResult is returned by a Fetcher implementation.
type FetchResult struct {
	Outcome  Outcome
	Metadata ChannelMetadata
	Duration time.Duration
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneUint(n *uint64) *uint64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
