// Package graph holds the in-memory channel graph built during a crawl: the
// record store keyed by channel key and the append-only edge log.
package graph

import (
	"fmt"

	"github.com/JakeFAU/youtube-graph-crawler/internal/crawler"
)

// Store maps channel keys to records. It is the single source of truth for
// discovered nodes. Store is not safe for concurrent use; the crawl loop owns it.
type Store struct {
	records map[string]*crawler.Record
	order   []string
	byID    map[string]string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*crawler.Record),
		byID:    make(map[string]string),
	}
}

// Upsert merges patch into the record stored under key, creating it when
// absent. Non-nil patch fields overwrite; nil fields never clobber known data.
// Depth and SeedGroup are applied only on creation.
func (s *Store) Upsert(key string, patch crawler.Patch) {
	rec, ok := s.records[key]
	if !ok {
		rec = &crawler.Record{Key: key, Class: crawler.ClassUnclassified}
		if patch.Depth != nil {
			rec.Depth = *patch.Depth
		}
		if patch.SeedGroup != nil {
			rec.SeedGroup = *patch.SeedGroup
		}
		s.records[key] = rec
		s.order = append(s.order, key)
	}
	if patch.ID != nil {
		id := *patch.ID
		rec.ID = &id
		if _, taken := s.byID[id]; !taken {
			s.byID[id] = key
		}
	}
	if patch.Title != nil {
		v := *patch.Title
		rec.Title = &v
	}
	if patch.Description != nil {
		v := *patch.Description
		rec.Description = &v
	}
	if patch.CreatedAt != nil {
		v := *patch.CreatedAt
		rec.CreatedAt = &v
	}
	if patch.SubscriberCount != nil {
		v := *patch.SubscriberCount
		rec.SubscriberCount = &v
	}
	if patch.VideoCount != nil {
		v := *patch.VideoCount
		rec.VideoCount = &v
	}
	if patch.ViewCount != nil {
		v := *patch.ViewCount
		rec.ViewCount = &v
	}
	if patch.Topics != nil {
		rec.Topics = append([]string{}, patch.Topics...)
	}
	if patch.Class != nil {
		rec.Class = *patch.Class
	}
}

// Discover records that an edge targets key. A new placeholder is created with
// the given seed group and depth and a targeted count of one; an existing
// record only has its targeted count incremented. It reports whether the
// record was created.
func (s *Store) Discover(key, seedGroup string, depth int) bool {
	if rec, ok := s.records[key]; ok {
		rec.TargetedCount++
		return false
	}
	s.Upsert(key, crawler.Patch{SeedGroup: &seedGroup, Depth: &depth})
	s.records[key].TargetedCount = 1
	return true
}

// SetClass overwrites the tier of an existing record.
func (s *Store) SetClass(key string, class crawler.Class) error {
	rec, ok := s.records[key]
	if !ok {
		return fmt.Errorf("set class %q: %w", key, crawler.ErrRecordNotFound)
	}
	rec.Class = class
	return nil
}

// Get returns a copy of the record stored under key.
func (s *Store) Get(key string) (crawler.Record, error) {
	rec, ok := s.records[key]
	if !ok {
		return crawler.Record{}, fmt.Errorf("get %q: %w", key, crawler.ErrRecordNotFound)
	}
	return rec.Clone(), nil
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	_, ok := s.records[key]
	return ok
}

// Delete removes the record under key. It reports whether a record was removed.
func (s *Store) Delete(key string) bool {
	rec, ok := s.records[key]
	if !ok {
		return false
	}
	delete(s.records, key)
	if rec.ID != nil && s.byID[*rec.ID] == key {
		delete(s.byID, *rec.ID)
		s.reindexID(*rec.ID)
	}
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Size returns the number of records.
func (s *Store) Size() int {
	return len(s.records)
}

// Keys returns record keys in insertion order.
func (s *Store) Keys() []string {
	return append([]string(nil), s.order...)
}

// Records returns copies of all records in insertion order.
func (s *Store) Records() []crawler.Record {
	out := make([]crawler.Record, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.records[key].Clone())
	}
	return out
}

// LookupID returns the record whose resolved id equals id. Ids are assumed to
// be unique; when they are not, the earliest inserted record wins.
func (s *Store) LookupID(id string) (crawler.Record, bool) {
	key, ok := s.byID[id]
	if !ok {
		return crawler.Record{}, false
	}
	return s.records[key].Clone(), true
}

func (s *Store) reindexID(id string) {
	for _, key := range s.order {
		rec := s.records[key]
		if rec != nil && rec.ID != nil && *rec.ID == id {
			s.byID[id] = key
			return
		}
	}
}
