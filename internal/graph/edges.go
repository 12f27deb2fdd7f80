package graph

import "github.com/JakeFAU/youtube-graph-crawler/internal/crawler"

// EdgeLog is an append-only, insertion-ordered list of directed edges.
// Duplicate edges are kept; each one is a separate "featured by" relation.
type EdgeLog struct {
	edges []crawler.Edge
}

// NewEdgeLog returns an empty EdgeLog.
func NewEdgeLog() *EdgeLog {
	return &EdgeLog{}
}

// Append records the edge source -> target.
func (l *EdgeLog) Append(source, target string) {
	l.edges = append(l.edges, crawler.Edge{Source: source, Target: target})
}

// All returns a copy of the edges in insertion order.
func (l *EdgeLog) All() []crawler.Edge {
	return append([]crawler.Edge(nil), l.edges...)
}

// Len returns the number of edges.
func (l *EdgeLog) Len() int {
	return len(l.edges)
}

// Reconcile replaces the log with ReconcileEdges(l.All(), store) and returns
// the result. It is destructive and meant for the final snapshot only.
func (l *EdgeLog) Reconcile(store *Store) []crawler.Edge {
	l.edges = ReconcileEdges(l.edges, store)
	return l.All()
}

// ReconcileEdges drops edges whose target no longer resolves in store and
// rewrites each surviving endpoint to the title of the record whose resolved
// id matches it. Endpoints without a matching titled record keep their raw
// value. The store is never modified.
//
// A target resolves when it is a store key or already equals the title of a
// fetched record, so reconciling a reconciled list yields the same list.
func ReconcileEdges(edges []crawler.Edge, store *Store) []crawler.Edge {
	titles := make(map[string]struct{})
	for _, rec := range store.Records() {
		if rec.Found() && rec.Title != nil {
			titles[*rec.Title] = struct{}{}
		}
	}

	out := make([]crawler.Edge, 0, len(edges))
	for _, e := range edges {
		if !store.Has(e.Target) {
			if _, ok := titles[e.Target]; !ok {
				continue
			}
		}
		out = append(out, crawler.Edge{
			Source: displayName(store, e.Source),
			Target: displayName(store, e.Target),
		})
	}
	return out
}

func displayName(store *Store, endpoint string) string {
	rec, ok := store.LookupID(endpoint)
	if !ok || rec.Title == nil {
		return endpoint
	}
	return *rec.Title
}
