package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/youtube-graph-crawler/internal/crawler"
)

func reconcileFixture() (*Store, *EdgeLog) {
	s := NewStore()
	s.Upsert("A", crawler.Patch{ID: strPtr("UCa"), Title: strPtr("Alpha")})
	s.Upsert("UCx", crawler.Patch{ID: strPtr("UCx"), Title: strPtr("Xeno")})
	s.Upsert("UCp", crawler.Patch{})

	log := NewEdgeLog()
	log.Append("UCa", "UCx")
	log.Append("UCa", "UCgone")
	log.Append("UCa", "UCp")
	log.Append("UCa", "UCx")
	return s, log
}

func TestReconcileEdgesDropsDanglingAndRenames(t *testing.T) {
	t.Parallel()

	s, log := reconcileFixture()
	got := ReconcileEdges(log.All(), s)

	require.Equal(t, []crawler.Edge{
		{Source: "Alpha", Target: "Xeno"},
		{Source: "Alpha", Target: "UCp"},
		{Source: "Alpha", Target: "Xeno"},
	}, got)
	require.Equal(t, 4, log.Len(), "pure reconciliation must not touch the log")
}

func TestReconcileEdgesIdempotent(t *testing.T) {
	t.Parallel()

	s, log := reconcileFixture()
	once := ReconcileEdges(log.All(), s)
	twice := ReconcileEdges(once, s)
	require.Equal(t, once, twice)
}

func TestReconcileEdgesKeepsRawWhenTitleMissing(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Upsert("UCn", crawler.Patch{ID: strPtr("UCn")})
	got := ReconcileEdges([]crawler.Edge{{Source: "UCsrc", Target: "UCn"}}, s)
	require.Equal(t, []crawler.Edge{{Source: "UCsrc", Target: "UCn"}}, got)
}

func TestEdgeLogReconcileReplacesLog(t *testing.T) {
	t.Parallel()

	s, log := reconcileFixture()
	got := log.Reconcile(s)
	require.Len(t, got, 3)
	require.Equal(t, got, log.All())
}

func TestEdgeLogAllReturnsCopy(t *testing.T) {
	t.Parallel()

	log := NewEdgeLog()
	log.Append("a", "b")
	edges := log.All()
	edges[0].Target = "z"
	require.Equal(t, "b", log.All()[0].Target)
}
