package youtube

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	yt "google.golang.org/api/youtube/v3"

	"github.com/JakeFAU/youtube-graph-crawler/internal/crawler"
)

type fakeLister struct {
	resp    *yt.ChannelListResponse
	err     error
	lookups []Lookup
}

func (f *fakeLister) ListChannels(_ context.Context, lookup Lookup) (*yt.ChannelListResponse, error) {
	f.lookups = append(f.lookups, lookup)
	return f.resp, f.err
}

func fullChannel() *yt.Channel {
	return &yt.Channel{
		Id: "UC123",
		Snippet: &yt.ChannelSnippet{
			Title:       "Example",
			Description: "about",
			PublishedAt: "2011-04-05T06:07:08Z",
		},
		Statistics: &yt.ChannelStatistics{
			SubscriberCount: 2_000_000,
			VideoCount:      300,
			ViewCount:       99,
		},
		TopicDetails: &yt.ChannelTopicDetails{
			TopicCategories: []string{"https://en.wikipedia.org/wiki/Music"},
		},
		BrandingSettings: &yt.ChannelBrandingSettings{
			Channel: &yt.ChannelSettings{
				FeaturedChannelsUrls: []string{"UCaaa", " UCbbb ", ""},
			},
		},
	}
}

func TestAdapterFetchExpand(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{resp: &yt.ChannelListResponse{Items: []*yt.Channel{fullChannel()}}}
	adapter := NewAdapter(lister, nil)

	res, err := adapter.Fetch(context.Background(), crawler.FetchRequest{
		Identifier:    "  example ",
		IsUsername:    true,
		WithNeighbors: true,
	})
	require.NoError(t, err)
	require.Equal(t, crawler.OutcomeFound, res.Outcome)

	require.Len(t, lister.lookups, 1)
	require.Equal(t, "example", lister.lookups[0].Identifier)
	require.True(t, lister.lookups[0].ByUsername)
	require.Equal(t, ExpandParts, lister.lookups[0].Parts)

	md := res.Metadata
	require.Equal(t, "UC123", md.ID)
	require.Equal(t, "Example", *md.Title)
	require.Equal(t, time.Date(2011, 4, 5, 6, 7, 8, 0, time.UTC), *md.CreatedAt)
	require.Equal(t, uint64(2_000_000), *md.SubscriberCount)
	require.Equal(t, uint64(300), *md.VideoCount)
	require.Equal(t, []string{"https://en.wikipedia.org/wiki/Music"}, md.Topics)
	require.Equal(t, []string{"UCaaa", "UCbbb"}, md.Neighbors)
	require.Empty(t, md.Degraded)
}

func TestAdapterFetchLeafSkipsBranding(t *testing.T) {
	t.Parallel()

	lister := &fakeLister{resp: &yt.ChannelListResponse{Items: []*yt.Channel{fullChannel()}}}
	res, err := NewAdapter(lister, nil).Fetch(context.Background(), crawler.FetchRequest{Identifier: "UC123"})
	require.NoError(t, err)
	require.Equal(t, LeafParts, lister.lookups[0].Parts)
	require.False(t, lister.lookups[0].ByUsername)
	require.Nil(t, res.Metadata.Neighbors)
}

func TestAdapterFetchNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		lister *fakeLister
	}{
		{name: "no items", lister: &fakeLister{resp: &yt.ChannelListResponse{}}},
		{name: "nil response", lister: &fakeLister{}},
		{name: "404", lister: &fakeLister{err: &googleapi.Error{Code: http.StatusNotFound}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := NewAdapter(tt.lister, nil).Fetch(context.Background(), crawler.FetchRequest{Identifier: "x"})
			require.NoError(t, err)
			require.Equal(t, crawler.OutcomeNotFound, res.Outcome)
		})
	}
}

func TestAdapterFetchFailure(t *testing.T) {
	t.Parallel()

	cause := &googleapi.Error{Code: http.StatusInternalServerError}
	_, err := NewAdapter(&fakeLister{err: cause}, nil).Fetch(context.Background(), crawler.FetchRequest{Identifier: "x"})
	require.ErrorIs(t, err, crawler.ErrFetchFailure)

	var apiErr *googleapi.Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusInternalServerError, apiErr.Code)
}

func TestAdapterFetchDegraded(t *testing.T) {
	t.Parallel()

	ch := &yt.Channel{
		Id:         "UCdeg",
		Snippet:    &yt.ChannelSnippet{Title: "Degraded", PublishedAt: "yesterday"},
		Statistics: &yt.ChannelStatistics{HiddenSubscriberCount: true, VideoCount: 10},
	}
	lister := &fakeLister{resp: &yt.ChannelListResponse{Items: []*yt.Channel{ch}}}
	res, err := NewAdapter(lister, nil).Fetch(context.Background(), crawler.FetchRequest{
		Identifier:    "UCdeg",
		WithNeighbors: true,
	})
	require.NoError(t, err)
	require.Equal(t, crawler.OutcomeFound, res.Outcome)

	md := res.Metadata
	require.Nil(t, md.CreatedAt)
	require.Nil(t, md.SubscriberCount)
	require.Equal(t, uint64(10), *md.VideoCount)
	require.Nil(t, md.Topics)
	require.Empty(t, md.Neighbors)
	require.ElementsMatch(t, []string{"snippet.publishedAt", "topicDetails", "brandingSettings"}, md.Degraded)
}
