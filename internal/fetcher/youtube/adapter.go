package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	yt "google.golang.org/api/youtube/v3"

	"github.com/JakeFAU/youtube-graph-crawler/internal/crawler"
	"github.com/JakeFAU/youtube-graph-crawler/internal/metrics"
)

// ChannelLister is the remote collaborator the adapter translates.
type ChannelLister interface {
	ListChannels(ctx context.Context, lookup Lookup) (*yt.ChannelListResponse, error)
}

// Adapter implements crawler.Fetcher on top of a ChannelLister.
type Adapter struct {
	lister ChannelLister
	logger *zap.Logger
	now    func() time.Time
}

var _ crawler.Fetcher = (*Adapter)(nil)

// NewAdapter wires the adapter.
func NewAdapter(lister ChannelLister, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		lister: lister,
		logger: logger.Named("youtube_adapter"),
		now:    time.Now,
	}
}

// Fetch resolves one channel. A confirmed-missing channel yields
// OutcomeNotFound; any other remote failure is wrapped in ErrFetchFailure.
// Missing or unparsable sections degrade to nil fields and never fail.
func (a *Adapter) Fetch(ctx context.Context, req crawler.FetchRequest) (crawler.FetchResult, error) {
	lookup := Lookup{
		Identifier: strings.TrimSpace(req.Identifier),
		ByUsername: req.IsUsername,
		Parts:      LeafParts,
	}
	if req.WithNeighbors {
		lookup.Parts = ExpandParts
	}

	start := a.now()
	resp, err := a.lister.ListChannels(ctx, lookup)
	took := a.now().Sub(start)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			metrics.ObserveAPIRequest(lookup.Mode(), "not_found", took)
			return crawler.FetchResult{Outcome: crawler.OutcomeNotFound, Duration: took}, nil
		}
		metrics.ObserveAPIRequest(lookup.Mode(), "error", took)
		return crawler.FetchResult{Duration: took}, fmt.Errorf("%w: %w", crawler.ErrFetchFailure, err)
	}
	if resp == nil || len(resp.Items) == 0 || resp.Items[0] == nil {
		metrics.ObserveAPIRequest(lookup.Mode(), "not_found", took)
		return crawler.FetchResult{Outcome: crawler.OutcomeNotFound, Duration: took}, nil
	}
	metrics.ObserveAPIRequest(lookup.Mode(), "found", took)

	md := translate(resp.Items[0], req.WithNeighbors)
	if md.ID == "" {
		// Without an id the channel cannot be told apart from a placeholder.
		md.Degraded = append(md.Degraded, "id")
		md.ID = lookup.Identifier
	}
	for _, section := range md.Degraded {
		metrics.ObserveDegradedSection(section)
	}
	if len(md.Degraded) > 0 {
		a.logger.Warn("degraded channel response",
			zap.String("identifier", lookup.Identifier),
			zap.Strings("sections", md.Degraded),
			zap.Error(crawler.ErrMalformed),
		)
	}
	return crawler.FetchResult{Outcome: crawler.OutcomeFound, Metadata: md, Duration: took}, nil
}

func translate(ch *yt.Channel, withNeighbors bool) crawler.ChannelMetadata {
	md := crawler.ChannelMetadata{ID: ch.Id}

	if sn := ch.Snippet; sn != nil {
		md.Title = stringPtr(sn.Title)
		md.Description = stringPtr(sn.Description)
		if ts, err := time.Parse(time.RFC3339, sn.PublishedAt); err == nil {
			ts = ts.UTC()
			md.CreatedAt = &ts
		} else {
			md.Degraded = append(md.Degraded, "snippet.publishedAt")
		}
	} else {
		md.Degraded = append(md.Degraded, "snippet")
	}

	if st := ch.Statistics; st != nil {
		if !st.HiddenSubscriberCount {
			md.SubscriberCount = uintPtr(st.SubscriberCount)
		}
		md.VideoCount = uintPtr(st.VideoCount)
		md.ViewCount = uintPtr(st.ViewCount)
	} else {
		md.Degraded = append(md.Degraded, "statistics")
	}

	if td := ch.TopicDetails; td != nil {
		md.Topics = append([]string{}, td.TopicCategories...)
	} else {
		md.Degraded = append(md.Degraded, "topicDetails")
	}

	if !withNeighbors {
		return md
	}
	md.Neighbors = []string{}
	if ch.BrandingSettings == nil || ch.BrandingSettings.Channel == nil {
		md.Degraded = append(md.Degraded, "brandingSettings")
		return md
	}
	for _, n := range ch.BrandingSettings.Channel.FeaturedChannelsUrls {
		if n = strings.TrimSpace(n); n != "" {
			md.Neighbors = append(md.Neighbors, n)
		}
	}
	return md
}

func stringPtr(s string) *string { return &s }

func uintPtr(n uint64) *uint64 { return &n }
