package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/youtube-graph-crawler/internal/config"
	"github.com/JakeFAU/youtube-graph-crawler/internal/crawl"
	"github.com/JakeFAU/youtube-graph-crawler/internal/crawler"
)

type fakeApp struct {
	cfg     config.Config
	summary crawl.Summary
	runErr  error
	ran     bool
	closed  bool
}

func (f *fakeApp) Run(context.Context) (crawl.Summary, error) {
	f.ran = true
	return f.summary, f.runErr
}

func (f *fakeApp) Logger() *zap.Logger { return zap.NewNop() }

func (f *fakeApp) Config() config.Config { return f.cfg }

func (f *fakeApp) Close(context.Context) error {
	f.closed = true
	return nil
}

func validConfig() config.Config {
	return config.Config{
		Crawl:      config.CrawlConfig{SeedFile: "data/seed_nodes.csv", MaxDepth: 3, FinalWriteTimeoutSeconds: 60},
		Classifier: config.ClassifierConfig{RecencyYears: 5, ConnectorMinTargets: 3},
		YouTube:    config.YouTubeConfig{TimeoutSeconds: 15, MaxAttempts: 3},
		RateLimit:  config.RateLimitConfig{RequestsPerSecond: 5, Burst: 1},
		Output:     config.OutputConfig{Backend: config.BackendMemory, Prefix: "graph"},
	}
}

// withFakes swaps the package factories; callers must not run in parallel.
func withFakes(t *testing.T, fake *fakeApp, loadErr error) *string {
	t.Helper()
	origApp, origLoad := newApp, loadConfig
	t.Cleanup(func() { newApp, loadConfig = origApp, origLoad })

	var gotPath string
	loadConfig = func(path string) (config.Config, error) {
		gotPath = path
		if loadErr != nil {
			return config.Config{}, loadErr
		}
		return validConfig(), nil
	}
	newApp = func(_ context.Context, cfg config.Config) (App, error) {
		fake.cfg = cfg
		return fake, nil
	}
	return &gotPath
}

func TestCrawlCommandAppliesFlags(t *testing.T) {
	fake := &fakeApp{summary: crawl.Summary{RunID: "r1", Nodes: 4, States: map[crawler.NodeState]int{crawler.StateExpanded: 1}}}
	gotPath := withFakes(t, fake, nil)

	root := newRootCmd()
	root.SetArgs([]string{"crawl", "--config", "cfg.yaml", "--seeds", "seeds/other.csv", "--max-depth", "1", "--prefix", "runs/x"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	require.Equal(t, "cfg.yaml", *gotPath)
	require.True(t, fake.ran)
	require.True(t, fake.closed)
	require.Equal(t, "seeds/other.csv", fake.cfg.Crawl.SeedFile)
	require.Equal(t, 1, fake.cfg.Crawl.MaxDepth)
	require.Equal(t, "runs/x", fake.cfg.Output.Prefix)
}

func TestCrawlCommandKeepsConfigWithoutFlags(t *testing.T) {
	fake := &fakeApp{}
	withFakes(t, fake, nil)

	root := newRootCmd()
	root.SetArgs([]string{"crawl"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Equal(t, 3, fake.cfg.Crawl.MaxDepth)
	require.Equal(t, "graph", fake.cfg.Output.Prefix)
}

func TestCrawlCommandRejectsInvalidOverride(t *testing.T) {
	fake := &fakeApp{}
	withFakes(t, fake, nil)

	root := newRootCmd()
	root.SetArgs([]string{"crawl", "--max-depth=-2"})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "crawl.max_depth")
	require.False(t, fake.ran)
}

func TestCrawlCommandPropagatesRunError(t *testing.T) {
	fake := &fakeApp{runErr: errors.New("write final snapshot: bucket gone")}
	withFakes(t, fake, nil)

	root := newRootCmd()
	root.SetArgs([]string{"crawl"})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "run crawl")
	require.ErrorContains(t, err, "bucket gone")
	require.True(t, fake.closed)
}

func TestCrawlCommandConfigError(t *testing.T) {
	fake := &fakeApp{}
	withFakes(t, fake, errors.New("read config: missing"))

	root := newRootCmd()
	root.SetArgs([]string{"crawl"})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "load config")
	require.False(t, fake.ran)
}

func TestResolveAppMissing(t *testing.T) {
	t.Parallel()

	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
