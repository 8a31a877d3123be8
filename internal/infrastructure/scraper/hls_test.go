package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"vigil/internal/core/domain"
	"vigil/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScraper() *hlsScraper {
	cfg := Config{Retry: retry.Config{Enabled: false}}
	return NewHLSScraper(cfg, zap.NewNop().Sugar()).(*hlsScraper)
}

func TestScrape_ExtractsReachablePlaylists(t *testing.T) {
	streams := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dead.m3u8" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer streams.Close()

	page := fmt.Sprintf(`<html><head><title>City Cams Directory</title></head><body>
		<a href="%s/live/a.m3u8">cam a</a>
		<script>var src = "%s/live/b.m3u8?token=1";</script>
		<a href="%s/dead.m3u8">gone</a>
		<a href="%s/live/a.m3u8">duplicate</a>
	</body></html>`, streams.URL, streams.URL, streams.URL, streams.URL)

	directory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer directory.Close()

	s := newTestScraper()
	cams, err := s.Scrape(context.Background(), directory.URL)
	require.NoError(t, err)
	require.Len(t, cams, 2)

	assert.Equal(t, "City Cams Directory 1", cams[0].Name)
	assert.Equal(t, streams.URL+"/live/a.m3u8", cams[0].URL)
	assert.Equal(t, domain.KindHLS, cams[0].Kind)
	assert.Equal(t, streams.URL+"/live/b.m3u8?token=1", cams[1].URL)
}

func TestScrape_RetriesTransientPageFailures(t *testing.T) {
	var hits atomic.Int32
	directory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "<html><title>Cams</title></html>")
	}))
	defer directory.Close()

	cfg := Config{Retry: retry.Config{Enabled: true, MaxAttempts: 2, InitialDelay: 1, MaxDelay: 1, Multiplier: 1}}
	s := NewHLSScraper(cfg, zap.NewNop().Sugar()).(*hlsScraper)

	cams, err := s.Scrape(context.Background(), directory.URL)
	require.NoError(t, err)
	assert.Empty(t, cams)
	assert.Equal(t, int32(2), hits.Load())
}

func TestScrape_UnreachableDirectoryFails(t *testing.T) {
	s := newTestScraper()

	_, err := s.Scrape(context.Background(), "http://127.0.0.1:1/nope")
	assert.Error(t, err)
}
