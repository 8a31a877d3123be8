package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vigil/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fakeBin(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func newTestSearch(bin string) *ytDlpSearch {
	cfg := Config{BinPath: bin, Timeout: 2 * time.Second}
	return NewYtDlpSearch(cfg, zap.NewNop().Sugar()).(*ytDlpSearch)
}

const searchResults = `{
  "entries": [
    {"id": "live1", "title": "Shibuya Crossing LIVE", "url": "https://www.youtube.com/watch?v=live1", "duration": null, "live_status": "is_live"},
    {"id": "vod1", "title": "Tokyo walking tour", "url": "https://www.youtube.com/watch?v=vod1", "duration": 3600.0, "live_status": "not_live"},
    {"id": "live2", "title": "Harbor cam 24/7 LIVE", "url": "", "duration": 120.0, "live_status": ""}
  ]
}`

func TestSearchLive_FiltersOutRecordings(t *testing.T) {
	bin := fakeBin(t, `cat <<'EOF'
`+searchResults+`
EOF`)
	s := newTestSearch(bin)

	cams, err := s.SearchLive(context.Background(), "tokyo cam", 10)
	require.NoError(t, err)
	require.Len(t, cams, 2)

	assert.Equal(t, domain.StreamIdentifier("live1"), cams[0].StreamID)
	assert.Equal(t, domain.KindYouTube, cams[0].Kind)

	// LIVE in the title counts even with a duration, and a missing URL is
	// rebuilt from the entry ID.
	assert.Equal(t, domain.StreamIdentifier("live2"), cams[1].StreamID)
	assert.Equal(t, "https://www.youtube.com/watch?v=live2", cams[1].URL)
}

func TestSearchLive_CommandFailurePropagates(t *testing.T) {
	bin := fakeBin(t, `exit 1`)
	s := newTestSearch(bin)

	_, err := s.SearchLive(context.Background(), "anything", 5)
	assert.Error(t, err)
}

func TestProbeHeight_PicksTallestFormat(t *testing.T) {
	bin := fakeBin(t, `echo '{"height": 720, "formats": [{"height": 360}, {"height": 1080}, {"height": 0}]}'`)
	s := newTestSearch(bin)

	h, err := s.ProbeHeight(context.Background(), "https://www.youtube.com/watch?v=x")
	require.NoError(t, err)
	assert.Equal(t, 1080, h)
}

func TestProbeHeight_NoFormatsIsError(t *testing.T) {
	bin := fakeBin(t, `echo '{"formats": []}'`)
	s := newTestSearch(bin)

	_, err := s.ProbeHeight(context.Background(), "https://www.youtube.com/watch?v=x")
	assert.Error(t, err)
}
