package http

import (
	"bufio"
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vigil/internal/core/domain"
	"vigil/internal/infrastructure/display"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLiveTestServer(t *testing.T, sink *display.HTTPSink) (*httptest.Server, *LiveHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewLiveHandler(sink, 10*time.Millisecond, zap.NewNop().Sugar())
	h.SetupRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, h
}

func renderedSink(t *testing.T) *display.HTTPSink {
	t.Helper()
	sink := display.NewHTTPSink(t.TempDir(), zap.NewNop().Sugar())
	sink.Render(&domain.Frame{
		Seq:       1,
		Timestamp: time.Now(),
		Width:     8,
		Height:    4,
		Pixels:    bytes.Repeat([]byte{100}, 32),
	}, domain.Status{Label: "LIVE", Monitor: "cam-1", Healthy: true, State: domain.StateSampling})
	return sink
}

func TestStatus_ReturnsLatest(t *testing.T) {
	server, _ := newLiveTestServer(t, renderedSink(t))

	resp, err := http.Get(server.URL + "/live/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), `"label":"LIVE"`)
	assert.Contains(t, buf.String(), `"monitor":"cam-1"`)
}

func TestStreamMJPEG_EmitsFrameParts(t *testing.T) {
	server, _ := newLiveTestServer(t, renderedSink(t))

	req, err := http.NewRequest(http.MethodGet, server.URL+"/live/mjpeg", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Contains(t, resp.Header.Get("Content-Type"), "multipart/x-mixed-replace")

	reader := bufio.NewReader(resp.Body)
	deadline := time.After(2 * time.Second)
	found := false
	for !found {
		select {
		case <-deadline:
			t.Fatal("no frame part within deadline")
		default:
		}
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.Contains(line, "image/jpeg") {
			found = true
		}
	}
}

func TestWebSocket_PushesStatusAndAcceptsCommands(t *testing.T) {
	server, h := newLiveTestServer(t, renderedSink(t))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/live/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var status struct {
		Label string `json:"label"`
	}
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, "LIVE", status.Label)

	require.NoError(t, conn.WriteJSON(map[string]string{"command": "save_frame"}))

	select {
	case cmd := <-h.Commands():
		assert.Equal(t, domain.CommandSaveFrame, cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("command not forwarded")
	}
}

func TestWebSocket_IgnoresUnknownCommands(t *testing.T) {
	server, h := newLiveTestServer(t, renderedSink(t))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/live/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"command": "launch"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"command": "pause"}))

	select {
	case cmd := <-h.Commands():
		assert.Equal(t, domain.CommandPause, cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("command not forwarded")
	}
}

// brokenWriter starts failing writes after failAt calls, like a client that
// disconnected mid-part.
type brokenWriter struct {
	*httptest.ResponseRecorder
	writes int
	failAt int
}

func (b *brokenWriter) Write(p []byte) (int, error) {
	b.writes++
	if b.writes >= b.failAt {
		return 0, errors.New("broken pipe")
	}
	return b.ResponseRecorder.Write(p)
}

func TestStreamMJPEG_StopsWhenClientGoesAway(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewLiveHandler(renderedSink(t), time.Millisecond, zap.NewNop().Sugar())

	// Fail on the third write: the part header and the JPEG body go
	// through, the trailing boundary write does not.
	w := &brokenWriter{ResponseRecorder: httptest.NewRecorder(), failAt: 3}
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/live/mjpeg", nil)

	done := make(chan struct{})
	go func() {
		h.StreamMJPEG(c)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StreamMJPEG kept looping after the client's writes started failing")
	}
}
