package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindlyrobotics/sketchsync/internal/hub"
	"github.com/kindlyrobotics/sketchsync/internal/models"
	"github.com/kindlyrobotics/sketchsync/internal/ratelimit"
	"github.com/kindlyrobotics/sketchsync/internal/registry"
	"github.com/kindlyrobotics/sketchsync/internal/store"
	"github.com/kindlyrobotics/sketchsync/internal/syncer"
	"github.com/kindlyrobotics/sketchsync/internal/wsclient"
)

func newTestServer(t *testing.T) (wsURL, apiURL string) {
	t.Helper()
	log := zerolog.Nop()

	presence := hub.NewPresence(nil, log)
	h := hub.New(presence, log)
	go h.Run()

	drawings := store.NewMemory()
	socket := NewSocketHandler(h, registry.New(h), drawings, ratelimit.NewLimiter(nil), log)
	api := NewDrawingAPI(drawings, h, log)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	r := mux.NewRouter()
	r.HandleFunc("/ws", socket.ServeWs(upgrader))
	r.HandleFunc("/api/drawings/{sessionId}", api.SaveDrawing).Methods("POST")
	r.HandleFunc("/api/drawings/{sessionId}", api.GetDrawing).Methods("GET")

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", srv.URL
}

func dial(t *testing.T, url string) *wsclient.Client {
	t.Helper()
	client, err := wsclient.Dial(url, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnectAssignsSessionID(t *testing.T) {
	url, _ := newTestServer(t)
	client := dial(t, url)

	id, err := client.SessionID(2 * time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestSaveFetchRoundTrip(t *testing.T) {
	url, _ := newTestServer(t)
	client := dial(t, url)

	id, err := client.SessionID(2 * time.Second)
	require.NoError(t, err)
	require.NoError(t, client.Emit(models.EventJoinSession, models.JoinSessionPayload{SessionID: id}))

	sync := syncer.New(client)
	saved := make(chan string, 1)
	sync.OnSaved(func(message string) { saved <- message })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Nothing persisted yet: a fetch resolves empty without error.
	res, err := sync.Fetch(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, res.Strokes)

	local := []models.StrokePoint{
		{X: 1, Y: 1, LineWidth: 3, Color: "black"},
		{X: 2, Y: 2, Dragging: true, LineWidth: 3, Color: "black"},
	}
	require.NoError(t, sync.Save(id, local, nil))

	select {
	case msg := <-saved:
		assert.Equal(t, "Drawing saved successfully!", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no save confirmation")
	}

	// Events on one connection are handled in order, so the fetch sees the
	// completed save.
	res, err = sync.Fetch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, local, res.Strokes)
}

func TestDrawingBroadcastReachesSessionPeers(t *testing.T) {
	url, _ := newTestServer(t)
	a := dial(t, url)
	b := dial(t, url)

	_, err := a.SessionID(2 * time.Second)
	require.NoError(t, err)
	_, err = b.SessionID(2 * time.Second)
	require.NoError(t, err)

	received := make(chan models.DrawingPayload, 8)
	b.On(models.EventDrawing, func(data json.RawMessage) {
		var p models.DrawingPayload
		if err := json.Unmarshal(data, &p); err == nil {
			received <- p
		}
	})

	require.NoError(t, a.Emit(models.EventJoinSession, models.JoinSessionPayload{SessionID: "shared"}))
	require.NoError(t, b.Emit(models.EventJoinSession, models.JoinSessionPayload{SessionID: "shared"}))

	// A fetch round trip on b guarantees its joinSession has been processed.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = syncer.New(b).Fetch(ctx, "shared")
	require.NoError(t, err)

	require.NoError(t, a.Emit(models.EventDrawing, models.DrawingPayload{
		SessionID: "shared",
		Point:     models.StrokePoint{X: 5, Y: 5, LineWidth: 3, Color: "black"},
	}))

	select {
	case p := <-received:
		assert.Equal(t, float64(5), p.Point.X)
		assert.NotEmpty(t, p.From, "relays must identify the sender for stroke connectivity")
	case <-time.After(2 * time.Second):
		t.Fatal("peer never received the stroke")
	}
}

func TestRestSaveRepaintsSessionPeers(t *testing.T) {
	wsURL, apiURL := newTestServer(t)
	client := dial(t, wsURL)

	_, err := client.SessionID(2 * time.Second)
	require.NoError(t, err)

	updated := make(chan []models.StrokePoint, 4)
	client.On(models.EventStrokesUpdated, func(data json.RawMessage) {
		var strokes []models.StrokePoint
		if err := json.Unmarshal(data, &strokes); err == nil {
			updated <- strokes
		}
	})

	require.NoError(t, client.Emit(models.EventJoinSession, models.JoinSessionPayload{SessionID: "shared"}))

	// A fetch round trip guarantees the joinSession has been processed.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = syncer.New(client).Fetch(ctx, "shared")
	require.NoError(t, err)

	body, err := json.Marshal(map[string]interface{}{
		"strokes": []models.StrokePoint{{X: 9, Y: 9, LineWidth: 3, Color: "black"}},
	})
	require.NoError(t, err)
	resp, err := http.Post(apiURL+"/api/drawings/shared", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The REST save repaints joined websocket clients with the merged record.
	select {
	case strokes := <-updated:
		require.Len(t, strokes, 1)
		assert.Equal(t, float64(9), strokes[0].X)
	case <-time.After(2 * time.Second):
		t.Fatal("no strokesUpdated after the REST save")
	}
}

func TestRosterRemovalFlow(t *testing.T) {
	url, _ := newTestServer(t)
	a := dial(t, url)
	b := dial(t, url)

	_, err := a.SessionID(2 * time.Second)
	require.NoError(t, err)
	_, err = b.SessionID(2 * time.Second)
	require.NoError(t, err)

	rosters := make(chan []models.Participant, 8)
	a.On(models.EventUpdateUsers, func(data json.RawMessage) {
		var roster []models.Participant
		if err := json.Unmarshal(data, &roster); err == nil {
			rosters <- roster
		}
	})
	bErrors := make(chan models.MessagePayload, 4)
	b.On(models.EventErrorMessage, func(data json.RawMessage) {
		var p models.MessagePayload
		if err := json.Unmarshal(data, &p); err == nil {
			bErrors <- p
		}
	})
	bRemoved := make(chan struct{}, 1)
	b.On(models.EventRemoved, func(json.RawMessage) { bRemoved <- struct{}{} })

	waitRoster := func(size int) []models.Participant {
		for {
			select {
			case roster := <-rosters:
				if len(roster) == size {
					return roster
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("no roster of size %d", size)
				return nil
			}
		}
	}

	// Alice must be on the roster before bob joins, so she is the admin.
	require.NoError(t, a.Emit(models.EventJoin, models.JoinPayload{Username: "alice"}))
	roster := waitRoster(1)
	assert.True(t, roster[0].IsAdmin)

	require.NoError(t, b.Emit(models.EventJoin, models.JoinPayload{Username: "bob"}))
	waitRoster(2)

	// Bob is not the admin and cannot remove alice.
	require.NoError(t, b.Emit(models.EventRemoveUser, models.RemoveUserPayload{Username: "alice"}))
	select {
	case msg := <-bErrors:
		assert.Equal(t, "Only the admin can remove users.", msg.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("no rejection for non-admin removal")
	}

	// Alice removes bob: bob hears the removal and the roster shrinks.
	require.NoError(t, a.Emit(models.EventRemoveUser, models.RemoveUserPayload{Username: "bob"}))
	select {
	case <-bRemoved:
	case <-time.After(2 * time.Second):
		t.Fatal("bob never heard the removal")
	}
	roster = waitRoster(1)
	assert.Equal(t, "alice", roster[0].Username)
}
