package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mmuslimabdulj/goat-doodle/internal/archive"
	"github.com/mmuslimabdulj/goat-doodle/internal/auth"
	"github.com/mmuslimabdulj/goat-doodle/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"github.com/mmuslimabdulj/goat-doodle/internal/game"
	"github.com/mmuslimabdulj/goat-doodle/internal/middleware"
	"github.com/mmuslimabdulj/goat-doodle/internal/presence"
	"github.com/mmuslimabdulj/goat-doodle/internal/usecase"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// === SECURITY TESTS ===

func TestSanitizeDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal name", "Alice", "Alice"},
		{"Empty stays empty", "", ""},
		{"Whitespace only", "   ", ""},
		{"HTML tags stripped", "<script>alert('x')</script>Bob", "alert('x')Bob"},
		{"Long name truncated", strings.Repeat("a", 100), strings.Repeat("a", domain.MaxDisplayNameLength)},
		{"Trim whitespace", "  Carol  ", "Carol"},
		{"Control chars removed", "Da\x00ve\x1F", "Dave"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, sanitizeDisplayName(tc.input))
		})
	}
}

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"http://localhost:8080", "http://localhost:3000"}
	tests := []struct {
		origin   string
		expected bool
	}{
		{"http://localhost:8080", true},
		{"http://localhost:3000", true},
		{"", true}, // Empty origin allowed (same-origin)
		{"http://evil.com", false},
		{"https://attacker.com", false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, isOriginAllowed(allowed, tc.origin), tc.origin)
	}
	assert.True(t, isOriginAllowed([]string{"*"}, "http://anything.example"))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInvalidActor, http.StatusForbidden},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrInvalidConfig, http.StatusBadRequest},
		{domain.ErrFull, http.StatusConflict},
		{domain.ErrAlreadyStarted, http.StatusConflict},
		{domain.ErrInvalidState, http.StatusConflict},
		{domain.ErrNotEnoughPlayers, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.status, statusOf(tc.err), tc.err.Error())
	}
}

// === Fixture ===

type fakeArchive struct {
	mu        sync.Mutex
	games     []archive.GameRecord
	err       error
	lastLimit int
}

func (a *fakeArchive) SaveGame(context.Context, domain.Session) error { return nil }

func (a *fakeArchive) RecentGames(_ context.Context, limit int) ([]archive.GameRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastLimit = limit
	return a.games, a.err
}

func (a *fakeArchive) set(games []archive.GameRecord, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.games, a.err = games, err
}

func (a *fakeArchive) limit() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastLimit
}

type fixture struct {
	store   *game.SessionStore
	tickets *auth.Issuer
	archive *fakeArchive
	server  *httptest.Server
}

func setupTestServer(t *testing.T, opts RouterOptions) *fixture {
	t.Helper()
	log := zerolog.Nop()
	store := game.NewSessionStore(game.NewRandomSource(1), 100)
	orch := game.NewOrchestrator(store, game.NewGuard(), nil, log)
	guesses := game.NewGuessEvaluator(store, domain.DefaultPointsPerGuess, log)
	tracker := presence.NewTracker(orch, store, time.Second, log)
	rooms := ws.NewRooms(log)
	names := usecase.NewNameGenerator()
	fa := &fakeArchive{}

	disp := ws.NewDispatcher(ws.Deps{
		Store:   store,
		Orch:    orch,
		Guesses: guesses,
		Tracker: tracker,
		Rooms:   rooms,
		Archive: fa,
		Names:   names,
	}, log)
	tickets := auth.NewIssuer("test-secret", time.Hour)

	h := NewHandler(Deps{
		Store:          store,
		Tracker:        tracker,
		Rooms:          rooms,
		Dispatcher:     disp,
		Tickets:        tickets,
		Names:          names,
		Archive:        fa,
		AllowedOrigins: []string{"http://localhost:8080"},
	}, log)

	opts.Log = log
	srv := httptest.NewServer(h.Routes(opts))
	t.Cleanup(func() {
		srv.Close()
		rooms.CloseAll()
	})
	return &fixture{store: store, tickets: tickets, archive: fa, server: srv}
}

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f *fixture) createRoom(t *testing.T, body string) joinResponse {
	t.Helper()
	resp := f.post(t, "/api/rooms", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeJSON[joinResponse](t, resp)
}

func (f *fixture) wsURL(ticket string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?ticket=" + ticket
}

func readMessage(t *testing.T, conn *websocket.Conn) domain.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m domain.Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

// === Page routes ===

func TestHandleLobby(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})

	resp := f.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "no-store")
	assert.Equal(t, "no-cache", resp.Header.Get("Pragma"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<!doctype html>")

	resp = f.get(t, "/random")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleLobby_ShowsRecentWinner(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})
	f.archive.set([]archive.GameRecord{{
		RoomCode:     "ABC123",
		PlayedRounds: 2,
		WinnerUserID: "u1",
		Scores:       []archive.ScoreRow{{UserID: "u1", DisplayName: "Alice", Score: 100, IsWinner: true}},
	}}, nil)

	resp := f.get(t, "/")
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "winner Alice")
}

func TestHandleHealth(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})
	f.createRoom(t, `{"display_name": "Alice"}`)

	resp := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["rooms"])
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("doodle_rounds_started_total 0\n"))
	})
	f := setupTestServer(t, RouterOptions{Metrics: metrics})

	resp := f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	bare := setupTestServer(t, RouterOptions{})
	assert.Equal(t, http.StatusNotFound, bare.get(t, "/metrics").StatusCode)
}

// === Room API ===

func TestHandleCreateRoom(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})

	res := f.createRoom(t, `{"display_name": "Alice", "total_rounds": 2}`)
	assert.NotEmpty(t, res.RoomCode)
	assert.Equal(t, "Alice", res.DisplayName)
	assert.Equal(t, res.UserID, res.Session.HostUserID)
	assert.Equal(t, 2, res.Session.TotalRounds)
	assert.Equal(t, domain.DefaultCapacity, res.Session.Capacity)
	assert.Equal(t, domain.StatusWaiting, res.Session.Status)

	ticket, err := f.tickets.Parse(res.Ticket)
	require.NoError(t, err)
	assert.Equal(t, res.RoomCode, ticket.RoomCode)
	assert.Equal(t, res.UserID, ticket.UserID)
}

func TestHandleCreateRoom_GeneratesName(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})

	res := f.createRoom(t, `{}`)
	assert.NotEmpty(t, res.DisplayName)

	empty := f.post(t, "/api/rooms", "")
	assert.Equal(t, http.StatusCreated, empty.StatusCode)
}

func TestHandleCreateRoom_InvalidConfig(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})

	resp := f.post(t, "/api/rooms", `{"capacity": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeJSON[errorBody](t, resp)
	assert.Equal(t, domain.CodeInvalidConfig, body.Code)
	assert.Equal(t, 0, f.store.Count())
}

func TestHandleCreateRoom_InvalidJSON(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})

	resp := f.post(t, "/api/rooms", `{invalid json}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestHandleCreateRoom_InvalidMethod(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})

	resp := f.get(t, "/api/rooms")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleJoinRoom(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})
	host := f.createRoom(t, `{"display_name": "Alice"}`)

	resp := f.post(t, "/api/rooms/"+host.RoomCode+"/join", `{"display_name": "<b>Bob</b>"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeJSON[joinResponse](t, resp)
	assert.Equal(t, "Bob", res.DisplayName)
	assert.NotEqual(t, host.UserID, res.UserID)
	assert.Len(t, res.Session.Participants, 2)
	assert.False(t, res.Session.Participants[1].IsHost)
}

func TestHandleJoinRoom_LowercaseCode(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})
	host := f.createRoom(t, `{"display_name": "Alice"}`)

	resp := f.post(t, "/api/rooms/"+strings.ToLower(host.RoomCode)+"/join", `{"display_name": "Bob"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleJoinRoom_UnknownRoom(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})

	resp := f.post(t, "/api/rooms/NOPE00/join", `{"display_name": "Bob"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeJSON[errorBody](t, resp)
	assert.Equal(t, domain.CodeNotFound, body.Code)
}

func TestHandleJoinRoom_Full(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})
	host := f.createRoom(t, `{"display_name": "Alice", "capacity": 2}`)

	require.Equal(t, http.StatusOK, f.post(t, "/api/rooms/"+host.RoomCode+"/join", `{"display_name": "Bob"}`).StatusCode)

	resp := f.post(t, "/api/rooms/"+host.RoomCode+"/join", `{"display_name": "Carol"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeJSON[errorBody](t, resp)
	assert.Equal(t, domain.CodeFull, body.Code)
}

func TestHandleGetRoom(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})
	host := f.createRoom(t, `{"display_name": "Alice"}`)

	resp := f.get(t, "/api/rooms/" + host.RoomCode)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess := decodeJSON[domain.PublicSession](t, resp)
	assert.Equal(t, host.RoomCode, sess.RoomCode)
	assert.Len(t, sess.Participants, 1)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/rooms/NOPE00").StatusCode)
}

func TestHandleRecentGames(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})
	f.archive.set([]archive.GameRecord{{
		RoomCode:     "ABC123",
		TotalRounds:  3,
		PlayedRounds: 3,
		WinnerUserID: "u1",
		FinishedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Scores: []archive.ScoreRow{
			{UserID: "u1", DisplayName: "Alice", Score: 150, IsWinner: true},
			{UserID: "u2", DisplayName: "Bob", Score: 50},
		},
	}}, nil)

	resp := f.get(t, "/api/games/recent?limit=500")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	games := decodeJSON[[]recentGame](t, resp)
	require.Len(t, games, 1)
	assert.Equal(t, "2026-01-02T03:04:05Z", games[0].FinishedAt)
	assert.Len(t, games[0].Scores, 2)
	assert.True(t, games[0].Scores[0].IsWinner)
	assert.Equal(t, maxRecentGames, f.archive.limit())

	f.get(t, "/api/games/recent")
	assert.Equal(t, defaultRecentGames, f.archive.limit())

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/games/recent?limit=abc").StatusCode)
}

func TestHandleRecentGames_ArchiveError(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})
	f.archive.set(nil, errors.New("db down"))

	resp := f.get(t, "/api/games/recent")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeJSON[errorBody](t, resp)
	assert.Equal(t, "internal error", body.Error)
}

func TestAPIRateLimit(t *testing.T) {
	limiter := middleware.NewIPRateLimiter(0.001, 1)
	defer limiter.Stop()
	f := setupTestServer(t, RouterOptions{APILimiter: limiter})

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/rooms/NOPE00").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, f.get(t, "/api/rooms/NOPE00").StatusCode)
	// pages are not limited
	assert.Equal(t, http.StatusOK, f.get(t, "/healthz").StatusCode)
}

// === WebSocket ===

func TestHandleWebSocket_NoTicket(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/ws").StatusCode)
}

func TestHandleWebSocket_InvalidTicket(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})
	assert.Equal(t, http.StatusUnauthorized, f.get(t, "/ws?ticket=garbage").StatusCode)

	forged, err := auth.NewIssuer("other-secret", time.Hour).Issue("ABC123", "u1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, f.get(t, "/ws?ticket="+forged).StatusCode)
}

func TestHandleWebSocket_UnknownRoomOrMember(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})
	host := f.createRoom(t, `{"display_name": "Alice"}`)

	stranger, err := f.tickets.Issue(host.RoomCode, "not-a-member")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, f.get(t, "/ws?ticket="+stranger).StatusCode)

	gone, err := f.tickets.Issue("NOPE00", host.UserID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/ws?ticket="+gone).StatusCode)
}

func TestHandleWebSocket_RejectsForeignOrigin(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})
	host := f.createRoom(t, `{"display_name": "Alice"}`)

	header := http.Header{"Origin": []string{"http://evil.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(host.Ticket), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandleWebSocket_ConnectAndSync(t *testing.T) {
	f := setupTestServer(t, RouterOptions{})
	host := f.createRoom(t, `{"display_name": "Alice"}`)

	alice, _, err := websocket.DefaultDialer.Dial(f.wsURL(host.Ticket), nil)
	require.NoError(t, err)
	defer alice.Close()

	m := readMessage(t, alice)
	require.Equal(t, domain.MessageTypeIdentity, m.Type)
	var id domain.IdentityPayload
	require.NoError(t, json.Unmarshal(m.Payload, &id))
	assert.Equal(t, host.UserID, id.UserID)
	assert.Equal(t, "Alice", id.DisplayName)

	m = readMessage(t, alice)
	require.Equal(t, domain.MessageTypeRoomState, m.Type)

	resp := f.post(t, "/api/rooms/"+host.RoomCode+"/join", `{"display_name": "Bob"}`)
	bobJoin := decodeJSON[joinResponse](t, resp)
	bob, _, err := websocket.DefaultDialer.Dial(f.wsURL(bobJoin.Ticket), nil)
	require.NoError(t, err)
	defer bob.Close()

	m = readMessage(t, alice)
	require.Equal(t, domain.MessageTypePlayerJoined, m.Type)
	var joined domain.PlayerPayload
	require.NoError(t, json.Unmarshal(m.Payload, &joined))
	assert.Equal(t, bobJoin.UserID, joined.Participant.UserID)

	// a rejected action comes back as an error event to the sender only
	require.NoError(t, bob.WriteJSON(domain.Message{Type: domain.MessageTypeStartGame}))
	for {
		m = readMessage(t, bob)
		if m.Type == domain.MessageTypeError {
			break
		}
	}
	var e domain.ErrorPayload
	require.NoError(t, json.Unmarshal(m.Payload, &e))
	assert.Equal(t, domain.CodeInvalidActor, e.Code)
}
