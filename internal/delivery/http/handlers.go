package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/mmuslimabdulj/goat-doodle/internal/archive"
	"github.com/mmuslimabdulj/goat-doodle/internal/auth"
	"github.com/mmuslimabdulj/goat-doodle/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"github.com/mmuslimabdulj/goat-doodle/internal/game"
	"github.com/mmuslimabdulj/goat-doodle/internal/presence"
	"github.com/mmuslimabdulj/goat-doodle/internal/usecase"
	"github.com/mmuslimabdulj/goat-doodle/view/pages"
	"github.com/rs/zerolog"
)

const (
	maxBodyBytes       = 4 << 10
	defaultRecentGames = 10
	maxRecentGames     = 50
	lobbyRecentGames   = 5
)

var (
	htmlTagRegex     = regexp.MustCompile(`<[^>]*>`)
	controlCharRegex = regexp.MustCompile(`[\x00-\x1F\x7F]`)
)

// sanitizeDisplayName cleans user input. An empty result means "generate one".
func sanitizeDisplayName(name string) string {
	name = strings.TrimSpace(name)

	// Remove HTML tags to prevent XSS
	name = htmlTagRegex.ReplaceAllString(name, "")
	name = controlCharRegex.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)

	if utf8.RuneCountInString(name) > domain.MaxDisplayNameLength {
		runes := []rune(name)
		name = strings.TrimSpace(string(runes[:domain.MaxDisplayNameLength]))
	}
	return name
}

// isOriginAllowed checks if the origin is in the allowed list
func isOriginAllowed(allowed []string, origin string) bool {
	// Empty origin is allowed (same-origin requests)
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || origin == a {
			return true
		}
	}
	return false
}

// statusOf maps a game error to an HTTP status
func statusOf(err error) int {
	switch domain.CodeOf(err) {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeInvalidActor:
		return http.StatusForbidden
	case domain.CodeInvalidInput, domain.CodeInvalidConfig:
		return http.StatusBadRequest
	case domain.CodeInvalidState, domain.CodeAlreadyStarted, domain.CodeFull, domain.CodeNotEnoughPlayers:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string           `json:"error"`
	Code  domain.ErrorCode `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorBody{Error: domain.MessageOf(err), Code: domain.CodeOf(err)})
}

// decodeBody reads a small JSON body. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return domain.NewError(domain.CodeInvalidInput, "invalid request body")
	}
	return nil
}

// Deps are the collaborators of a Handler. Archive and Names are optional.
type Deps struct {
	Store          *game.SessionStore
	Tracker        *presence.Tracker
	Rooms          *ws.Rooms
	Dispatcher     *ws.Dispatcher
	Tickets        *auth.Issuer
	Names          *usecase.NameGenerator
	Archive        archive.Archiver
	Limits         ws.Limits
	AllowedOrigins []string
}

type Handler struct {
	store      *game.SessionStore
	tracker    *presence.Tracker
	rooms      *ws.Rooms
	dispatcher *ws.Dispatcher
	tickets    *auth.Issuer
	names      *usecase.NameGenerator
	archive    archive.Archiver
	limits     ws.Limits
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

func NewHandler(deps Deps, log zerolog.Logger) *Handler {
	if deps.Archive == nil {
		deps.Archive = archive.Nop{}
	}
	if deps.Names == nil {
		deps.Names = usecase.NewNameGenerator()
	}
	origins := deps.AllowedOrigins
	return &Handler{
		store:      deps.Store,
		tracker:    deps.Tracker,
		rooms:      deps.Rooms,
		dispatcher: deps.Dispatcher,
		tickets:    deps.Tickets,
		names:      deps.Names,
		archive:    deps.Archive,
		limits:     deps.Limits,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return isOriginAllowed(origins, r.Header.Get("Origin"))
			},
		},
		log: log.With().Str("component", "http").Logger(),
	}
}

type createRoomRequest struct {
	DisplayName        string `json:"display_name"`
	Capacity           int    `json:"capacity"`
	GuessWindowSeconds int    `json:"guess_window_seconds"`
	TotalRounds        int    `json:"total_rounds"`
}

type joinRoomRequest struct {
	DisplayName string `json:"display_name"`
}

// joinResponse carries the ticket the client presents on /ws
type joinResponse struct {
	RoomCode    string               `json:"room_code"`
	UserID      string               `json:"user_id"`
	DisplayName string               `json:"display_name"`
	Ticket      string               `json:"ticket"`
	Session     domain.PublicSession `json:"session"`
}

type recentGame struct {
	RoomCode     string        `json:"room_code"`
	TotalRounds  int           `json:"total_rounds"`
	PlayedRounds int           `json:"played_rounds"`
	WinnerUserID string        `json:"winner_user_id,omitempty"`
	IsDraw       bool          `json:"is_draw"`
	FinishedAt   string        `json:"finished_at"`
	Scores       []recentScore `json:"scores"`
}

type recentScore struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	IsWinner    bool   `json:"is_winner"`
}

// HandleLobby serves the lobby page (create/join room)
func (h *Handler) HandleLobby(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")

	data := pages.LobbyData{ActiveRooms: h.store.Count()}
	games, err := h.archive.RecentGames(r.Context(), lobbyRecentGames)
	if err != nil {
		h.log.Warn().Err(err).Msg("recent games unavailable")
	}
	for _, g := range games {
		line := pages.RecentGame{RoomCode: g.RoomCode, Rounds: g.PlayedRounds, IsDraw: g.IsDraw}
		for _, s := range g.Scores {
			if s.UserID == g.WinnerUserID {
				line.Winner = s.DisplayName
			}
		}
		data.RecentGames = append(data.RecentGames, line)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.Lobby(data).Render(r.Context(), w); err != nil {
		h.log.Error().Err(err).Msg("render lobby")
	}
}

// HandleCreateRoom creates a room and joins the caller as its host
func (h *Handler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	cfg := domain.SessionConfig{
		Capacity:           req.Capacity,
		GuessWindowSeconds: req.GuessWindowSeconds,
		TotalRounds:        req.TotalRounds,
	}.WithDefaults()
	sess, err := h.store.CreateSession(cfg)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.join(sess.RoomCode, req.DisplayName)
	if err != nil {
		h.store.Delete(sess.RoomCode)
		writeError(w, err)
		return
	}
	h.log.Info().Str("room", resp.RoomCode).Str("host", resp.UserID).Msg("room created")
	writeJSON(w, http.StatusCreated, resp)
}

// HandleJoinRoom adds the caller to a waiting room
func (h *Handler) HandleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.join(chi.URLParam(r, "code"), req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// join adds a participant, issues their ticket and starts the join grace timer
func (h *Handler) join(code, displayName string) (joinResponse, error) {
	name := sanitizeDisplayName(displayName)
	if name == "" {
		name = h.names.Generate()
	} else {
		h.names.Reserve(name)
	}

	p, sess, err := h.store.AddParticipant(code, name)
	if err != nil {
		h.names.Release(name)
		return joinResponse{}, err
	}

	ticket, err := h.tickets.Issue(sess.RoomCode, p.UserID)
	if err != nil {
		h.log.Error().Err(err).Str("room", sess.RoomCode).Msg("issue ticket")
		return joinResponse{}, err
	}
	h.tracker.ExpectConnection(sess.RoomCode, p.UserID)

	return joinResponse{
		RoomCode:    sess.RoomCode,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Ticket:      ticket,
		Session:     sess.Public(),
	}, nil
}

// HandleGetRoom returns the public snapshot of a room
func (h *Handler) HandleGetRoom(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.GetSession(chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Public())
}

// HandleRecentGames lists finished games from the archive
func (h *Handler) HandleRecentGames(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentGames
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, domain.NewError(domain.CodeInvalidInput, "limit must be a positive number"))
			return
		}
		limit = min(n, maxRecentGames)
	}

	games, err := h.archive.RecentGames(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list recent games")
		writeError(w, err)
		return
	}

	out := make([]recentGame, 0, len(games))
	for _, g := range games {
		rg := recentGame{
			RoomCode:     g.RoomCode,
			TotalRounds:  g.TotalRounds,
			PlayedRounds: g.PlayedRounds,
			WinnerUserID: g.WinnerUserID,
			IsDraw:       g.IsDraw,
			FinishedAt:   g.FinishedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Scores:       make([]recentScore, 0, len(g.Scores)),
		}
		for _, s := range g.Scores {
			rg.Scores = append(rg.Scores, recentScore{
				UserID:      s.UserID,
				DisplayName: s.DisplayName,
				Score:       s.Score,
				IsWinner:    s.IsWinner,
			})
		}
		out = append(out, rg)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleHealth reports liveness with a few gauges
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"rooms":       h.store.Count(),
		"connections": h.tracker.ConnectionCount(),
	})
}

// HandleWebSocket upgrades HTTP to WebSocket for the ticket's participant
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ticket")
	if raw == "" {
		http.Error(w, "Ticket required", http.StatusBadRequest)
		return
	}
	ticket, err := h.tickets.Parse(raw)
	if err != nil {
		http.Error(w, "Invalid ticket", http.StatusUnauthorized)
		return
	}

	sess, err := h.store.GetSession(ticket.RoomCode)
	if err != nil {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	p := sess.Participant(ticket.UserID)
	if p == nil {
		http.Error(w, "Not a member of this room", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}

	client := ws.NewClient(h.rooms.Hub(sess.RoomCode), conn, h.dispatcher, *p, h.limits)
	if err := h.dispatcher.Attach(client); err != nil {
		h.log.Warn().Err(err).Str("room", sess.RoomCode).Str("user", p.UserID).Msg("attach rejected")
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, domain.MessageOf(err))
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
