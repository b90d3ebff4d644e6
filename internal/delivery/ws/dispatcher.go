package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mmuslimabdulj/goat-doodle/internal/archive"
	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
	"github.com/mmuslimabdulj/goat-doodle/internal/game"
	"github.com/mmuslimabdulj/goat-doodle/internal/presence"
	"github.com/mmuslimabdulj/goat-doodle/internal/words"
	"github.com/rs/zerolog"
)

const (
	handleTimeout  = 10 * time.Second
	maxChatRunes   = 200
	archiveTimeout = 5 * time.Second
)

// WordSource offers words to the drawer
type WordSource interface {
	GenerateWordSuggestion(ctx context.Context, topic string) (words.Suggestion, error)
	GenerateWordsByTopic(ctx context.Context, topic string) (words.TopicWords, error)
}

// NameReleaser frees generated display names of departed players
type NameReleaser interface {
	Release(name string)
}

// ConnMetrics records connection and archive events
type ConnMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
	ArchiveFailed()
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened() {}
func (nopMetrics) ConnectionClosed() {}
func (nopMetrics) ArchiveFailed()    {}

// Deps are the collaborators of a Dispatcher. Archive, Names and Metrics are optional.
type Deps struct {
	Store    *game.SessionStore
	Orch     *game.Orchestrator
	Guesses  *game.GuessEvaluator
	Tracker  *presence.Tracker
	Rooms    *Rooms
	Words    WordSource
	Archive  archive.Archiver
	Names    NameReleaser
	Metrics  ConnMetrics
	Timers   *RoundTimers
	Settings Settings
}

// Settings tune the server-side round timers
type Settings struct {
	WordSelectTimeout time.Duration
	RoundTimerSlack   time.Duration
	ArchiveTimeout    time.Duration
}

// Dispatcher turns socket events into game operations and publishes the
// committed results to the room's hub.
type Dispatcher struct {
	store    *game.SessionStore
	orch     *game.Orchestrator
	guesses  *game.GuessEvaluator
	tracker  *presence.Tracker
	rooms    *Rooms
	words    WordSource
	archive  archive.Archiver
	names    NameReleaser
	metrics  ConnMetrics
	timers   *RoundTimers
	settings Settings
	log      zerolog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewDispatcher wires itself as the orchestrator's publisher and the
// tracker's departure listener.
func NewDispatcher(deps Deps, log zerolog.Logger) *Dispatcher {
	if deps.Archive == nil {
		deps.Archive = archive.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Timers == nil {
		deps.Timers = NewRoundTimers()
	}
	if deps.Words == nil {
		deps.Words = words.NewFallback(nil)
	}
	s := deps.Settings
	if s.WordSelectTimeout <= 0 {
		s.WordSelectTimeout = domain.WordSelectTimeout
	}
	if s.RoundTimerSlack < 0 {
		s.RoundTimerSlack = domain.RoundTimerSlack
	}
	if s.ArchiveTimeout <= 0 {
		s.ArchiveTimeout = archiveTimeout
	}

	d := &Dispatcher{
		store:    deps.Store,
		orch:     deps.Orch,
		guesses:  deps.Guesses,
		tracker:  deps.Tracker,
		rooms:    deps.Rooms,
		words:    deps.Words,
		archive:  deps.Archive,
		names:    deps.Names,
		metrics:  deps.Metrics,
		timers:   deps.Timers,
		settings: s,
		log:      log.With().Str("component", "dispatcher").Logger(),
		now:      time.Now,
	}
	d.orch.SetPublisher(d.publish)
	d.tracker.SetListener(presence.ListenerFunc(d.OnDeparture))
	return d
}

// Wait blocks until background work (word offers, reactions, archive writes) is done
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) background(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

// Attach binds a new connection to its participant and sends the initial sync
func (d *Dispatcher) Attach(c *Client) error {
	fresh, err := d.tracker.Connect(c.ID, c.RoomCode, c.UserID)
	if err != nil {
		return err
	}
	sess, err := d.store.GetSession(c.RoomCode)
	if err != nil {
		d.tracker.Disconnect(c.ID)
		return err
	}
	c.hub.Register(c)
	d.metrics.ConnectionOpened()
	strokes, _ := d.store.Strokes(c.RoomCode)

	c.hub.SendToConn(c.ID, domain.NewMessage(domain.MessageTypeIdentity, domain.IdentityPayload{
		UserID:      c.UserID,
		DisplayName: c.DisplayName,
		RoomCode:    sess.RoomCode,
	}).Encode())
	c.hub.SendToConn(c.ID, domain.NewMessage(domain.MessageTypeRoomState, domain.RoomStatePayload{
		Session: sess.Public(),
		Strokes: strokes,
	}).Encode())

	if fresh {
		if p := sess.Participant(c.UserID); p != nil {
			c.hub.BroadcastExcept(c.ID, domain.NewMessage(domain.MessageTypePlayerJoined, domain.PlayerPayload{
				Participant: *p,
				Session:     sess.Public(),
			}).Encode())
		}
	}

	// the drawer's private state is not part of the public snapshot
	if sess.Status == domain.StatusPlaying && sess.CurrentDrawerUserID == c.UserID {
		switch sess.Phase {
		case domain.PhaseDrawing:
			c.hub.SendToConn(c.ID, drawerWord(sess))
		case domain.PhaseWordPending:
			if deadline, ok := d.timers.SelectDeadline(sess.RoomCode); ok {
				hub, connID := c.hub, c.ID
				d.background(func() { d.sendOptions(hub, "", connID, "", deadline) })
			}
		}
	}

	d.log.Debug().Str("room", c.RoomCode).Str("user", c.UserID).Str("conn", c.ID).Bool("fresh", fresh).Msg("client attached")
	return nil
}

// Detach starts the departure grace period of a closed connection
func (d *Dispatcher) Detach(c *Client) {
	d.tracker.Disconnect(c.ID)
	d.metrics.ConnectionClosed()
}

// Handle routes one inbound event. Rejections go back to the sender only.
func (d *Dispatcher) Handle(c *Client, msg domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case domain.MessageTypeStartGame:
		err = d.startGame(ctx, c)
	case domain.MessageTypeSelectTopic:
		err = d.selectTopic(ctx, c, msg.Payload)
	case domain.MessageTypeSelectWord:
		err = d.selectWord(ctx, c, msg.Payload)
	case domain.MessageTypeDrawingData:
		err = d.drawingData(c, msg)
	case domain.MessageTypeClearCanvas:
		err = d.clearCanvas(c, msg)
	case domain.MessageTypeGuessWord:
		var p domain.GuessPayload
		if err = decode(msg.Payload, &p); err == nil {
			err = d.guess(ctx, c, p.Guess)
		}
	case domain.MessageTypeChat:
		err = d.chat(ctx, c, msg)
	case domain.MessageTypeEndRound:
		err = d.endRoundSignal(ctx, c, msg.Payload)
	case domain.MessageTypeEndGame:
		_, err = d.orch.EndGame(ctx, c.RoomCode, c.UserID)
	default:
		err = domain.NewError(domain.CodeInvalidInput, "unknown message type %q", msg.Type)
	}

	if err != nil {
		d.log.Debug().Err(err).Str("room", c.RoomCode).Str("user", c.UserID).Str("type", string(msg.Type)).Msg("event rejected")
		c.SendError(err)
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.NewError(domain.CodeInvalidInput, "malformed payload")
	}
	return nil
}

func (d *Dispatcher) startGame(ctx context.Context, c *Client) error {
	sess, err := d.orch.StartSession(ctx, c.RoomCode, c.UserID)
	if err != nil {
		return err
	}
	c.hub.Broadcast(domain.NewMessage(domain.MessageTypeRoomState, domain.RoomStatePayload{
		Session: sess.Public(),
	}).Encode())
	d.offerWords(c.hub, sess)
	return nil
}

// offerWords arms the selection deadline for the current drawer and sends
// them options in the background.
func (d *Dispatcher) offerWords(hub *Hub, sess domain.Session) {
	code, drawer := sess.RoomCode, sess.CurrentDrawerUserID
	deadline := d.timers.ArmSelect(code, d.settings.WordSelectTimeout, func() {
		d.autoSelect(code, drawer)
	})
	d.background(func() { d.sendOptions(hub, drawer, "", "", deadline) })
}

func (d *Dispatcher) sendOptions(hub *Hub, userID, connID, topic string, deadline time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), d.settings.WordSelectTimeout)
	defer cancel()

	opts, err := d.words.GenerateWordsByTopic(ctx, topic)
	if err != nil {
		d.log.Warn().Err(err).Str("room", hub.Code()).Msg("no word options")
		return
	}
	msg := wordOptions(opts, deadline)
	if connID != "" {
		hub.SendToConn(connID, msg)
		return
	}
	hub.SendToUser(userID, msg)
}

func wordOptions(opts words.TopicWords, deadline time.Time) []byte {
	return domain.NewMessage(domain.MessageTypeWordOptions, domain.WordOptionsPayload{
		Topic:         opts.Topic,
		AIWords:       opts.AIWords,
		FallbackWords: opts.FallbackWords,
		Deadline:      deadline,
	}).Encode()
}

// autoSelect starts the round for a drawer who did not pick in time
func (d *Dispatcher) autoSelect(code, drawerID string) {
	hub, ok := d.rooms.Lookup(code)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	s, err := d.words.GenerateWordSuggestion(ctx, "")
	if err != nil || s.Word == "" {
		d.log.Warn().Err(err).Str("room", code).Msg("no word to auto-select")
		return
	}
	sess, err := d.orch.StartRound(ctx, code, drawerID, s.Word, s.Topic)
	if err != nil {
		// drawer changed or already picked
		d.log.Debug().Err(err).Str("room", code).Msg("auto-select skipped")
		return
	}
	d.log.Info().Str("room", code).Str("drawer", drawerID).Msg("word auto-selected")
	d.roundStarted(hub, sess)
}

func (d *Dispatcher) selectTopic(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p domain.SelectTopicPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	var verr error
	err := d.store.View(c.RoomCode, func(s *domain.Session) {
		switch {
		case s.Status != domain.StatusPlaying || s.Phase != domain.PhaseWordPending:
			verr = domain.NewError(domain.CodeInvalidState, "no round is waiting for a word")
		case s.CurrentDrawerUserID != c.UserID:
			verr = domain.NewError(domain.CodeInvalidActor, "only the drawer picks the topic")
		}
	})
	if err != nil {
		return err
	}
	if verr != nil {
		return verr
	}

	opts, err := d.words.GenerateWordsByTopic(ctx, p.Topic)
	if err != nil {
		return err
	}
	deadline, _ := d.timers.SelectDeadline(c.RoomCode)
	c.hub.SendToConn(c.ID, wordOptions(opts, deadline))
	return nil
}

func (d *Dispatcher) selectWord(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p domain.SelectWordPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	sess, err := d.orch.StartRound(ctx, c.RoomCode, c.UserID, p.Word, p.Topic)
	if err != nil {
		return err
	}
	d.roundStarted(c.hub, sess)
	return nil
}

// roundStarted announces a drawing round and arms its timer backstop
func (d *Dispatcher) roundStarted(hub *Hub, sess domain.Session) {
	code, round := sess.RoomCode, sess.CurrentRound
	d.timers.StopSelect(code)

	window := time.Duration(sess.GuessWindowSeconds) * time.Second
	hub.Broadcast(domain.NewMessage(domain.MessageTypeRoundStarted, domain.RoundStartedPayload{
		Round:              round,
		TotalRounds:        sess.TotalRounds,
		DrawerUserID:       sess.CurrentDrawerUserID,
		Topic:              sess.CurrentTopic,
		WordLength:         sess.WordLength,
		GuessWindowSeconds: sess.GuessWindowSeconds,
		EndsAt:             d.now().Add(window),
	}).Encode())
	hub.SendToUser(sess.CurrentDrawerUserID, drawerWord(sess))

	d.timers.ArmRound(code, window+d.settings.RoundTimerSlack, func() {
		d.endRound(code, round, game.TriggerTimer)
	})
}

func drawerWord(sess domain.Session) []byte {
	return domain.NewMessage(domain.MessageTypeDrawerWord, domain.DrawerWordPayload{
		Round: sess.CurrentRound,
		Word:  sess.CurrentWord,
		Topic: sess.CurrentTopic,
	}).Encode()
}

func (d *Dispatcher) endRound(code string, round int, trigger string) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	if _, err := d.orch.EndRound(ctx, code, round, trigger); err != nil {
		d.log.Warn().Err(err).Str("room", code).Int("round", round).Str("trigger", trigger).Msg("end round failed")
	}
}

func (d *Dispatcher) drawingData(c *Client, msg domain.Message) error {
	if !c.AllowStroke() {
		return nil
	}
	var ev domain.StrokeEvent
	if len(msg.Payload) == 0 {
		return domain.NewError(domain.CodeInvalidInput, "stroke is required")
	}
	if err := decode(msg.Payload, &ev); err != nil {
		return err
	}
	if err := ValidateStroke(ev); err != nil {
		return err
	}
	err := d.store.DrawAs(c.RoomCode, c.UserID, func(strokes *game.RingBuffer[domain.StrokeEvent]) {
		strokes.Add(ev)
	})
	if err != nil {
		return err
	}
	c.hub.BroadcastExcept(c.ID, relay(msg, ev))
	return nil
}

func (d *Dispatcher) clearCanvas(c *Client, msg domain.Message) error {
	err := d.store.DrawAs(c.RoomCode, c.UserID, func(strokes *game.RingBuffer[domain.StrokeEvent]) {
		strokes.Clear()
	})
	if err != nil {
		return err
	}
	c.hub.BroadcastExcept(c.ID, relay(msg, nil))
	return nil
}

// relay re-encodes a client event with the validated payload
func relay(msg domain.Message, payload any) []byte {
	out := domain.Message{
		ID:        msg.ID,
		Type:      msg.Type,
		FromID:    msg.FromID,
		FromName:  msg.FromName,
		CreatedAt: msg.CreatedAt,
	}
	if payload != nil {
		out.Payload, _ = json.Marshal(payload)
	}
	return out.Encode()
}

func (d *Dispatcher) guess(ctx context.Context, c *Client, text string) error {
	if !c.AllowGuess() {
		return domain.NewError(domain.CodeInvalidInput, "too many guesses, slow down")
	}
	if utf8.RuneCountInString(text) > maxChatRunes {
		return domain.NewError(domain.CodeInvalidInput, "guess is too long")
	}
	res, err := d.guesses.CheckGuess(ctx, c.RoomCode, c.UserID, text)
	if err != nil {
		return err
	}

	c.hub.SendToConn(c.ID, domain.NewMessage(domain.MessageTypeGuessResult, domain.GuessResultPayload{
		Guess:        res.Guess,
		Correct:      res.Correct,
		ScoreAwarded: res.ScoreAwarded,
		Close:        res.Close,
	}).Encode())

	if res.Correct {
		if res.ScoreAwarded > 0 {
			c.hub.Broadcast(domain.NewMessage(domain.MessageTypeCorrectGuess, domain.CorrectGuessPayload{
				UserID:       c.UserID,
				DisplayName:  c.DisplayName,
				ScoreAwarded: res.ScoreAwarded,
				TotalScore:   res.TotalScore,
			}).Encode())
		}
		if res.AllGuessed {
			d.endRound(c.RoomCode, res.Round, game.TriggerAllGuessed)
		}
		return nil
	}

	// wrong guesses double as chat
	c.hub.Broadcast(chatMessage(c, strings.TrimSpace(text)))
	hub := c.hub
	d.background(func() { d.react(hub, res) })
	return nil
}

// react broadcasts the word service's comment on a wrong guess, if any
func (d *Dispatcher) react(hub *Hub, res game.GuessResult) {
	text := d.guesses.React(context.Background(), res)
	if text == "" {
		return
	}
	hub.Broadcast(domain.NewMessage(domain.MessageTypeReaction, domain.ReactionPayload{
		Guess: res.Guess,
		Text:  text,
	}).Encode())
}

func chatMessage(c *Client, text string) []byte {
	payload, _ := json.Marshal(domain.ChatPayload{Text: text})
	return domain.Message{
		ID:        uuid.NewString(),
		Type:      domain.MessageTypeChat,
		FromID:    c.UserID,
		FromName:  c.DisplayName,
		Payload:   payload,
		CreatedAt: time.Now(),
	}.Encode()
}

// chat is a guess while someone else is drawing; otherwise it is relayed,
// except when the drawer would give the word away.
func (d *Dispatcher) chat(ctx context.Context, c *Client, msg domain.Message) error {
	var p domain.ChatPayload
	if err := decode(msg.Payload, &p); err != nil {
		return err
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return domain.NewError(domain.CodeInvalidInput, "message is empty")
	}
	if utf8.RuneCountInString(text) > maxChatRunes {
		return domain.NewError(domain.CodeInvalidInput, "message is too long")
	}

	var guessing, leaks bool
	err := d.store.View(c.RoomCode, func(s *domain.Session) {
		if s.Status != domain.StatusPlaying || s.Phase != domain.PhaseDrawing {
			return
		}
		if s.CurrentDrawerUserID != c.UserID {
			guessing = true
			return
		}
		leaks = strings.Contains(game.NormalizeGuess(text), game.NormalizeGuess(s.CurrentWord))
	})
	if err != nil {
		return err
	}
	if guessing {
		return d.guess(ctx, c, text)
	}
	if leaks {
		return domain.NewError(domain.CodeInvalidInput, "the drawer cannot say the word")
	}
	if !c.AllowGuess() {
		return domain.NewError(domain.CodeInvalidInput, "too many messages, slow down")
	}
	c.hub.Broadcast(chatMessage(c, text))
	return nil
}

// endRoundSignal accepts a client timer or manual end from the drawer or host
func (d *Dispatcher) endRoundSignal(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p domain.EndRoundPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	allowed := false
	err := d.store.View(c.RoomCode, func(s *domain.Session) {
		allowed = s.CurrentDrawerUserID == c.UserID || s.HostUserID == c.UserID
	})
	if err != nil {
		return err
	}
	if !allowed {
		return domain.NewError(domain.CodeInvalidActor, "only the drawer or host can end the round")
	}
	_, err = d.orch.EndRound(ctx, c.RoomCode, p.Round, game.TriggerClient)
	return err
}

// publish sends the notifications of one committed transition. The
// orchestrator calls it with the room guard held.
func (d *Dispatcher) publish(tr game.Transition) {
	if tr.Dropped {
		return
	}
	sess := tr.Session
	code := sess.RoomCode
	if tr.EndedRound == nil && !tr.GameOver && tr.NextDrawerUserID == "" {
		return
	}
	d.timers.StopRound(code)

	hub, ok := d.rooms.Lookup(code)
	if ok && tr.EndedRound != nil {
		hub.Broadcast(domain.NewMessage(domain.MessageTypeRoundEnded, domain.RoundEndedPayload{
			Round:            *tr.EndedRound,
			Scores:           sess.Participants,
			NextDrawerUserID: tr.NextDrawerUserID,
		}).Encode())
	}

	if tr.GameOver {
		d.timers.Stop(code)
		pub := sess.Public()
		if ok {
			hub.Broadcast(domain.NewMessage(domain.MessageTypeGameOver, domain.GameOverPayload{
				Result:  sess.Result,
				Rounds:  pub.Rounds,
				Session: pub,
			}).Encode())
		}
		d.archiveGame(sess)
		return
	}

	if ok && tr.NextDrawerUserID != "" {
		d.offerWords(hub, sess)
	}
}

func (d *Dispatcher) archiveGame(sess domain.Session) {
	d.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.settings.ArchiveTimeout)
		defer cancel()
		if err := d.archive.SaveGame(ctx, sess); err != nil {
			d.metrics.ArchiveFailed()
			d.log.Error().Err(err).Str("room", sess.RoomCode).Msg("archive game failed")
		}
	})
}

// OnDeparture announces a participant who left for good and publishes any
// round or game change their leaving caused.
func (d *Dispatcher) OnDeparture(dep game.Departure) {
	sess := dep.Session
	code := sess.RoomCode
	if d.names != nil {
		d.names.Release(dep.Removed.DisplayName)
	}

	if hub, ok := d.rooms.Lookup(code); ok {
		hub.Broadcast(domain.NewMessage(domain.MessageTypePlayerLeft, domain.PlayerPayload{
			Participant: dep.Removed,
			Session:     sess.Public(),
		}).Encode())
		if dep.NewHostUserID != "" {
			payload := domain.HostChangedPayload{HostUserID: dep.NewHostUserID}
			if host := sess.Participant(dep.NewHostUserID); host != nil {
				payload.HostName = host.DisplayName
			}
			hub.Broadcast(domain.NewMessage(domain.MessageTypeHostChanged, payload).Encode())
		}
	}

	if dep.Emptied {
		d.timers.Stop(code)
	}
	d.publish(dep.Transition)
	if dep.AllGuessed {
		d.endRound(code, sess.CurrentRound, game.TriggerAllGuessed)
	}
}

// DropRoom forgets every live resource of a disposed room
func (d *Dispatcher) DropRoom(code string) {
	d.timers.Stop(code)
	d.tracker.DropRoom(code)
	d.rooms.Delete(code)
}
