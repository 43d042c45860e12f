/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Seednode/partyline/games"
	"github.com/Seednode/partyline/lobby"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 32
	purgeInterval  = time.Minute
)

// Envelope is every inbound client message.
type Envelope struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Ack answers one Envelope, to its sender only.
type Ack struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Kind    games.ErrorKind `json:"kind,omitempty"`
	Data    any             `json:"data,omitempty"`
}

// ServerMessage carries named broadcasts and per-viewer state.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type createRoomPayload struct {
	GameType   string          `json:"gameType"`
	PlayerName string          `json:"playerName"`
	Settings   json.RawMessage `json:"settings,omitempty"`
}

type joinRoomPayload struct {
	Code       string `json:"code"`
	PlayerName string `json:"playerName"`
}

type startRoomPayload struct {
	Code string `json:"code"`
}

type addBotsPayload struct {
	Count int `json:"count"`
}

type gameEventPayload struct {
	EventName string          `json:"eventName"`
	Payload   json.RawMessage `json:"payload"`
}

var errRateLimited = &games.Error{Kind: games.KindRateLimited, Message: "too many messages, slow down"}

// TickerCreator hands out periodic tick channels.
type TickerCreator interface {
	Create(d time.Duration) <-chan time.Time
}

type timeTickers struct{}

func (timeTickers) Create(d time.Duration) <-chan time.Time {
	return time.NewTicker(d).C
}

type Client struct {
	conn    *websocket.Conn
	send    chan any
	token   string
	userID  string
	limiter *rate.Limiter
}

func newClient(cfg *Config, conn *websocket.Conn, token, userID string) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan any, sendBuffer),
		token:   token,
		userID:  userID,
		limiter: rate.NewLimiter(rate.Limit(cfg.rateLimit), cfg.rateBurst),
	}
}

type inbound struct {
	client *Client
	env    Envelope
	reject error
}

type lookupRequest struct {
	code  string
	reply chan bool
}

// Hub is the only goroutine that touches the registry. Pumps and HTTP
// handlers talk to it over channels.
type Hub struct {
	cfg      *Config
	log      zerolog.Logger
	registry *lobby.Registry
	tickers  TickerCreator

	clients  map[string]map[*Client]bool
	expiries map[string]*time.Timer

	register chan *Client
	unreg    chan *Client
	inbound  chan inbound
	expire   chan string
	lookups  chan lookupRequest
	quit     chan struct{}

	lastPurge time.Time
}

func newHub(cfg *Config, registry *lobby.Registry, tickers TickerCreator) *Hub {
	if tickers == nil {
		tickers = timeTickers{}
	}

	return &Hub{
		cfg:       cfg,
		log:       log.Logger.With().Str("component", "gateway").Logger(),
		registry:  registry,
		tickers:   tickers,
		clients:   make(map[string]map[*Client]bool),
		expiries:  make(map[string]*time.Timer),
		register:  make(chan *Client),
		unreg:     make(chan *Client),
		inbound:   make(chan inbound, 64),
		expire:    make(chan string),
		lookups:   make(chan lookupRequest),
		quit:      make(chan struct{}),
		lastPurge: time.Now(),
	}
}

func (h *Hub) run(ctx context.Context) {
	ticks := h.tickers.Create(h.cfg.tickInterval)

	defer close(h.quit)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unreg:
			h.handleUnregister(c)

		case in := <-h.inbound:
			h.dispatch(in)

		case token := <-h.expire:
			h.handleExpire(token)

		case now := <-ticks:
			h.handleTick(now)

		case req := <-h.lookups:
			_, ok := h.registry.Lookup(req.code)
			req.reply <- ok
		}
	}
}

// submit is called from a client's read loop. The rate limit is checked
// here so that rejected messages still get an ack in order.
func (h *Hub) submit(c *Client, env Envelope, reject error) bool {
	if reject == nil && !c.limiter.Allow() {
		reject = errRateLimited
	}

	select {
	case h.inbound <- inbound{client: c, env: env, reject: reject}:
		return true
	case <-h.quit:
		return false
	}
}

// Lookup reports whether a room code is live.
func (h *Hub) Lookup(ctx context.Context, code string) bool {
	req := lookupRequest{code: code, reply: make(chan bool, 1)}

	select {
	case h.lookups <- req:
	case <-ctx.Done():
		return false
	case <-h.quit:
		return false
	}

	select {
	case ok := <-req.reply:
		return ok
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) handleRegister(c *Client) {
	set, ok := h.clients[c.token]
	if !ok {
		set = make(map[*Client]bool)
		h.clients[c.token] = set
	}
	returning := len(set) == 0
	set[c] = true

	if t, ok := h.expiries[c.token]; ok {
		t.Stop()
		delete(h.expiries, c.token)
	}

	h.deliver(c, ServerMessage{Event: "welcome", Data: map[string]any{
		"token":     c.token,
		"userId":    c.userID,
		"gameTypes": h.registry.GameTypes(),
		"events":    games.EventNames(),
	}})

	if returning {
		if change, ok := h.registry.Reconnect(c.token); ok {
			h.log.Debug().Str("room", change.Room.Code()).Msg("player reconnected")
			h.publish(change)

			return
		}
	}

	h.sendState(c.token)
}

// handleUnregister drops a socket. When a token's last socket goes, its
// player is marked disconnected and given playerTimeout to come back.
func (h *Hub) handleUnregister(c *Client) {
	h.detach(c)

	if len(h.clients[c.token]) > 0 {
		return
	}
	delete(h.clients, c.token)

	if _, pending := h.expiries[c.token]; pending {
		return
	}

	change, ok := h.registry.Disconnect(c.token)
	if !ok {
		return
	}
	h.publish(change)

	token := c.token
	h.expiries[token] = time.AfterFunc(h.cfg.playerTimeout, func() {
		select {
		case h.expire <- token:
		case <-h.quit:
		}
	})
}

func (h *Hub) detach(c *Client) {
	set, ok := h.clients[c.token]
	if !ok || !set[c] {
		return
	}

	delete(set, c)
	close(c.send)
}

func (h *Hub) handleExpire(token string) {
	delete(h.expiries, token)

	if len(h.clients[token]) > 0 {
		return
	}

	change, err := h.registry.Leave(token)
	if err != nil {
		return
	}

	h.log.Debug().Str("room", change.Room.Code()).Msg("disconnected player timed out")
	h.publish(change)
}

func (h *Hub) handleTick(now time.Time) {
	for _, change := range h.registry.TickAll(now) {
		h.publish(change)
	}

	if now.Sub(h.lastPurge) < purgeInterval {
		return
	}
	h.lastPurge = now

	if purged := h.registry.Purge(now, h.cfg.sessionTimeout); len(purged) > 0 {
		logf(h.cfg, "GAMES: Purged %d idle room(s): %v", len(purged), purged)
	}
}

// dispatch handles one inbound message to completion. A panic is turned
// into a server error ack instead of taking the hub down.
func (h *Hub) dispatch(in inbound) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Str("event", in.env.Event).Msg("handler panicked")
			h.ack(in.client, in.env.ID, nil, &games.Error{Kind: games.KindInternal, Message: "server error"})
		}
	}()

	if in.reject != nil {
		h.ack(in.client, in.env.ID, nil, in.reject)

		return
	}

	change, data, err := h.handle(in.client, in.env)
	if err != nil {
		h.log.Debug().Err(err).Str("event", in.env.Event).Msg("request rejected")
		h.ack(in.client, in.env.ID, nil, err)

		return
	}

	h.ack(in.client, in.env.ID, data, nil)
	h.publish(change)

	if in.env.Event == "leave-room" {
		h.sendState(in.client.token)
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return games.Wrap(games.ErrInvalidPayload, "%v", err)
	}

	return nil
}

func (h *Hub) handle(c *Client, env Envelope) (lobby.Change, any, error) {
	switch env.Event {
	case "create-room":
		var p createRoomPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return lobby.Change{}, nil, err
		}

		change, err := h.registry.CreateRoom(p.GameType, c.token, p.PlayerName, p.Settings)
		if err != nil {
			return change, nil, err
		}
		logf(h.cfg, "GAMES: Created %s room %s", p.GameType, change.Room.Code())

		return change, h.joined(change.Room, c.token), nil

	case "join-room":
		var p joinRoomPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return lobby.Change{}, nil, err
		}

		change, err := h.registry.JoinRoom(p.Code, c.token, p.PlayerName)
		if err != nil {
			return change, nil, err
		}

		return change, h.joined(change.Room, c.token), nil

	case "leave-room":
		change, err := h.registry.Leave(c.token)

		return change, nil, err

	case "start-room":
		var p startRoomPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return lobby.Change{}, nil, err
		}
		if room, ok := h.registry.RoomOf(c.token); ok && p.Code != "" && lobby.NormalizeCode(p.Code) != room.Code() {
			return lobby.Change{}, nil, games.ErrNotInRoom
		}

		change, err := h.registry.Start(c.token)

		return change, nil, err

	case "add-bots":
		p := addBotsPayload{Count: 1}
		if err := decodePayload(env.Payload, &p); err != nil {
			return lobby.Change{}, nil, err
		}

		change, err := h.registry.AddBots(c.token, p.Count)

		return change, nil, err

	case "game-event":
		var p gameEventPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return lobby.Change{}, nil, err
		}

		change, err := h.registry.Route(c.token, p.EventName, p.Payload)

		return change, nil, err

	case "sync":
		room, ok := h.registry.RoomOf(c.token)
		if !ok {
			return lobby.Change{}, nil, nil
		}

		return lobby.Change{}, room.View(c.token), nil
	}

	return lobby.Change{}, nil, games.Wrap(games.ErrUnknownEvent, "%q", env.Event)
}

func (h *Hub) joined(room *lobby.Room, token string) map[string]string {
	p, _ := room.Player(token)

	return map[string]string{"code": room.Code(), "playerId": p.ID}
}

func (h *Hub) ack(c *Client, id string, data any, err error) {
	a := Ack{Event: "ack", ID: id, Success: err == nil, Data: data}

	if err != nil {
		a.Kind = games.KindOf(err)
		a.Message = err.Error()
		if a.Kind == games.KindInternal {
			a.Message = "server error"
		}
	}

	h.deliver(c, a)
}

// publish fans a change out: named events to their audiences, then a
// freshly computed state to every member with a live socket.
func (h *Hub) publish(change lobby.Change) {
	if change.Room == nil || change.Closed {
		return
	}

	for _, e := range change.Events {
		msg := ServerMessage{Event: e.Name, Data: e.Data}
		for _, token := range change.Room.Recipients(e) {
			h.broadcastToken(token, msg)
		}
	}

	for _, token := range change.Room.Recipients(games.Broadcast("state", nil)) {
		if len(h.clients[token]) > 0 {
			h.broadcastToken(token, ServerMessage{Event: "state", Data: change.Room.View(token)})
		}
	}
}

func (h *Hub) sendState(token string) {
	var data any
	if room, ok := h.registry.RoomOf(token); ok {
		data = room.View(token)
	}

	h.broadcastToken(token, ServerMessage{Event: "state", Data: data})
}

func (h *Hub) broadcastToken(token string, msg any) {
	for c := range h.clients[token] {
		h.deliver(c, msg)
	}
}

// deliver never blocks the hub. A client that cannot keep up is cut off
// and goes through the normal unregister path once its read loop exits.
func (h *Hub) deliver(c *Client, msg any) {
	if !h.clients[c.token][c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.log.Warn().Str("user", c.userID).Msg("send buffer full, dropping client")
		h.detach(c)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}

func (h *Hub) closeAll() {
	for token, set := range h.clients {
		for c := range set {
			close(c.send)
			if c.conn != nil {
				_ = c.conn.Close()
			}
		}
		delete(h.clients, token)
	}

	for token, t := range h.expiries {
		t.Stop()
		delete(h.expiries, token)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, h *Hub, users UserResolver) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		userID, err := users.Resolve(r)
		if err != nil {
			http.Error(w, "invalid session", http.StatusUnauthorized)

			return
		}

		token, cookie := resolveToken(cfg, r)

		header := http.Header{}
		if cookie != nil {
			header.Add("Set-Cookie", cookie.String())
		}

		conn, err := upgrader.Upgrade(w, r, header)
		if err != nil {
			log.Error().Err(err).Str("remote", realIP(r)).Msg("websocket upgrade failed")

			return
		}

		c := newClient(cfg, conn, token, userID)

		select {
		case h.register <- c:
		case <-h.quit:
			_ = conn.Close()

			return
		}

		logf(cfg, "SERVE: Websocket opened for %s", realIP(r))

		go c.writePump()
		c.readPump(h)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.quit:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket closed")
			}

			return
		}

		var env Envelope
		var reject error
		if err := json.Unmarshal(data, &env); err != nil {
			reject = games.Wrap(games.ErrInvalidPayload, "malformed message")
		}

		if !h.submit(c, env, reject) {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})

				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
