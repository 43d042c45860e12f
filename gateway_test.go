/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/partyline/games"
	"github.com/Seednode/partyline/lobby"
)

type MockTickerCreator struct {
	mock.Mock
}

func (m *MockTickerCreator) Create(duration time.Duration) <-chan time.Time {
	args := m.Called(duration)
	return args.Get(0).(chan time.Time)
}

// tickingGame counts ticks once started.
type tickingGame struct {
	ticks int
}

func (g *tickingGame) AddPlayer(games.Player) error      { return nil }
func (g *tickingGame) RemovePlayer(string) []games.Event { return nil }
func (g *tickingGame) CanStart([]games.Player) error     { return nil }
func (g *tickingGame) View(string) any                   { return map[string]int{"ticks": g.ticks} }
func (g *tickingGame) Phase() string                     { return "running" }
func (g *tickingGame) Finished() bool                    { return false }
func (g *tickingGame) MaxPlayers() int                   { return 4 }

func (g *tickingGame) HandleAction(string, games.Action) ([]games.Event, error) {
	return nil, games.ErrWrongPhase
}

func (g *tickingGame) Start([]games.Player) ([]games.Event, error) {
	return []games.Event{games.Broadcast("game-started", nil)}, nil
}

func (g *tickingGame) Tick(time.Time) []games.Event {
	g.ticks++

	return []games.Event{games.Broadcast("tocked", g.ticks)}
}

func testConfig() *Config {
	return &Config{
		playerTimeout:  time.Hour,
		rateBurst:      100,
		rateLimit:      100,
		sessionTimeout: time.Hour,
		tickInterval:   500 * time.Millisecond,
	}
}

type harness struct {
	cfg   *Config
	hub   *Hub
	ticks chan time.Time
	seq   int
}

func newHarness(t *testing.T, cfg *Config) *harness {
	t.Helper()

	tickers := &MockTickerCreator{}
	ticks := make(chan time.Time)
	tickers.On("Create", cfg.tickInterval).Return(ticks)

	registry := lobby.NewRegistry(
		lobby.WithRand(func() games.Rand { return games.NewRand(7, 7) }),
		lobby.WithFactory("ticking", func(json.RawMessage, games.Env) (games.Variant, error) {
			return &tickingGame{}, nil
		}),
		lobby.WithFactory("boom", func(json.RawMessage, games.Env) (games.Variant, error) {
			panic("boom")
		}),
	)

	h := newHub(cfg, registry, tickers)

	ctx, cancel := context.WithCancel(context.Background())
	go h.run(ctx)

	t.Cleanup(func() {
		cancel()
		<-h.quit
		tickers.AssertExpectations(t)
	})

	return &harness{cfg: cfg, hub: h, ticks: ticks}
}

func recv(t *testing.T, c *Client) any {
	t.Helper()

	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "client channel closed")

		return msg
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for a message")
	}

	return nil
}

// settle waits until the hub has finished whatever it was doing.
func (hs *harness) settle() {
	hs.hub.Lookup(context.Background(), "----")
}

func drain(c *Client) []ServerMessage {
	var msgs []ServerMessage
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return msgs
			}
			if m, ok := msg.(ServerMessage); ok {
				msgs = append(msgs, m)
			}
		default:
			return msgs
		}
	}
}

func names(msgs []ServerMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Event)
	}

	return out
}

func lastState(t *testing.T, msgs []ServerMessage) lobby.View {
	t.Helper()

	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Event == "state" {
			v, ok := msgs[i].Data.(lobby.View)
			require.True(t, ok, "state carries %T", msgs[i].Data)

			return v
		}
	}
	require.FailNow(t, "no state message")

	return lobby.View{}
}

func (hs *harness) connect(t *testing.T, token string) *Client {
	t.Helper()

	c := newClient(hs.cfg, nil, token, "")
	hs.hub.register <- c
	hs.settle()

	return c
}

func (hs *harness) request(t *testing.T, c *Client, event string, payload any) Ack {
	t.Helper()

	drain(c)

	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = b
	}

	hs.seq++
	id := strconv.Itoa(hs.seq)
	require.True(t, hs.hub.submit(c, Envelope{Event: event, ID: id, Payload: raw}, nil))

	ack, ok := recv(t, c).(Ack)
	require.True(t, ok, "first reply to a request is its ack")
	assert.Equal(t, id, ack.ID)

	hs.settle()

	return ack
}

func (hs *harness) createRoom(t *testing.T, c *Client, gameType string) string {
	t.Helper()

	ack := hs.request(t, c, "create-room", map[string]any{"gameType": gameType, "playerName": c.token})
	require.True(t, ack.Success, ack.Message)

	data, ok := ack.Data.(map[string]string)
	require.True(t, ok)

	return data["code"]
}

func (hs *harness) joinRoom(t *testing.T, c *Client, code string) {
	t.Helper()

	ack := hs.request(t, c, "join-room", map[string]any{"code": strings.ToLower(code), "playerName": c.token})
	require.True(t, ack.Success, ack.Message)
}

func TestGatewayWelcome(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, testConfig())
	a := hs.connect(t, "tok-a")

	msgs := drain(a)
	require.Equal(t, []string{"welcome", "state"}, names(msgs))

	welcome, ok := msgs[0].Data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, welcome["gameTypes"], "syndicate")
	assert.Contains(t, welcome["events"], "night-vote")
	assert.Nil(t, msgs[1].Data)
}

func TestGatewayStateIsPerViewer(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, testConfig())
	a := hs.connect(t, "tok-a")
	b := hs.connect(t, "tok-b")
	drain(a)
	drain(b)

	code := hs.createRoom(t, a, "psych")
	assert.Equal(t, []string{"room-created", "player-joined", "state"}, names(drain(a)))
	assert.Empty(t, drain(b))

	hs.joinRoom(t, b, code)

	aMsgs, bMsgs := drain(a), drain(b)
	assert.Equal(t, []string{"player-joined", "state"}, names(aMsgs))
	assert.Equal(t, []string{"player-joined", "state"}, names(bMsgs))

	aView, bView := lastState(t, aMsgs), lastState(t, bMsgs)
	assert.Equal(t, code, aView.Code)
	assert.NotEqual(t, aView.You, bView.You)
	assert.True(t, aView.IsHost)
	assert.False(t, bView.IsHost)
	assert.Len(t, bView.Players, 2)

	ack := hs.request(t, b, "sync", nil)
	require.True(t, ack.Success)
	synced, ok := ack.Data.(lobby.View)
	require.True(t, ok)
	assert.Equal(t, bView.You, synced.You)
}

func TestGatewayAckKinds(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, testConfig())
	a := hs.connect(t, "tok-a")
	drain(a)

	tests := []struct {
		name    string
		event   string
		payload any
		kind    games.ErrorKind
	}{
		{"unknown event", "dance", nil, games.KindValidation},
		{"unknown game", "create-room", map[string]any{"gameType": "chess", "playerName": "a"}, games.KindValidation},
		{"blank name", "create-room", map[string]any{"gameType": "psych", "playerName": "  "}, games.KindValidation},
		{"malformed payload", "create-room", 5, games.KindValidation},
		{"missing room", "join-room", map[string]any{"code": "ZZZZ", "playerName": "a"}, games.KindNotFound},
		{"start outside a room", "start-room", nil, games.KindAuthorization},
		{"leave outside a room", "leave-room", nil, games.KindAuthorization},
		{"game event outside a room", "game-event", map[string]any{"eventName": "night-lock"}, games.KindAuthorization},
	}

	for _, tt := range tests {
		ack := hs.request(t, a, tt.event, tt.payload)
		assert.False(t, ack.Success, tt.name)
		assert.Equal(t, tt.kind, ack.Kind, tt.name)
		assert.NotEmpty(t, ack.Message, tt.name)
	}

	assert.Empty(t, drain(a))
}

func TestGatewayHostOnlyStart(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, testConfig())
	a := hs.connect(t, "tok-a")
	b := hs.connect(t, "tok-b")

	code := hs.createRoom(t, a, "ticking")
	hs.joinRoom(t, b, code)
	drain(a)
	drain(b)

	ack := hs.request(t, b, "start-room", map[string]string{"code": code})
	assert.False(t, ack.Success)
	assert.Equal(t, games.KindAuthorization, ack.Kind)

	ack = hs.request(t, a, "start-room", map[string]string{"code": "QQQQ"})
	assert.False(t, ack.Success)

	ack = hs.request(t, a, "start-room", map[string]string{"code": code})
	require.True(t, ack.Success, ack.Message)

	assert.Contains(t, names(drain(b)), "game-started")
	assert.True(t, lastState(t, drain(a)).Started)
}

func TestGatewayRateLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.rateLimit = 0.001
	cfg.rateBurst = 1

	hs := newHarness(t, cfg)
	a := hs.connect(t, "tok-a")
	drain(a)

	ack := hs.request(t, a, "sync", nil)
	assert.True(t, ack.Success)

	ack = hs.request(t, a, "create-room", map[string]any{"gameType": "psych", "playerName": "a"})
	assert.False(t, ack.Success)
	assert.Equal(t, games.KindRateLimited, ack.Kind)
	assert.Empty(t, drain(a), "a rate-limited request changes nothing")
}

func TestGatewayRejectedFrame(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, testConfig())
	a := hs.connect(t, "tok-a")
	drain(a)

	require.True(t, hs.hub.submit(a, Envelope{}, games.Wrap(games.ErrInvalidPayload, "malformed message")))

	ack, ok := recv(t, a).(Ack)
	require.True(t, ok)
	assert.False(t, ack.Success)
	assert.Equal(t, games.KindValidation, ack.Kind)
}

func TestGatewayRecoversFromPanics(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, testConfig())
	a := hs.connect(t, "tok-a")
	drain(a)

	ack := hs.request(t, a, "create-room", map[string]any{"gameType": "boom", "playerName": "a"})
	assert.False(t, ack.Success)
	assert.Equal(t, games.KindInternal, ack.Kind)
	assert.Equal(t, "server error", ack.Message)

	code := hs.createRoom(t, a, "psych")
	assert.True(t, hs.hub.Lookup(context.Background(), code))
}

func TestGatewayLeaveRoom(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, testConfig())
	a := hs.connect(t, "tok-a")
	b := hs.connect(t, "tok-b")

	code := hs.createRoom(t, a, "psych")
	hs.joinRoom(t, b, code)
	drain(a)
	drain(b)

	ack := hs.request(t, a, "leave-room", nil)
	require.True(t, ack.Success)

	aMsgs := drain(a)
	require.Equal(t, []string{"state"}, names(aMsgs))
	assert.Nil(t, aMsgs[0].Data)

	bMsgs := drain(b)
	assert.Equal(t, []string{"player-left", "host-changed", "state"}, names(bMsgs))
	assert.True(t, lastState(t, bMsgs).IsHost)

	ack = hs.request(t, b, "leave-room", nil)
	require.True(t, ack.Success)
	assert.False(t, hs.hub.Lookup(context.Background(), code))
}

func TestGatewayReconnectKeepsSeat(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, testConfig())
	a := hs.connect(t, "tok-a")
	b := hs.connect(t, "tok-b")

	code := hs.createRoom(t, a, "psych")
	hs.joinRoom(t, b, code)
	drain(a)
	drain(b)

	hs.hub.unreg <- b
	hs.settle()

	aMsgs := drain(a)
	assert.Equal(t, []string{"player-disconnected", "state"}, names(aMsgs))
	for _, p := range lastState(t, aMsgs).Players {
		assert.Equal(t, p.Name == "tok-a", p.Connected, p.Name)
	}

	b2 := hs.connect(t, "tok-b")
	bMsgs := drain(b2)
	assert.Equal(t, []string{"welcome", "player-reconnected", "state"}, names(bMsgs))
	assert.Equal(t, code, lastState(t, bMsgs).Code)
	assert.Contains(t, names(drain(a)), "player-reconnected")

	hs.hub.unreg <- b2
	hs.settle()
	assert.True(t, hs.hub.Lookup(context.Background(), code))
}

func TestGatewayExpiresDisconnectedPlayers(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.playerTimeout = 20 * time.Millisecond

	hs := newHarness(t, cfg)
	a := hs.connect(t, "tok-a")
	b := hs.connect(t, "tok-b")

	code := hs.createRoom(t, a, "psych")
	hs.joinRoom(t, b, code)
	drain(a)

	hs.hub.unreg <- b
	hs.settle()

	var seen []string
	assert.Eventually(t, func() bool {
		seen = append(seen, names(drain(a))...)

		return slices.Contains(seen, "player-left")
	}, 2*time.Second, 10*time.Millisecond)

	hs.hub.unreg <- a

	assert.Eventually(t, func() bool {
		return !hs.hub.Lookup(context.Background(), code)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGatewayTicksAndPurges(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, testConfig())
	a := hs.connect(t, "tok-a")
	b := hs.connect(t, "tok-b")

	code := hs.createRoom(t, a, "ticking")
	hs.joinRoom(t, b, code)

	hs.ticks <- time.Now()
	hs.settle()
	assert.NotContains(t, names(drain(a)), "tocked", "rooms tick only once started")

	ack := hs.request(t, a, "start-room", nil)
	require.True(t, ack.Success, ack.Message)
	drain(a)
	drain(b)

	hs.ticks <- time.Now()
	hs.settle()

	bMsgs := drain(b)
	assert.Equal(t, []string{"tocked", "state"}, names(bMsgs))
	assert.Equal(t, 1, bMsgs[0].Data)

	hs.hub.unreg <- a
	hs.hub.unreg <- b
	hs.settle()

	hs.ticks <- time.Now().Add(10 * time.Second)
	hs.settle()
	assert.True(t, hs.hub.Lookup(context.Background(), code), "purging runs at most once a minute")

	hs.ticks <- time.Now().Add(2 * time.Hour)
	hs.settle()
	assert.False(t, hs.hub.Lookup(context.Background(), code))
}

func TestGatewayDropsSlowClients(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, testConfig())
	a := hs.connect(t, "tok-a")

	hs.createRoom(t, a, "ticking")
	require.True(t, hs.request(t, a, "start-room", nil).Success)

	for range sendBuffer {
		hs.ticks <- time.Now()
	}
	hs.settle()

	msgs := drain(a)
	assert.LessOrEqual(t, len(msgs), sendBuffer)

	_, ok := <-a.send
	assert.False(t, ok, "a client that falls behind is cut off")

	hs.ticks <- time.Now()
	hs.settle()
}

func TestServeQR(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.prefix = "/party"

	hs := newHarness(t, cfg)
	a := hs.connect(t, "tok-a")
	code := hs.createRoom(t, a, "psych")

	errs := make(chan error, 1)
	mux := httprouter.New()
	mux.GET(cfg.prefix+"/rooms/:code/qr", serveQR(cfg, hs.hub, errs))

	t.Run("unknown room", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/party/rooms/ZZZZ/qr", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("live room", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/party/rooms/"+strings.ToLower(code)+"/qr", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
	})
}

func TestJoinURL(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.prefix = "/party"

	r := httptest.NewRequest(http.MethodGet, "http://games.example.com/party/rooms/AB12/qr", nil)
	assert.Equal(t, "http://games.example.com/party/?room=AB12", joinURL(cfg, r, "AB12"))

	r.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://games.example.com/party/?room=AB12", joinURL(cfg, r, "AB12"))

	r.Header.Set("X-Forwarded-Proto", "javascript")
	assert.Equal(t, "http://games.example.com/party/?room=AB12", joinURL(cfg, r, "AB12"))
}

func TestServeWebsocket(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, testConfig())

	mux := httprouter.New()
	mux.GET("/ws", serveWS(hs.cfg, hs.hub, anonymousUsers{}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var cookie string
	for _, c := range resp.Cookies() {
		if c.Name == tokenCookieName {
			cookie = c.Value
		}
	}
	assert.NotEmpty(t, cookie, "a new identity cookie is issued on upgrade")

	read := func() map[string]any {
		t.Helper()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))

		return msg
	}

	assert.Equal(t, "welcome", read()["event"])
	assert.Equal(t, "state", read()["event"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	ack := read()
	assert.Equal(t, "ack", ack["event"])
	assert.Equal(t, false, ack["success"])
	assert.Equal(t, string(games.KindValidation), ack["kind"])

	require.NoError(t, conn.WriteJSON(map[string]any{
		"event":   "create-room",
		"id":      "r1",
		"payload": map[string]any{"gameType": "syndicate", "playerName": "Alice"},
	}))

	ack = read()
	assert.Equal(t, "ack", ack["event"])
	assert.Equal(t, "r1", ack["id"])
	assert.Equal(t, true, ack["success"])

	data, ok := ack["data"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, data["code"], 4)
	assert.NotContains(t, data["playerId"], cookie)
}

func TestServeWebsocketRejectsBadSession(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, testConfig())

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "not-a-jwt"})

	rec := httptest.NewRecorder()
	serveWS(hs.cfg, hs.hub, jwtUsers{secret: []byte("secret")})(rec, r, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
