package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"snake-arena/internal/api"
	"snake-arena/internal/protocol"
	"snake-arena/internal/room"
)

const readTimeout = 5 * time.Second

type testClient struct {
	t     *testing.T
	conn  *websocket.Conn
	codec protocol.Codec
}

func newWSServer(t *testing.T, settings room.Settings) (*room.Directory, *httptest.Server) {
	t.Helper()
	d := testDirectory(t, settings)
	srv := api.NewServer(d, nil, api.ServerConfig{
		Hub: api.HubConfig{
			Tokens:         api.NewTokenSigner("test-secret", time.Hour),
			AllowedOrigins: []string{"http://localhost:*"},
		},
		RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000, CleanupInterval: time.Hour},
		DisableLogging:  true,
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		srv.Hub().CloseAll()
		ts.Close()
	})
	return d, ts
}

func wsURL(ts *httptest.Server, params url.Values) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + params.Encode()
}

func dialWS(t *testing.T, ts *httptest.Server, params url.Values) *testClient {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, params), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial failed (status %d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, codec: protocol.CodecFor(params.Get("enc"))}
}

func (c *testClient) send(typ string, payload any) {
	c.t.Helper()
	frame, err := c.codec.Encode(typ, payload)
	if err != nil {
		c.t.Fatalf("Encode %s failed: %v", typ, err)
	}
	mt := websocket.TextMessage
	if c.codec.Binary() {
		mt = websocket.BinaryMessage
	}
	if err := c.conn.WriteMessage(mt, frame); err != nil {
		c.t.Fatalf("Write %s failed: %v", typ, err)
	}
}

func (c *testClient) next() (int, protocol.Envelope) {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("Read failed: %v", err)
	}
	env, err := c.codec.Decode(data)
	if err != nil {
		c.t.Fatalf("Decode failed: %v", err)
	}
	return mt, env
}

// await skips messages until one of type typ arrives.
func (c *testClient) await(typ string) protocol.Envelope {
	c.t.Helper()
	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		if _, env := c.next(); env.T == typ {
			return env
		}
	}
	c.t.Fatalf("Timed out waiting for %s", typ)
	return protocol.Envelope{}
}

func payload[T any](t *testing.T, c *testClient, env protocol.Envelope) T {
	t.Helper()
	v, err := protocol.DecodePayload[T](c.codec, env)
	if err != nil {
		t.Fatalf("Decode %s payload failed: %v", env.T, err)
	}
	return v
}

func createRoom(t *testing.T, d *room.Directory, cfg room.Config) *room.Room {
	t.Helper()
	rm, err := d.Create(cfg)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return rm
}

func TestWebSocketRoundFlow(t *testing.T) {
	d, ts := newWSServer(t, room.Settings{TickRate: 20, CountdownSeconds: 0})
	rm := createRoom(t, d, room.Config{Name: "Flow", Mode: room.ModeLastStanding})

	c := dialWS(t, ts, url.Values{"room": {rm.Code()}, "name": {"Ann"}, "color": {"#112233"}})
	joined := payload[protocol.RoomJoined](t, c, c.await(protocol.MsgRoomJoined))
	if joined.RoomCode != rm.Code() || !joined.IsCreator || joined.Token == "" || joined.PlayerID == "" {
		t.Fatalf("Unexpected room_joined %+v", joined)
	}
	if len(joined.Players) != 1 || joined.Players[0].Name != "Ann" || joined.Players[0].Color != "#112233" {
		t.Errorf("Unexpected members %+v", joined.Players)
	}

	c.send(protocol.MsgStart, nil)
	c.await(protocol.MsgCountdownStart)
	started := payload[protocol.GameStarted](t, c, c.await(protocol.MsgGameStarted))
	if started.Round != 1 || len(started.State.Snakes) != 1 {
		t.Errorf("Unexpected game_started %+v", started)
	}

	c.send(protocol.MsgInput, protocol.Input{A: 1.5})
	tick := payload[protocol.Tick](t, c, c.await(protocol.MsgTick))
	if tick.Tick == 0 {
		t.Error("Expected a positive tick number")
	}

	c.send(protocol.MsgPing, nil)
	if pong := payload[protocol.Pong](t, c, c.await(protocol.MsgPong)); pong.Time == 0 {
		t.Error("Expected a server timestamp in pong")
	}

	if st, ok := rm.FullGameState(context.Background()); !ok || len(st.State.Snakes) != 1 {
		t.Errorf("Expected a running round, got %v", ok)
	}

	c.send(protocol.MsgLeave, nil)
	select {
	case <-rm.Done():
	case <-time.After(readTimeout):
		t.Fatal("Room was not destroyed after its only player left")
	}
	if d.Get(rm.Code()) != nil {
		t.Error("Directory still lists the destroyed room")
	}
}

func TestWebSocketReconnectWithToken(t *testing.T) {
	d, ts := newWSServer(t, room.Settings{CountdownSeconds: 60, ReconnectGrace: time.Minute})
	rm := createRoom(t, d, room.Config{})

	ann := dialWS(t, ts, url.Values{"room": {rm.Code()}, "name": {"Ann"}})
	first := payload[protocol.RoomJoined](t, ann, ann.await(protocol.MsgRoomJoined))

	bo := dialWS(t, ts, url.Values{"room": {rm.Code()}, "name": {"Bo"}})
	bo.await(protocol.MsgRoomJoined)

	bo.send(protocol.MsgStart, nil)
	if e := payload[protocol.Error](t, bo, bo.await(protocol.MsgError)); e.Message != room.ErrNotCreator.Error() {
		t.Errorf("Expected creator error, got %q", e.Message)
	}

	ann.send(protocol.MsgStart, nil)
	bo.await(protocol.MsgCountdownStart)

	ann.conn.Close()
	gone := payload[protocol.PlayerPresence](t, bo, bo.await(protocol.MsgPlayerDisconnected))
	if gone.PlayerID != first.PlayerID {
		t.Errorf("Expected %s to disconnect, got %+v", first.PlayerID, gone)
	}

	again := dialWS(t, ts, url.Values{"room": {rm.Code()}, "token": {first.Token}})
	back := payload[protocol.RoomJoined](t, again, again.await(protocol.MsgRoomJoined))
	if back.PlayerID != first.PlayerID || !back.IsCreator || back.State != "countdown" {
		t.Errorf("Expected to resume as %s, got %+v", first.PlayerID, back)
	}
	if p := payload[protocol.PlayerPresence](t, bo, bo.await(protocol.MsgPlayerReconnected)); p.PlayerID != first.PlayerID {
		t.Errorf("Unexpected reconnect notice %+v", p)
	}
	deadline := time.Now().Add(readTimeout)
	for info := rm.Info(); info.Players != 2 || info.Connected != 2; info = rm.Info() {
		if time.Now().After(deadline) {
			t.Fatalf("Expected two connected members, got %+v", info)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketBadTokenJoinsFresh(t *testing.T) {
	d, ts := newWSServer(t, room.Settings{})
	rm := createRoom(t, d, room.Config{})
	other := createRoom(t, d, room.Config{})

	ann := dialWS(t, ts, url.Values{"room": {rm.Code()}, "name": {"Ann"}})
	first := payload[protocol.RoomJoined](t, ann, ann.await(protocol.MsgRoomJoined))

	tests := []struct {
		name  string
		room  string
		token string
	}{
		{"tampered", rm.Code(), first.Token + "00"},
		{"other room", other.Code(), first.Token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dialWS(t, ts, url.Values{"room": {tt.room}, "name": {"Imposter"}, "token": {tt.token}})
			joined := payload[protocol.RoomJoined](t, c, c.await(protocol.MsgRoomJoined))
			if joined.PlayerID == first.PlayerID {
				t.Error("Token should not have resumed the original player")
			}
			if joined.Token == tt.token {
				t.Error("Expected a freshly issued token")
			}
		})
	}
}

func TestWebSocketMsgpack(t *testing.T) {
	d, ts := newWSServer(t, room.Settings{})
	rm := createRoom(t, d, room.Config{})

	c := dialWS(t, ts, url.Values{"room": {rm.Code()}, "enc": {"msgpack"}})
	mt, env := c.next()
	if mt != websocket.BinaryMessage {
		t.Errorf("Expected a binary frame, got type %d", mt)
	}
	if env.T != protocol.MsgRoomJoined {
		t.Fatalf("Expected room_joined, got %s", env.T)
	}
	joined := payload[protocol.RoomJoined](t, c, env)
	if !strings.HasPrefix(joined.Players[0].Name, "Snake-") {
		t.Errorf("Expected a generated name, got %q", joined.Players[0].Name)
	}
	if joined.Players[0].Color == "" || joined.Players[0].Pattern != "solid" {
		t.Errorf("Expected default look, got %+v", joined.Players[0])
	}

	c.send(protocol.MsgPing, nil)
	c.await(protocol.MsgPong)
}

func TestWebSocketRoomFull(t *testing.T) {
	d, ts := newWSServer(t, room.Settings{})
	rm := createRoom(t, d, room.Config{MaxPlayers: 1})

	dialWS(t, ts, url.Values{"room": {rm.Code()}}).await(protocol.MsgRoomJoined)

	c := dialWS(t, ts, url.Values{"room": {rm.Code()}})
	if e := payload[protocol.Error](t, c, c.await(protocol.MsgError)); e.Message != room.ErrRoomFull.Error() {
		t.Errorf("Expected room full, got %q", e.Message)
	}
}

func TestWebSocketHandshakeRejections(t *testing.T) {
	d, ts := newWSServer(t, room.Settings{})
	rm := createRoom(t, d, room.Config{})

	tests := []struct {
		name   string
		params url.Values
		origin string
		want   int
	}{
		{"missing room", url.Values{}, "", http.StatusBadRequest},
		{"unknown room", url.Values{"room": {"ZZZZZZ"}}, "", http.StatusNotFound},
		{"long name", url.Values{"room": {rm.Code()}, "name": {strings.Repeat("n", 40)}}, "", http.StatusBadRequest},
		{"foreign origin", url.Values{"room": {rm.Code()}}, "https://evil.example", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, tt.params), header)
			if err == nil {
				conn.Close()
				t.Fatal("Expected the handshake to fail")
			}
			if resp == nil || resp.StatusCode != tt.want {
				t.Errorf("Expected status %d, got %v", tt.want, resp)
			}
		})
	}
}
