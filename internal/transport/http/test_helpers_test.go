package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wiredm/internal/auth"
	"github.com/vovakirdan/wiredm/internal/config"
	"github.com/vovakirdan/wiredm/internal/core"
	"github.com/vovakirdan/wiredm/internal/crypto"
	"github.com/vovakirdan/wiredm/internal/presence"
	"github.com/vovakirdan/wiredm/internal/proto"
	"github.com/vovakirdan/wiredm/internal/store"
	"github.com/vovakirdan/wiredm/internal/store/sqlite"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	ts       *httptest.Server
	store    store.Store
	auth     *auth.Service
	presence *presence.Registry
	hub      *core.RelayHub
}

// createTestStore creates an in-memory SQLite store with migrations applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	require.NoError(t, err, "failed to create test store")
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(st store.UserStore) *auth.Service {
	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(testJWTSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	return auth.NewService(st, jwtConfig)
}

func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = testJWTSecret
	cfg.CORSAllowedOrigins = nil
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zerolog.Nop()
	st := createTestStore(t)
	authService := createTestAuthService(st)
	reg := presence.NewRegistry()
	t.Cleanup(reg.Close)

	hub := core.NewHub(core.HubOptions{
		Store:        st,
		Presence:     reg,
		Logger:       &logger,
		HistoryLimit: cfg.HistoryLimit,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	server := NewServer(hub, authService, st, reg, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})

	return &testEnv{ts: ts, store: st, auth: authService, presence: reg, hub: hub}
}

var (
	keyMu    sync.Mutex
	keyCache = map[string]*crypto.KeyPair{}
)

// keyPair returns a key pair per name, generated once for the package.
func keyPair(t *testing.T, name string) *crypto.KeyPair {
	t.Helper()
	keyMu.Lock()
	defer keyMu.Unlock()
	if kp, ok := keyCache[name]; ok {
		return kp
	}
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	keyCache[name] = kp
	return kp
}

func publicPEM(t *testing.T, kp *crypto.KeyPair) string {
	t.Helper()
	b, err := crypto.EncodePublicKey(kp.Public)
	require.NoError(t, err)
	return string(b)
}

// register creates a user whose key pair is keyPair(t, username).
func (e *testEnv) register(t *testing.T, username string) *auth.Session {
	t.Helper()
	sess, err := e.auth.Register(context.Background(), username, "password123", publicPEM(t, keyPair(t, username)))
	require.NoError(t, err)
	return sess
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.Dial(ctx, e.wsURL(), &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

// wireOutbound mirrors proto.Outbound with undecoded data.
type wireOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}))
}

// readUntil reads frames until one matches; errors match on "error".
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(wireOutbound) bool) wireOutbound {
	t.Helper()
	for {
		var out wireOutbound
		require.NoError(t, wsjson.Read(ctx, conn, &out))
		if match(out) {
			return out
		}
	}
}

func isEvent(name string) func(wireOutbound) bool {
	return func(o wireOutbound) bool { return o.Type == proto.OutboundTypeEvent && o.Event == name }
}

func isError(code string) func(wireOutbound) bool {
	return func(o wireOutbound) bool {
		return o.Type == proto.OutboundTypeError && o.Error != nil && o.Error.Code == code
	}
}

// announceAndJoin sends user_online and join_room and waits for the
// peer's online_status that acknowledges the join.
func announceAndJoin(t *testing.T, ctx context.Context, conn *websocket.Conn, self, peer string) string {
	t.Helper()
	room := core.RoomID(self, peer)
	send(t, ctx, conn, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: self, Protocol: proto.ProtocolVersion})
	send(t, ctx, conn, proto.InboundTypeJoin, proto.RoomData{RoomID: room})
	readUntil(t, ctx, conn, func(o wireOutbound) bool {
		if !isEvent(proto.EventOnlineStatus)(o) {
			return false
		}
		var st proto.EventOnlineStatusData
		require.NoError(t, json.Unmarshal(o.Data, &st))
		return st.UserID == peer
	})
	return room
}
