package client_test

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wiredm/internal/auth"
	"github.com/vovakirdan/wiredm/internal/client"
	"github.com/vovakirdan/wiredm/internal/config"
	"github.com/vovakirdan/wiredm/internal/core"
	"github.com/vovakirdan/wiredm/internal/crypto"
	"github.com/vovakirdan/wiredm/internal/presence"
	"github.com/vovakirdan/wiredm/internal/proto"
	"github.com/vovakirdan/wiredm/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wiredm/internal/transport/http"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.CORSAllowedOrigins = nil
	logger := zerolog.Nop()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	require.NoError(t, err)
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("client-test"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})
	reg := presence.NewRegistry()
	hub := core.NewHub(core.HubOptions{Store: st, Presence: reg, Logger: &logger, HistoryLimit: cfg.HistoryLimit})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	ts := httptest.NewServer(transporthttp.NewHandler(hub, authService, st, reg, &cfg, &logger))
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
		reg.Close()
		_ = st.Close()
	})
	return ts
}

type party struct {
	api  *client.API
	sess *client.Session
	keys *crypto.KeyPair
	conn *client.Conn
}

func newParty(t *testing.T, ctx context.Context, ts *httptest.Server, name string) *party {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	pem, err := crypto.EncodePublicKey(kp.Public)
	require.NoError(t, err)

	api := client.NewAPI(ts.URL)
	sess, err := api.Register(ctx, name, "password123", string(pem))
	require.NoError(t, err)

	conn, err := client.Dial(ctx, strings.Replace(ts.URL, "http", "ws", 1)+"/ws", sess.Token)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.AnnounceOnline(ctx, sess.User.ID))
	return &party{api: api, sess: sess, keys: kp, conn: conn}
}

func nextEvent(t *testing.T, ctx context.Context, c *client.Conn, event string) client.Incoming {
	t.Helper()
	for {
		in, err := c.Next(ctx)
		require.NoError(t, err)
		require.Nil(t, in.Error, "unexpected protocol error %+v", in.Error)
		if in.Event == event {
			return in
		}
	}
}

func TestClientExchange(t *testing.T) {
	ts := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := newParty(t, ctx, ts, "alice")
	bob := newParty(t, ctx, ts, "bob")

	_, err := alice.conn.Join(ctx, bob.sess.User.ID)
	require.NoError(t, err)
	nextEvent(t, ctx, alice.conn, proto.EventHistory)
	_, err = bob.conn.Join(ctx, alice.sess.User.ID)
	require.NoError(t, err)
	nextEvent(t, ctx, bob.conn, proto.EventHistory)

	dir, err := alice.api.UserByName(ctx, "bob")
	require.NoError(t, err)
	bobPub, err := crypto.ParsePublicKey([]byte(dir.PublicKey))
	require.NoError(t, err)

	id, err := alice.conn.Send(ctx, dir.ID, bobPub, []byte("hello bob"))
	require.NoError(t, err)

	in := nextEvent(t, ctx, bob.conn, proto.EventReceiveMessage)
	require.NotNil(t, in.Message)
	assert.Equal(t, id, in.Message.ID)
	assert.Equal(t, "hello bob", client.Display(*in.Message, bob.keys.Private))

	// Alice's own copy is sealed for Bob; she cannot read it.
	echo := nextEvent(t, ctx, alice.conn, proto.EventReceiveMessage)
	assert.Equal(t, client.CannotDecrypt, client.Display(*echo.Message, alice.keys.Private))

	require.Eventually(t, func() bool {
		n, err := bob.api.UnreadCount(ctx, alice.sess.User.ID)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClientTamperedMessageCannotBeDecrypted(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	sealed, err := crypto.Encrypt([]byte("secret"), kp.Public)
	require.NoError(t, err)
	wire := sealed.Wire()

	ct, err := base64.StdEncoding.DecodeString(wire.Content)
	require.NoError(t, err)
	ct[0] ^= 0x01
	msg := proto.EventMessage{Content: base64.StdEncoding.EncodeToString(ct), Key: wire.Key, IV: wire.IV}

	_, err = client.Open(msg, kp.Private)
	require.ErrorIs(t, err, crypto.ErrDecryption)
	assert.Equal(t, client.CannotDecrypt, client.Display(msg, kp.Private))

	_, err = client.Open(proto.EventMessage{Content: "!!", Key: wire.Key, IV: wire.IV}, kp.Private)
	assert.ErrorIs(t, err, crypto.ErrDecryption)
}

func TestClientAuthFailures(t *testing.T) {
	ts := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Dial(ctx, strings.Replace(ts.URL, "http", "ws", 1)+"/ws", "bogus")
	require.Error(t, err)

	api := client.NewAPI(ts.URL)
	_, err = api.Login(ctx, "nobody", "password123")
	var se *client.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 401, se.Status)
}
