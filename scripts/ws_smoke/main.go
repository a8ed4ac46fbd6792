// Command ws_smoke registers two throwaway users against a running server,
// sends one encrypted message between them and checks that it decrypts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/wiredm/internal/client"
	"github.com/vovakirdan/wiredm/internal/crypto"
	"github.com/vovakirdan/wiredm/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

type user struct {
	sess *client.Session
	keys *crypto.KeyPair
	conn *client.Conn
}

func run() error {
	server := flag.String("server", "http://localhost:5000", "server base URL")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 10*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ws := strings.Replace(strings.TrimRight(*server, "/"), "http", "ws", 1) + "/ws"
	suffix := uuid.NewString()[:8]

	newUser := func(name string) (*user, error) {
		kp, err := crypto.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		pub, err := crypto.EncodePublicKey(kp.Public)
		if err != nil {
			return nil, err
		}
		sess, err := client.NewAPI(*server).Register(ctx, name+"-"+suffix, "smoke-password", string(pub))
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
		conn, err := client.Dial(ctx, ws, sess.Token)
		if err != nil {
			return nil, err
		}
		if err := conn.AnnounceOnline(ctx, sess.User.ID); err != nil {
			return nil, err
		}
		return &user{sess: sess, keys: kp, conn: conn}, nil
	}

	alice, err := newUser("alice")
	if err != nil {
		return err
	}
	defer alice.conn.Close()
	bob, err := newUser("bob")
	if err != nil {
		return err
	}
	defer bob.conn.Close()

	if _, err := alice.conn.Join(ctx, bob.sess.User.ID); err != nil {
		return err
	}
	if _, err := bob.conn.Join(ctx, alice.sess.User.ID); err != nil {
		return err
	}
	// Wait for Bob's join to be acknowledged before Alice sends.
	for {
		in, err := waitFor(ctx, bob.conn, proto.EventOnlineStatus)
		if err != nil {
			return err
		}
		if in.Status.UserID == alice.sess.User.ID {
			break
		}
	}

	id, err := alice.conn.Send(ctx, bob.sess.User.ID, bob.keys.Public, []byte(*text))
	if err != nil {
		return err
	}
	fmt.Printf("sent %s\n", id)

	in, err := waitFor(ctx, bob.conn, proto.EventReceiveMessage)
	if err != nil {
		return err
	}
	got := client.Display(*in.Message, bob.keys.Private)
	fmt.Printf("received %s: %q\n", in.Message.ID, got)
	if got != *text {
		return fmt.Errorf("decrypted text mismatch: %q", got)
	}
	return nil
}

func waitFor(ctx context.Context, conn *client.Conn, event string) (client.Incoming, error) {
	for {
		in, err := conn.Next(ctx)
		if err != nil {
			return in, fmt.Errorf("read: %w", err)
		}
		if in.Error != nil {
			return in, fmt.Errorf("server error %s: %s", in.Error.Code, in.Error.Msg)
		}
		if in.Event == event {
			return in, nil
		}
	}
}
