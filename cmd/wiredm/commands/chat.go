package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wiredm/internal/client"
	"github.com/vovakirdan/wiredm/internal/crypto"
	"github.com/vovakirdan/wiredm/internal/proto"
)

type chatOptions struct {
	server   string
	username string
	password string
	peer     string
	keyDir   string
	register bool
}

func chatCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive encrypted chat with one peer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:5000", "server base URL")
	cmd.Flags().StringVar(&opts.username, "username", "", "your username")
	cmd.Flags().StringVar(&opts.password, "password", "", "your password")
	cmd.Flags().StringVar(&opts.peer, "peer", "", "username to chat with")
	cmd.Flags().StringVar(&opts.keyDir, "keys", defaultKeyDir(), "directory holding private.pem")
	cmd.Flags().BoolVar(&opts.register, "register", false, "register the account with the local public key first")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("peer")
	return cmd
}

func wsURL(server string) string {
	u := strings.TrimRight(server, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

func runChat(ctx context.Context, opts chatOptions, in io.Reader, out io.Writer) error {
	keys, err := readPrivateKey(opts.keyDir)
	if err != nil {
		return err
	}

	api := client.NewAPI(opts.server)
	var sess *client.Session
	if opts.register {
		pub, err := crypto.EncodePublicKey(keys.Public)
		if err != nil {
			return err
		}
		sess, err = api.Register(ctx, opts.username, opts.password, string(pub))
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}
	} else {
		sess, err = api.Login(ctx, opts.username, opts.password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	peer, err := api.UserByName(ctx, opts.peer)
	if err != nil {
		return err
	}
	peerKey, err := crypto.ParsePublicKey([]byte(peer.PublicKey))
	if err != nil {
		return fmt.Errorf("peer public key: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := client.Dial(ctx, wsURL(opts.server), sess.Token)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.AnnounceOnline(ctx, sess.User.ID); err != nil {
		return err
	}
	if _, err := conn.Join(ctx, peer.ID); err != nil {
		return err
	}

	fmt.Fprintf(out, "Connected as %s, chatting with %s (key %s)\n", opts.username, peer.Username, crypto.Fingerprint(peerKey))
	fmt.Fprintln(out, "Type messages and press Enter to send. Ctrl+C to exit.")

	names := map[string]string{sess.User.ID: opts.username, peer.ID: peer.Username}
	go func() {
		defer cancel()
		readLoop(ctx, conn, keys, names, out)
	}()

	typing := client.NewTypingNotifier(client.DefaultTypingTimeout, func(on bool) {
		if err := conn.Typing(ctx, peer.ID, on); err != nil && ctx.Err() == nil {
			fmt.Fprintf(out, "typing: %v\n", err)
		}
	})
	defer typing.Stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(keystrokeReader{r: in, onInput: typing.Keystroke})
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			text := strings.TrimSpace(line)
			typing.Stop()
			if text == "" {
				continue
			}
			if _, err := conn.Send(ctx, peer.ID, peerKey, []byte(text)); err != nil {
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}

// keystrokeReader reports every chunk of terminal input. In a cooked
// terminal a chunk is a whole line.
type keystrokeReader struct {
	r       io.Reader
	onInput func()
}

func (k keystrokeReader) Read(p []byte) (int, error) {
	n, err := k.r.Read(p)
	if n > 0 {
		k.onInput()
	}
	return n, err
}

func readLoop(ctx context.Context, conn *client.Conn, keys *crypto.KeyPair, names map[string]string, out io.Writer) {
	name := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}
	show := func(m proto.EventMessage) {
		text := client.Display(m, keys.Private)
		if m.Sender == conn.Self() {
			// Sealed for the peer only.
			text = "(sent)"
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), name(m.Sender), text)
	}

	for {
		in, err := conn.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			fmt.Fprintf(out, "read error: %v\n", err)
			return
		}

		switch {
		case in.Error != nil:
			fmt.Fprintf(out, "error %s: %s\n", in.Error.Code, in.Error.Msg)
		case in.Message != nil:
			show(*in.Message)
		case in.History != nil:
			for _, m := range in.History.Messages {
				show(m)
			}
		case in.Status != nil:
			state := "offline"
			if in.Status.Online {
				state = "online"
			}
			fmt.Fprintf(out, "* %s is %s\n", name(in.Status.UserID), state)
		case in.Typing != nil && in.Event == proto.EventTyping:
			fmt.Fprintf(out, "* %s is typing...\n", name(in.Typing.UserID))
		case in.Delivery != nil && !in.Delivery.Persisted:
			fmt.Fprintf(out, "! message %s not stored: %s\n", in.Delivery.ID, in.Delivery.Reason)
		}
	}
}
