// Package client is the Go client for a wiredm server.
//
// API covers the REST surface: registration, login and the user directory,
// which is where peers' public keys come from. Conn is a realtime
// connection. Messages are encrypted for the recipient's public key before
// they leave the process and decrypted with the local private key on
// arrival; the server only ever relays sealed envelopes.
//
// A typical session:
//
//	api := client.NewAPI("http://localhost:5000")
//	sess, _ := api.Login(ctx, "alice", "password")
//	conn, _ := client.Dial(ctx, "ws://localhost:5000/ws", sess.Token)
//	_ = conn.AnnounceOnline(ctx, sess.User.ID)
//	_, _ = conn.Join(ctx, bob.ID)
//	_, _ = conn.Send(ctx, bob.ID, bobKey, []byte("hi"))
//	in, _ := conn.Next(ctx)
package client
