package core

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func benchmarkRoomBroadcast(b *testing.B, tabs int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(HubOptions{})
	go hub.Run(ctx)

	room := RoomID("sender", "peer")
	sender := NewClient("sender", "sender", "")
	hub.RegisterClient(sender)
	sender.Commands <- &Command{Kind: CommandUserOnline, UserID: "sender"}
	sender.Commands <- &Command{Kind: CommandJoinRoom, Room: room}

	// The peer has many tabs open; every one of them receives each message.
	clients := make([]*Client, 0, tabs)
	for i := 0; i < tabs; i++ {
		c := NewClient(fmt.Sprintf("peer-%d", i), "peer", "")
		hub.RegisterClient(c)
		c.Commands <- &Command{Kind: CommandUserOnline, UserID: "peer"}
		c.Commands <- &Command{Kind: CommandJoinRoom, Room: room}
		clients = append(clients, c)
	}
	for hub.Router().Subscribers(room) != tabs+1 {
		time.Sleep(time.Millisecond)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for {
				select {
				case <-cl.Events:
				case <-ctx.Done():
					return
				}
			}
		}(c)
	}
	go func() {
		for {
			select {
			case <-sender.Events:
			case <-ctx.Done():
				return
			}
		}
	}()

	sealed := sealedFor(b, "payload")
	for len(target.Events) > 0 {
		<-target.Events
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{
			Kind: CommandSendMessage,
			Room: room,
			Message: Message{
				Sender:    "sender",
				Recipient: "peer",
				Sealed:    sealed,
			},
		}
		for ev := range target.Events {
			if ev.Kind == EventReceiveMessage {
				break
			}
		}
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }
