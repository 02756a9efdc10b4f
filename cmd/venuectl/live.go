package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dkeye/Venue/internal/client"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/protocol"
	"github.com/spf13/cobra"
)

func printer(out io.Writer, conn *atomic.Pointer[client.Client]) client.Handlers {
	name := func(id domain.ParticipantID) string {
		if c := conn.Load(); c != nil {
			if p, ok := c.Mirror().Get(id); ok {
				return p.Name
			}
		}
		return string(id)
	}
	return client.Handlers{
		OnInit: func(in protocol.Init) {
			fmt.Fprintf(out, "joined as %s (%s), %d others here, background %q\n",
				in.Self.Name, in.Role, len(in.Users), in.Settings.Background)
		},
		OnUserJoin:  func(p domain.Participant) { fmt.Fprintf(out, "+ %s\n", p.Name) },
		OnUserLeave: func(id domain.ParticipantID) { fmt.Fprintf(out, "- %s\n", id) },
		OnUserUpdate: func(p domain.Participant) {
			fmt.Fprintf(out, "~ %s is now %q (%s)\n", p.ID, p.Name, p.Role)
		},
		OnChat:     func(c protocol.Chat) { fmt.Fprintf(out, "<%s> %s\n", c.Name, c.Message) },
		OnReaction: func(r protocol.Reaction) { fmt.Fprintf(out, "%s reacts %s\n", name(r.UserID), r.Reaction) },
		OnCurrentSpeakersUpdate: func(s []protocol.Speaker) {
			fmt.Fprintf(out, "stage: %d speaker(s)\n", len(s))
			for _, sp := range s {
				fmt.Fprintf(out, "  * %s\n", sp.Name)
			}
		},
		OnSpeakRequestsUpdate: func(r []domain.SpeakRequest) {
			fmt.Fprintf(out, "pending requests: %d\n", len(r))
			for _, req := range r {
				fmt.Fprintf(out, "  ? %s (%s)\n", req.Name, req.ParticipantID)
			}
		},
		OnBackgroundChange: func(bg string) { fmt.Fprintf(out, "background -> %s\n", bg) },
		OnBrightnessChange: func(v float64) { fmt.Fprintf(out, "brightness -> %.2f\n", v) },
		OnNotice:           func(n protocol.Notice) { fmt.Fprintf(out, "! %s\n", n.Type) },
		OnRole:             func(r domain.Role) { fmt.Fprintf(out, "role -> %s\n", r) },
		OnError: func(e protocol.Error) {
			fmt.Fprintf(out, "error %s (%s): %s\n", e.Code, e.Ref, e.Message)
		},
	}
}

func dial(ctx context.Context, g *globals, h client.Handlers) (*client.Client, error) {
	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return client.Dial(dctx, g.server, client.Options{
		Room:     g.room,
		Name:     g.name,
		Token:    g.token,
		Handlers: h,
	})
}

func watchCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Join a room and print its events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var conn atomic.Pointer[client.Client]
			c, err := dial(ctx, g, printer(cmd.OutOrStdout(), &conn))
			if err != nil {
				return err
			}
			conn.Store(c)
			defer c.Close()

			select {
			case <-ctx.Done():
				return nil
			case <-c.Done():
				return c.Err()
			}
		},
	}
}

func chatCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message>",
		Short: "Join a room, post one chat message and leave",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			echoed := make(chan struct{}, 1)
			c, err := dial(cmd.Context(), g, client.Handlers{
				OnChat: func(protocol.Chat) {
					select {
					case echoed <- struct{}{}:
					default:
					}
				},
				OnError: func(e protocol.Error) {
					fmt.Fprintf(cmd.ErrOrStderr(), "error %s: %s\n", e.Code, e.Message)
				},
			})
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.SendChat(args[0]); err != nil {
				return err
			}
			select {
			case <-echoed:
				return nil
			case <-c.Done():
				return c.Err()
			case <-time.After(5 * time.Second):
				return fmt.Errorf("chat not acknowledged")
			}
		},
	}
}
