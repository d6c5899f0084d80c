package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/tarotdesk/relay-server/internal/auth"
	"github.com/tarotdesk/relay-server/internal/proto"
)

// ws_probe is a manual test client: it authenticates, joins a session,
// and relays stdin lines as chat messages, printing every event.
func main() {
	if err := run(); err != nil {
		log.Printf("ws_probe: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "bearer credential (overrides -user/-secret)")
	user := flag.String("user", "probe-user", "user ID to mint a dev token for")
	secret := flag.String("secret", "", "JWT secret for minting a dev token")
	room := flag.String("room", "", "session to join")
	flag.Parse()

	cred := *token
	if cred == "" {
		if *secret == "" {
			return errors.New("either -token or -secret is required")
		}
		minted, err := auth.GenerateToken(&auth.JWTConfig{
			Secret:   []byte(*secret),
			Issuer:   "tarotdesk",
			Audience: "tarotdesk-relay",
			TTL:      time.Hour,
		}, *user)
		if err != nil {
			return fmt.Errorf("mint token: %w", err)
		}
		cred = minted
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) {
		payload, err := json.Marshal(data)
		if err != nil {
			log.Printf("marshal %s: %v", typ, err)
			return
		}
		if writeErr := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); writeErr != nil {
			cancel()
			log.Printf("send: %v", writeErr)
		}
	}

	send(proto.InboundTypeAuth, proto.AuthData{Token: cred})
	if *room != "" {
		send(proto.InboundTypeJoin, proto.JoinData{Room: *room})
	}

	fmt.Printf("Connected to %s\n", *addr)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		send(proto.InboundTypeMessage, proto.MessageData{Content: text})
	}

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			if ctx.Err() == nil {
				log.Printf("read: %v", err)
			}
			return
		}
		raw, _ := json.Marshal(outbound.Data)
		if outbound.Error != nil {
			fmt.Printf("<- %s [%s] %s\n", outbound.Event, outbound.Error.Code, outbound.Error.Msg)
			continue
		}
		fmt.Printf("<- %s %s\n", outbound.Event, raw)
	}
}
