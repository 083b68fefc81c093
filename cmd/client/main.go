// Command client is a small negotiation console for manual testing: it
// connects to the server as a user, optionally sends one proposal, and
// prints every message it receives.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"

	"github.com/galleralive/realtime/pkg/domain"
)

func main() {
	addr := flag.String("addr", "localhost:3000", "server address")
	user := flag.String("user", "", "user id")
	channel := flag.String("channel", "global", "channel to join")
	proposeTo := flag.String("propose-to", "", "send a PAGO proposal to this user id")
	fightID := flag.String("fight", "f1", "fight id for the proposal")
	betID := flag.String("bet", "b1", "bet id for the proposal")
	amount := flag.Float64("amount", 100, "base amount")
	proposed := flag.Float64("proposed", 80, "proposed amount")
	flag.Parse()

	u := url.URL{
		Scheme:   "ws",
		Host:     *addr,
		Path:     "/ws",
		RawQuery: url.Values{"user": {*user}, "channel": {*channel}}.Encode(),
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			log.Printf("recv: %s", message)
		}
	}()

	if *proposeTo != "" {
		if err := send(conn, domain.MessageTypeCreatePago, domain.CreateProposalRequest{
			FightID:        *fightID,
			BetID:          *betID,
			ProposedTo:     *proposeTo,
			Amount:         *amount,
			ProposedAmount: *proposed,
			Side:           "red",
		}); err != nil {
			log.Fatal("write:", err)
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-done:
	case <-interrupt:
		log.Println("interrupt")

		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Println("write close:", err)
			return
		}

		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func send(conn *websocket.Conn, messageType domain.MessageType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := domain.Message{
		ID:        xid.New().String(),
		Type:      messageType,
		Timestamp: time.Now(),
		Data:      data,
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return conn.WriteMessage(websocket.TextMessage, raw)
}
