// A minimal terminal client for poking at a running server: join or
// create a room, chat, and send a few drawing operations by hand.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/collabboard/collabboard/client"
	"github.com/collabboard/collabboard/config"
	"github.com/collabboard/collabboard/internal/logx"
	"github.com/collabboard/collabboard/protocol"
)

func main() {
	logx.Init()
	defer logx.L.Sync()

	cfg := config.LoadClient()

	room := flag.String("room", "", "room id to join (empty creates a new room)")
	name := flag.String("name", "", "display name")
	flag.Parse()

	m := client.New(cfg.ServerURL, client.Handlers{
		OnJoined: func(roomID, userID string) {
			fmt.Printf("* joined room %s as %s\n", roomID, userID)
		},
		OnOperation: func(op protocol.DrawingOperation) {
			fmt.Printf("* op %d from %s (seq %d)\n", op.OpType, op.SenderID, op.Seq)
		},
		OnUndo: func(operationID string, seq int64) {
			fmt.Printf("* undo %s\n", operationID)
		},
		OnClearScene: func() {
			fmt.Println("* scene cleared")
		},
		OnChat: func(userName, message string) {
			fmt.Printf("<%s> %s\n", userName, message)
		},
		OnClientList: func(clients []client.ClientInfo) {
			names := make([]string, 0, len(clients))
			for _, c := range clients {
				names = append(names, c.UserName)
			}
			fmt.Printf("* in room: %s\n", strings.Join(names, ", "))
		},
		OnRoomList: func(rooms []client.RoomInfo) {
			for _, r := range rooms {
				fmt.Printf("* room %s (%s), %d clients\n", r.RoomID, r.RoomName, r.ClientCount)
			}
		},
		OnUserLeft: func(userID string) {
			fmt.Printf("* %s left\n", userID)
		},
		OnError: func(err error) {
			fmt.Fprintf(os.Stderr, "! %v\n", err)
		},
	}, client.WithHeartbeat(cfg.HeartbeatInterval))

	if err := m.Connect(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer m.Close()

	if err := m.JoinRoom(*room, *name); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("commands: /line x1 y1 x2 y2 | /undo | /redo | /clear | /rooms | /quit; anything else is chat")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		var err error
		switch {
		case line == "/quit":
			return
		case line == "/undo":
			err = m.Undo()
		case line == "/redo":
			err = m.Redo()
		case line == "/clear":
			err = m.ClearScene()
		case line == "/rooms":
			err = m.RequestRoomList()
		case strings.HasPrefix(line, "/line"):
			var x1, y1, x2, y2 float64
			if _, serr := fmt.Sscanf(line, "/line %f %f %f %f", &x1, &y1, &x2, &y2); serr != nil {
				fmt.Fprintln(os.Stderr, "usage: /line x1 y1 x2 y2")
				continue
			}
			err = m.SendOperation(protocol.DrawingOperation{
				OpType: protocol.OpDrawLine,
				Data: map[string]any{
					"x1": x1, "y1": y1, "x2": x2, "y2": y2,
					"penColor": "#000000", "penWidth": 2,
				},
			})
		case line != "":
			err = m.SendChat(line)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "! %v\n", err)
		}
	}
}
