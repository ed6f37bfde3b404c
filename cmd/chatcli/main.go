package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"questchat-ws/internal/chatclient"
	"questchat-ws/internal/config"
	"questchat-ws/internal/domain"

	"github.com/joho/godotenv"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Application recovered from panic: %v", r)
			os.Exit(1)
		}
	}()

	_ = godotenv.Load()

	cfg := config.LoadConfig()
	if cfg.UserID == "" || cfg.Token == "" {
		log.Fatal("CHAT_USER_ID and CHAT_TOKEN are required")
	}

	actor := domain.User{
		ID:       cfg.UserID,
		Nickname: cfg.Nickname,
		Role:     domain.Role(cfg.Role),
	}
	if actor.Nickname == "" {
		actor.Nickname = actor.ID
	}

	log.Printf("Starting QuestChat CLI")
	log.Printf("Gateway: %s", cfg.ServerURL)
	log.Printf("Actor: %s (%s)", actor.Nickname, actor.Role)

	var (
		client  *chatclient.Client
		printMu sync.Mutex
		printed int
	)

	render := func() {
		if client == nil {
			return
		}
		printMu.Lock()
		defer printMu.Unlock()

		msgs := client.Messages()
		if len(msgs) < printed {
			printed = 0 // room switched, history reseeded
		}
		for _, m := range msgs[printed:] {
			author := "system"
			if m.User != nil {
				author = m.User.Nickname
			}
			marker := ""
			if m.IsOptimistic {
				marker = " (sending...)"
			}
			fmt.Printf("[%s] %s: %s%s\n", m.RoomID, author, m.Content, marker)
		}
		printed = len(msgs)

		if typing := client.TypingUsers(); len(typing) > 0 {
			names := make([]string, len(typing))
			for i, t := range typing {
				names[i] = t.Name
			}
			fmt.Printf("... %s typing\n", strings.Join(names, ", "))
		}
		if err := client.Err(); err != nil {
			fmt.Printf("!! [%s] %s\n", err.Kind, err.Message)
		}
	}

	client = chatclient.New(chatclient.Options{
		ServerURL: cfg.ServerURL,
		OnUpdate:  render,
	})
	client.Connect(actor, cfg.Token)
	defer client.Close()

	if cfg.Room != "" {
		client.SetActiveRoom(cfg.Room)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		client.Close()
		os.Exit(0)
	}()

	fmt.Println("Commands: /join <room>, /delete <id>, /users, /status, /typing on|off, /clear, /reconnect, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			client.SendMessage(line, "")
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/join":
			if len(fields) < 2 {
				fmt.Println("usage: /join <room>")
				continue
			}
			printMu.Lock()
			printed = 0
			printMu.Unlock()
			client.SetActiveRoom(fields[1])
		case "/delete":
			if len(fields) < 2 {
				fmt.Println("usage: /delete <message-id>")
				continue
			}
			client.DeleteMessage(fields[1])
		case "/users":
			for _, u := range client.OnlineUsers() {
				fmt.Printf("  %s (%s)\n", u.Nickname, u.ID)
			}
		case "/status":
			st := client.Status()
			fmt.Printf("connected=%v connection=%s room=%s unread=%d\n",
				st.Connected, st.ConnectionID, st.RoomID, client.UnreadCount())
		case "/typing":
			if len(fields) > 1 && fields[1] == "off" {
				client.StopTyping()
			} else {
				client.StartTyping()
			}
		case "/clear":
			client.ClearUnread()
			client.ClearError()
		case "/reconnect":
			client.Reconnect()
		case "/quit":
			return
		default:
			fmt.Printf("unknown command %s\n", fields[0])
		}
	}
}
