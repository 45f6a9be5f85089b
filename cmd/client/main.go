package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/omochice/roomchat/internal/client"
)

func main() {
	serverAddr := flag.String("server", "localhost:8080", "TCP server address (e.g., localhost:8080)")
	wsURL := flag.String("ws", "", "gateway URL; connects over WebSocket instead of TCP (e.g., ws://localhost:8081/ws)")
	username := flag.String("username", "", "Username for chat")
	flag.Parse()

	scanner := bufio.NewScanner(os.Stdin)
	if *username == "" {
		fmt.Print("Username: ")
		if !scanner.Scan() {
			log.Fatal("Username is required")
		}
		*username = strings.TrimSpace(scanner.Text())
	}
	if *username == "" {
		log.Fatal("Username is required. Use -username flag")
	}

	c := client.NewTCP(*serverAddr)
	target := *serverAddr
	if *wsURL != "" {
		c = client.NewWebSocket(*wsURL)
		target = *wsURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer c.Disconnect()

	log.Printf("Connected to %s as %s", target, *username)

	if err := c.Login(*username); err != nil {
		log.Fatalf("Failed to log in: %v", err)
	}

	go func() {
		for event := range c.Events() {
			fmt.Println(client.FormatEvent(event))
		}
		if err := c.Err(); err != nil {
			log.Printf("Connection lost: %v", err)
		}
	}()

	fmt.Println("Type a message, or /join /create /leave <room>, /rooms, /users, /quit")
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}

		intent, err := client.ParseCommand(scanner.Text())
		if errors.Is(err, client.ErrQuit) {
			break
		}
		if err != nil {
			fmt.Println(err)
			continue
		}

		if err := c.Send(intent); err != nil {
			log.Printf("Failed to send: %v", err)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Error reading input: %v", err)
	}

	log.Println("Disconnected from server")
}
