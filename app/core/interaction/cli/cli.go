// Package cli is a terminal stand-in for the Telegram channel, used to
// try the bot locally without a token.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"focusbot/app/pkg/types"
)

type Channel struct {
	id     string
	chatID string
}

func NewChannel(chatID string) *Channel {
	if strings.TrimSpace(chatID) == "" {
		chatID = "local"
	}
	return &Channel{id: "cli", chatID: chatID}
}

func (c *Channel) ID() string {
	return c.id
}

func (c *Channel) Start(ctx context.Context, handler func(types.Message)) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(">> FocusBot CLI started. Type 'exit' to quit.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			fmt.Print("> ")
			if !scanner.Scan() {
				return nil
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "exit" || text == "quit" {
				fmt.Println("Exiting CLI loop...")
				return nil
			}
			if text == "" {
				continue
			}

			handler(types.Message{
				ID:         fmt.Sprintf("cli-%d", time.Now().UnixNano()),
				ChatID:     c.chatID,
				UserID:     c.chatID,
				Text:       text,
				RequestID:  uuid.NewString(),
				ReceivedAt: time.Now(),
			})
		}
	}
}

func (c *Channel) Send(ctx context.Context, chatID string, reply types.Reply) error {
	fmt.Printf("[FocusBot]: %s\n", reply.Text)
	for _, row := range reply.Keyboard {
		fmt.Printf("  %s\n", strings.Join(row, "  "))
	}
	return nil
}
