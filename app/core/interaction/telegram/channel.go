package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"focusbot/app/pkg/types"
)

const defaultAPIRoot = "https://api.telegram.org"

type Config struct {
	BotToken       string
	PollInterval   time.Duration
	TimeoutSeconds int
	APIRoot        string
	// OffsetPath is a bbolt file remembering the last consumed update,
	// so a restart does not replay already handled messages. Empty
	// keeps the offset in memory only.
	OffsetPath string
}

type Channel struct {
	cfg Config
	id  string

	offset  int64
	offsets *OffsetStore

	mu      sync.RWMutex
	handler func(types.Message)

	client *http.Client
}

func NewChannel(cfg Config) *Channel {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 20
	}
	if strings.TrimSpace(cfg.APIRoot) == "" {
		cfg.APIRoot = defaultAPIRoot
	}
	return &Channel{
		cfg:    cfg,
		id:     "telegram",
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds+10) * time.Second},
	}
}

func (c *Channel) ID() string {
	return c.id
}

func (c *Channel) Start(ctx context.Context, handler func(types.Message)) error {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()

	if strings.TrimSpace(c.cfg.BotToken) == "" {
		return fmt.Errorf("telegram bot token is required")
	}

	if strings.TrimSpace(c.cfg.OffsetPath) != "" {
		offsets, err := OpenOffsetStore(c.cfg.OffsetPath)
		if err != nil {
			log.Printf("[Telegram] offset store unavailable, continuing in memory: %v", err)
		} else {
			c.offsets = offsets
			defer c.offsets.Close()
			if saved, err := offsets.Load(); err == nil && saved > 0 {
				atomic.StoreInt64(&c.offset, saved)
			}
		}
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := c.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[Telegram] poll error: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Send delivers one reply to a chat, honoring the markdown and
// reply-keyboard hints.
func (c *Channel) Send(ctx context.Context, chatID string, reply types.Reply) error {
	if strings.TrimSpace(chatID) == "" {
		return fmt.Errorf("telegram chat id is required")
	}

	payload, _ := sjson.Set("", "chat_id", chatID)
	payload, _ = sjson.Set(payload, "text", reply.Text)
	if reply.Markdown {
		payload, _ = sjson.Set(payload, "parse_mode", "Markdown")
	}
	if len(reply.Keyboard) > 0 {
		payload, _ = sjson.Set(payload, "reply_markup.keyboard", reply.Keyboard)
		payload, _ = sjson.Set(payload, "reply_markup.resize_keyboard", true)
	}

	_, err := c.call(ctx, "sendMessage", payload)
	return err
}

func (c *Channel) pollOnce(ctx context.Context) error {
	payload, _ := sjson.Set("", "timeout", c.cfg.TimeoutSeconds)
	if offset := atomic.LoadInt64(&c.offset); offset > 0 {
		payload, _ = sjson.Set(payload, "offset", offset)
	}

	body, err := c.call(ctx, "getUpdates", payload)
	if err != nil {
		return err
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	advanced := false
	for _, upd := range gjson.GetBytes(body, "result").Array() {
		updateID := upd.Get("update_id").Int()
		if updateID >= atomic.LoadInt64(&c.offset) {
			atomic.StoreInt64(&c.offset, updateID+1)
			advanced = true
		}

		msg := upd.Get("message")
		if !msg.Exists() || msg.Get("message_id").Int() == 0 {
			continue
		}
		text := strings.TrimSpace(msg.Get("text").String())
		if text == "" {
			text = strings.TrimSpace(msg.Get("caption").String())
		}
		if text == "" || handler == nil {
			continue
		}

		handler(types.Message{
			ID:         strconv.FormatInt(msg.Get("message_id").Int(), 10),
			ChatID:     strconv.FormatInt(msg.Get("chat.id").Int(), 10),
			UserID:     strconv.FormatInt(msg.Get("from.id").Int(), 10),
			Text:       text,
			RequestID:  uuid.NewString(),
			ReceivedAt: time.Unix(msg.Get("date").Int(), 0),
		})
	}

	if advanced && c.offsets != nil {
		if err := c.offsets.Save(atomic.LoadInt64(&c.offset)); err != nil {
			log.Printf("[Telegram] persist offset: %v", err)
		}
	}
	return nil
}

func (c *Channel) call(ctx context.Context, method, payload string) ([]byte, error) {
	url := strings.TrimRight(c.cfg.APIRoot, "/") + "/bot" + c.cfg.BotToken + "/" + method

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(payload)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !gjson.GetBytes(body, "ok").Bool() {
		return nil, fmt.Errorf("telegram api error: %s", gjson.GetBytes(body, "description").String())
	}
	return body, nil
}
