// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/hunterboard/internal/logger"
	"github.com/rewired-gh/hunterboard/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	dashboardURL   string
}

// LatestFunc returns the last sent digest for the /latest command.
type LatestFunc func() (*models.Digest, error)

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration, dashboardURL string) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		dashboardURL:   dashboardURL,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, latest LatestFunc) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message, latest)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, latest LatestFunc) {
	var text string
	switch msg.Command() {
	case "ping":
		text = "Pong"
	case "latest":
		text = latestReply(latest, time.Now())
	default:
		return
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	if _, err := c.bot.Send(reply); err != nil {
		logger.Warn("Failed to reply to /%s: %v", msg.Command(), err)
	}
}

func latestReply(latest LatestFunc, now time.Time) string {
	if latest == nil {
		return "No digest sent yet"
	}
	d, err := latest()
	if err != nil || d == nil {
		return "No digest sent yet"
	}
	return fmt.Sprintf("%s: %d detection(s), sent %s\n%s",
		d.DetectedOn, d.Count, humanize.RelTime(d.SentAt, now, "ago", "from now"), strings.Join(d.Names, ", "))
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a sheet load error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(kind string, loadErr error) error {
	text := fmt.Sprintf("⚠️ *Detection sheet unavailable* \\(%s\\)\n`%s`",
		escapeMarkdownV2(kind), escapeMarkdownV2(loadErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Detection sheet recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendDigest sends the detections of one date.
func (c *Client) SendDigest(date string, records []models.DetectionRecord) error {
	return c.sendMarkdownV2(formatDigest(date, records, c.dashboardURL))
}

// formatDigest formats the detections of one date into a Telegram MarkdownV2 message.
func formatDigest(date string, records []models.DetectionRecord, dashboardURL string) string {
	var b strings.Builder
	b.WriteString("📈 *New detections*\n\n")
	fmt.Fprintf(&b, "📅 %s · %d stock\\(s\\)\n\n", escapeMarkdownV2(date), len(records))

	for i, r := range records {
		marker := "🔴"
		if !r.Profit() {
			marker = "🔵"
		}
		fmt.Fprintf(&b, "%d\\. %s *%s*", i+1, marker, escapeMarkdownV2(r.Name))
		if r.Code != "" {
			fmt.Fprintf(&b, " `%s`", escapeMarkdownV2(r.Code))
		}
		b.WriteString("\n")
		if r.Price != "" {
			fmt.Fprintf(&b, "   %s", escapeMarkdownV2(r.Price))
			if r.ReturnText != "" {
				fmt.Fprintf(&b, " \\(%s\\)", escapeMarkdownV2(r.ReturnText))
			}
			b.WriteString("\n")
		}
		if r.Note != "" {
			fmt.Fprintf(&b, "   🎯 %s\n", escapeMarkdownV2(r.Note))
		}
	}

	if dashboardURL != "" {
		fmt.Fprintf(&b, "\n[Open dashboard](%s)", dashboardURL)
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
