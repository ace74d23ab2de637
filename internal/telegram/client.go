// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arprequest/tide-gauge/internal/models"
	"github.com/arprequest/tide-gauge/internal/openmeteo"
)

// Client handles Telegram notifications: approaching tide extremes plus
// fetch error/recovery transitions.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration

	mu            sync.Mutex
	lastEventSent time.Time // timestamp of the extremum last alerted on
}

// StatusFunc renders the current gauge state for the /tide command.
type StatusFunc func() string

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
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
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates
// and handles bot commands. It returns immediately; the goroutine stops
// when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, status StatusFunc) {
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
					c.handleCommand(update.Message, status)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, status StatusFunc) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	case "tide":
		text := "No data yet"
		if status != nil {
			if s := status(); s != "" {
				text = s
			}
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, text)
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

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

// SendError sends a refresh error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Refresh error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Refresh recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// MaybeSendTideAlert notifies when the snapshot's next extremum is within
// leadTime. Each extremum is alerted at most once, keyed by its timestamp.
// Returns whether an alert was sent.
func (c *Client) MaybeSendTideAlert(snap models.TideSnapshot, leadTime time.Duration, now time.Time) (bool, error) {
	if !shouldAlert(snap, leadTime, now, c.lastSent()) {
		return false, nil
	}
	if err := c.sendMarkdownV2(formatTideAlert(snap)); err != nil {
		return false, err
	}
	c.mu.Lock()
	c.lastEventSent = snap.NextEventTime
	c.mu.Unlock()
	return true, nil
}

func (c *Client) lastSent() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEventSent
}

// shouldAlert holds the alert predicate apart from the transport so it
// can be tested without a bot.
func shouldAlert(snap models.TideSnapshot, leadTime time.Duration, now, lastSent time.Time) bool {
	if !snap.Valid || snap.NextEventTime.IsZero() {
		return false
	}
	if snap.NextEventKind != models.EventHigh && snap.NextEventKind != models.EventLow {
		return false
	}
	until := snap.NextEventTime.Sub(now)
	if until <= 0 || until > leadTime {
		return false
	}
	return !snap.NextEventTime.Equal(lastSent)
}

// formatTideAlert formats an approaching-extremum message.
func formatTideAlert(snap models.TideSnapshot) string {
	emoji := "🌊"
	if snap.NextEventKind == models.EventLow {
		emoji = "🏖"
	}
	return fmt.Sprintf("%s *%s tide approaching*\n%s ft at %s\nCurrent: %s ft \\(MSL %s ft\\)",
		emoji,
		escapeMarkdownV2(string(snap.NextEventKind)),
		escapeMarkdownV2(fmt.Sprintf("%.2f", snap.NextEventFt)),
		escapeMarkdownV2(snap.NextEventTime.Format("15:04 MST")),
		escapeMarkdownV2(fmt.Sprintf("%.2f", snap.CurrentFt)),
		escapeMarkdownV2(fmt.Sprintf("%+.2f", snap.DeltaMSL)),
	)
}

// FormatStatus renders both snapshots as plain text for the /tide command.
func FormatStatus(tide models.TideSnapshot, weather models.WeatherSnapshot) string {
	var b strings.Builder
	if tide.Valid {
		fmt.Fprintf(&b, "Tide: %.2f ft (MSL %+.2f ft)\n", tide.CurrentFt, tide.DeltaMSL)
		fmt.Fprintf(&b, "Next %s: %.2f ft at %s\n",
			tide.NextEventKind, tide.NextEventFt, tide.NextEventTime.Format("15:04 MST"))
	} else {
		b.WriteString("Tide: no data yet\n")
	}
	if weather.Valid {
		fmt.Fprintf(&b, "Weather: %.1f°F, %s %.1f mph, %s",
			weather.TempF, openmeteo.CompassDirection(weather.WindDirDeg), weather.WindMph, weather.Condition)
	} else {
		b.WriteString("Weather: no data yet")
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
