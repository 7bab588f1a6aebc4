package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/justsurfingit/eis/internal/dtos"
)

// Sender is the slice of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	bot    Sender
	chatID int64
}

func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return bot, nil
}

func NewTelegramNotifier(bot Sender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) NotifyRun(_ context.Context, stats dtos.RunStats) error {
	msg := tgbotapi.NewMessage(t.chatID, runSummary(stats))
	msg.ParseMode = "HTML"
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram summary: %w", err)
	}
	return nil
}

func runSummary(s dtos.RunStats) string {
	var b strings.Builder
	if s.IsSuccess {
		b.WriteString("✅ <b>Email ingestion finished</b>\n")
	} else {
		b.WriteString("⚠️ <b>Email ingestion failed</b>\n")
	}
	fmt.Fprintf(&b, "Run %s took %.1fs\n", html.EscapeString(s.RunID), s.DurationSeconds)
	fmt.Fprintf(&b, "📧 %d found, %d new, %d existing, %d failed, %d skipped\n",
		s.EmailsFound, s.EmailsNew, s.EmailsExisting, s.EmailsFailed, s.EmailsSkipped)
	fmt.Fprintf(&b, "💼 %d extracted (%d LinkedIn, %d Indeed), %d scraped, %d failed",
		s.JobsExtracted, s.LinkedInJobs, s.IndeedJobs, s.JobsScraped, s.JobsFailed)
	if s.ErrorMessage != "" {
		fmt.Fprintf(&b, "\n<code>%s</code>", html.EscapeString(s.ErrorMessage))
	}
	return b.String()
}
