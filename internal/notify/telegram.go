package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/optionhawk/scanner/models"
)

// botAPI is the slice of the Telegram client the notifier needs.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier pushes scan summaries to a Telegram chat.
type Notifier struct {
	bot    botAPI
	chatID int64
	logger zerolog.Logger
}

func New(token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("initializing telegram bot: %w", err)
	}
	return &Notifier{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "notify").Logger(),
	}, nil
}

// SendScanResults formats and sends the accepted candidates. An empty scan
// still sends a short notice so the chat knows the scan ran.
func (n *Notifier) SendScanResults(candidates []models.Candidate) error {
	msg := tgbotapi.NewMessage(n.chatID, FormatScanResults(candidates))
	msg.ParseMode = "Markdown"

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("sending scan results: %w", err)
	}
	n.logger.Info().Int("candidates", len(candidates)).Msg("scan results sent")
	return nil
}

// FormatScanResults renders the candidate list as a Markdown message.
func FormatScanResults(candidates []models.Candidate) string {
	if len(candidates) == 0 {
		return "📉 *Scan complete* — no candidates passed the screens today."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎯 *Scan complete* — %d candidate(s)\n\n", len(candidates))
	for _, c := range candidates {
		fmt.Fprintf(&b, "*%s* (%s) $%.2f\n", c.Symbol, c.Category, c.Price)
		fmt.Fprintf(&b, "  rev growth %.0f%% | RS %.2f | RSI %.0f",
			c.Fundamentals.RevenueGrowth*100, c.Technicals.RelativeStrength, c.Technicals.RSI)
		if c.Technicals.Pattern != models.PatternNone {
			fmt.Fprintf(&b, " | %s", c.Technicals.Pattern)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}
