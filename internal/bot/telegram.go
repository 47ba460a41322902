// Package bot exposes the market service over a Telegram command
// interface.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yonghanchen/predictbot/internal/domain"
	"github.com/yonghanchen/predictbot/internal/service"
)

// commandTimeout bounds how long one command may hold the refresh cycle.
const commandTimeout = 30 * time.Second

// MarketProvider is what the bot needs from the service layer.
type MarketProvider interface {
	Markets(ctx context.Context, limit int) (service.Result, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	Count(ctx context.Context) (int64, error)
}

// TelegramBot answers market queries over Telegram long polling.
type TelegramBot struct {
	api     *tgbotapi.BotAPI
	markets MarketProvider
	allowed map[int64]bool
	logger  *slog.Logger
}

// NewTelegramBot creates a TelegramBot. An empty allowedChatIDs list
// accepts commands from any chat.
func NewTelegramBot(token string, markets MarketProvider, allowedChatIDs []int64, logger *slog.Logger) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot: create telegram api: %w", err)
	}

	allowed := make(map[int64]bool, len(allowedChatIDs))
	for _, id := range allowedChatIDs {
		allowed[id] = true
	}

	return &TelegramBot{
		api:     api,
		markets: markets,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "telegram_bot")),
	}, nil
}

// Run polls for updates until ctx is cancelled.
func (b *TelegramBot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.logger.InfoContext(ctx, "telegram bot started",
		slog.String("username", b.api.Self.UserName),
	)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if len(b.allowed) > 0 && !b.allowed[update.Message.Chat.ID] {
				b.logger.WarnContext(ctx, "command from unauthorized chat",
					slog.Int64("chat_id", update.Message.Chat.ID),
				)
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *TelegramBot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch strings.ToLower(msg.Command()) {
	case "start", "help":
		b.cmdHelp(msg.Chat.ID)
	case "markets":
		b.cmdMarkets(ctx, msg.Chat.ID, msg.CommandArguments())
	case "market":
		b.cmdMarket(ctx, msg.Chat.ID, msg.CommandArguments())
	case "status":
		b.cmdStatus(ctx, msg.Chat.ID)
	case "ping":
		b.send(msg.Chat.ID, "pong")
	default:
		b.send(msg.Chat.ID, "Unknown command. Use /help")
	}
}

func (b *TelegramBot) cmdHelp(chatID int64) {
	b.send(chatID, strings.TrimSpace(`
Commands:
/markets [n] - top tradable markets (default 5)
/market <id> - one market by ID
/status - store counters
/ping - connectivity check
`))
}

func (b *TelegramBot) cmdMarkets(ctx context.Context, chatID int64, args string) {
	limit := 5
	if args = strings.TrimSpace(args); args != "" {
		if n, err := strconv.Atoi(args); err == nil && n > 0 && n <= 20 {
			limit = n
		}
	}

	res, err := b.markets.Markets(ctx, limit)
	if err != nil {
		b.logger.ErrorContext(ctx, "markets command failed", slog.String("error", err.Error()))
		b.send(chatID, "Failed to fetch markets, try again later.")
		return
	}

	if len(res.Markets) == 0 {
		b.send(chatID, "No tradable markets found.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Top %d markets (%s):\n\n", len(res.Markets), res.Outcome)
	for i, m := range res.Markets {
		fmt.Fprintf(&sb, "%d. %s\n   yes %.2f / no %.2f, vol24h %.0f\n   id: %s\n",
			i+1, m.Question, m.YesPrice, m.NoPrice, m.Volume24h, m.ID)
	}
	b.send(chatID, sb.String())
}

func (b *TelegramBot) cmdMarket(ctx context.Context, chatID int64, args string) {
	id := strings.TrimSpace(args)
	if id == "" {
		b.send(chatID, "Usage: /market <id>")
		return
	}

	m, err := b.markets.GetMarket(ctx, id)
	if err != nil {
		b.send(chatID, fmt.Sprintf("Market %s not found.", id))
		return
	}

	v := m.View()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n", v.Question)
	fmt.Fprintf(&sb, "yes %.2f / no %.2f\n", v.YesPrice, v.NoPrice)
	fmt.Fprintf(&sb, "vol24h %.0f, liquidity %.0f\n", v.Volume24h, v.Liquidity)
	fmt.Fprintf(&sb, "ends %s\n", v.EndDate)
	if len(v.ClobTokenIDs) == 2 {
		fmt.Fprintf(&sb, "tokens: %s / %s\n", v.ClobTokenIDs[0], v.ClobTokenIDs[1])
	} else {
		sb.WriteString("tokens: not yet resolved\n")
	}
	b.send(chatID, sb.String())
}

func (b *TelegramBot) cmdStatus(ctx context.Context, chatID int64) {
	count, err := b.markets.Count(ctx)
	if err != nil {
		b.send(chatID, "Failed to read store status.")
		return
	}
	b.send(chatID, fmt.Sprintf("Stored markets: %d", count))
}

func (b *TelegramBot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("telegram send failed", slog.String("error", err.Error()))
	}
}
