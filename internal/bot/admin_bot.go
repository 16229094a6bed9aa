package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"swapit/internal/domain"
	"swapit/internal/logger"
	"swapit/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sessions is what the bot needs from the session service.
type Sessions interface {
	ListGames(ctx context.Context) ([]service.LobbyEntry, error)
	GetGame(ctx context.Context, gameID string) (*service.GameView, error)
	ClearGames(ctx context.Context, adminKey string) (int, error)
}

// AdminBot handles admin commands via Telegram
type AdminBot struct {
	bot      *tgbotapi.BotAPI
	sessions Sessions
	adminKey string
	adminIDs []int64 // Telegram user IDs who can use admin commands
	stopCh   chan struct{}
	wg       sync.WaitGroup
	log      *slog.Logger
}

func NewAdminBot(token string, sessions Sessions, adminKey string, adminIDs []int64) (*AdminBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log := logger.With("component", "admin_bot")
	log.Info("admin bot authorized", "username", bot.Self.UserName)

	return &AdminBot{
		bot:      bot,
		sessions: sessions,
		adminKey: adminKey,
		adminIDs: adminIDs,
		stopCh:   make(chan struct{}),
		log:      log,
	}, nil
}

// Start listens for commands until Stop.
func (b *AdminBot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.bot.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg := update.Message
			if msg == nil || msg.From == nil || !msg.IsCommand() {
				continue
			}
			if !b.isAdmin(msg.From.ID) {
				continue
			}

			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleCommand(msg)
			}()
		}
	}
}

// Stop gracefully stops the bot
func (b *AdminBot) Stop() {
	b.log.Info("stopping admin bot...")
	close(b.stopCh)
	b.bot.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("admin bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("admin bot shutdown timeout, some handlers may not have completed")
	}
}

func (b *AdminBot) isAdmin(userID int64) bool {
	for _, id := range b.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *AdminBot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply := tgbotapi.NewMessage(msg.Chat.ID, b.respond(ctx, msg.Command(), msg.CommandArguments()))
	reply.ParseMode = "HTML"
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.bot.Send(reply); err != nil {
		b.log.Error("error sending message", "error", err)
	}
}

// respond renders the answer to one command.
func (b *AdminBot) respond(ctx context.Context, command, args string) string {
	switch command {
	case "start", "help":
		return helpMessage
	case "games":
		return b.handleGames(ctx)
	case "game":
		return b.handleGame(ctx, strings.TrimSpace(args))
	case "clear":
		return b.handleClear(ctx, strings.TrimSpace(args))
	default:
		return "❌ Неизвестная команда. Используйте /help для списка команд."
	}
}

const helpMessage = `<b>🤖 Команды администратора</b>

/games - Открытые лобби
/game &lt;id&gt; - Состояние игры
/clear confirm - Удалить все игры`

func (b *AdminBot) handleGames(ctx context.Context) string {
	games, err := b.sessions.ListGames(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if len(games) == 0 {
		return "Нет открытых лобби"
	}

	var sb strings.Builder
	sb.WriteString("<b>🎮 Открытые лобби</b>\n\n")
	for _, g := range games {
		name := g.Name
		if name == "" {
			name = g.ID
		}
		fmt.Fprintf(&sb, "• <code>%s</code> %s | хост: %s | %d/%d | %d плиток\n",
			g.ID, html.EscapeString(name), html.EscapeString(g.HostName),
			g.MemberCount, g.MaxPlayers, g.TileCount)
	}
	return sb.String()
}

func (b *AdminBot) handleGame(ctx context.Context, id string) string {
	if id == "" {
		return "❌ Использование: /game <id>"
	}
	view, err := b.sessions.GetGame(ctx, id)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return "❌ Игра не найдена"
		}
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>🎮 %s</b>\n", html.EscapeString(view.ID))
	fmt.Fprintf(&sb, "Фаза: %s | игроков: %d | мест: %d\n",
		view.Phase, len(view.Members), view.EffectivePlacementCount)
	if view.EndReason != "" {
		fmt.Fprintf(&sb, "Завершена: %s\n", view.EndReason)
	}

	if view.Phase == domain.PhaseLive {
		sb.WriteString("\n<b>Прогресс:</b>\n")
		for _, p := range view.Players {
			mark := ""
			if p.Finished {
				mark = " ✅"
			}
			fmt.Fprintf(&sb, "• %s: %d верно, %d ходов%s\n",
				html.EscapeString(p.PlayerID), p.PositionsCorrect, p.MoveCount, mark)
		}
	}

	if len(view.Placements) > 0 {
		sb.WriteString("\n<b>🏆 Места:</b>\n")
		for _, p := range view.Placements {
			fmt.Fprintf(&sb, "%d. %s (%d ходов)\n", p.Rank, html.EscapeString(p.PlayerID), p.MoveCount)
		}
	}
	return sb.String()
}

func (b *AdminBot) handleClear(ctx context.Context, args string) string {
	if args != "confirm" {
		return "⚠️ Это удалит все игры. Отправьте /clear confirm"
	}
	n, err := b.sessions.ClearGames(ctx, b.adminKey)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	b.log.Warn("all games cleared via bot", "count", n)
	return fmt.Sprintf("✅ Удалено игр: %d", n)
}
