// Package bot is the Telegram command entrypoint. It stays thin: parse
// the command, call the engine or ledger, reply.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/YaeIsTired/Bot-TG/internal/ledger"
	"github.com/YaeIsTired/Bot-TG/internal/recon"
)

type Bot struct {
	api    *tgbotapi.BotAPI
	engine *recon.Engine
	ledger *ledger.Store
}

func New(api *tgbotapi.BotAPI, engine *recon.Engine, store *ledger.Store) *Bot {
	return &Bot{api: api, engine: engine, ledger: store}
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case upd := <-updates:
			if upd.Message == nil || !upd.Message.IsCommand() {
				continue
			}
			b.handleCommand(ctx, upd.Message)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.reply(chatID, "Commands:\n/topup <amount> - top up your balance via KHQR\n/balance - show your balance")
	case "topup":
		b.handleTopup(ctx, chatID, msg.CommandArguments())
	case "balance":
		b.handleBalance(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Try /start.")
	}
}

func (b *Bot) handleTopup(ctx context.Context, chatID int64, rawAmount string) {
	req, err := b.engine.StartTopup(ctx, chatID, rawAmount)
	switch {
	case errors.Is(err, recon.ErrValidation):
		b.reply(chatID, err.Error())
	case errors.Is(err, recon.ErrGateway):
		log.Printf("component=bot method=handleTopup chat_id=%d err=%v", chatID, err)
		b.reply(chatID, "Payment service is unavailable right now. Please try again in a minute.")
	case err != nil:
		log.Printf("component=bot method=handleTopup chat_id=%d err=%v", chatID, err)
		b.reply(chatID, "Something went wrong starting your top-up. Please try again.")
	default:
		log.Printf("component=bot method=handleTopup chat_id=%d hash=%s amount=%s", chatID, req.PaymentHash, req.Amount)
	}
}

func (b *Bot) handleBalance(ctx context.Context, chatID int64) {
	balance, err := b.ledger.Balance(ctx, chatID)
	if err != nil {
		log.Printf("component=bot method=handleBalance chat_id=%d err=%v", chatID, err)
		b.reply(chatID, "Could not read your balance. Please try again.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Your balance: $%s", balance.StringFixed(2)))
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("component=bot method=reply chat_id=%d err=%v", chatID, err)
	}
}
