// Package notify delivers user-facing messages over Telegram behind the
// engine's narrow Sink interface.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/YaeIsTired/Bot-TG/internal/models"
)

type TelegramSink struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramSink(bot *tgbotapi.BotAPI) *TelegramSink {
	return &TelegramSink{bot: bot}
}

func (s *TelegramSink) DeliverArtifact(_ context.Context, ownerID int64, png []byte, caption string) (models.ArtifactRef, error) {
	photo := tgbotapi.NewPhoto(ownerID, tgbotapi.FileBytes{Name: "khqr.png", Bytes: png})
	photo.Caption = caption
	msg, err := s.bot.Send(photo)
	if err != nil {
		return models.ArtifactRef{}, fmt.Errorf("send qr photo: %w", err)
	}
	return models.ArtifactRef{ChatID: ownerID, MessageID: msg.MessageID}, nil
}

func (s *TelegramSink) DeleteArtifact(_ context.Context, ref models.ArtifactRef) error {
	if ref.MessageID == 0 {
		return nil
	}
	if _, err := s.bot.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID)); err != nil {
		return fmt.Errorf("delete qr message: %w", err)
	}
	return nil
}

func (s *TelegramSink) SendText(_ context.Context, ownerID int64, text string) error {
	if _, err := s.bot.Send(tgbotapi.NewMessage(ownerID, text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
