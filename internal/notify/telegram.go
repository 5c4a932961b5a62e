package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"safeguard-bot/internal/domain"
)

// captionLimit is the Bot API maximum caption length for media messages.
const captionLimit = 1024

// DefaultHTTPTimeout bounds one Bot API request.
const DefaultHTTPTimeout = 10 * time.Second

// TelegramOptions configures a TelegramSender.
type TelegramOptions struct {
	Token       string
	APIEndpoint string        // defaults to the public Bot API
	Timeout     time.Duration // per request, defaults to DefaultHTTPTimeout
	Logger      *zerolog.Logger
}

// TelegramSender sends alerts through the Telegram Bot API.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	logger zerolog.Logger
}

// NewTelegramSender authenticates the bot token and returns a sender.
func NewTelegramSender(opts TelegramOptions) (*TelegramSender, error) {
	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	s := &TelegramSender{bot: bot, logger: zerolog.Nop()}
	if opts.Logger != nil {
		s.logger = opts.Logger.With().Str("component", "telegram").Logger()
	}
	s.logger.Info().Str("bot", bot.Self.UserName).Msg("telegram bot authorized")
	return s, nil
}

// Send implements Sender. It returns when ctx is done even if the Bot API
// request is still in flight; the request itself ends at the client timeout.
func (s *TelegramSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := buildChattable(msg)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(c)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return classifyError(msg.ChatID, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send to chat %d: %w", msg.ChatID, ctx.Err())
	}
}

func buildChattable(msg Message) (tgbotapi.Chattable, error) {
	var markup any
	if kb := keyboard(msg.Buttons); kb != nil {
		markup = *kb
	}

	if msg.Media == nil || msg.Media.URL == "" || len(msg.Text) > captionLimit {
		m := tgbotapi.NewMessage(msg.ChatID, msg.Text)
		m.ParseMode = tgbotapi.ModeHTML
		m.DisableWebPagePreview = true
		m.ReplyMarkup = markup
		return m, nil
	}

	file := mediaFile(msg.Media.URL)
	switch msg.Media.Type {
	case domain.MediaPhoto:
		p := tgbotapi.NewPhoto(msg.ChatID, file)
		p.Caption, p.ParseMode, p.ReplyMarkup = msg.Text, tgbotapi.ModeHTML, markup
		return p, nil
	case domain.MediaVideo:
		v := tgbotapi.NewVideo(msg.ChatID, file)
		v.Caption, v.ParseMode, v.ReplyMarkup = msg.Text, tgbotapi.ModeHTML, markup
		return v, nil
	case domain.MediaAnimation:
		a := tgbotapi.NewAnimation(msg.ChatID, file)
		a.Caption, a.ParseMode, a.ReplyMarkup = msg.Text, tgbotapi.ModeHTML, markup
		return a, nil
	default:
		return nil, fmt.Errorf("unsupported media type %q", msg.Media.Type)
	}
}

// mediaFile treats http(s) values as URLs and anything else as a file ID.
func mediaFile(ref string) tgbotapi.RequestFileData {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tgbotapi.FileURL(ref)
	}
	return tgbotapi.FileID(ref)
}

func keyboard(buttons []domain.Button) *tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for i, b := range buttons {
		if i == domain.MaxButtons {
			break
		}
		if b.Text == "" || b.URL == "" {
			continue
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
	}
	if len(row) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(row)
	return &kb
}

// classifyError maps permanent Bot API rejections to ErrDestinationUnreachable.
func classifyError(chatID int64, err error) error {
	var (
		code int
		desc string
	)
	var ptrErr *tgbotapi.Error
	var valErr tgbotapi.Error
	switch {
	case errors.As(err, &ptrErr):
		code, desc = ptrErr.Code, ptrErr.Message
	case errors.As(err, &valErr):
		code, desc = valErr.Code, valErr.Message
	default:
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}

	lower := strings.ToLower(desc)
	if code == 403 ||
		strings.Contains(lower, "chat not found") ||
		strings.Contains(lower, "bot was kicked") ||
		strings.Contains(lower, "bot is not a member") {
		return fmt.Errorf("%w: chat %d: %s", ErrDestinationUnreachable, chatID, desc)
	}
	return fmt.Errorf("telegram send to %d: %w", chatID, err)
}
