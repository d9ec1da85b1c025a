// Package telegram is the messaging side of pricewatch: it sends, edits and
// publishes through the Bot API and drives the operator conversation.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/MikeSquared-Agency/pricewatch/internal/conversation"
	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
)

const maxPhotoBytes = 10 << 20

// botAPI is the subset of *tgbotapi.BotAPI the client uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	CopyMessage(config tgbotapi.CopyMessageConfig) (tgbotapi.MessageID, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client talks to one operator chat and one public channel.
type Client struct {
	api      botAPI
	http     *http.Client
	operator int64

	// channel is either a numeric chat ID or an @username.
	channelID   int64
	channelName string
}

// NewClient connects with token and verifies it with getMe.
func NewClient(token string, operator int64, channel string) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	return newClient(api, operator, channel), nil
}

func newClient(api botAPI, operator int64, channel string) *Client {
	c := &Client{
		api:      api,
		http:     &http.Client{Timeout: 30 * time.Second},
		operator: operator,
	}
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		c.channelID = id
	} else {
		c.channelName = channel
	}
	return c
}

// Operator is the chat that receives notifications and incidents.
func (c *Client) Operator() int64 { return c.operator }

func (c *Client) toChannel(b *tgbotapi.BaseChat) {
	if c.channelID != 0 {
		b.ChatID = c.channelID
		return
	}
	b.ChannelUsername = c.channelName
}

// Keyboard converts conversation buttons to an inline keyboard.
func Keyboard(rows [][]conversation.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			r = append(r, tgbotapi.NewInlineKeyboardButtonData(b.Text, string(b.Action)))
		}
		out = append(out, r)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &kb
}

func parseMode(markdown bool) string {
	if markdown {
		return tgbotapi.ModeMarkdown
	}
	return ""
}

// SendText sends a message and returns its ID.
func (c *Client) SendText(chatID int64, text string, markdown bool, kb *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode(markdown)
	msg.DisableWebPagePreview = true
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// SendPhoto sends a JPEG with an optional caption and returns its ID.
func (c *Client) SendPhoto(chatID int64, image []byte, caption string, markdown bool, kb *tgbotapi.InlineKeyboardMarkup) (int, error) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "image.jpg", Bytes: image})
	photo.Caption = caption
	photo.ParseMode = parseMode(markdown)
	if kb != nil {
		photo.ReplyMarkup = *kb
	}
	sent, err := c.api.Send(photo)
	if err != nil {
		return 0, fmt.Errorf("send photo to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// EditText replaces the text and keyboard of a sent message.
func (c *Client) EditText(chatID int64, msgID int, text string, markdown bool, kb *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
	edit.ParseMode = parseMode(markdown)
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = kb
	if _, err := c.api.Request(edit); err != nil {
		return fmt.Errorf("edit message %d: %w", msgID, err)
	}
	return nil
}

// EditKeyboard swaps only the inline keyboard of a sent message.
func (c *Client) EditKeyboard(chatID int64, msgID int, kb *tgbotapi.InlineKeyboardMarkup) error {
	markup := tgbotapi.NewInlineKeyboardMarkup()
	if kb != nil {
		markup = *kb
	}
	if _, err := c.api.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, markup)); err != nil {
		return fmt.Errorf("edit keyboard %d: %w", msgID, err)
	}
	return nil
}

func (c *Client) Delete(chatID int64, msgID int) error {
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		return fmt.Errorf("delete message %d: %w", msgID, err)
	}
	return nil
}

// CopyToChannel copies a message from chatID to the public channel and
// returns the channel copy's ID.
func (c *Client) CopyToChannel(chatID int64, msgID int) (int, error) {
	cp := tgbotapi.NewCopyMessage(0, chatID, msgID)
	c.toChannel(&cp.BaseChat)
	id, err := c.api.CopyMessage(cp)
	if err != nil {
		return 0, fmt.Errorf("copy message %d to channel: %w", msgID, err)
	}
	return id.MessageID, nil
}

// PinInChannel pins a channel message without notifying subscribers.
func (c *Client) PinInChannel(msgID int) error {
	pin := tgbotapi.PinChatMessageConfig{
		ChatID:              c.channelID,
		MessageID:           msgID,
		DisableNotification: true,
	}
	if c.channelID == 0 {
		pin.ChannelUsername = c.channelName
	}
	if _, err := c.api.Request(pin); err != nil {
		return fmt.Errorf("pin message %d: %w", msgID, err)
	}
	return nil
}

// SendToChannel posts a Markdown text to the public channel.
func (c *Client) SendToChannel(text string) error {
	msg := tgbotapi.NewMessage(0, text)
	c.toChannel(&msg.BaseChat)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send to channel: %w", err)
	}
	return nil
}

// PublishPost sends a finished post to the channel.
func (c *Client) PublishPost(_ context.Context, p conversation.Post) error {
	photo := tgbotapi.NewPhoto(0, tgbotapi.FileBytes{Name: "post.jpg", Bytes: p.Image})
	c.toChannel(&photo.BaseChat)
	photo.Caption = p.Caption
	photo.ParseMode = tgbotapi.ModeMarkdown
	if len(p.Buttons) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(p.Buttons))
		for _, b := range p.Buttons {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL)))
		}
		photo.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := c.api.Send(photo); err != nil {
		return fmt.Errorf("publish post: %w", err)
	}
	return nil
}

// Download fetches an uploaded file by its file ID.
func (c *Client) Download(ctx context.Context, ref string) ([]byte, error) {
	url, err := c.api.GetFileDirectURL(ref)
	if err != nil {
		return nil, failure.New(failure.CodeTransient, "telegram.download", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, failure.New(failure.CodeTransient, "telegram.download", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, failure.New(failure.CodeTransient, "telegram.download", redactToken(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, failure.Newf(failure.CodeTransient, "telegram.download", "file %s: status %d", ref, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, failure.New(failure.CodeTransient, "telegram.download", err)
	}
	return data, nil
}

// redactToken strips the bot token that file URLs embed from err's text.
func redactToken(err error) error {
	msg := err.Error()
	if i := strings.Index(msg, "/file/bot"); i >= 0 {
		return fmt.Errorf("%s/file/bot<redacted>", msg[:i])
	}
	return err
}
