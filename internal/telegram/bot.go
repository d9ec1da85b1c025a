package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/MikeSquared-Agency/pricewatch/internal/alerts"
	"github.com/MikeSquared-Agency/pricewatch/internal/conversation"
	"github.com/MikeSquared-Agency/pricewatch/internal/digest"
	"github.com/MikeSquared-Agency/pricewatch/internal/graphics"
)

const (
	GoodMorning = "☀️ *GOOD MORNING!* ☕\n\n" +
		"PriceWatch is up and hunting for today's best offers.\n" +
		"Stay tuned to the channel so you don't miss the biggest price drops!"

	GoodNight = "🌙 *Good night!* ✨\n\n" +
		"The deal hunt is over for today.\n" +
		"We start again tomorrow morning, see you then!"
)

// Conversation turns operator input into replies.
type Conversation interface {
	Handle(ctx context.Context, chatID int64, ev conversation.Event) ([]conversation.Reply, error)
}

// DigestBuilder builds today's roundup.
type DigestBuilder interface {
	Build(ctx context.Context) (digest.Digest, error)
}

// Collager tiles digest photos into one image.
type Collager interface {
	Collage(photos [][]byte, notice string) ([]byte, error)
}

type BotDeps struct {
	Client       *Client
	Conversation Conversation
	Digests      DigestBuilder
	Collager     Collager
	Reporter     *alerts.Reporter
	PinDigest    bool
}

// digestPreview is the operator-side copy waiting for confirmation.
type digestPreview struct {
	photoID   int
	confirmID int
}

// Bot reads updates one at a time, so calls for a chat never overlap.
type Bot struct {
	client    *Client
	conv      Conversation
	digests   DigestBuilder
	collager  Collager
	reporter  *alerts.Reporter
	pinDigest bool

	mu       sync.Mutex
	previews map[int64]digestPreview
}

func NewBot(d BotDeps) *Bot {
	return &Bot{
		client:    d.Client,
		conv:      d.Conversation,
		digests:   d.Digests,
		collager:  d.Collager,
		reporter:  d.Reporter,
		pinDigest: d.PinDigest,
		previews:  make(map[int64]digestPreview),
	}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.client.api.GetUpdatesChan(cfg)
	slog.Info("telegram update loop started", "operator", b.client.operator)

	for {
		select {
		case <-ctx.Done():
			b.client.api.StopReceivingUpdates()
			slog.Info("telegram update loop stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate processes one update. Panics are reported, not propagated.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if v := recover(); v != nil {
			b.reporter.ReportPanic(ctx, "BOT_UPDATE", v)
		}
	}()

	switch {
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	}
}

func (b *Bot) authorized(chatID int64) bool {
	if b.client.operator == 0 || chatID == b.client.operator {
		return true
	}
	slog.Warn("ignoring update from unknown chat", "chat_id", chatID)
	return false
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.Chat == nil || !b.authorized(m.Chat.ID) {
		return
	}
	chatID := m.Chat.ID

	var ev conversation.Event
	switch {
	case m.IsCommand() && m.Command() == "start":
		b.forgetPreview(chatID)
		ev = conversation.Press(conversation.ActionReset)
	case len(m.Photo) > 0:
		ev = conversation.Photo(m.Photo[len(m.Photo)-1].FileID)
	default:
		ev = conversation.Text(m.Text)
	}
	b.converse(ctx, chatID, 0, ev)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := b.client.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		slog.Debug("answer callback failed", "error", err)
	}
	if cq.Message == nil || cq.Message.Chat == nil || !b.authorized(cq.Message.Chat.ID) {
		return
	}
	chatID, msgID := cq.Message.Chat.ID, cq.Message.MessageID

	switch action := conversation.Action(cq.Data); action {
	case conversation.ActionDigest:
		b.showDigest(ctx, chatID, msgID)
	case conversation.ActionDigestPreview:
		b.previewDigest(ctx, chatID, msgID)
	case conversation.ActionDigestConfirm:
		b.confirmDigest(ctx, chatID, msgID)
	case conversation.ActionGoodMorning:
		b.dailyPost(ctx, chatID, msgID, GoodMorning, "Good morning")
	case conversation.ActionGoodNight:
		b.dailyPost(ctx, chatID, msgID, GoodNight, "Good night")
	default:
		if action == conversation.ActionReset {
			b.forgetPreview(chatID)
		}
		b.converse(ctx, chatID, msgID, conversation.Press(action))
	}
}

func (b *Bot) converse(ctx context.Context, chatID int64, msgID int, ev conversation.Event) {
	replies, err := b.conv.Handle(ctx, chatID, ev)
	if err != nil {
		b.reporter.Report(ctx, "CONVERSATION", err)
	}
	b.render(chatID, msgID, replies)
}

// render sends replies in order. A Replace reply edits msgID when there is
// one and falls back to a new message when the edit is refused.
func (b *Bot) render(chatID int64, msgID int, replies []conversation.Reply) {
	for _, r := range replies {
		kb := Keyboard(r.Keyboard)
		if r.Replace && msgID != 0 && r.Photo == nil {
			err := b.client.EditText(chatID, msgID, r.Text, r.Markdown, kb)
			if err == nil {
				continue
			}
			slog.Warn("edit refused, sending instead", "chat_id", chatID, "error", err)
		}

		var err error
		if r.Photo != nil {
			_, err = b.client.SendPhoto(chatID, r.Photo, r.Text, r.Markdown, kb)
		} else {
			_, err = b.client.SendText(chatID, r.Text, r.Markdown, kb)
		}
		if err != nil {
			slog.Warn("send reply failed", "chat_id", chatID, "error", err)
		}
	}
}

func menuKeyboard() *tgbotapi.InlineKeyboardMarkup {
	return Keyboard(conversation.MenuKeyboard())
}

func (b *Bot) showDigest(ctx context.Context, chatID int64, msgID int) {
	d, err := b.digests.Build(ctx)
	if err != nil {
		b.fail(ctx, chatID, "DIGEST", "❌ ERROR: could not read today's offers", err)
		return
	}

	rows := [][]conversation.Button{{{Text: "❌ Cancel", Action: conversation.ActionReset}}}
	if !d.Empty() {
		rows = append([][]conversation.Button{{{Text: "📸 Build collage and publish", Action: conversation.ActionDigestPreview}}}, rows...)
	}
	if err := b.client.EditText(chatID, msgID, d.Text, true, Keyboard(rows)); err != nil {
		slog.Warn("show digest edit failed", "chat_id", chatID, "error", err)
		if _, err := b.client.SendText(chatID, d.Text, true, Keyboard(rows)); err != nil {
			slog.Warn("show digest send failed", "chat_id", chatID, "error", err)
		}
	}
}

// collage downloads the day's photos and tiles them. Missing photos fall
// back to a notice card.
func (b *Bot) collage(ctx context.Context, refs []string) ([]byte, error) {
	if len(refs) == 0 {
		return b.collager.Collage(nil, graphics.NoticeNoPhotos)
	}
	photos := make([][]byte, 0, len(refs))
	for _, ref := range refs {
		data, err := b.client.Download(ctx, ref)
		if err != nil {
			slog.Warn("digest photo download failed", "ref", ref, "error", err)
			continue
		}
		photos = append(photos, data)
	}
	return b.collager.Collage(photos, graphics.NoticeDownloadFailed)
}

func (b *Bot) previewDigest(ctx context.Context, chatID int64, msgID int) {
	d, err := b.digests.Build(ctx)
	if err != nil {
		b.fail(ctx, chatID, "DIGEST", "❌ ERROR: could not read today's offers", err)
		return
	}
	img, err := b.collage(ctx, d.Photos)
	if err != nil {
		b.fail(ctx, chatID, "DIGEST", "❌ ERROR: could not build the digest collage", err)
		return
	}

	photoID, err := b.client.SendPhoto(chatID, img, d.Text, true, nil)
	if err != nil {
		b.fail(ctx, chatID, "DIGEST", "❌ ERROR: could not send the digest preview", err)
		return
	}
	confirm := Keyboard([][]conversation.Button{
		{{Text: "✅ CONFIRM PUBLICATION", Action: conversation.ActionDigestConfirm}},
		{{Text: "❌ Cancel", Action: conversation.ActionReset}},
	})
	confirmID, err := b.client.SendText(chatID,
		"*Preview created and sent above.*\n\nPublish it to the public channel? The preview will be *deleted* afterwards.",
		true, confirm)
	if err != nil {
		b.fail(ctx, chatID, "DIGEST", "❌ ERROR: could not ask for confirmation", err)
		return
	}

	b.mu.Lock()
	b.previews[chatID] = digestPreview{photoID: photoID, confirmID: confirmID}
	b.mu.Unlock()

	if err := b.client.Delete(chatID, msgID); err != nil {
		slog.Debug("delete digest prompt failed", "error", err)
	}
}

func (b *Bot) confirmDigest(ctx context.Context, chatID int64, msgID int) {
	b.mu.Lock()
	p, ok := b.previews[chatID]
	b.mu.Unlock()
	if !ok {
		if _, err := b.client.SendText(chatID, "⚠️ Digest session expired. Try again from the main menu.", false, menuKeyboard()); err != nil {
			slog.Warn("send expired notice failed", "chat_id", chatID, "error", err)
		}
		return
	}

	copyID, err := b.client.CopyToChannel(chatID, p.photoID)
	if err != nil {
		text := "❌ PUBLICATION ERROR: " + err.Error()
		if editErr := b.client.EditText(chatID, msgID, text, false, menuKeyboard()); editErr != nil {
			if _, sendErr := b.client.SendText(chatID, text, false, menuKeyboard()); sendErr != nil {
				slog.Warn("send publication error failed", "chat_id", chatID, "edit_error", editErr, "error", sendErr)
			}
		}
		b.reporter.Report(ctx, "DIGEST_PUBLISH", err)
		return
	}
	b.forgetPreview(chatID)

	if err := b.client.EditText(chatID, p.confirmID, "✅ *PUBLISHED TO THE CHANNEL!*", true, nil); err != nil {
		slog.Warn("edit digest confirmation failed", "error", err)
	}
	if err := b.client.Delete(chatID, p.photoID); err != nil {
		slog.Warn("delete digest preview failed", "error", err)
	}
	if b.pinDigest {
		if err := b.client.PinInChannel(copyID); err != nil {
			slog.Warn("pin digest failed", "message_id", copyID, "error", err)
		}
	}
	slog.Info("digest published", "channel_message_id", copyID)

	if _, err := b.client.SendText(chatID, "Nice work! Shall we carry on?", false, menuKeyboard()); err != nil {
		slog.Warn("send menu failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) dailyPost(ctx context.Context, chatID int64, msgID int, text, name string) {
	if err := b.client.SendToChannel(text); err != nil {
		msg := fmt.Sprintf("❌ ERROR: could not publish '%s' to the channel. Check CHANNEL_ID and the bot's permissions: %v", name, err)
		if _, sendErr := b.client.SendText(chatID, msg, false, nil); sendErr != nil {
			slog.Warn("send daily post error failed", "error", sendErr)
		}
		b.reporter.Report(ctx, "DAILY_POST", err)
		if err := b.client.EditKeyboard(chatID, msgID, menuKeyboard()); err != nil {
			slog.Debug("restore menu failed", "error", err)
		}
		return
	}
	done := fmt.Sprintf("✅ *'%s' published to the channel!*", name)
	if err := b.client.EditText(chatID, msgID, done, true, menuKeyboard()); err != nil {
		slog.Warn("edit daily post confirmation failed", "error", err)
	}
}

func (b *Bot) forgetPreview(chatID int64) {
	b.mu.Lock()
	delete(b.previews, chatID)
	b.mu.Unlock()
}

// fail tells the operator and reports the incident.
func (b *Bot) fail(ctx context.Context, chatID int64, where, text string, err error) {
	if _, sendErr := b.client.SendText(chatID, fmt.Sprintf("%s: %v", text, err), false, menuKeyboard()); sendErr != nil {
		slog.Warn("send failure notice failed", "chat_id", chatID, "error", sendErr)
	}
	b.reporter.Report(ctx, where, err)
}
