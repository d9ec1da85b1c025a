package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
	"github.com/MikeSquared-Agency/pricewatch/internal/graphics"
	"github.com/MikeSquared-Agency/pricewatch/internal/ledger"
	"github.com/MikeSquared-Agency/pricewatch/internal/post"
	"github.com/MikeSquared-Agency/pricewatch/internal/pricing"
)

func (e *Engine) onIdle(_ context.Context, _ *Session, _ Event) ([]Reply, error) {
	return []Reply{menu(false)}, nil
}

func (e *Engine) onLink(ctx context.Context, s *Session, ev Event) ([]Reply, error) {
	if !isText(ev) || !strings.Contains(ev.Text, "http") {
		return e.reprompt(s, "❌ Please paste a *valid* link containing 'http'."), nil
	}

	res := e.links.Resolve(ev.Text)
	s.Draft.ID = res.ID
	s.Draft.Link = res.Link
	s.Draft.CartLink = res.CartLink

	var replies []Reply
	if res.ID != "" && e.publishedToday(ctx, res.ID) {
		replies = append(replies, Reply{Text: "⚠️ WARNING: already published today!"})
	}

	p, err := e.extractor.Fetch(ctx, res.Link)
	if err == nil && post.CleanTitle(p.Title) == "" {
		err = failure.Newf(failure.CodeExtraction, "conversation.link", "no title on page for %s", res.ID)
	}
	if err != nil {
		slog.Warn("extraction failed, switching to manual entry", "link", res.Link, "code", failure.CodeOf(err), "error", err)
		s.Draft.Origin = Manual{}
		s.Step = StepTitle
		replies = append(replies, Reply{Text: "⚠️ *Extraction failed.* Continue with manual entry.", Markdown: true}, e.prompt(s))
		return replies, nil
	}

	title := post.CleanTitle(p.Title)
	s.Draft.Origin = Extracted{Title: title, Price: p.Price}
	s.Draft.Title = title
	s.Draft.NewPrice = p.Price
	s.Step = StepConfirmExtracted
	return append(replies, e.prompt(s)), nil
}

func (e *Engine) publishedToday(ctx context.Context, id string) bool {
	now := e.now()
	recs, err := e.ledger.RecordsOn(ctx, now)
	if err != nil {
		slog.Warn("published-today check failed", "product_id", id, "error", err)
		return false
	}
	return ledger.PublishedOn(recs, id, now)
}

func (e *Engine) onConfirmExtracted(_ context.Context, s *Session, ev Event) ([]Reply, error) {
	if ev.Kind == EventAction {
		switch ev.Action {
		case ActionCorrectTitle:
			s.Step = StepCorrectTitle
			return []Reply{e.prompt(s)}, nil
		case ActionCorrectPrice:
			s.Step = StepCorrectNewPrice
			return []Reply{e.prompt(s)}, nil
		}
	}
	if !isText(ev) {
		return e.reprompt(s, ""), nil
	}
	old := pricing.Normalize(ev.Text)
	if !old.IsPositive() {
		return e.reprompt(s, "❌ Invalid input. Enter only the OLD PRICE (e.g. 120,50) or use the buttons."), nil
	}
	s.Draft.OldPrice = old
	return e.advanceToReviews(s), nil
}

func (e *Engine) onCorrectTitle(_ context.Context, s *Session, ev Event) ([]Reply, error) {
	title := post.CleanTitle(ev.Text)
	if ev.Kind != EventText || title == "" {
		return e.reprompt(s, "❌ The title cannot be empty."), nil
	}
	s.Draft.Title = title
	s.Step = StepConfirmExtracted
	return []Reply{{Text: "✅ Title updated: ✨ " + title}, e.prompt(s)}, nil
}

func (e *Engine) onCorrectNewPrice(_ context.Context, s *Session, ev Event) ([]Reply, error) {
	price := pricing.Normalize(ev.Text)
	if ev.Kind != EventText || !price.IsPositive() {
		return e.reprompt(s, "❌ Invalid new price. Try again."), nil
	}
	s.Draft.NewPrice = price
	s.Step = StepConfirmExtracted
	return []Reply{{Text: "✅ New price updated: " + pricing.Display(price)}, e.prompt(s)}, nil
}

func (e *Engine) onTitle(_ context.Context, s *Session, ev Event) ([]Reply, error) {
	title := post.CleanTitle(ev.Text)
	if ev.Kind != EventText || title == "" {
		return e.reprompt(s, "❌ The title cannot be empty."), nil
	}
	s.Draft.Title = title
	s.Step = StepOldPrice
	return []Reply{{Text: "✨ " + title}, e.prompt(s)}, nil
}

func (e *Engine) onOldPrice(_ context.Context, s *Session, ev Event) ([]Reply, error) {
	old := pricing.Normalize(ev.Text)
	if ev.Kind != EventText || (!old.IsPositive() && !pricing.IsExplicitZero(ev.Text)) {
		return e.reprompt(s, "❌ Invalid old price. Try again."), nil
	}
	s.Draft.OldPrice = old
	s.Step = StepNewPrice
	return []Reply{e.prompt(s)}, nil
}

func (e *Engine) onNewPrice(_ context.Context, s *Session, ev Event) ([]Reply, error) {
	price := pricing.Normalize(ev.Text)
	if ev.Kind != EventText || !price.IsPositive() {
		return e.reprompt(s, "❌ Invalid new price. Try again."), nil
	}
	s.Draft.NewPrice = price
	return e.advanceToReviews(s), nil
}

// advanceToReviews reports the discount once both prices are known.
func (e *Engine) advanceToReviews(s *Session) []Reply {
	s.Step = StepReviews
	return []Reply{{Text: s.Draft.Discount().Summary()}, e.prompt(s)}
}

func (e *Engine) onReviews(_ context.Context, s *Session, ev Event) ([]Reply, error) {
	if !isText(ev) {
		return e.reprompt(s, ""), nil
	}
	line, _ := post.Reviews(ev.Text)
	s.Draft.Reviews = line
	s.Step = StepDescription
	return []Reply{e.prompt(s)}, nil
}

func (e *Engine) onDescription(_ context.Context, s *Session, ev Event) ([]Reply, error) {
	if !isText(ev) {
		return e.reprompt(s, ""), nil
	}
	txt := strings.TrimSpace(ev.Text)
	if strings.EqualFold(txt, "no") {
		s.Draft.Description = ""
	} else {
		s.Draft.Description = post.Sanitize(txt)
	}
	s.Step = StepDescriptionReview
	return []Reply{e.prompt(s)}, nil
}

func (e *Engine) onDescriptionReview(_ context.Context, s *Session, ev Event) ([]Reply, error) {
	if ev.Kind == EventAction {
		switch ev.Action {
		case ActionContinue:
			s.Step = StepExtras
			return []Reply{e.prompt(s)}, nil
		case ActionEditDescription:
			s.Step = StepDescription
			return []Reply{e.prompt(s)}, nil
		}
	}
	return e.reprompt(s, ""), nil
}

func (e *Engine) onExtras(ctx context.Context, s *Session, ev Event) ([]Reply, error) {
	if ev.Kind == EventPhoto {
		return e.onPhoto(ctx, s, ev)
	}
	if ev.Kind != EventAction {
		return e.reprompt(s, "❌ Please send the PHOTO or use the buttons (e.g. CONTINUE)."), nil
	}

	x := &s.Draft.Extras
	switch ev.Action {
	case ActionTogglePrime:
		x.Prime = !x.Prime
	case ActionToggleLimited:
		x.TimeLimited = !x.TimeLimited
	case ActionToggleEditorial:
		x.EditorialPick = !x.EditorialPick
	case ActionToggleFastSale:
		x.FastSale = !x.FastSale
	case ActionSetCoupon:
		s.Step = StepCoupon
		return []Reply{e.prompt(s)}, nil
	case ActionFinishExtras:
		s.Step = StepPhoto
		return []Reply{e.prompt(s)}, nil
	default:
		return e.reprompt(s, ""), nil
	}
	r := e.prompt(s)
	r.Replace = true
	return []Reply{r}, nil
}

func (e *Engine) onCoupon(_ context.Context, s *Session, ev Event) ([]Reply, error) {
	code := strings.TrimSpace(ev.Text)
	if ev.Kind != EventText || code == "" {
		return e.reprompt(s, "❌ Enter the coupon value."), nil
	}
	s.Draft.Extras.Coupon = code
	s.Step = StepExtras
	return []Reply{{Text: fmt.Sprintf("✅ Coupon '%s' saved! Now the PHOTO:", code)}, e.prompt(s)}, nil
}

func (e *Engine) onPhoto(ctx context.Context, s *Session, ev Event) ([]Reply, error) {
	if ev.Kind != EventPhoto {
		return e.reprompt(s, "❌ You must send the product PHOTO to continue."), nil
	}
	s.Step = StepPhoto

	img, err := e.photos.Download(ctx, ev.PhotoRef)
	if err != nil {
		slog.Warn("photo download failed", "chat_id", s.ChatID, "error", err)
		return e.reprompt(s, "❌ Could not download the photo, send it again."), nil
	}

	d := s.Draft
	disc := d.Discount()
	card := graphics.Card{
		Photo:       img,
		SavingsLine: disc.SavingsLine(),
		Badge:       disc.Badge(d.Extras.Coupon),
		NewPrice:    pricing.Display(d.NewPrice),
	}
	if d.OldPrice.IsPositive() && !d.OldPrice.Equal(d.NewPrice) {
		card.OldPrice = pricing.Display(d.OldPrice)
	}

	rendered, err := e.composer.Compose(card)
	if err != nil {
		return e.reprompt(s, "❌ Graphics error: "+post.EscapeMarkdown(err.Error())),
			failure.New(failure.CodeCritical, "conversation.compose", err)
	}

	s.Artifact = &Artifact{
		Image: rendered,
		Caption: post.Caption(post.Content{
			Title:         d.Title,
			Description:   d.Description,
			Reviews:       d.Reviews,
			Extras:        d.Extras,
			DisclaimerURL: e.disclaimerURL,
		}),
		Buttons:  post.Buttons(d.Title, pricing.Display(d.NewPrice), d.Link, d.CartLink),
		PhotoRef: ev.PhotoRef,
	}
	s.Step = StepPreview
	return []Reply{previewReply(s.Artifact), e.prompt(s)}, nil
}

func (e *Engine) onPreview(ctx context.Context, s *Session, ev Event) ([]Reply, error) {
	if ev.Kind != EventAction {
		return e.reprompt(s, ""), nil
	}
	switch ev.Action {
	case ActionPublish:
		return e.publish(ctx, s)
	case ActionCancelPost:
		s.reset()
		return []Reply{{Text: "❌ Cancelled.", Replace: true}, menu(false)}, nil
	}
	return e.reprompt(s, ""), nil
}

// publish sends the cached artifact and records it. A channel failure keeps
// the session in PREVIEW so the operator can retry or cancel; a ledger
// failure after a successful send only retries the recording.
func (e *Engine) publish(ctx context.Context, s *Session) ([]Reply, error) {
	a := s.Artifact
	if a == nil {
		s.reset()
		return []Reply{expired()}, nil
	}

	if !s.Published {
		err := e.publisher.PublishPost(ctx, Post{Image: a.Image, Caption: a.Caption, Buttons: a.Buttons})
		if err != nil {
			return e.reprompt(s, "❌ TECHNICAL ERROR: "+post.EscapeMarkdown(err.Error())),
				fmt.Errorf("publish post: %w", err)
		}
		s.Published = true
	}

	if err := e.ledger.Append(ctx, s.Draft.Record(a.PhotoRef, e.now())); err != nil {
		return e.reprompt(s, "⚠️ Posted to the channel, but the ledger write failed. Press PUBLISH again to retry recording."),
			fmt.Errorf("record publication: %w", err)
	}

	slog.Info("post published", "chat_id", s.ChatID, "product_id", s.Draft.ID)
	s.reset()
	return []Reply{{Text: "✅ *PUBLISHED!*", Markdown: true, Replace: true}, menu(false)}, nil
}
