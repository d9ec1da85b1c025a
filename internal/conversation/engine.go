// Package conversation is the operator-facing post builder: a turn-based
// state machine that walks a draft from a product link to a published post.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/pricewatch/internal/catalog"
	"github.com/MikeSquared-Agency/pricewatch/internal/graphics"
	"github.com/MikeSquared-Agency/pricewatch/internal/post"
	"github.com/MikeSquared-Agency/pricewatch/internal/scraper"
	"github.com/MikeSquared-Agency/pricewatch/internal/store"
)

// Action is a button press.
type Action string

const (
	ActionStart           Action = "new_post"
	ActionReset           Action = "reset"
	ActionBack            Action = "back"
	ActionCorrectTitle    Action = "correct_title"
	ActionCorrectPrice    Action = "correct_new_price"
	ActionContinue        Action = "continue"
	ActionEditDescription Action = "edit_description"
	ActionTogglePrime     Action = "toggle_prime"
	ActionToggleLimited   Action = "toggle_time_limited"
	ActionToggleEditorial Action = "toggle_editorial"
	ActionToggleFastSale  Action = "toggle_fast_sale"
	ActionSetCoupon       Action = "set_coupon"
	ActionFinishExtras    Action = "finish_extras"
	ActionPublish         Action = "publish"
	ActionCancelPost      Action = "cancel_post"

	// Menu actions served outside the post flow.
	ActionDigest        Action = "digest"
	ActionDigestPreview Action = "digest_preview"
	ActionDigestConfirm Action = "digest_confirm"
	ActionGoodMorning   Action = "good_morning"
	ActionGoodNight     Action = "good_night"
)

// EventKind tells what the operator sent.
type EventKind int

const (
	EventText EventKind = iota
	EventPhoto
	EventAction
)

// Event is one inbound operator input.
type Event struct {
	Kind EventKind
	Text string
	// PhotoRef references the largest size of an uploaded photo.
	PhotoRef string
	Action   Action
}

func Text(s string) Event    { return Event{Kind: EventText, Text: s} }
func Photo(ref string) Event { return Event{Kind: EventPhoto, PhotoRef: ref} }
func Press(a Action) Event   { return Event{Kind: EventAction, Action: a} }

// Button is either an action button or, when URL is set, a link.
type Button struct {
	Text   string
	Action Action
	URL    string
}

// Reply is one outbound message.
type Reply struct {
	Text     string
	Markdown bool
	// Photo, when set, is sent with Text as its caption.
	Photo    []byte
	Keyboard [][]Button
	// Replace edits the message carrying the pressed button instead of
	// sending a new one.
	Replace bool
}

// Extractor reads title and price from a product page.
type Extractor interface {
	Fetch(ctx context.Context, rawURL string) (scraper.Product, error)
}

// PhotoSource downloads an uploaded photo.
type PhotoSource interface {
	Download(ctx context.Context, ref string) ([]byte, error)
}

// Composer renders the post image.
type Composer interface {
	Compose(card graphics.Card) ([]byte, error)
}

// Post is what goes to the channel.
type Post struct {
	Image   []byte
	Caption string
	Buttons []post.Button
}

// Publisher sends a finished post to the channel.
type Publisher interface {
	PublishPost(ctx context.Context, p Post) error
}

// Deps wires the engine's collaborators.
type Deps struct {
	Sessions      SessionStore
	Ledger        store.Ledger
	Extractor     Extractor
	Photos        PhotoSource
	Composer      Composer
	Publisher     Publisher
	Links         catalog.Links
	DisclaimerURL string
	Now           func() time.Time
}

// Engine drives sessions. Calls for one chat must not overlap; different
// chats are independent.
type Engine struct {
	sessions      SessionStore
	ledger        store.Ledger
	extractor     Extractor
	photos        PhotoSource
	composer      Composer
	publisher     Publisher
	links         catalog.Links
	disclaimerURL string
	now           func() time.Time

	handlers map[Step]handler
}

type handler func(ctx context.Context, s *Session, ev Event) ([]Reply, error)

func NewEngine(d Deps) *Engine {
	if d.Now == nil {
		d.Now = time.Now
	}
	e := &Engine{
		sessions:      d.Sessions,
		ledger:        d.Ledger,
		extractor:     d.Extractor,
		photos:        d.Photos,
		composer:      d.Composer,
		publisher:     d.Publisher,
		links:         d.Links,
		disclaimerURL: d.DisclaimerURL,
		now:           d.Now,
	}
	e.handlers = map[Step]handler{
		StepIdle:              e.onIdle,
		StepLink:              e.onLink,
		StepConfirmExtracted:  e.onConfirmExtracted,
		StepCorrectTitle:      e.onCorrectTitle,
		StepCorrectNewPrice:   e.onCorrectNewPrice,
		StepTitle:             e.onTitle,
		StepOldPrice:          e.onOldPrice,
		StepNewPrice:          e.onNewPrice,
		StepReviews:           e.onReviews,
		StepDescription:       e.onDescription,
		StepDescriptionReview: e.onDescriptionReview,
		StepExtras:            e.onExtras,
		StepCoupon:            e.onCoupon,
		StepPhoto:             e.onPhoto,
		StepPreview:           e.onPreview,
	}
	return e
}

// Handle feeds one event to the chat's session. The returned error, when
// not nil, is an incident worth reporting; the replies already tell the
// operator what happened.
func (e *Engine) Handle(ctx context.Context, chatID int64, ev Event) ([]Reply, error) {
	if ev.Kind == EventText && strings.HasPrefix(strings.TrimSpace(ev.Text), "/") {
		return nil, nil
	}

	if ev.Kind == EventAction {
		switch ev.Action {
		case ActionReset:
			e.sessions.Delete(chatID)
			return []Reply{menu(true)}, nil
		case ActionStart:
			s := NewSession(chatID)
			s.Step = StepLink
			e.sessions.Put(s)
			return []Reply{e.prompt(s)}, nil
		}
	}

	s, ok := e.sessions.Get(chatID)
	if !ok {
		return []Reply{expired()}, nil
	}

	if ev.Kind == EventAction && ev.Action == ActionBack {
		s.Step = previous(s)
		e.sessions.Put(s)
		return []Reply{e.prompt(s)}, nil
	}

	from := s.Step
	replies, err := e.handlers[s.Step](ctx, s, ev)
	e.sessions.Put(s)
	if from != s.Step {
		slog.Debug("conversation step", "chat_id", chatID, "from", from.String(), "to", s.Step.String())
	}
	return replies, err
}

// Session returns a snapshot of the chat's session.
func (e *Engine) Session(chatID int64) (Session, bool) {
	s, ok := e.sessions.Get(chatID)
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// reprompt answers input the armed step does not accept.
func (e *Engine) reprompt(s *Session, problem string) []Reply {
	if problem == "" {
		return []Reply{e.prompt(s)}
	}
	return []Reply{{Text: problem, Markdown: true}, e.prompt(s)}
}

func isText(ev Event) bool {
	return ev.Kind == EventText && strings.TrimSpace(ev.Text) != ""
}
