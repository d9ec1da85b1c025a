package conversation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/pricewatch/internal/ledger"
	"github.com/MikeSquared-Agency/pricewatch/internal/post"
	"github.com/MikeSquared-Agency/pricewatch/internal/pricing"
)

// Step names the single input handler armed for a session.
type Step int

const (
	StepIdle Step = iota
	StepLink
	StepConfirmExtracted
	StepCorrectTitle
	StepCorrectNewPrice
	StepTitle
	StepOldPrice
	StepNewPrice
	StepReviews
	StepDescription
	StepDescriptionReview
	StepExtras
	StepCoupon
	StepPhoto
	StepPreview
)

var stepNames = map[Step]string{
	StepIdle:              "IDLE",
	StepLink:              "LINK",
	StepConfirmExtracted:  "CONFIRM_EXTRACTED",
	StepCorrectTitle:      "CORRECT_TITLE",
	StepCorrectNewPrice:   "CORRECT_NEW_PRICE",
	StepTitle:             "TITLE",
	StepOldPrice:          "OLD_PRICE",
	StepNewPrice:          "NEW_PRICE",
	StepReviews:           "REVIEWS",
	StepDescription:       "DESCRIPTION",
	StepDescriptionReview: "DESCRIPTION_REVIEW",
	StepExtras:            "EXTRAS",
	StepCoupon:            "COUPON",
	StepPhoto:             "PHOTO",
	StepPreview:           "PREVIEW",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Origin tells how the draft's title and new price were obtained.
type Origin interface {
	origin()
}

// Extracted means title and price came from the product page.
type Extracted struct {
	Title string
	Price decimal.Decimal
}

// Manual means the operator typed everything.
type Manual struct{}

func (Extracted) origin() {}
func (Manual) origin()    {}

// Draft is the post being assembled.
type Draft struct {
	Origin      Origin
	ID          string
	Link        string
	CartLink    string
	Title       string
	OldPrice    decimal.Decimal
	NewPrice    decimal.Decimal
	Reviews     string
	Description string
	Extras      post.Extras
}

// Discount is recomputed on demand so a coupon set after the prices is
// always reflected.
func (d Draft) Discount() pricing.Discount {
	return pricing.Classify(d.OldPrice, d.NewPrice, d.Extras.Coupon)
}

func (d Draft) extracted() bool {
	_, ok := d.Origin.(Extracted)
	return ok
}

// Record is the ledger row written when the draft is published.
func (d Draft) Record(artifactRef string, at time.Time) ledger.Record {
	id := d.ID
	if id == "" {
		id = ledger.UnknownID
	}
	return ledger.Record{
		ID:          id,
		Title:       d.Title,
		OldPrice:    d.OldPrice,
		NewPrice:    d.NewPrice,
		Link:        d.Link,
		ArtifactRef: artifactRef,
		Kind:        ledger.KindManualPost,
		Timestamp:   at,
	}
}

// Artifact is the rendered post cached between PHOTO and PREVIEW.
type Artifact struct {
	Image    []byte
	Caption  string
	Buttons  []post.Button
	PhotoRef string
}

// Session is one operator's in-flight conversation.
type Session struct {
	ChatID    int64
	Step      Step
	Draft     Draft
	Artifact  *Artifact
	// Published is set once the channel accepted the post. It outlives a
	// re-composed Artifact, so after a ledger failure the post is only
	// recorded, never sent again.
	Published bool
	UpdatedAt time.Time
}

func NewSession(chatID int64) *Session {
	return &Session{ChatID: chatID, Step: StepIdle}
}

// reset drops everything collected and disarms input.
func (s *Session) reset() {
	s.Step = StepIdle
	s.Draft = Draft{}
	s.Artifact = nil
	s.Published = false
}

// previous is the step "back" returns to.
func previous(s *Session) Step {
	switch s.Step {
	case StepLink:
		return StepIdle
	case StepConfirmExtracted, StepTitle:
		return StepLink
	case StepCorrectTitle, StepCorrectNewPrice:
		return StepConfirmExtracted
	case StepOldPrice:
		return StepTitle
	case StepNewPrice:
		return StepOldPrice
	case StepReviews:
		if s.Draft.extracted() {
			return StepConfirmExtracted
		}
		return StepNewPrice
	case StepDescription:
		return StepReviews
	case StepDescriptionReview:
		return StepDescription
	case StepExtras:
		return StepDescription
	case StepCoupon, StepPhoto:
		return StepExtras
	case StepPreview:
		return StepPhoto
	default:
		return StepIdle
	}
}
