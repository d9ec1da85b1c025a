package conversation

import (
	"fmt"

	"github.com/MikeSquared-Agency/pricewatch/internal/post"
	"github.com/MikeSquared-Agency/pricewatch/internal/pricing"
)

var (
	btnBack       = Button{Text: "🔙 Back", Action: ActionBack}
	btnCancel     = Button{Text: "❌ CANCEL", Action: ActionReset}
	btnCancelPost = Button{Text: "❌ CANCEL POST", Action: ActionReset}
)

// nav is the back/cancel row shown under plain input prompts.
func nav() [][]Button {
	return [][]Button{{btnBack, btnCancel}}
}

// MenuKeyboard is the main menu.
func MenuKeyboard() [][]Button {
	return [][]Button{
		{{Text: "🚀 Start new post", Action: ActionStart}},
		{{Text: "🗒️ Today's offers digest", Action: ActionDigest}},
		{{Text: "☀️ Publish good morning", Action: ActionGoodMorning}, {Text: "🌙 Publish good night", Action: ActionGoodNight}},
		{{Text: "🏠 Main menu (start)", Action: ActionReset}},
	}
}

func menu(replace bool) Reply {
	return Reply{
		Text:     "🚨 *PriceWatch*\nReady when you are.",
		Markdown: true,
		Keyboard: MenuKeyboard(),
		Replace:  replace,
	}
}

func expired() Reply {
	return Reply{Text: "⚠️ Session expired. Start again from the main menu.", Keyboard: MenuKeyboard()}
}

func previewReply(a *Artifact) Reply {
	rows := make([][]Button, 0, len(a.Buttons))
	for _, b := range a.Buttons {
		rows = append(rows, []Button{{Text: b.Text, URL: b.URL}})
	}
	return Reply{Text: a.Caption, Markdown: true, Photo: a.Image, Keyboard: rows}
}

func extrasKeyboard(x post.Extras) [][]Button {
	label := func(on bool, yes, no string) string {
		if on {
			return yes
		}
		return no
	}
	coupon := "🎫 Coupon?"
	if x.Coupon != "" {
		coupon = "✅ " + x.Coupon
	}
	return [][]Button{
		{
			{Text: label(x.Prime, "✅ Prime", "🚚 Prime?"), Action: ActionTogglePrime},
			{Text: label(x.TimeLimited, "✅ Time-limited", "⚡️ Time-limited offer?"), Action: ActionToggleLimited},
		},
		{
			{Text: label(x.EditorialPick, "✅ Amazon's Choice", "⭐ Amazon's Choice?"), Action: ActionToggleEditorial},
			{Text: coupon, Action: ActionSetCoupon},
		},
		{{Text: label(x.FastSale, "✅ Fast sale", "🔥 Fast-selling offer?"), Action: ActionToggleFastSale}},
		{{Text: "📸 CONTINUE", Action: ActionFinishExtras}},
		{btnBack, btnCancel},
	}
}

// prompt renders the armed step's request.
func (e *Engine) prompt(s *Session) Reply {
	d := s.Draft
	switch s.Step {
	case StepLink:
		return Reply{Text: "1️⃣ *Paste the Amazon link:*", Markdown: true, Keyboard: [][]Button{{btnCancel}}}
	case StepConfirmExtracted:
		return Reply{
			Text: fmt.Sprintf("✅ *Extracted data (confirm):*\n\n*Title:* %s\n*NEW price:* %s\n\n"+
				"2️⃣ *Enter the OLD PRICE* (e.g. 1499.00 or 1.499,00) or use the buttons to correct.",
				post.EscapeMarkdown(d.Title), pricing.Display(d.NewPrice)),
			Markdown: true,
			Keyboard: [][]Button{
				{{Text: "✍️ Correct title", Action: ActionCorrectTitle}},
				{{Text: "✍️ Correct new price", Action: ActionCorrectPrice}},
				{btnBack, btnCancelPost},
			},
		}
	case StepCorrectTitle:
		return Reply{Text: "✍️ *Enter the correct title:*", Markdown: true, Keyboard: nav()}
	case StepCorrectNewPrice:
		return Reply{Text: "✍️ *Enter the correct NEW price:*", Markdown: true, Keyboard: nav()}
	case StepTitle:
		return Reply{Text: "2️⃣ *Enter the product title:*", Markdown: true, Keyboard: nav()}
	case StepOldPrice:
		return Reply{Text: "3️⃣ *Old price (e.g. 1499.00):*\n(0 when there is no reference price)", Markdown: true, Keyboard: nav()}
	case StepNewPrice:
		return Reply{Text: "4️⃣ *NEW price (e.g. 1019.99):*", Markdown: true, Keyboard: nav()}
	case StepReviews:
		return Reply{Text: "⭐ *Rating and reviews:*\nE.g. `284 4.5`\n(Write 'no' to skip)", Markdown: true, Keyboard: nav()}
	case StepDescription:
		return Reply{Text: "5️⃣ *Product/marketing description:*\n(Max 4 short lines. Write 'no' to skip)", Markdown: true, Keyboard: nav()}
	case StepDescriptionReview:
		txt := "✅ Description skipped. Press Continue for the extra options."
		if d.Description != "" {
			txt = "✅ *Description saved:*\n" + post.EscapeMarkdown(d.Description)
		}
		return Reply{
			Text:     txt + "\n\nIf the description is right, continue:",
			Markdown: true,
			Keyboard: [][]Button{
				{{Text: "✅ CONTINUE (extra options)", Action: ActionContinue}},
				{{Text: "✍️ Edit description", Action: ActionEditDescription}},
				{btnCancelPost},
			},
		}
	case StepExtras:
		return Reply{Text: "🚨 *Extra options (or send the PHOTO right away):*", Markdown: true, Keyboard: extrasKeyboard(d.Extras)}
	case StepCoupon:
		return Reply{Text: "🎫 *Coupon value:*", Markdown: true, Keyboard: nav()}
	case StepPhoto:
		return Reply{Text: "6️⃣ *Send the PHOTO:*", Markdown: true, Keyboard: nav()}
	case StepPreview:
		return Reply{
			Text: "Preview ready! Publish it to the channel?",
			Keyboard: [][]Button{
				{{Text: "✅ PUBLISH", Action: ActionPublish}},
				{{Text: "🔙 Change photo/extras", Action: ActionBack}},
				{{Text: "❌ CANCEL", Action: ActionCancelPost}},
			},
		}
	default:
		return menu(false)
	}
}
