package line

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"labelbot/internal/app/bot"
)

// MaxAltTextRunes is the platform limit for a Flex message's alt text.
const MaxAltTextRunes = 400

// ToEvent maps a webhook event to the bot's event union. ok is false for events
// the bot does not handle (unfollow, stickers, postbacks, ...).
func ToEvent(ev webhook.EventInterface) (bot.Event, bool) {
	switch e := ev.(type) {
	case webhook.FollowEvent:
		return bot.FollowEvent{Meta: metaOf(e.Source, e.ReplyToken)}, true
	case webhook.MessageEvent:
		m := metaOf(e.Source, e.ReplyToken)
		switch msg := e.Message.(type) {
		case webhook.TextMessageContent:
			return bot.TextEvent{Meta: m, Text: msg.Text}, true
		case webhook.ImageMessageContent:
			return bot.ImageEvent{Meta: m, MessageID: msg.Id}, true
		}
	}
	return nil, false
}

func metaOf(src webhook.SourceInterface, replyToken string) bot.Meta {
	return bot.Meta{UserID: userID(src), ReplyToken: replyToken}
}

// userID returns the sender in one-to-one chats, groups and rooms. Groups and
// rooms only carry it when the user consented to share it.
func userID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}

// ToMessages converts replies to Messaging API messages.
func ToMessages(msgs []bot.Message) []messaging_api.MessageInterface {
	out := make([]messaging_api.MessageInterface, 0, len(msgs))
	for _, m := range msgs {
		switch m := m.(type) {
		case bot.Text:
			out = append(out, messaging_api.TextMessage{Text: m.Text})
		case bot.Card:
			out = append(out, messaging_api.FlexMessage{
				AltText:  altText(m),
				Contents: bubble(m),
			})
		}
	}
	return out
}

func altText(c bot.Card) string {
	s := c.AltText
	if s == "" {
		s = c.Title
	}
	if r := []rune(s); len(r) > MaxAltTextRunes {
		s = string(r[:MaxAltTextRunes])
	}
	return s
}

func bubble(c bot.Card) *messaging_api.FlexBubble {
	b := &messaging_api.FlexBubble{
		Body: &messaging_api.FlexBox{
			Layout: messaging_api.FlexBoxLAYOUT_VERTICAL,
			Contents: []messaging_api.FlexComponentInterface{
				&messaging_api.FlexText{
					Text:   c.Title,
					Weight: messaging_api.FlexTextWEIGHT_BOLD,
					Size:   "md",
					Wrap:   true,
				},
			},
		},
		Footer: &messaging_api.FlexBox{
			Layout:  messaging_api.FlexBoxLAYOUT_VERTICAL,
			Spacing: "sm",
			Contents: []messaging_api.FlexComponentInterface{
				&messaging_api.FlexButton{
					Style:  messaging_api.FlexButtonSTYLE_PRIMARY,
					Height: messaging_api.FlexButtonHEIGHT_SM,
					Action: &messaging_api.UriAction{
						Label: c.Button.Label,
						Uri:   c.Button.URI,
					},
				},
			},
		},
	}

	if c.HeroURL != "" {
		b.Hero = &messaging_api.FlexImage{
			Url:         c.HeroURL,
			Size:        "full",
			AspectRatio: "1:1",
			AspectMode:  messaging_api.FlexImageASPECT_MODE_COVER,
		}
	}
	return b
}
