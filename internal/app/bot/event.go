package bot

// Meta identifies who an event came from and how to answer it.
type Meta struct {
	UserID     string
	ReplyToken string
}

// Event is one of FollowEvent, TextEvent or ImageEvent.
type Event interface {
	EventMeta() Meta
	sealed()
}

// FollowEvent is sent when a user adds the bot as a friend (or unblocks it).
type FollowEvent struct {
	Meta
}

// TextEvent is a text message from a user.
type TextEvent struct {
	Meta
	Text string
}

// ImageEvent is a photo from a user; MessageID fetches its content.
type ImageEvent struct {
	Meta
	MessageID string
}

func (e FollowEvent) EventMeta() Meta { return e.Meta }
func (e TextEvent) EventMeta() Meta   { return e.Meta }
func (e ImageEvent) EventMeta() Meta  { return e.Meta }

func (FollowEvent) sealed() {}
func (TextEvent) sealed()   {}
func (ImageEvent) sealed()  {}

// Message is a reply payload: Text or Card.
type Message interface {
	message()
}

// Text is a plain text reply.
type Text struct {
	Text string
}

// Card is a bubble with an optional hero image, a bold title and one link button.
type Card struct {
	AltText string
	HeroURL string
	Title   string
	Button  Button
}

// Button opens URI when tapped.
type Button struct {
	Label string
	URI   string
}

func (Text) message() {}
func (Card) message() {}
