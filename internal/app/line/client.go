/*
Package line adapts the LINE Messaging API to the bot package.

Client implements the outbound collaborators (reply, content download, rich menu
linking); convert.go maps webhook events into the bot's closed event union and the
bot's replies into Flex/text messages.
*/
package line

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"labelbot/internal/app/bot"
)

// Client talks to the Messaging API with a channel access token.
type Client struct {
	api  *messaging_api.MessagingApiAPI
	blob *messaging_api.MessagingApiBlobAPI
}

// NewClient returns a Client authenticated with channelToken.
func NewClient(channelToken string) (*Client, error) {
	if channelToken == "" {
		return nil, errors.New("line: channel access token is required")
	}

	api, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("line: messaging api client: %w", err)
	}
	blob, err := messaging_api.NewMessagingApiBlobAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("line: blob api client: %w", err)
	}

	return &Client{api: api, blob: blob}, nil
}

// Reply sends msgs with replyToken. A token can be used once.
func (c *Client) Reply(ctx context.Context, replyToken string, msgs ...bot.Message) error {
	out := ToMessages(msgs)
	if len(out) == 0 {
		return errors.New("line: nothing to reply")
	}

	_, err := c.api.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   out,
	})
	if err != nil {
		return fmt.Errorf("line: reply: %w", err)
	}
	return nil
}

// FetchContent downloads the content of an image message. The caller closes it.
func (c *Client) FetchContent(ctx context.Context, messageID string) (io.ReadCloser, error) {
	res, err := c.blob.WithContext(ctx).GetMessageContent(messageID)
	if err != nil {
		if res != nil && res.Body != nil {
			res.Body.Close()
		}
		return nil, fmt.Errorf("line: get content %s: %w", messageID, err)
	}
	return res.Body, nil
}

// LinkRichMenu shows richMenuID to userID.
func (c *Client) LinkRichMenu(ctx context.Context, userID, richMenuID string) error {
	if _, err := c.api.WithContext(ctx).LinkRichMenuIdToUser(userID, richMenuID); err != nil {
		return fmt.Errorf("line: link rich menu: %w", err)
	}
	return nil
}
