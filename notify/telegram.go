// Package notify posts build progress to a Telegram chat. Both calls are
// best-effort from the pipeline's point of view: failures are reported as
// NotificationFailure and logged by the caller, never escalated.
package notify

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.io/gnu3ra/kernelstack/variant"
)

const apiBase = "https://api.telegram.org"

// Telegram sends messages and file attachments through the bot API.
type Telegram struct {
	client *resty.Client
	token  string
	chatID string
}

func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		client: resty.New().SetBaseURL(apiBase).SetTimeout(2 * time.Minute),
		token:  token,
		chatID: chatID,
	}
}

// Enabled reports whether credentials were configured; without them every
// call is a silent no-op.
func (t *Telegram) Enabled() bool {
	return t.token != "" && t.chatID != ""
}

// SendMessage posts a MarkdownV2 text message. Interpolated values must be
// run through Escape before they reach the message body.
func (t *Telegram) SendMessage(text string) error {
	if !t.Enabled() {
		return nil
	}
	resp, err := t.client.R().
		SetFormData(map[string]string{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "MarkdownV2",
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		return &variant.NotificationFailureError{Call: "sendMessage", Err: err}
	}
	if resp.IsError() {
		return &variant.NotificationFailureError{Call: "sendMessage", Err: fmt.Errorf("%s: %s", resp.Status(), resp.String())}
	}
	return nil
}

// UploadFile attaches path as a document with the given caption.
func (t *Telegram) UploadFile(path, caption string) error {
	if !t.Enabled() {
		return nil
	}
	resp, err := t.client.R().
		SetFile("document", path).
		SetFormData(map[string]string{
			"chat_id":    t.chatID,
			"caption":    caption,
			"parse_mode": "MarkdownV2",
		}).
		Post(fmt.Sprintf("/bot%s/sendDocument", t.token))
	if err != nil {
		return &variant.NotificationFailureError{Call: "sendDocument", Err: err}
	}
	if resp.IsError() {
		return &variant.NotificationFailureError{Call: "sendDocument", Err: fmt.Errorf("%s: %s", resp.Status(), resp.String())}
	}
	return nil
}
