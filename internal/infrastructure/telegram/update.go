package telegram

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Update is the subset of an inbound webhook update the bot acts on.
type Update struct {
	Message *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// ParseUpdate decodes a webhook body. ok is false when the update carries no
// text message, which callers should acknowledge and ignore.
func ParseUpdate(r io.Reader) (chatID, text string, ok bool, err error) {
	var u Update
	if err := json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(&u); err != nil {
		return "", "", false, fmt.Errorf("decode update: %w", err)
	}
	if u.Message == nil || u.Message.Text == "" {
		return "", "", false, nil
	}
	return strconv.FormatInt(u.Message.Chat.ID, 10), u.Message.Text, true, nil
}
