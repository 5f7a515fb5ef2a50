package gmail

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Notification is the payload Gmail publishes to Pub/Sub for a watched mailbox.
type Notification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// PushEnvelope is the body Pub/Sub POSTs to a push endpoint.
type PushEnvelope struct {
	Message struct {
		Data        string `json:"data"`
		MessageID   string `json:"messageId"`
		PublishTime string `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// ParseNotification decodes a Pub/Sub message payload. historyId may arrive as a
// number or a string.
func ParseNotification(data []byte) (Notification, error) {
	var raw struct {
		EmailAddress string          `json:"emailAddress"`
		HistoryID    json.RawMessage `json:"historyId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	if raw.EmailAddress == "" {
		return Notification{}, errors.New("notification has no emailAddress")
	}

	id, err := strconv.ParseUint(strings.Trim(string(raw.HistoryID), `"`), 10, 64)
	if err != nil || id == 0 {
		return Notification{}, fmt.Errorf("notification has invalid historyId %q", raw.HistoryID)
	}
	return Notification{EmailAddress: raw.EmailAddress, HistoryID: id}, nil
}

// ParsePushEnvelope decodes a push request body and the notification inside it.
func ParsePushEnvelope(body []byte) (Notification, error) {
	var env PushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Notification{}, fmt.Errorf("decode push envelope: %w", err)
	}
	if env.Message.Data == "" {
		return Notification{}, errors.New("push envelope has no data")
	}
	data, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		if data, err = base64.URLEncoding.DecodeString(env.Message.Data); err != nil {
			return Notification{}, fmt.Errorf("decode push data: %w", err)
		}
	}
	return ParseNotification(data)
}
