package trigger

import (
	"encoding/json"
	"strconv"

	dErrors "signals/pkg/domain-errors"
)

// PushMessage asks for a signal to be handed off to CityControl.
type PushMessage struct {
	SignalID int64 `json:"signal_id"`
}

func (m PushMessage) key() []byte {
	return []byte(strconv.FormatInt(m.SignalID, 10))
}

func encodeMessage(m PushMessage) ([]byte, error) {
	if m.SignalID <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "signal id must be positive")
	}
	return json.Marshal(m)
}

func decodeMessage(value []byte) (PushMessage, error) {
	var m PushMessage
	if err := json.Unmarshal(value, &m); err != nil {
		return PushMessage{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "push message is not valid JSON")
	}
	if m.SignalID <= 0 {
		return PushMessage{}, dErrors.New(dErrors.CodeBadRequest, "push message without signal id")
	}
	return m, nil
}
