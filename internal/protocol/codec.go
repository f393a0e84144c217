package protocol

import (
	"encoding/json"
	"fmt"
)

var factories = map[MessageType]func() Message{}

func register(t MessageType, fn func() Message) {
	factories[t] = fn
}

func init() {
	register(MsgCharacterAssigned, func() Message { return &CharacterAssigned{} })
	register(MsgChatAccept, func() Message { return &ChatAccept{} })
	register(MsgChatDecline, func() Message { return &ChatDecline{} })
	register(MsgChatRequest, func() Message { return &ChatRequest{} })
	register(MsgIncomingShare, func() Message { return &IncomingShare{} })
	register(MsgPrivateMessage, func() Message { return &PrivateMessage{} })
	register(MsgShareFailed, func() Message { return &ShareFailed{} })
	register(MsgShareNotification, func() Message { return &ShareNotification{} })
	register(MsgShareSuccess, func() Message { return &ShareSuccess{} })
	register(MsgUserListUpdate, func() Message { return &UserListUpdate{} })
	register(MsgWebRTCSignal, func() Message { return &WebRTCSignal{} })
}

// Codec translates between Message values and the flat JSON frames used on the
// wire, where the "type" tag sits beside the payload fields.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Encode(msg Message) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	tag, err := json.Marshal(msg.Type())
	if err != nil {
		return nil, err
	}
	fields["type"] = tag

	return json.Marshal(fields)
}

func (c *Codec) Decode(data []byte) (Message, error) {
	var envelope struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	factory, ok := factories[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("unknown message type %q", envelope.Type)
	}

	msg := factory()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", envelope.Type, err)
	}
	return msg, nil
}
