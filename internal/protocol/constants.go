package protocol

// MessageType is the wire discriminator carried in every frame's "type" field.
type MessageType string

const (
	MsgCharacterAssigned MessageType = "character_assigned"
	MsgChatAccept        MessageType = "chat_accept"
	MsgChatDecline       MessageType = "chat_decline"
	MsgChatRequest       MessageType = "chat_request"
	MsgIncomingShare     MessageType = "incoming_share"
	MsgPrivateMessage    MessageType = "private_message"
	MsgShareFailed       MessageType = "share_failed"
	MsgShareNotification MessageType = "share_notification"
	MsgShareSuccess      MessageType = "share_success"
	MsgUserListUpdate    MessageType = "user_list_update"
	MsgWebRTCSignal      MessageType = "webrtc_signal"
)

func (t MessageType) String() string { return string(t) }

// Share payload kinds inside share_data.
const (
	ShareKindFile = "file"
	ShareKindText = "text"
)
