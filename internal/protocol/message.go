package protocol

import "encoding/json"

type Message interface {
	Type() MessageType
}

// UserInfo is one entry of a presence list.
type UserInfo struct {
	UserID    string `json:"user_id"`
	Character string `json:"character"`
}

// ShareData describes a share by reference. For files the bytes live in the
// content store under FileID; for text notes the content travels inline.
type ShareData struct {
	Kind     string `json:"type"`
	FileID   string `json:"file_id,omitempty"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
	ShareID  string `json:"share_id,omitempty"`
	Title    string `json:"title,omitempty"`
	Content  string `json:"content,omitempty"`
}

type CharacterAssigned struct {
	Character string `json:"character"`
	UserID    string `json:"user_id"`
}

func (CharacterAssigned) Type() MessageType { return MsgCharacterAssigned }

// UserListUpdate replaces the receiver's presence list. The receiver itself is
// never included.
type UserListUpdate struct {
	Users []UserInfo `json:"users"`
}

func (UserListUpdate) Type() MessageType { return MsgUserListUpdate }

type ShareNotification struct {
	ToUserIDs []string  `json:"to_user_ids"`
	ShareData ShareData `json:"share_data"`
}

func (ShareNotification) Type() MessageType { return MsgShareNotification }

type IncomingShare struct {
	FromUserID    string    `json:"from_user_id"`
	FromCharacter string    `json:"from_character"`
	ShareData     ShareData `json:"share_data"`
	Timestamp     string    `json:"timestamp"`
}

func (IncomingShare) Type() MessageType { return MsgIncomingShare }

type ShareSuccess struct {
	Message string `json:"message"`
}

func (ShareSuccess) Type() MessageType { return MsgShareSuccess }

type ShareFailed struct {
	Message       string   `json:"message"`
	FailedUserIDs []string `json:"failed_user_ids,omitempty"`
}

func (ShareFailed) Type() MessageType { return MsgShareFailed }

// ChatRequest travels both directions: a peer sends ToUserID, the service
// delivers FromUserID and FromCharacter.
type ChatRequest struct {
	ToUserID      string `json:"to_user_id,omitempty"`
	FromUserID    string `json:"from_user_id,omitempty"`
	FromCharacter string `json:"from_character,omitempty"`
}

func (ChatRequest) Type() MessageType { return MsgChatRequest }

type ChatAccept struct {
	ToUserID      string `json:"to_user_id,omitempty"`
	FromUserID    string `json:"from_user_id,omitempty"`
	FromCharacter string `json:"from_character,omitempty"`
}

func (ChatAccept) Type() MessageType { return MsgChatAccept }

type ChatDecline struct {
	ToUserID   string `json:"to_user_id,omitempty"`
	FromUserID string `json:"from_user_id,omitempty"`
}

func (ChatDecline) Type() MessageType { return MsgChatDecline }

type PrivateMessage struct {
	ToUserID   string `json:"to_user_id,omitempty"`
	FromUserID string `json:"from_user_id,omitempty"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp,omitempty"`
}

func (PrivateMessage) Type() MessageType { return MsgPrivateMessage }

// WebRTCSignal is relayed verbatim; the service never inspects SignalData.
type WebRTCSignal struct {
	ToUserID      string          `json:"to_user_id,omitempty"`
	FromUserID    string          `json:"from_user_id,omitempty"`
	FromCharacter string          `json:"from_character,omitempty"`
	SignalData    json.RawMessage `json:"signal_data,omitempty"`
}

func (WebRTCSignal) Type() MessageType { return MsgWebRTCSignal }
