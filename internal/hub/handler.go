package hub

import (
	"errors"
	"time"

	"flowshare/internal/protocol"
	"flowshare/internal/share"
)

// dispatch routes one inbound frame. The message set is closed; anything a
// peer is not supposed to send is logged and dropped.
func (s *Server) dispatch(conn *Conn, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.ShareNotification:
		s.handleShare(conn, m)
	case *protocol.ChatRequest:
		s.handleChatRequest(conn, m)
	case *protocol.ChatAccept:
		s.handleChatAccept(conn, m)
	case *protocol.ChatDecline:
		s.handleChatDecline(conn, m)
	case *protocol.PrivateMessage:
		s.handlePrivateMessage(conn, m)
	case *protocol.WebRTCSignal:
		s.handleSignal(conn, m)
	default:
		s.logger.Warn("Unhandled message type", "peer", conn.peerID, "type", msg.Type().String())
	}
}

func (s *Server) handleShare(conn *Conn, m *protocol.ShareNotification) {
	_, err := s.broker.Submit(conn.peerID, m.ToUserIDs, m.ShareData)
	if errors.Is(err, share.ErrNoRecipients) {
		_ = conn.Send(&protocol.ShareFailed{Message: "Select at least one peer to share with"})
		return
	}
	if err != nil {
		s.logger.Debug("Share rejected", "peer", conn.peerID, "error", err)
	}
}

func (s *Server) handleChatRequest(conn *Conn, m *protocol.ChatRequest) {
	target, ok := s.registry.Lookup(m.ToUserID)
	if !ok {
		// Unreachable target: fail the request immediately, no session.
		_ = conn.Send(&protocol.ChatDecline{FromUserID: m.ToUserID})
		return
	}

	requester, ok := s.registry.Lookup(conn.peerID)
	if !ok {
		return
	}

	if !s.sessions.Request(conn.peerID, m.ToUserID) {
		// Duplicate or conflicting request; the one pending cycle stands.
		return
	}

	_ = target.Conn.Send(&protocol.ChatRequest{
		FromUserID:    requester.ID,
		FromCharacter: requester.Character,
	})
}

func (s *Server) handleChatAccept(conn *Conn, m *protocol.ChatAccept) {
	if !s.sessions.Accept(conn.peerID, m.ToUserID) {
		return
	}

	accepter, ok := s.registry.Lookup(conn.peerID)
	if !ok {
		return
	}
	requester, ok := s.registry.Lookup(m.ToUserID)
	if !ok {
		return
	}

	_ = requester.Conn.Send(&protocol.ChatAccept{
		FromUserID:    accepter.ID,
		FromCharacter: accepter.Character,
	})
}

func (s *Server) handleChatDecline(conn *Conn, m *protocol.ChatDecline) {
	if !s.sessions.Decline(conn.peerID, m.ToUserID) {
		return
	}

	requester, ok := s.registry.Lookup(m.ToUserID)
	if !ok {
		return
	}

	_ = requester.Conn.Send(&protocol.ChatDecline{FromUserID: conn.peerID})
}

func (s *Server) handlePrivateMessage(conn *Conn, m *protocol.PrivateMessage) {
	if !s.sessions.Active(conn.peerID, m.ToUserID) {
		s.logger.Debug("Dropping message outside active session",
			"from", conn.peerID, "to", m.ToUserID)
		return
	}

	target, ok := s.registry.Lookup(m.ToUserID)
	if !ok {
		return
	}

	_ = target.Conn.Send(&protocol.PrivateMessage{
		FromUserID: conn.peerID,
		ToUserID:   m.ToUserID,
		Content:    m.Content,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSignal(conn *Conn, m *protocol.WebRTCSignal) {
	sender, ok := s.registry.Lookup(conn.peerID)
	if !ok {
		return
	}
	target, ok := s.registry.Lookup(m.ToUserID)
	if !ok {
		return
	}

	_ = target.Conn.Send(&protocol.WebRTCSignal{
		FromUserID:    sender.ID,
		FromCharacter: sender.Character,
		SignalData:    m.SignalData,
	})
}
