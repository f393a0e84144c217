package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/websocket"

	"flowshare/internal/protocol"
	"flowshare/internal/registry"
	"flowshare/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Anonymous LAN tool, no origin policy.
		return true
	},
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/active-users", s.handleActiveUsers)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/create-text-share", s.handleCreateTextShare)
	mux.HandleFunc("GET /api/download/{id}", s.handleDownload)
	mux.HandleFunc("GET /api/ws/{peerID}", s.handleWebSocket)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "flowshare",
	})
}

func (s *Server) handleActiveUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"users": s.registry.Snapshot(),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field"})
		return
	}
	defer file.Close()

	shared, err := s.store.PutFile(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	switch {
	case errors.Is(err, store.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, store.ErrTimeout):
		writeJSON(w, http.StatusRequestTimeout, map[string]string{"error": err.Error()})
		return
	case err != nil:
		s.logger.Error("Upload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "upload failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":  shared.ID,
		"filename": shared.Filename,
		"size":     shared.Size,
		"type":     protocol.ShareKindFile,
	})
}

func (s *Server) handleCreateTextShare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	shared, err := s.store.PutText(req.Title, req.Content)
	if err != nil {
		s.logger.Error("Text share failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "text share failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"share_id": shared.ID,
		"title":    shared.Title,
		"content":  shared.Content,
		"type":     protocol.ShareKindText,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	meta, rc, err := s.store.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "share not found"})
		return
	}
	if err != nil {
		s.logger.Error("Download failed", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "download failed"})
		return
	}
	defer rc.Close()

	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	if meta.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.Filename))
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Debug("Download interrupted", "id", id, "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	peerID := r.PathValue("peerID")
	if peerID == "" {
		http.Error(w, "missing peer id", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Upgrade failed", "error", err)
		return
	}

	conn := newConn(ws, peerID, s.logger)
	go conn.writePump()

	if _, err := s.registry.Admit(peerID, conn); err != nil {
		s.logger.Warn("Admission refused", "peer", peerID, "error", err)
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "peer id already in use"))
		_ = conn.Close()
		return
	}

	s.readPump(conn)
}

// readPump processes one connection's inbound frames in order until the
// socket dies, then evicts the peer.
func (s *Server) readPump(conn *Conn) {
	defer func() {
		s.registry.Remove(conn.peerID)
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("Read failed", "peer", conn.peerID, "error", err)
			}
			return
		}

		msg, err := conn.codec.Decode(data)
		if err != nil {
			s.logger.Warn("Dropping malformed frame", "peer", conn.peerID, "error", err)
			continue
		}

		s.dispatch(conn, msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

var _ registry.Conn = (*Conn)(nil)
