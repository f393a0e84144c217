package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"flowshare/internal/protocol"
)

// UploadFile streams a local file to the content store, showing transfer
// progress on the terminal, and returns the share_data to fan out.
func (c *Client) UploadFile(ctx context.Context, path string) (protocol.ShareData, error) {
	f, err := os.Open(path)
	if err != nil {
		return protocol.ShareData{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return protocol.ShareData{}, err
	}

	bar := progressbar.DefaultBytes(info.Size(), "uploading")

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(io.MultiWriter(part, bar), f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ServerURL+"/api/upload", pr)
	if err != nil {
		return protocol.ShareData{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return protocol.ShareData{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return protocol.ShareData{}, uploadError(resp)
	}

	var body struct {
		FileID   string `json:"file_id"`
		Filename string `json:"filename"`
		Size     int64  `json:"size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return protocol.ShareData{}, err
	}

	return protocol.ShareData{
		Kind:     protocol.ShareKindFile,
		FileID:   body.FileID,
		Filename: body.Filename,
		Size:     body.Size,
	}, nil
}

// CreateTextShare stores a text note and returns the share_data to fan out.
func (c *Client) CreateTextShare(ctx context.Context, title, content string) (protocol.ShareData, error) {
	payload, err := json.Marshal(map[string]string{"title": title, "content": content})
	if err != nil {
		return protocol.ShareData{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.ServerURL+"/api/create-text-share", bytes.NewReader(payload))
	if err != nil {
		return protocol.ShareData{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return protocol.ShareData{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return protocol.ShareData{}, uploadError(resp)
	}

	var body struct {
		ShareID string `json:"share_id"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return protocol.ShareData{}, err
	}

	return protocol.ShareData{
		Kind:    protocol.ShareKindText,
		ShareID: body.ShareID,
		Title:   body.Title,
		Content: body.Content,
	}, nil
}

// DownloadShare fetches a file share's bytes into destDir and returns the
// written path.
func (c *Client) DownloadShare(ctx context.Context, data protocol.ShareData, destDir string) (string, error) {
	if data.Kind != protocol.ShareKindFile {
		return "", fmt.Errorf("share %q carries no downloadable file", data.Kind)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.ServerURL+"/api/download/"+data.FileID, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", uploadError(resp)
	}

	name := data.Filename
	if name == "" {
		name = data.FileID
	}
	dest := filepath.Join(destDir, filepath.Base(name))

	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}

	bar := progressbar.DefaultBytes(data.Size, "downloading")
	_, err = io.Copy(io.MultiWriter(f, bar), resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", err
	}

	return dest, nil
}

func uploadError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("hub responded %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("hub responded %d", resp.StatusCode)
}
