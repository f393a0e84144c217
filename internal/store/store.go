// Package store is the content store: it keeps share payloads for a bounded
// time and hands out opaque identifiers. Coordination state never lives here,
// only the bytes and metadata of uploaded shares.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"flowshare/internal/protocol"
)

const (
	// MaxPayloadSize caps a single uploaded file at 100 MiB.
	MaxPayloadSize = 100 << 20

	// DefaultTTL is how long a share stays retrievable after creation.
	DefaultTTL = 24 * time.Hour

	// DefaultTransferTimeout bounds one upload; a transfer slower than this
	// fails and is not retried.
	DefaultTransferTimeout = 35 * time.Second
)

var (
	ErrNotFound = errors.New("share not found")
	ErrTooLarge = fmt.Errorf("payload exceeds %d bytes", MaxPayloadSize)
	ErrTimeout  = errors.New("transfer exceeded time limit")
)

// Share is one stored payload. File bytes live on disk under BlobPath; text
// notes are inlined in Content.
type Share struct {
	ID          string `gorm:"primaryKey"`
	Kind        string
	Filename    string
	Title       string
	ContentType string
	Size        int64
	Content     string
	BlobPath    string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Data maps the stored share onto the wire share_data shape.
func (s *Share) Data() protocol.ShareData {
	if s.Kind == protocol.ShareKindFile {
		return protocol.ShareData{
			Kind:     protocol.ShareKindFile,
			FileID:   s.ID,
			Filename: s.Filename,
			Size:     s.Size,
		}
	}
	return protocol.ShareData{
		Kind:    protocol.ShareKindText,
		ShareID: s.ID,
		Title:   s.Title,
		Content: s.Content,
	}
}

type Store struct {
	db       *gorm.DB
	logger   *slog.Logger
	dataDir  string
	ttl      time.Duration
	timeout  time.Duration
	maxBytes int64
}

type Config struct {
	DBPath  string
	DataDir string
	Logger  *slog.Logger
	TTL     time.Duration
	Timeout time.Duration
	// MaxBytes overrides MaxPayloadSize, for tests.
	MaxBytes int64
}

func NewStore(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTransferTimeout
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = MaxPayloadSize
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("opening share database: %w", err)
	}

	if err := db.AutoMigrate(&Share{}); err != nil {
		return nil, fmt.Errorf("migrating share schema: %w", err)
	}

	return &Store{
		db:       db,
		logger:   logger,
		dataDir:  cfg.DataDir,
		ttl:      cfg.TTL,
		timeout:  cfg.Timeout,
		maxBytes: cfg.MaxBytes,
	}, nil
}

// PutFile streams an upload to disk and records its metadata. Uploads larger
// than MaxPayloadSize or slower than the transfer timeout are rejected and
// leave nothing behind.
func (s *Store) PutFile(ctx context.Context, filename, contentType string, r io.Reader) (*Share, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id := uuid.NewString()
	blobPath := filepath.Join(s.dataDir, id)

	f, err := os.Create(blobPath)
	if err != nil {
		return nil, fmt.Errorf("creating blob: %w", err)
	}

	written, err := io.Copy(f, &boundedReader{ctx: ctx, r: r, remaining: s.maxBytes})
	closeErr := f.Close()
	if err != nil {
		_ = os.Remove(blobPath)
		return nil, err
	}
	if closeErr != nil {
		_ = os.Remove(blobPath)
		return nil, closeErr
	}

	now := time.Now().UTC()
	share := &Share{
		ID:          id,
		Kind:        protocol.ShareKindFile,
		Filename:    filename,
		ContentType: contentType,
		Size:        written,
		BlobPath:    blobPath,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	if err := s.db.Create(share).Error; err != nil {
		_ = os.Remove(blobPath)
		return nil, fmt.Errorf("recording share: %w", err)
	}

	s.logger.Info("File share stored", "id", id, "filename", filename, "size", written)
	return share, nil
}

// PutText records an inline text note.
func (s *Store) PutText(title, content string) (*Share, error) {
	if title == "" {
		title = "Shared Note"
	}

	now := time.Now().UTC()
	share := &Share{
		ID:        uuid.NewString(),
		Kind:      protocol.ShareKindText,
		Title:     title,
		Content:   content,
		Size:      int64(len(content)),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.db.Create(share).Error; err != nil {
		return nil, fmt.Errorf("recording text share: %w", err)
	}

	s.logger.Info("Text share stored", "id", share.ID, "title", title)
	return share, nil
}

// Get resolves an identifier back to its metadata and bytes. Expired shares
// are indistinguishable from ones that never existed.
func (s *Store) Get(id string) (*Share, io.ReadCloser, error) {
	var share Share
	err := s.db.First(&share, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	if time.Now().UTC().After(share.ExpiresAt) {
		return nil, nil, ErrNotFound
	}

	if share.Kind == protocol.ShareKindText {
		return &share, io.NopCloser(strings.NewReader(share.Content)), nil
	}

	f, err := os.Open(share.BlobPath)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	return &share, f, nil
}

// PurgeExpired deletes expired rows and their blobs, returning how many
// shares were removed.
func (s *Store) PurgeExpired() (int, error) {
	var expired []Share
	if err := s.db.Where("expires_at < ?", time.Now().UTC()).Find(&expired).Error; err != nil {
		return 0, err
	}

	for _, share := range expired {
		if share.BlobPath != "" {
			_ = os.Remove(share.BlobPath)
		}
		if err := s.db.Delete(&Share{}, "id = ?", share.ID).Error; err != nil {
			return 0, err
		}
	}

	if len(expired) > 0 {
		s.logger.Info("Purged expired shares", "count", len(expired))
	}
	return len(expired), nil
}

// StartJanitor purges expired shares periodically until ctx is done.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.PurgeExpired(); err != nil {
					s.logger.Error("Janitor purge failed", "error", err)
				}
			}
		}
	}()
}

// boundedReader enforces the size cap and transfer deadline on an upload.
type boundedReader struct {
	ctx       context.Context
	r         io.Reader
	remaining int64
}

func (b *boundedReader) Read(p []byte) (int, error) {
	if err := b.ctx.Err(); err != nil {
		return 0, ErrTimeout
	}
	if b.remaining <= 0 {
		// Probe one more byte to distinguish "exactly at the cap" from over.
		var probe [1]byte
		n, err := b.r.Read(probe[:])
		if n > 0 {
			return 0, ErrTooLarge
		}
		if err != nil {
			return 0, err
		}
		return 0, nil
	}

	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.r.Read(p)
	b.remaining -= int64(n)
	return n, err
}
