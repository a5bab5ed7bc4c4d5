package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/msomdec/modfusion-console/internal/domain"
)

const maxAvatarSize = 2 * 1024 * 1024 // 2MB

// AvatarService stores avatar images in the file store. The returned storage
// key is what a user's Avatar field references.
type AvatarService struct {
	files domain.FileStore
}

// NewAvatarService creates a new AvatarService.
func NewAvatarService(files domain.FileStore) *AvatarService {
	return &AvatarService{files: files}
}

// Store validates and saves an image, returning its storage key.
func (s *AvatarService) Store(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: avatar is empty", domain.ErrInvalidInput)
	}
	if len(data) > maxAvatarSize {
		return "", fmt.Errorf("%w: avatar exceeds 2MB limit", domain.ErrInvalidInput)
	}

	switch http.DetectContentType(data) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
	default:
		return "", fmt.Errorf("%w: only JPEG, PNG, GIF and WebP images are accepted", domain.ErrInvalidInput)
	}

	key, err := generateStorageKey()
	if err != nil {
		return "", fmt.Errorf("generate storage key: %w", err)
	}
	if err := s.files.Save(ctx, key, data); err != nil {
		return "", fmt.Errorf("save file: %w", err)
	}
	return key, nil
}

// Load returns the image bytes and their sniffed content type.
func (s *AvatarService) Load(ctx context.Context, key string) ([]byte, string, error) {
	if key == "" {
		return nil, "", domain.ErrNotFound
	}
	data, err := s.files.Get(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("get file: %w", err)
	}
	return data, http.DetectContentType(data), nil
}

// Discard deletes a stored avatar. Failures are logged, not returned.
func (s *AvatarService) Discard(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		slog.Warn("discard avatar", "key", key, "error", err)
	}
}

func generateStorageKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "avatars/" + hex.EncodeToString(b), nil
}
