package service_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/msomdec/modfusion-console/internal/domain"
	"github.com/msomdec/modfusion-console/internal/service"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestAvatarService(t *testing.T) *service.AvatarService {
	t.Helper()
	return service.NewAvatarService(newTestDB(t).FileStore())
}

func TestAvatarService_StoreAndLoad(t *testing.T) {
	avatars := newTestAvatarService(t)
	ctx := context.Background()

	key, err := avatars.Store(ctx, pngHeader)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !strings.HasPrefix(key, "avatars/") {
		t.Fatalf("unexpected key %q", key)
	}

	data, contentType, err := avatars.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(data, pngHeader) {
		t.Fatal("loaded bytes differ from stored bytes")
	}
	if contentType != "image/png" {
		t.Fatalf("expected image/png, got %s", contentType)
	}
}

func TestAvatarService_RejectsNonImage(t *testing.T) {
	avatars := newTestAvatarService(t)

	_, err := avatars.Store(context.Background(), []byte("plain text, not an image"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAvatarService_RejectsEmptyAndOversized(t *testing.T) {
	avatars := newTestAvatarService(t)
	ctx := context.Background()

	if _, err := avatars.Store(ctx, nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty data, got %v", err)
	}

	big := append(append([]byte{}, pngHeader...), make([]byte, 2*1024*1024)...)
	if _, err := avatars.Store(ctx, big); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for oversized data, got %v", err)
	}
}

func TestAvatarService_Discard(t *testing.T) {
	avatars := newTestAvatarService(t)
	ctx := context.Background()

	key, err := avatars.Store(ctx, pngHeader)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	avatars.Discard(ctx, key)

	if _, _, err := avatars.Load(ctx, key); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after discard, got %v", err)
	}
	if _, _, err := avatars.Load(ctx, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty key, got %v", err)
	}
}
