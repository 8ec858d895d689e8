package imagestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	s, err := New(filepath.Join(root, "uploads"), filepath.Join(root, "captures"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestStore_SaveOpenDelete(t *testing.T) {
	s := newTestStore(t)
	data := pngBytes(t)

	ref, err := s.Save(SourceCapture, data)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(ref, "capture/") || !strings.HasSuffix(ref, ".png") {
		t.Errorf("unexpected ref %q", ref)
	}

	got, err := s.Open(ref)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Open returned different bytes")
	}

	if err := s.Delete(ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Open(ref); err == nil {
		t.Error("expected error opening deleted image")
	}
	if err := s.Delete(ref); err != nil {
		t.Errorf("deleting a missing file should succeed, got %v", err)
	}
}

func TestStore_SaveRejectsNonImage(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Save(SourceUpload, []byte("hello world")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestStore_InvalidRefs(t *testing.T) {
	s := newTestStore(t)
	for _, ref := range []string{"", "upload", "upload/", "other/x.png", "upload/../x.png", "upload/a/b.png", "capture/.hidden"} {
		if _, err := s.Open(ref); !errors.Is(err, ErrInvalidRef) {
			t.Errorf("Open(%q): expected ErrInvalidRef, got %v", ref, err)
		}
	}
}

func TestAllowedUpload(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"face.png", true},
		{"face.JPG", true},
		{"face.jpeg", true},
		{"face.gif", true},
		{"face.bmp", false},
		{"face", false},
		{"face.png.exe", false},
	}
	for _, tt := range tests {
		if got := AllowedUpload(tt.name); got != tt.want {
			t.Errorf("AllowedUpload(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDecodeDataURL(t *testing.T) {
	data := pngBytes(t)
	encoded := base64.StdEncoding.EncodeToString(data)

	for _, in := range []string{encoded, "data:image/png;base64," + encoded} {
		got, err := DecodeDataURL(in)
		if err != nil {
			t.Fatalf("DecodeDataURL: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Error("decoded bytes differ")
		}
	}

	for _, in := range []string{"", "data:image/png;base64", "not base64!"} {
		if _, err := DecodeDataURL(in); err == nil {
			t.Errorf("DecodeDataURL(%q): expected error", in)
		}
	}
}

type staticRefs []string

func (r staticRefs) ImageRefs(context.Context) ([]string, error) { return r, nil }

func TestSweeper_RemovesOnlyOldOrphans(t *testing.T) {
	s := newTestStore(t)
	data := pngBytes(t)

	kept, _ := s.Save(SourceUpload, data)
	orphan, _ := s.Save(SourceCapture, data)
	fresh, _ := s.Save(SourceCapture, data)

	old := time.Now().Add(-2 * time.Hour)
	for _, ref := range []string{kept, orphan} {
		p, err := s.resolve(ref)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatal(err)
		}
	}

	sw := NewSweeper(s, staticRefs{kept}, time.Minute, time.Hour, nil)
	removed, err := sw.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := s.Open(orphan); err == nil {
		t.Error("orphan should be gone")
	}
	for _, ref := range []string{kept, fresh} {
		if _, err := s.Open(ref); err != nil {
			t.Errorf("%s should survive: %v", ref, err)
		}
	}
}
