package storage

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// fileHeader builds a multipart.FileHeader the way net/http would parse it.
func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", name)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	_, _ = part.Write(content)
	_ = w.Close()

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("ParseMultipartForm failed: %v", err)
	}
	return req.MultipartForm.File["image"][0]
}

func newStore(t *testing.T, maxSize int64) *ImageStore {
	t.Helper()
	store, err := NewImageStore(filepath.Join(t.TempDir(), "uploads", "images"), maxSize)
	if err != nil {
		t.Fatalf("NewImageStore failed: %v", err)
	}
	return store
}

func TestSave_PNG(t *testing.T) {
	store := newStore(t, 1024)

	path, err := store.Save(fileHeader(t, "photo.png", pngHeader))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasSuffix(path, ".png") {
		t.Errorf("path = %q, want .png suffix", path)
	}

	full, err := store.Path(path)
	if err != nil {
		t.Fatalf("Path(%q) failed: %v", path, err)
	}
	got, err := os.ReadFile(full)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(got, pngHeader) {
		t.Error("stored content differs from upload")
	}
}

func TestSave_Rejections(t *testing.T) {
	store := newStore(t, 16)

	tests := []struct {
		name    string
		fh      func(t *testing.T) *multipart.FileHeader
		wantErr error
	}{
		{"missing", func(t *testing.T) *multipart.FileHeader { return nil }, ErrImageRequired},
		{"too large", func(t *testing.T) *multipart.FileHeader { return fileHeader(t, "big.png", pngHeader) }, ErrImageTooLarge},
		{"not an image", func(t *testing.T) *multipart.FileHeader { return fileHeader(t, "x.png", []byte("hello")) }, ErrUnsupportedImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Save(tt.fh(t))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Save error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 0 {
		t.Errorf("rejected uploads left %d files behind", len(entries))
	}
}

func TestSave_AbsoluteUploadDirServedPath(t *testing.T) {
	store := newStore(t, 1024)
	if !filepath.IsAbs(store.Dir()) {
		t.Fatalf("upload dir %q is not absolute", store.Dir())
	}

	path, err := store.Save(fileHeader(t, "photo.png", pngHeader))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	name := strings.TrimPrefix(path, PublicPrefix)
	if name == path || strings.Contains(name, "/") {
		t.Fatalf("path = %q, want %s<file>", path, PublicPrefix)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), name)); err != nil {
		t.Errorf("saved file not in upload dir: %v", err)
	}
}

func TestRemove(t *testing.T) {
	store := newStore(t, 1024)

	path, err := store.Save(fileHeader(t, "photo.png", pngHeader))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	full, err := store.Path(path)
	if err != nil {
		t.Fatalf("Path(%q) failed: %v", path, err)
	}
	if _, err := os.Stat(full); !os.IsNotExist(err) {
		t.Errorf("file still exists after Remove: %v", err)
	}
	if err := store.Remove(path); err == nil {
		t.Error("second Remove should fail")
	}
}

func TestRemove_OutsideUploadDir(t *testing.T) {
	store := newStore(t, 1024)
	outside := filepath.Join(filepath.Dir(store.Dir()), "secret.txt")
	if err := os.WriteFile(outside, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	for _, p := range []string{
		outside,
		store.Dir(),
		filepath.Join(store.Dir(), "..", "secret.txt"),
		PublicPrefix,
		PublicPrefix + "..",
		PublicPrefix + "../secret.txt",
		PublicPrefix + "sub/a.png",
		"secret.txt",
	} {
		if err := store.Remove(p); !errors.Is(err, ErrOutsideUploadDir) {
			t.Errorf("Remove(%q) = %v, want ErrOutsideUploadDir", p, err)
		}
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("file outside upload dir was touched: %v", err)
	}
}
