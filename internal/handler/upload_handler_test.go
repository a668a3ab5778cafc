package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
)

// newUploadRouter はテスト用に画像配信ルートのみを構成したルーターを返す。
func newUploadRouter(dir string) http.Handler {
	r := chi.NewRouter()
	h := NewUploadFileHandler(dir)
	r.Get("/uploads/{filename}", h.ServeFile)
	return r
}

// TestServeFile_ReturnsStoredFile は保存済みファイルが配信されることを検証する。
func TestServeFile_ReturnsStoredFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("fake png bytes")
	if err := os.WriteFile(filepath.Join(dir, "123-photo.png"), content, 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/uploads/123-photo.png", nil)
	w := httptest.NewRecorder()

	newUploadRouter(dir).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != string(content) {
		t.Errorf("body = %q, want %q", got, content)
	}
}

// TestServeFile_MissingFileReturns404 は存在しないファイルで404が返ることを検証する。
func TestServeFile_MissingFileReturns404(t *testing.T) {
	dir := t.TempDir()

	req := httptest.NewRequest(http.MethodGet, "/uploads/nope.png", nil)
	w := httptest.NewRecorder()

	newUploadRouter(dir).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// TestServeFile_RejectsTraversal はパストラバーサルを含むファイル名が拒否されることを検証する。
func TestServeFile_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()

	// ディレクトリ外に秘密のファイルを置く
	parent := filepath.Dir(dir)
	secret := filepath.Join(parent, "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o644); err != nil {
		t.Fatalf("failed to write secret file: %v", err)
	}
	defer os.Remove(secret)

	tests := []string{
		"..%2Fsecret.txt",
		"..",
		"%2e%2e%2fsecret.txt",
	}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/uploads/"+name, nil)
			w := httptest.NewRecorder()

			newUploadRouter(dir).ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", w.Code)
			}
			if w.Body.String() == "secret" {
				t.Error("traversal leaked file contents")
			}
		})
	}
}

// TestServeFile_RejectsDirectory はディレクトリ自体へのアクセスが404になることを検証する。
func TestServeFile_RejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/uploads/sub", nil)
	w := httptest.NewRecorder()

	newUploadRouter(dir).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
