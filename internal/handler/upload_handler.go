package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// UploadFileHandler は保存済みプロフィール画像の静的配信ハンドラー。
type UploadFileHandler struct {
	dir string
}

// NewUploadFileHandler はUploadFileHandlerを生成する。
// dirはアップロードディレクトリのパス。
func NewUploadFileHandler(dir string) *UploadFileHandler {
	return &UploadFileHandler{dir: dir}
}

// ServeFile は保存済み画像を配信する。
// GET /uploads/{filename}
// パストラバーサルを含むファイル名と存在しないファイルには404を返す。
func (h *UploadFileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	// ベース名と一致しないファイル名（パス区切りや..を含む）は拒否する
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.dir, name)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, path)
}
