// Package upload はプロフィール画像の検証と永続化を提供する。
//
// 1リクエストにつき最大1ファイルを受け付け、Content-Typeと拡張子の両方が
// 許可リストに一致するファイルのみをアップロードディレクトリに保存する。
package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hitoshi/memberbook/internal/model"
)

// FieldName はmultipartフォームの画像ファイルのフィールド名。
const FieldName = "profileImage"

// urlPrefix は保存した画像を配信する際のパス接頭辞。
const urlPrefix = "uploads"

// allowedExtensions は許可される拡張子の集合（小文字、ドットなし）。
var allowedExtensions = map[string]bool{
	"jpeg": true,
	"jpg":  true,
	"png":  true,
	"gif":  true,
}

// allowedContentTypes は許可されるContent-Typeの集合。
var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	illegalRe    = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// Store は画像ファイルのアップロード保存先を管理する。
// ディレクトリは初回保存時に存在しなければ作成される。
type Store struct {
	dir     string
	maxSize int64

	// now はテストから差し替え可能な現在時刻の供給源。
	now func() time.Time
}

// NewStore はStoreを生成する。
// dirは保存先ディレクトリ、maxSizeは1ファイルの上限バイト数。
func NewStore(dir string, maxSize int64) *Store {
	return &Store{
		dir:     dir,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// FromRequest はリクエストのmultipartフォームからプロフィール画像を取り出して保存する。
// ファイルが存在しない場合は空文字列とfalseを返す（エラーではない）。
// 保存に成功した場合は配信用パス（uploads/<名前>）とtrueを返す。
func (s *Store) FromRequest(r *http.Request) (string, bool, error) {
	file, header, err := r.FormFile(FieldName)
	if err == http.ErrMissingFile {
		return "", false, nil
	}
	if err != nil {
		return "", false, model.NewInvalidRequestError(err.Error())
	}
	defer file.Close()

	ref, err := s.Save(file, header)
	if err != nil {
		return "", false, err
	}

	return ref, true, nil
}

// Save はアップロードされたファイルを検証して保存し、配信用パスを返す。
// Content-Typeと拡張子の両方が許可リストに一致しない場合はUnsupportedMediaType、
// サイズ超過の場合はPayloadTooLargeを返す。
func (s *Store) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	contentType := header.Header.Get("Content-Type")

	// 拡張子とContent-Typeの両方が一致して初めて受理する。
	// どちらか一方のみの一致（偽装されたContent-Type等）は拒否する。
	if !extensionAllowed(header.Filename) || !allowedContentTypes[contentType] {
		return "", model.NewUnsupportedMediaTypeError(header.Filename, contentType)
	}

	if header.Size > s.maxSize {
		return "", model.NewPayloadTooLargeError(s.maxSize)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	// 注意: 同一ミリ秒に同一ファイル名のアップロードが重なると
	// 生成される保存名が衝突する。既知の制限。
	name := fmt.Sprintf("%d-%s", s.now().UnixMilli(), SanitizeFilename(header.Filename))
	dst := filepath.Join(s.dir, name)

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer out.Close()

	// ヘッダー申告サイズを信用せず、コピー量でも上限を張る。
	written, err := io.Copy(out, io.LimitReader(file, s.maxSize+1))
	if err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if written > s.maxSize {
		os.Remove(dst)
		return "", model.NewPayloadTooLargeError(s.maxSize)
	}

	return path.Join(urlPrefix, name), nil
}

// SanitizeFilename はファイル名をファイルシステム互換かつパストラバーサル不能な形に変換する。
// 連続する空白は1つの「_」に畳み、英数字・ドット・ハイフン・アンダースコア以外の文字を除去する。
func SanitizeFilename(name string) string {
	// パス区切りを含む場合はベース名のみを対象にする
	name = filepath.Base(name)
	name = whitespaceRe.ReplaceAllString(name, "_")
	return illegalRe.ReplaceAllString(name, "")
}

// extensionAllowed はファイル名の拡張子が許可リストに含まれるかを返す。
func extensionAllowed(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return allowedExtensions[ext]
}
