// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, member, storage, system
	Action   string // ユーザー向け対処方法
	Cause    error  // 下位レイヤーの原因エラー（診断用、nil可）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。errors.Is / errors.As の走査に対応する。
func (e *APIError) Unwrap() error {
	return e.Cause
}

// 定義済みエラーコード
const (
	ErrCodeMemberNotFound       = "MEMBER_NOT_FOUND"
	ErrCodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	ErrCodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	ErrCodeStorageFailure       = "STORAGE_FAILURE"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
)

// NewMemberNotFoundError は会員未検出エラーを生成する。
func NewMemberNotFoundError(memberID int64) *APIError {
	return &APIError{
		Code:     ErrCodeMemberNotFound,
		Message:  fmt.Sprintf("指定された会員が見つかりません: %d", memberID),
		Category: "member",
		Action:   "会員IDを確認してください。",
	}
}

// NewUnsupportedMediaTypeError は画像形式不正エラーを生成する。
// Content-Typeと拡張子の両方が許可リストに一致しない限り拒否される。
func NewUnsupportedMediaTypeError(filename, contentType string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedMediaType,
		Message:  fmt.Sprintf("許可されていない画像形式です: %s (%s)", filename, contentType),
		Category: "validation",
		Action:   "jpeg、jpg、png、gif形式の画像ファイルをアップロードしてください。",
	}
}

// NewPayloadTooLargeError はファイルサイズ超過エラーを生成する。
func NewPayloadTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  fmt.Sprintf("ファイルサイズが上限（%dバイト）を超えています。", maxBytes),
		Category: "validation",
		Action:   "ファイルサイズを小さくしてから再度アップロードしてください。",
	}
}

// NewStorageFailureError はデータベース層のエラーを生成する。
// 原因エラーを保持し、診断用にレスポンスへ含められる。
func NewStorageFailureError(op string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeStorageFailure,
		Message:  fmt.Sprintf("データベース操作に失敗しました: %s", op),
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
		Cause:    cause,
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの解析に失敗しました: %s", reason),
		Category: "validation",
		Action:   "正しいmultipart/form-data形式でリクエストしてください。",
	}
}
