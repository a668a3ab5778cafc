// Package security はアプリケーションのセキュリティ機能を提供する。
//
// FieldSanitizerService は会員入力のテキストフィールドをサニタイズし、
// 保存型XSSなどのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリのStrictPolicyで全HTMLタグを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// FieldSanitizerService はテキストフィールドのサニタイズ機能のインターフェースを定義する。
// 会員レコードの保存前に使用される。
type FieldSanitizerService interface {
	// Sanitize は入力テキストから全HTMLタグを除去し、前後の空白を取り除いて返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// fieldSanitizer はFieldSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type fieldSanitizer struct {
	policy *bluemonday.Policy
}

// NewFieldSanitizer はFieldSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはタグも属性も一切許可せず、テキストのみを通過させる。
func NewFieldSanitizer() *fieldSanitizer {
	return &fieldSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力テキストから全HTMLタグを除去して返す。
func (s *fieldSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
