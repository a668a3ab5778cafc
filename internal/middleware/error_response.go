package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/memberbook/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。Detailは開発環境でのみ設定される。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
	Detail   string `json:"detail,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	WriteErrorResponseWithDetail(w, statusCode, apiErr, false)
}

// WriteErrorResponseWithDetail は統一エラーフォーマットでエラーレスポンスを書き込む。
// includeDetailがtrueかつ原因エラーを保持している場合、detailフィールドに
// 内部エラーの文字列を含める。本番環境ではfalseを指定すること。
func WriteErrorResponseWithDetail(w http.ResponseWriter, statusCode int, apiErr *model.APIError, includeDetail bool) {
	body := ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
	if includeDetail && apiErr.Cause != nil {
		body.Detail = apiErr.Cause.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
