// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/memberbook/internal/member"
	"github.com/hitoshi/memberbook/internal/middleware"
	"github.com/hitoshi/memberbook/internal/model"
)

// birthdateLayout は誕生日フィールドの入出力フォーマット。
const birthdateLayout = "2006-01-02"

// MemberServiceInterface は会員ハンドラーが必要とするサービスインターフェース。
type MemberServiceInterface interface {
	// Create は会員を作成し、採番されたIDを返す。
	Create(ctx context.Context, in member.Input, imageRef *string) (int64, error)
	// List は全会員を年齢付きで返す。
	List(ctx context.Context) ([]model.MemberWithAge, error)
	// Get は指定IDの会員を取得する。
	Get(ctx context.Context, id int64) (*model.Member, error)
	// Update は指定IDの会員を更新する。
	Update(ctx context.Context, id int64, in member.Input, newImageRef *string) error
	// Delete は指定IDの会員を削除する。
	Delete(ctx context.Context, id int64) error
}

// ImageStore はリクエストからのプロフィール画像保存インターフェース。
// upload.Storeの部分集合として定義する。
type ImageStore interface {
	// FromRequest はmultipartフォームから画像を取り出して保存する。
	// ファイルが存在しない場合は("", false, nil)を返す。
	FromRequest(r *http.Request) (string, bool, error)
}

// UploadMetricsRecorder はアップロード結果のメトリクス記録インターフェース。nil可。
type UploadMetricsRecorder interface {
	RecordUploadStored()
	RecordUploadRejected(reason string)
}

// MemberHandler は会員管理のHTTPハンドラー。
type MemberHandler struct {
	service MemberServiceInterface
	images  ImageStore
	metrics UploadMetricsRecorder

	// exposeErrorDetail がtrueの場合、STORAGE_FAILURE等のレスポンスに
	// 内部エラーの文字列を含める。本番環境ではfalseにすること。
	exposeErrorDetail bool
}

// NewMemberHandler はMemberHandlerを生成する。metricsはnil可。
func NewMemberHandler(service MemberServiceInterface, images ImageStore, metrics UploadMetricsRecorder, exposeErrorDetail bool) *MemberHandler {
	return &MemberHandler{
		service:           service,
		images:            images,
		metrics:           metrics,
		exposeErrorDetail: exposeErrorDetail,
	}
}

// createMemberResponse は会員作成レスポンス。
type createMemberResponse struct {
	Message  string `json:"message"`
	MemberID int64  `json:"memberId"`
}

// messageResponse は更新・削除の完了レスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// memberResponse は会員1件のAPIレスポンス。
type memberResponse struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Birthdate       string  `json:"birthdate"`
	ProfileImageURL *string `json:"profile_image_url"`
	LastUpdated     *string `json:"last_updated"`
}

// memberWithAgeResponse は一覧用の年齢付き会員レスポンス。
type memberWithAgeResponse struct {
	memberResponse
	Age int `json:"age"`
}

// CreateMember は会員作成を処理する。
// POST /members
func (h *MemberHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	in, apiErr := parseMemberForm(r)
	if apiErr != nil {
		h.writeError(w, apiErr)
		return
	}

	imageRef, err := h.storeImage(r)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	id, err := h.service.Create(r.Context(), in, imageRef)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createMemberResponse{
		Message:  "会員を登録しました。",
		MemberID: id,
	})
}

// ListMembers は全会員の一覧を年齢付きで返す。
// GET /members
func (h *MemberHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.List(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	result := make([]memberWithAgeResponse, 0, len(members))
	for _, m := range members {
		result = append(result, memberWithAgeResponse{
			memberResponse: toMemberResponse(&m.Member),
			Age:            m.Age,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetMember は会員1件を取得する。
// GET /members/{id}
func (h *MemberHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseMemberID(r)
	if apiErr != nil {
		h.writeError(w, apiErr)
		return
	}

	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toMemberResponse(m))
}

// UpdateMember は会員を更新する。画像が未添付の場合は既存の画像参照を維持する。
// PUT /members/{id}
func (h *MemberHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseMemberID(r)
	if apiErr != nil {
		h.writeError(w, apiErr)
		return
	}

	in, apiErr := parseMemberForm(r)
	if apiErr != nil {
		h.writeError(w, apiErr)
		return
	}

	imageRef, err := h.storeImage(r)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if err := h.service.Update(r.Context(), id, in, imageRef); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messageResponse{Message: "会員情報を更新しました。"})
}

// DeleteMember は会員を削除する。
// DELETE /members/{id}
func (h *MemberHandler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	id, apiErr := parseMemberID(r)
	if apiErr != nil {
		h.writeError(w, apiErr)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messageResponse{Message: "会員を削除しました。"})
}

// storeImage はリクエストに画像が添付されていれば保存し、配信用パスを返す。
// 画像なしの場合はnilを返す。拒否時はメトリクスに理由を記録する。
func (h *MemberHandler) storeImage(r *http.Request) (*string, error) {
	ref, ok, err := h.images.FromRequest(r)
	if err != nil {
		if h.metrics != nil {
			var apiErr *model.APIError
			if errors.As(err, &apiErr) {
				h.metrics.RecordUploadRejected(apiErr.Code)
			}
		}
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	if h.metrics != nil {
		h.metrics.RecordUploadStored()
	}
	return &ref, nil
}

// --- ヘルパー関数 ---

// parseMemberID はURLパラメータから会員IDを取り出す。
func parseMemberID(r *http.Request) (int64, *model.APIError) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewInvalidRequestError("会員IDが不正です: " + raw)
	}
	return id, nil
}

// parseMemberForm はmultipartフォームから会員入力フィールドを取り出す。
// フィールド名はtitle、firstName、lastName、birthdate（YYYY-MM-DD）。
func parseMemberForm(r *http.Request) (member.Input, *model.APIError) {
	var in member.Input

	title := model.Title(r.FormValue("title"))
	if !title.Valid() {
		return in, model.NewValidationError("titleはmr、mrs、missのいずれかを指定してください")
	}

	birthdateRaw := r.FormValue("birthdate")
	birthdate, err := time.Parse(birthdateLayout, birthdateRaw)
	if err != nil {
		return in, model.NewValidationError("birthdateはYYYY-MM-DD形式で指定してください")
	}

	in.Title = title
	in.FirstName = r.FormValue("firstName")
	in.LastName = r.FormValue("lastName")
	in.Birthdate = birthdate

	return in, nil
}

// toMemberResponse はmodel.MemberからAPIレスポンスに変換する。
func toMemberResponse(m *model.Member) memberResponse {
	resp := memberResponse{
		ID:              m.ID,
		Title:           string(m.Title),
		FirstName:       m.FirstName,
		LastName:        m.LastName,
		Birthdate:       m.Birthdate.Format(birthdateLayout),
		ProfileImageURL: m.ProfileImageURL,
	}
	if m.LastUpdated != nil {
		formatted := m.LastUpdated.Format(time.RFC3339)
		resp.LastUpdated = &formatted
	}
	return resp
}

// writeError はAPIErrorを対応するHTTPステータスコードで書き込む。
func (h *MemberHandler) writeError(w http.ResponseWriter, apiErr *model.APIError) {
	middleware.WriteErrorResponseWithDetail(w, mapAPIErrorToHTTPStatus(apiErr), apiErr, h.exposeErrorDetail)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func (h *MemberHandler) handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		h.writeError(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMemberNotFound:
		return http.StatusNotFound
	case model.ErrCodeUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case model.ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeStorageFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
