package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/memberbook/internal/member"
	"github.com/hitoshi/memberbook/internal/model"
)

// mockMemberService はテスト用のMemberServiceInterface実装。
type mockMemberService struct {
	createFn func(ctx context.Context, in member.Input, imageRef *string) (int64, error)
	listFn   func(ctx context.Context) ([]model.MemberWithAge, error)
	getFn    func(ctx context.Context, id int64) (*model.Member, error)
	updateFn func(ctx context.Context, id int64, in member.Input, newImageRef *string) error
	deleteFn func(ctx context.Context, id int64) error
}

func (m *mockMemberService) Create(ctx context.Context, in member.Input, imageRef *string) (int64, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in, imageRef)
	}
	return 1, nil
}

func (m *mockMemberService) List(ctx context.Context) ([]model.MemberWithAge, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []model.MemberWithAge{}, nil
}

func (m *mockMemberService) Get(ctx context.Context, id int64) (*model.Member, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewMemberNotFoundError(id)
}

func (m *mockMemberService) Update(ctx context.Context, id int64, in member.Input, newImageRef *string) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in, newImageRef)
	}
	return nil
}

func (m *mockMemberService) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockImageStore はテスト用のImageStore実装。
type mockImageStore struct {
	fromRequestFn func(r *http.Request) (string, bool, error)
}

func (m *mockImageStore) FromRequest(r *http.Request) (string, bool, error) {
	if m.fromRequestFn != nil {
		return m.fromRequestFn(r)
	}
	return "", false, nil
}

// mockUploadMetrics はテスト用のUploadMetricsRecorder実装。
type mockUploadMetrics struct {
	stored   int
	rejected []string
}

func (m *mockUploadMetrics) RecordUploadStored() { m.stored++ }
func (m *mockUploadMetrics) RecordUploadRejected(reason string) {
	m.rejected = append(m.rejected, reason)
}

// newMemberFormRequest は会員フィールドを含むmultipartリクエストを組み立てる。
func newMemberFormRequest(t *testing.T, method, target string, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, val := range fields {
		if err := mw.WriteField(key, val); err != nil {
			t.Fatalf("failed to write form field %s: %v", key, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// validMemberFields は有効な会員フォームフィールドを返す。
func validMemberFields() map[string]string {
	return map[string]string{
		"title":     "mr",
		"firstName": "Taro",
		"lastName":  "Yamada",
		"birthdate": "1990-04-01",
	}
}

// newMemberRouter はテスト用にMemberHandlerのルートのみを構成したルーターを返す。
func newMemberRouter(h *MemberHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/members", h.CreateMember)
	r.Get("/members", h.ListMembers)
	r.Get("/members/{id}", h.GetMember)
	r.Put("/members/{id}", h.UpdateMember)
	r.Delete("/members/{id}", h.DeleteMember)
	return r
}

// TestCreateMember_Success は会員作成が201とIDを返すことを検証する。
func TestCreateMember_Success(t *testing.T) {
	service := &mockMemberService{
		createFn: func(ctx context.Context, in member.Input, imageRef *string) (int64, error) {
			if in.Title != model.TitleMr {
				t.Errorf("title = %q, want mr", in.Title)
			}
			if in.FirstName != "Taro" {
				t.Errorf("firstName = %q, want Taro", in.FirstName)
			}
			if imageRef != nil {
				t.Errorf("imageRef = %v, want nil", *imageRef)
			}
			return 42, nil
		},
	}
	h := NewMemberHandler(service, &mockImageStore{}, nil, false)

	req := newMemberFormRequest(t, http.MethodPost, "/members", validMemberFields())
	w := httptest.NewRecorder()

	newMemberRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", w.Code, w.Body.String())
	}

	var resp createMemberResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.MemberID != 42 {
		t.Errorf("memberId = %d, want 42", resp.MemberID)
	}
	if resp.Message == "" {
		t.Error("expected non-empty message")
	}
}

// TestCreateMember_WithImage は保存された画像参照がサービスに渡ることを検証する。
func TestCreateMember_WithImage(t *testing.T) {
	var gotRef *string
	service := &mockMemberService{
		createFn: func(ctx context.Context, in member.Input, imageRef *string) (int64, error) {
			gotRef = imageRef
			return 1, nil
		},
	}
	images := &mockImageStore{
		fromRequestFn: func(r *http.Request) (string, bool, error) {
			return "uploads/123-photo.png", true, nil
		},
	}
	metrics := &mockUploadMetrics{}
	h := NewMemberHandler(service, images, metrics, false)

	req := newMemberFormRequest(t, http.MethodPost, "/members", validMemberFields())
	w := httptest.NewRecorder()

	newMemberRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if gotRef == nil || *gotRef != "uploads/123-photo.png" {
		t.Errorf("imageRef = %v, want uploads/123-photo.png", gotRef)
	}
	if metrics.stored != 1 {
		t.Errorf("stored metric = %d, want 1", metrics.stored)
	}
}

// TestCreateMember_ValidationErrors は不正な入力で400が返りサービスが呼ばれないことを検証する。
func TestCreateMember_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(fields map[string]string)
	}{
		{"invalid title", func(f map[string]string) { f["title"] = "dr" }},
		{"empty title", func(f map[string]string) { f["title"] = "" }},
		{"invalid birthdate", func(f map[string]string) { f["birthdate"] = "01/04/1990" }},
		{"empty birthdate", func(f map[string]string) { f["birthdate"] = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serviceCalled := false
			service := &mockMemberService{
				createFn: func(ctx context.Context, in member.Input, imageRef *string) (int64, error) {
					serviceCalled = true
					return 1, nil
				},
			}
			h := NewMemberHandler(service, &mockImageStore{}, nil, false)

			fields := validMemberFields()
			tt.mutate(fields)
			req := newMemberFormRequest(t, http.MethodPost, "/members", fields)
			w := httptest.NewRecorder()

			newMemberRouter(h).ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if serviceCalled {
				t.Error("service should not be called on validation error")
			}
		})
	}
}

// TestCreateMember_UnsupportedMediaType は画像拒否が415にマッピングされることを検証する。
func TestCreateMember_UnsupportedMediaType(t *testing.T) {
	images := &mockImageStore{
		fromRequestFn: func(r *http.Request) (string, bool, error) {
			return "", false, model.NewUnsupportedMediaTypeError("evil.txt", "text/plain")
		},
	}
	metrics := &mockUploadMetrics{}
	h := NewMemberHandler(&mockMemberService{}, images, metrics, false)

	req := newMemberFormRequest(t, http.MethodPost, "/members", validMemberFields())
	w := httptest.NewRecorder()

	newMemberRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body["code"] != model.ErrCodeUnsupportedMediaType {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeUnsupportedMediaType)
	}
	if len(metrics.rejected) != 1 || metrics.rejected[0] != model.ErrCodeUnsupportedMediaType {
		t.Errorf("rejected metrics = %v, want [%s]", metrics.rejected, model.ErrCodeUnsupportedMediaType)
	}
}

// TestCreateMember_PayloadTooLarge はサイズ超過が413にマッピングされることを検証する。
func TestCreateMember_PayloadTooLarge(t *testing.T) {
	images := &mockImageStore{
		fromRequestFn: func(r *http.Request) (string, bool, error) {
			return "", false, model.NewPayloadTooLargeError(52428800)
		},
	}
	h := NewMemberHandler(&mockMemberService{}, images, nil, false)

	req := newMemberFormRequest(t, http.MethodPost, "/members", validMemberFields())
	w := httptest.NewRecorder()

	newMemberRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

// TestListMembers_ReturnsAgeField は一覧レスポンスに年齢が含まれることを検証する。
func TestListMembers_ReturnsAgeField(t *testing.T) {
	imageURL := "uploads/1-a.png"
	service := &mockMemberService{
		listFn: func(ctx context.Context) ([]model.MemberWithAge, error) {
			return []model.MemberWithAge{
				{
					Member: model.Member{
						ID:              1,
						Title:           model.TitleMiss,
						FirstName:       "Hanako",
						LastName:        "Suzuki",
						Birthdate:       time.Date(1990, 4, 1, 0, 0, 0, 0, time.UTC),
						ProfileImageURL: &imageURL,
					},
					Age: 36,
				},
			}, nil
		},
	}
	h := NewMemberHandler(service, &mockImageStore{}, nil, false)

	req := httptest.NewRequest(http.MethodGet, "/members", nil)
	w := httptest.NewRecorder()

	newMemberRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp []map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("len = %d, want 1", len(resp))
	}
	if age := resp[0]["age"].(float64); age != 36 {
		t.Errorf("age = %v, want 36", age)
	}
	if resp[0]["birthdate"] != "1990-04-01" {
		t.Errorf("birthdate = %v, want 1990-04-01", resp[0]["birthdate"])
	}
	if resp[0]["profile_image_url"] != "uploads/1-a.png" {
		t.Errorf("profile_image_url = %v, want uploads/1-a.png", resp[0]["profile_image_url"])
	}
	if resp[0]["last_updated"] != nil {
		t.Errorf("last_updated = %v, want null", resp[0]["last_updated"])
	}
}

// TestListMembers_EmptyReturnsEmptyArray は会員0件で空配列が返ることを検証する。
func TestListMembers_EmptyReturnsEmptyArray(t *testing.T) {
	h := NewMemberHandler(&mockMemberService{}, &mockImageStore{}, nil, false)

	req := httptest.NewRequest(http.MethodGet, "/members", nil)
	w := httptest.NewRecorder()

	newMemberRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := bytes.TrimSpace(w.Body.Bytes()); string(got) != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

// TestGetMember_Success は会員1件取得が200で返ることを検証する。
func TestGetMember_Success(t *testing.T) {
	service := &mockMemberService{
		getFn: func(ctx context.Context, id int64) (*model.Member, error) {
			if id != 7 {
				t.Errorf("id = %d, want 7", id)
			}
			return &model.Member{
				ID:        7,
				Title:     model.TitleMrs,
				FirstName: "Yoko",
				LastName:  "Sato",
				Birthdate: time.Date(1985, 1, 15, 0, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	h := NewMemberHandler(service, &mockImageStore{}, nil, false)

	req := httptest.NewRequest(http.MethodGet, "/members/7", nil)
	w := httptest.NewRecorder()

	newMemberRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["first_name"] != "Yoko" {
		t.Errorf("first_name = %v, want Yoko", resp["first_name"])
	}
}

// TestGetMember_NotFound は存在しない会員で404とMEMBER_NOT_FOUNDが返ることを検証する。
func TestGetMember_NotFound(t *testing.T) {
	h := NewMemberHandler(&mockMemberService{}, &mockImageStore{}, nil, false)

	req := httptest.NewRequest(http.MethodGet, "/members/999", nil)
	w := httptest.NewRecorder()

	newMemberRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body["code"] != model.ErrCodeMemberNotFound {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeMemberNotFound)
	}
}

// TestGetMember_InvalidID は数値でないIDで400が返ることを検証する。
func TestGetMember_InvalidID(t *testing.T) {
	h := NewMemberHandler(&mockMemberService{}, &mockImageStore{}, nil, false)

	req := httptest.NewRequest(http.MethodGet, "/members/abc", nil)
	w := httptest.NewRecorder()

	newMemberRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// TestUpdateMember_Success は会員更新が200で返ることを検証する。
func TestUpdateMember_Success(t *testing.T) {
	var gotID int64
	var gotRef *string
	service := &mockMemberService{
		updateFn: func(ctx context.Context, id int64, in member.Input, newImageRef *string) error {
			gotID = id
			gotRef = newImageRef
			return nil
		},
	}
	h := NewMemberHandler(service, &mockImageStore{}, nil, false)

	req := newMemberFormRequest(t, http.MethodPut, "/members/5", validMemberFields())
	w := httptest.NewRecorder()

	newMemberRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	if gotID != 5 {
		t.Errorf("id = %d, want 5", gotID)
	}
	if gotRef != nil {
		t.Errorf("newImageRef = %v, want nil (no file attached)", *gotRef)
	}
}

// TestUpdateMember_NotFound は存在しない会員の更新で404が返ることを検証する。
func TestUpdateMember_NotFound(t *testing.T) {
	service := &mockMemberService{
		updateFn: func(ctx context.Context, id int64, in member.Input, newImageRef *string) error {
			return model.NewMemberNotFoundError(id)
		},
	}
	h := NewMemberHandler(service, &mockImageStore{}, nil, false)

	req := newMemberFormRequest(t, http.MethodPut, "/members/999", validMemberFields())
	w := httptest.NewRecorder()

	newMemberRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// TestDeleteMember_Success は会員削除が200とメッセージを返すことを検証する。
func TestDeleteMember_Success(t *testing.T) {
	h := NewMemberHandler(&mockMemberService{}, &mockImageStore{}, nil, false)

	req := httptest.NewRequest(http.MethodDelete, "/members/3", nil)
	w := httptest.NewRecorder()

	newMemberRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp messageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Message == "" {
		t.Error("expected non-empty message")
	}
}

// TestDeleteMember_NotFound は存在しない会員の削除で404が返ることを検証する。
func TestDeleteMember_NotFound(t *testing.T) {
	service := &mockMemberService{
		deleteFn: func(ctx context.Context, id int64) error {
			return model.NewMemberNotFoundError(id)
		},
	}
	h := NewMemberHandler(service, &mockImageStore{}, nil, false)

	req := httptest.NewRequest(http.MethodDelete, "/members/999", nil)
	w := httptest.NewRecorder()

	newMemberRouter(h).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// TestStorageFailure_ExposesDetailInDevelopment は開発モードでのみ内部エラーが露出することを検証する。
func TestStorageFailure_ExposesDetailInDevelopment(t *testing.T) {
	service := &mockMemberService{
		listFn: func(ctx context.Context) ([]model.MemberWithAge, error) {
			return nil, model.NewStorageFailureError("list members", errors.New("connection refused"))
		},
	}

	tests := []struct {
		name          string
		exposeDetail  bool
		wantHasDetail bool
	}{
		{"development exposes detail", true, true},
		{"production hides detail", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMemberHandler(service, &mockImageStore{}, nil, tt.exposeDetail)

			req := httptest.NewRequest(http.MethodGet, "/members", nil)
			w := httptest.NewRecorder()

			newMemberRouter(h).ServeHTTP(w, req)

			if w.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", w.Code)
			}

			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to parse body: %v", err)
			}
			if body["code"] != model.ErrCodeStorageFailure {
				t.Errorf("code = %q, want %q", body["code"], model.ErrCodeStorageFailure)
			}
			if hasDetail := body["detail"] != ""; hasDetail != tt.wantHasDetail {
				t.Errorf("detail present = %v, want %v", hasDetail, tt.wantHasDetail)
			}
		})
	}
}
