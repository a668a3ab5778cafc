package model

import (
	"errors"
	"testing"
	"time"
)

// AgeAtが年の差のみで年齢を算出することを検証
// （誕生日が到来済みかどうかは意図的に考慮しない）
func TestMember_AgeAt_YearDifferenceOnly(t *testing.T) {
	tests := []struct {
		name      string
		birthdate time.Time
		now       time.Time
		want      int
	}{
		{
			name:      "誕生日前でも年の差をそのまま返す",
			birthdate: time.Date(1990, 12, 31, 0, 0, 0, 0, time.UTC),
			now:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			want:      36,
		},
		{
			name:      "誕生日後も同じ値",
			birthdate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
			now:       time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
			want:      36,
		},
		{
			name:      "同年生まれは0歳",
			birthdate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			now:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Member{Birthdate: tt.birthdate}
			if got := m.AgeAt(tt.now); got != tt.want {
				t.Errorf("AgeAt() = %d, want %d", got, tt.want)
			}
		})
	}
}

// Titleの列挙値検証
func TestTitle_Valid(t *testing.T) {
	for _, title := range []Title{TitleMr, TitleMrs, TitleMiss} {
		if !title.Valid() {
			t.Errorf("Title(%q).Valid() = false, want true", title)
		}
	}

	for _, title := range []Title{"", "dr", "MR", "prof"} {
		if Title(title).Valid() {
			t.Errorf("Title(%q).Valid() = true, want false", title)
		}
	}
}

// StorageFailureが原因エラーを保持しerrors.Isで辿れることを検証
func TestNewStorageFailureError_WrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStorageFailureError("insert member", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to match the wrapped cause")
	}

	var apiErr *APIError
	if !errors.As(error(err), &apiErr) {
		t.Fatal("expected errors.As to extract *APIError")
	}
	if apiErr.Code != ErrCodeStorageFailure {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeStorageFailure)
	}
}

// 原因エラーなしのAPIErrorのError文字列を検証
func TestAPIError_Error_WithoutCause(t *testing.T) {
	err := NewMemberNotFoundError(42)
	want := "[MEMBER_NOT_FOUND]"
	if got := err.Error(); len(got) < len(want) || got[:len(want)] != want {
		t.Errorf("Error() = %q, want prefix %q", got, want)
	}
}
