// Package model はドメインモデルを定義する。
package model

import "time"

// Member は会員レコードを表す。
// IDはサーバー側で採番され、作成後は不変。
// LastUpdatedは更新操作でのみ設定される（作成時はnil）。
type Member struct {
	ID              int64
	Title           Title
	FirstName       string
	LastName        string
	Birthdate       time.Time
	ProfileImageURL *string
	LastUpdated     *time.Time
}

// Title は会員の敬称を表す。固定の列挙値のみ有効。
type Title string

const (
	// TitleMr は男性の敬称。
	TitleMr Title = "mr"
	// TitleMrs は既婚女性の敬称。
	TitleMrs Title = "mrs"
	// TitleMiss は未婚女性の敬称。
	TitleMiss Title = "miss"
)

// Valid は敬称が定義済みの列挙値かどうかを返す。
func (t Title) Valid() bool {
	switch t {
	case TitleMr, TitleMrs, TitleMiss:
		return true
	}
	return false
}

// AgeAt は基準日時点の年齢を返す。
// 年の差のみで算出する（誕生日が到来済みかどうかは考慮しない）。
func (m *Member) AgeAt(now time.Time) int {
	return now.Year() - m.Birthdate.Year()
}

// MemberWithAge は会員レコードと読み取り時に算出した年齢の組。
// 年齢は保存されず、一覧取得のたびに現在日付から再計算される。
type MemberWithAge struct {
	Member
	Age int
}
