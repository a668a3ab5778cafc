// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/memberbook/internal/model"
)

// MemberRepository は会員データの永続化インターフェース。
type MemberRepository interface {
	// Insert は会員を1行作成し、採番されたIDを返す。
	// last_updatedは設定しない（更新操作でのみ設定される）。
	Insert(ctx context.Context, member *model.Member) (int64, error)

	// List は全会員を取得する。並び順はストレージの既定に従い、保証しない。
	// 会員が存在しない場合は空スライスを返す。
	List(ctx context.Context) ([]*model.Member, error)

	// FindByID は指定IDの会員を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Member, error)

	// Update は指定IDの会員の全フィールドと画像参照を上書きし、
	// last_updatedをNOW()で更新する。
	Update(ctx context.Context, member *model.Member) error

	// Delete は指定IDの会員を削除し、削除された行数を返す。
	Delete(ctx context.Context, id int64) (int64, error)

	// ListImageURLs は全会員の画像参照パスを返す。
	// 画像未設定の会員は含まない。クリーンアップジョブ用。
	ListImageURLs(ctx context.Context) ([]string, error)
}
