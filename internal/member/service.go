// Package member は会員レコードのライフサイクルのドメインロジックを提供する。
package member

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/memberbook/internal/model"
	"github.com/hitoshi/memberbook/internal/repository"
)

// FieldSanitizer は入力テキストのサニタイズインターフェース。
// security.FieldSanitizerServiceの部分集合として定義する。
type FieldSanitizer interface {
	Sanitize(raw string) string
}

// MetricsRecorder は会員操作のメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。nil可。
type MetricsRecorder interface {
	RecordMemberCreated()
	RecordMemberUpdated()
	RecordMemberDeleted()
}

// Input は会員の作成・更新で受け取る入力フィールド。
// 各エンドポイントのハンドラーで解析・検証されてからサービスに渡される。
type Input struct {
	Title     model.Title
	FirstName string
	LastName  string
	Birthdate time.Time
}

// Service は会員管理のサービス層。
// リポジトリとサニタイザを明示的に保持し、グローバル状態に依存しない。
type Service struct {
	repo      repository.MemberRepository
	sanitizer FieldSanitizer
	metrics   MetricsRecorder

	// now はテストから差し替え可能な現在時刻の供給源。年齢計算に使用する。
	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnil可（記録をスキップする）。
func NewService(repo repository.MemberRepository, sanitizer FieldSanitizer, metrics MetricsRecorder) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Create は会員を1行作成し、採番されたIDを返す。
// last_updatedは作成時には設定されない（更新操作でのみ設定される）。
// imageRefはアップロードハンドラーが返した配信用パス。nilの場合は画像なし。
func (s *Service) Create(ctx context.Context, in Input, imageRef *string) (int64, error) {
	in, err := s.validate(in)
	if err != nil {
		return 0, err
	}

	id, err := s.repo.Insert(ctx, &model.Member{
		Title:           in.Title,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Birthdate:       in.Birthdate,
		ProfileImageURL: imageRef,
	})
	if err != nil {
		return 0, model.NewStorageFailureError("insert member", err)
	}

	slog.Info("member created",
		slog.Int64("member_id", id),
		slog.Bool("has_image", imageRef != nil),
	)
	if s.metrics != nil {
		s.metrics.RecordMemberCreated()
	}

	return id, nil
}

// List は全会員を、読み取り時点の現在日付から算出した年齢付きで返す。
// 年齢は年の差のみの簡易式で、保存されない。
// 会員が存在しない場合は空スライスを返す（エラーではない）。
// 並び順は保証しない。
func (s *Service) List(ctx context.Context) ([]model.MemberWithAge, error) {
	members, err := s.repo.List(ctx)
	if err != nil {
		return nil, model.NewStorageFailureError("list members", err)
	}

	now := s.now()
	result := make([]model.MemberWithAge, 0, len(members))
	for _, m := range members {
		result = append(result, model.MemberWithAge{
			Member: *m,
			Age:    m.AgeAt(now),
		})
	}

	return result, nil
}

// Get は指定IDの会員を取得する。存在しない場合はMemberNotFoundを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.Member, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStorageFailureError("find member", err)
	}
	if member == nil {
		return nil, model.NewMemberNotFoundError(id)
	}

	return member, nil
}

// Update は指定IDの会員を更新する。
// 手順はリクエスト内で逐次実行される: 既存の画像参照を読み取り、
// 新しい画像参照が与えられていればそれを、なければ既存の参照を使用して
// 全フィールドとlast_updatedを書き込む。
// 読み取りで行が見つからない場合はMemberNotFoundを返し、書き込みは行わない。
func (s *Service) Update(ctx context.Context, id int64, in Input, newImageRef *string) error {
	in, err := s.validate(in)
	if err != nil {
		return err
	}

	// 1. 既存レコードの読み取り（画像参照の解決のため）
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.NewStorageFailureError("find member for update", err)
	}
	if existing == nil {
		return model.NewMemberNotFoundError(id)
	}

	// 2. 新しい画像がなければ既存の参照を維持する（クリアはしない）
	imageRef := existing.ProfileImageURL
	if newImageRef != nil {
		imageRef = newImageRef
	}

	// 3. 全フィールド + 解決済み画像参照 + 新しいlast_updatedを書き込む
	if err := s.repo.Update(ctx, &model.Member{
		ID:              id,
		Title:           in.Title,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Birthdate:       in.Birthdate,
		ProfileImageURL: imageRef,
	}); err != nil {
		return model.NewStorageFailureError("update member", err)
	}

	slog.Info("member updated",
		slog.Int64("member_id", id),
		slog.Bool("image_replaced", newImageRef != nil),
	)
	if s.metrics != nil {
		s.metrics.RecordMemberUpdated()
	}

	return nil
}

// Delete は指定IDの会員を削除する。
// 行の削除が正であり、参照されていた画像ファイルの削除は保証しない
// （ベストエフォートのクリーンアップジョブに委ねる）。
// 削除対象が存在しない場合はMemberNotFoundを返す。
func (s *Service) Delete(ctx context.Context, id int64) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return model.NewStorageFailureError("delete member", err)
	}
	if affected == 0 {
		return model.NewMemberNotFoundError(id)
	}

	slog.Info("member deleted",
		slog.Int64("member_id", id),
	)
	if s.metrics != nil {
		s.metrics.RecordMemberDeleted()
	}

	return nil
}

// validate は入力フィールドを検証し、テキストフィールドをサニタイズして返す。
func (s *Service) validate(in Input) (Input, error) {
	if !in.Title.Valid() {
		return in, model.NewValidationError("titleはmr、mrs、missのいずれかを指定してください")
	}

	if s.sanitizer != nil {
		in.FirstName = s.sanitizer.Sanitize(in.FirstName)
		in.LastName = s.sanitizer.Sanitize(in.LastName)
	}

	if in.FirstName == "" {
		return in, model.NewValidationError("firstNameが空です")
	}
	if in.LastName == "" {
		return in, model.NewValidationError("lastNameが空です")
	}
	if in.Birthdate.IsZero() {
		return in, model.NewValidationError("birthdateが不正です")
	}

	return in, nil
}
