// Package cleanup は孤児画像の自動削除ジョブを提供する。
// どの会員行からも参照されておらず、保持期間（デフォルト24時間）を超過した
// アップロードディレクトリ内のファイルを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"
)

// ImageURLLister は参照中の画像パス一覧の取得を抽象化するインターフェース。
// repository.MemberRepositoryの部分集合として定義する。
type ImageURLLister interface {
	ListImageURLs(ctx context.Context) ([]string, error)
}

// CleanupJob は孤児画像の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
// ファイル削除はベストエフォートで、個々の失敗はジョブ全体を失敗させない。
type CleanupJob struct {
	repo      ImageURLLister
	uploadDir string
	logger    *slog.Logger
	Retention time.Duration // 削除対象とみなすまでの経過時間（デフォルト: 24時間）

	// now はテストから差し替え可能な現在時刻の供給源。
	now func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持期間は24時間。
func NewCleanupJob(repo ImageURLLister, uploadDir string, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:      repo,
		uploadDir: uploadDir,
		logger:    logger,
		Retention: 24 * time.Hour,
		now:       time.Now,
	}
}

// Run は参照されていない古い画像ファイルを削除する。
// 保持期間内のファイルは、作成直後でまだ会員行がコミットされていない
// 可能性があるため削除しない。
// 冪等: 削除対象がない場合やディレクトリが未作成の場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	referenced, err := j.referencedNames(ctx)
	if err != nil {
		j.logger.Error("参照中画像一覧の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("参照中画像一覧の取得に失敗: %w", err)
	}

	entries, err := os.ReadDir(j.uploadDir)
	if err != nil {
		// ディレクトリ未作成はアップロードが一度もないだけなので正常
		if os.IsNotExist(err) {
			return nil
		}
		j.logger.Error("アップロードディレクトリの読み取りに失敗しました",
			slog.String("error", err.Error()),
			slog.String("dir", j.uploadDir),
		)
		return fmt.Errorf("アップロードディレクトリの読み取りに失敗: %w", err)
	}

	cutoff := j.now().Add(-j.Retention)
	var deletedCount, failedCount int64

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if referenced[entry.Name()] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(j.uploadDir, entry.Name())); err != nil {
			failedCount++
			j.logger.Warn("孤児画像の削除に失敗しました",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		deletedCount++
	}

	duration := time.Since(start)
	j.logger.Info("孤児画像クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int64("failed_count", failedCount),
		slog.Int("referenced_count", len(referenced)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// referencedNames は会員行が参照する画像のファイル名集合を返す。
// 保存される参照は配信用パス（uploads/<名前>）のためベース名に正規化する。
func (j *CleanupJob) referencedNames(ctx context.Context) (map[string]bool, error) {
	urls, err := j.repo.ListImageURLs(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		names[path.Base(u)] = true
	}
	return names, nil
}
