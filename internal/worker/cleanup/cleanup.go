// Package cleanup は期限切れセッションと孤立した画像ファイルの定期削除ジョブを提供する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fishcafe/perkportal/internal/metrics"
	"github.com/fishcafe/perkportal/internal/storage"
)

// DefaultOrphanGrace は孤立ファイルとみなすまでの猶予期間。
// アップロード処理中でまだDBに登録されていないファイルを消さないために置く。
const DefaultOrphanGrace = time.Hour

// SessionPurger は期限切れセッションを削除する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// KeyLister はDBに登録済みの作品が参照するストレージキーを返す。
type KeyLister interface {
	ListStorageKeys(ctx context.Context) ([]string, error)
}

// FileStore はアップロード先ストレージのうちクリーンアップに必要な操作。
type FileStore interface {
	List(ctx context.Context) ([]storage.StoredFile, error)
	Delete(ctx context.Context, key string) error
}

// CleanupJob は期限切れセッションと孤立ファイルを削除するジョブ。
// 何度実行しても結果は変わらない。
type CleanupJob struct {
	sessions    SessionPurger
	artworks    KeyLister
	files       FileStore
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	now         func() time.Time
	OrphanGrace time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
// artworksかfilesがnilの場合、孤立ファイルの削除は行わない。
func NewCleanupJob(sessions SessionPurger, artworks KeyLister, files FileStore, logger *slog.Logger, mc metrics.MetricsCollector) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &CleanupJob{
		sessions:    sessions,
		artworks:    artworks,
		files:       files,
		logger:      logger,
		metrics:     mc,
		now:         time.Now,
		OrphanGrace: DefaultOrphanGrace,
	}
}

// Run は1回分のクリーンアップを実行する。
// 片方の処理が失敗してももう片方は実行し、エラーはまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	sessions, sessErr := j.purgeSessions(ctx, start)
	files, fileErr := j.purgeOrphanFiles(ctx, start)

	j.metrics.RecordCleanup(int(sessions), files)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessions),
		slog.Int("deleted_files", files),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return errors.Join(sessErr, fileErr)
}

// Start はinterval間隔でRunを繰り返す。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました", slog.Duration("interval", interval))

	j.runAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *CleanupJob) runAndLog(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

func (j *CleanupJob) purgeSessions(ctx context.Context, now time.Time) (int64, error) {
	if j.sessions == nil {
		return 0, nil
	}
	n, err := j.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}
	return n, nil
}

// purgeOrphanFiles はどの作品からも参照されず、猶予期間を過ぎたファイルを削除する。
func (j *CleanupJob) purgeOrphanFiles(ctx context.Context, now time.Time) (int, error) {
	if j.artworks == nil || j.files == nil {
		return 0, nil
	}

	// キー一覧はファイル一覧より後に取得する
	stored, err := j.files.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("ファイル一覧の取得に失敗: %w", err)
	}
	keys, err := j.artworks.ListStorageKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("ストレージキー一覧の取得に失敗: %w", err)
	}

	referenced := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		referenced[k] = struct{}{}
	}

	cutoff := now.Add(-j.OrphanGrace)
	deleted := 0
	var errs []error
	for _, f := range stored {
		if _, ok := referenced[f.Key]; ok {
			continue
		}
		if f.ModTime.After(cutoff) {
			continue
		}
		if err := j.files.Delete(ctx, f.Key); err != nil {
			j.logger.Warn("孤立ファイルの削除に失敗しました",
				slog.String("key", f.Key),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}
