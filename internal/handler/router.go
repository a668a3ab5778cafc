package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/memberbook/internal/middleware"
)

// DBPinger はヘルスチェックで使用するDB疎通確認インターフェース。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	HTTPMetrics       middleware.HTTPMetricsRecorder

	// 会員
	MemberService MemberServiceInterface
	ImageStore    ImageStore
	UploadMetrics UploadMetricsRecorder

	// 静的配信
	UploadDir string

	// 運用
	DB             DBPinger
	MetricsHandler http.Handler

	// 開発環境でのみtrueにし、エラーレスポンスに内部エラーの文字列を含める
	ExposeErrorDetail bool
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → Metrics → RateLimit(General)
//
// POST /members と PUT /members/{id} にはアップロード専用レート制限を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))

	memberHandler := NewMemberHandler(deps.MemberService, deps.ImageStore, deps.UploadMetrics, deps.ExposeErrorDetail)
	uploadHandler := NewUploadFileHandler(deps.UploadDir)

	// --- 運用ルート（レート制限の外に配置） ---

	r.Get("/health", newHealthHandler(deps.DB))

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- APIルート ---
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// 会員管理
		r.Route("/members", func(r chi.Router) {
			// POST /members - 会員登録（アップロード専用レート制限を追加）
			if deps.RateLimiter != nil {
				r.With(deps.RateLimiter.UploadMiddleware()).Post("/", memberHandler.CreateMember)
			} else {
				r.Post("/", memberHandler.CreateMember)
			}

			r.Get("/", memberHandler.ListMembers)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", memberHandler.GetMember)
				if deps.RateLimiter != nil {
					r.With(deps.RateLimiter.UploadMiddleware()).Put("/", memberHandler.UpdateMember)
				} else {
					r.Put("/", memberHandler.UpdateMember)
				}
				r.Delete("/", memberHandler.DeleteMember)
			})
		})

		// 保存済み画像の配信
		r.Get("/uploads/{filename}", uploadHandler.ServeFile)
	})

	return r
}

// newHealthHandler はDB疎通確認付きのヘルスチェックハンドラーを返す。
func newHealthHandler(db DBPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := db.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
