package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/dealman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// 会話
	ConversationStore ConversationReader

	// 出品
	ListingRepo ListingReader

	// HealthPing はヘルスチェック時の死活確認。通常はDBのPing。
	// nilの場合は常に正常とみなす。
	HealthPing func(ctx context.Context) error

	// MetricsHandler は/metricsに載せるハンドラー。nilの場合はルートを作らない。
	MetricsHandler http.Handler
}

// NewRouter は読み取り専用の状況確認APIのルーティングと
// ミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	convHandler := NewConversationHandler(deps.ConversationStore)
	listingHandler := NewListingHandler(deps.ListingRepo)

	r.Get("/health", healthHandler(deps.HealthPing))

	r.Route("/api", func(r chi.Router) {
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", convHandler.ListConversations)
			r.Get("/{threadID}", convHandler.GetConversation)
		})

		r.Get("/listings", listingHandler.ListListings)
		r.Get("/summary", convHandler.GetSummary)
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	return r
}

// healthHandler はヘルスチェックハンドラーを生成する。
func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
