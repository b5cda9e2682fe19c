// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/dealman/internal/agent"
	"github.com/hitoshi/dealman/internal/config"
	"github.com/hitoshi/dealman/internal/conversation"
	"github.com/hitoshi/dealman/internal/database"
	"github.com/hitoshi/dealman/internal/handler"
	"github.com/hitoshi/dealman/internal/listing"
	"github.com/hitoshi/dealman/internal/logger"
	"github.com/hitoshi/dealman/internal/metrics"
	"github.com/hitoshi/dealman/internal/notify"
	"github.com/hitoshi/dealman/internal/offer"
	"github.com/hitoshi/dealman/internal/parser"
	"github.com/hitoshi/dealman/internal/policy"
	"github.com/hitoshi/dealman/internal/pricing"
	"github.com/hitoshi/dealman/internal/repository"
	"github.com/hitoshi/dealman/internal/security"
	"github.com/hitoshi/dealman/internal/worker/cleanup"
	"github.com/hitoshi/dealman/internal/worker/negotiate"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandOffers:
		return runOffers(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// automation はワーカーモードとオファーモードで共有する依存関係の束。
type automation struct {
	registry  *prometheus.Registry
	collector *metrics.Collector
	store     *conversation.Store
	machine   *conversation.Machine
	runner    *negotiate.Runner
	inbox     *negotiate.InboxScanner
	cleanup   *cleanup.StaleCloser
	offers    *offer.Service
	pricing   *pricing.Service
	fetcher   *pricing.Fetcher
}

// buildAutomation は交渉・オファー自動化の全依存関係をワイヤリングする。
func buildAutomation(cfg *config.Config, db *sql.DB) *automation {
	log := slog.Default()

	// リポジトリ
	convRepo := repository.NewPostgresConversationRepo(db)
	listingRepo := repository.NewPostgresListingRepo(db)
	pricingRepo := repository.NewPostgresPricingRepo(db)

	// セキュリティ
	sanitizer := security.NewTranscriptSanitizer()
	ssrfGuard := security.NewSSRFGuard()

	// メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 会話ストア。読み込み不能時はマイグレーション再適用でスキーマを復旧する。
	store := conversation.NewStore(convRepo, log, func(ctx context.Context) error {
		return database.RunMigrations(cfg.DatabaseURL)
	})

	// 交渉スクリプトと価格サービス
	script, warn := policy.LoadScript(cfg.ScriptPath, cfg.PriceFlexibility)
	if warn != nil {
		slog.Warn("交渉スクリプトの読み込みに問題があります", slog.String("error", warn.Error()))
	}
	pricingService := pricing.NewService(pricingRepo, log)
	fetcher := pricing.NewFetcher(ssrfGuard, pricingRepo, log, cfg.PricingSourceURL, cfg.MarginPercent, 30*time.Second)

	// エージェントと通知
	dispatcher := agent.NewHTTPDispatcher(&http.Client{Timeout: cfg.AgentTimeout}, log, cfg.AgentURL)
	var notifier notify.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(&http.Client{Timeout: 10 * time.Second}, log, cfg.NotifyWebhookURL)
	} else {
		notifier = notify.NewNopNotifier()
	}

	// 意思決定と会話処理
	resultParser := parser.NewResultParser(sanitizer, cfg.OfferMinSane, cfg.OfferMaxSane)
	engine := policy.NewEngine(script, pricingService)
	machine := conversation.NewMachine(dispatcher, resultParser, engine, store, notifier, collector, log)

	// ワーカー
	runner := negotiate.NewRunner(store, machine, collector, log, cfg.MaxConversationsPerRun, cfg.ConversationDelay)
	inbox := negotiate.NewInboxScanner(dispatcher, store, collector, log)
	staleCloser := cleanup.NewStaleCloser(store, collector, log, cfg.StaleAfter)

	// 初回オファー
	listingService := listing.NewService(listingRepo, log)
	offerService := offer.NewService(dispatcher, listingService, pricingService, store, sanitizer, collector, log,
		cfg.MaxMessagesPerSession, cfg.OfferDelay)

	return &automation{
		registry:  registry,
		collector: collector,
		store:     store,
		machine:   machine,
		runner:    runner,
		inbox:     inbox,
		cleanup:   staleCloser,
		offers:    offerService,
		pricing:   pricingService,
		fetcher:   fetcher,
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// refreshPricing は価格テーブルの更新と再読み込みを行う。
// 外部ドキュメントが未設定・取得失敗でも保存済みテーブルで続行する。
func refreshPricing(ctx context.Context, a *automation) {
	if err := a.fetcher.Refresh(ctx); err != nil {
		slog.Warn("価格テーブルの更新に失敗しました。保存済みデータで続行します",
			slog.String("error", err.Error()),
		)
	}
	if err := a.pricing.Reload(ctx); err != nil {
		slog.Warn("価格テーブルの読み込みに失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// runServe は状況確認APIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	log := slog.Default()
	convRepo := repository.NewPostgresConversationRepo(db)
	listingRepo := repository.NewPostgresListingRepo(db)

	registry := prometheus.NewRegistry()
	metrics.NewCollector(registry)

	store := conversation.NewStore(convRepo, log, func(ctx context.Context) error {
		return database.RunMigrations(cfg.DatabaseURL)
	})

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		ConversationStore: store,
		ListingRepo:       listingRepo,
		HealthPing:        db.PingContext,
		MetricsHandler:    metrics.Handler(registry),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker は交渉ワーカーモードで起動する。
// 受信箱の巡回、交渉パス、無応答打ち切りジョブ、価格テーブルの定期更新を
// 並行実行する。SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	a := buildAutomation(cfg, db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// 起動時に価格テーブルを整える
	refreshPricing(ctx, a)

	slog.Info("worker starting",
		slog.Duration("conversation_interval", cfg.ConversationInterval),
		slog.Int("max_per_run", cfg.MaxConversationsPerRun),
	)

	// メトリクスを公開する軽量HTTPサーバー
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: metrics.SetupMetricsRoute(a.registry),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	// 受信箱の巡回を交渉パスと同じ周期でバックグラウンド実行
	go func() {
		if _, err := a.inbox.Sync(ctx); err != nil {
			slog.Error("受信箱の巡回に失敗しました", slog.String("error", err.Error()))
		}
		ticker := time.NewTicker(cfg.ConversationInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := a.inbox.Sync(ctx); err != nil {
					slog.Error("受信箱の巡回に失敗しました", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 無応答打ち切りジョブを日次でバックグラウンド実行
	go func() {
		if err := a.cleanup.Run(ctx); err != nil {
			slog.Error("打ち切りジョブの実行に失敗しました", slog.String("error", err.Error()))
		}
		a.cleanup.Start(ctx, 24*time.Hour)
	}()

	// 価格テーブルを日次で更新
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refreshPricing(ctx, a)
			}
		}
	}()

	// 交渉パスをメインgoroutineで実行（ブロッキング）
	a.runner.Start(ctx, cfg.ConversationInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runOffers は初回オファー送信パスを1回実行して終了する。
func runOffers(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	a := buildAutomation(cfg, db)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	refreshPricing(ctx, a)

	// 検索で出品を収集してからオファーパスを回す。
	// 収集に失敗しても保存済みの出品でパスは続行できる。
	if _, err := a.offers.Discover(ctx, cfg.SearchProduct); err != nil {
		slog.Warn("出品の収集に失敗しました。保存済みの出品で続行します",
			slog.String("error", err.Error()),
		)
	}

	sent, err := a.offers.RunOnce(ctx, cfg.OfferListingLimit)
	if err != nil {
		return fmt.Errorf("offer pass failed: %w", err)
	}

	slog.Info("offer pass finished", slog.Int("sent_count", sent))
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
