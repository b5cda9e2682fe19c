// Package agent はブラウジングエージェントとの連携機能を提供する。
// エージェントはLLM駆動のブラウザ操作サービスで、タスク記述テキストを
// 受け取りブラウザを操作した結果を自由テキストのレポートとして返す。
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Dispatcher はエージェントへのタスク送出機能のインターフェースを定義する。
type Dispatcher interface {
	// Dispatch はタスクをエージェントに送り、レポート全文を返す。
	// 実際のブラウザ操作を伴うため分単位でブロックしうる。内部タイムアウトは
	// 持たず、打ち切りは呼び出し側のcontextとHTTPクライアントに委ねる。
	Dispatch(ctx context.Context, task string) (string, error)
}

// taskRequest はエージェントAPIへのリクエストボディ。
type taskRequest struct {
	Task string `json:"task"`
}

// taskResponse はエージェントAPIのレスポンスボディ。
type taskResponse struct {
	Transcript string `json:"transcript"`
}

// HTTPDispatcher はHTTP APIとして公開されたエージェントへのDispatcher実装。
type HTTPDispatcher struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewHTTPDispatcher はHTTPDispatcherの新しいインスタンスを生成する。
// endpointはエージェントサービスのタスク受付URL。
func NewHTTPDispatcher(httpClient *http.Client, logger *slog.Logger, endpoint string) *HTTPDispatcher {
	return &HTTPDispatcher{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

// Dispatch はタスクをエージェントに送り、レポート全文を返す。
func (d *HTTPDispatcher) Dispatch(ctx context.Context, task string) (string, error) {
	payload, err := json.Marshal(taskRequest{Task: task})
	if err != nil {
		return "", fmt.Errorf("タスクリクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error("エージェントへのタスク送出に失敗しました",
			slog.String("error", err.Error()),
		)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Error("エージェントがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("エージェントがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result taskResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return result.Transcript, nil
}
