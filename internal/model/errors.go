// Package model はドメインモデルを定義する。
package model

import "fmt"

// AutomationError は統一エラーフォーマットを表す。
// ログと通知に載せる原因カテゴリと対処方法を含む。
type AutomationError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: parser, policy, persistence, agent, config
	Action   string // 運用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *AutomationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidThreadURL   = "INVALID_THREAD_URL"
	ErrCodeConversationLost   = "CONVERSATION_NOT_FOUND"
	ErrCodeBaselineUnverified = "BASELINE_UNVERIFIED"
	ErrCodePersistFailed      = "PERSIST_FAILED"
	ErrCodeAgentDispatch      = "AGENT_DISPATCH_FAILED"
	ErrCodeScriptParse        = "SCRIPT_PARSE_FAILED"
	ErrCodePricingUnavailable = "PRICING_UNAVAILABLE"
)

// NewInvalidThreadURLError はスレッドIDを抽出できないURLに対するエラーを生成する。
func NewInvalidThreadURLError(url string) *AutomationError {
	return &AutomationError{
		Code:     ErrCodeInvalidThreadURL,
		Message:  fmt.Sprintf("URLからスレッドIDを抽出できませんでした: %s", url),
		Category: "parser",
		Action:   "conversation_urlの形式を確認してください。",
	}
}

// NewConversationNotFoundError は未登録スレッドに対するエラーを生成する。
func NewConversationNotFoundError(threadID string) *AutomationError {
	return &AutomationError{
		Code:     ErrCodeConversationLost,
		Message:  fmt.Sprintf("指定されたスレッドが見つかりません: %s", threadID),
		Category: "persistence",
		Action:   "会話ストアの内容を確認してください。",
	}
}

// NewBaselineUnverifiedError は初回オファー額を検証済みソースから解決できない場合のエラーを生成する。
func NewBaselineUnverifiedError(threadID string) *AutomationError {
	return &AutomationError{
		Code:     ErrCodeBaselineUnverified,
		Message:  fmt.Sprintf("初回オファー額を検証できないため交渉を中断しました: %s", threadID),
		Category: "policy",
		Action:   "価格テーブルまたはメッセージ履歴からオファー額を確認し、手動で対応してください。",
	}
}

// NewPersistFailedError は永続化失敗のエラーを生成する。
func NewPersistFailedError(reason string) *AutomationError {
	return &AutomationError{
		Code:     ErrCodePersistFailed,
		Message:  fmt.Sprintf("会話の保存に失敗しました: %s", reason),
		Category: "persistence",
		Action:   "データベース接続を確認してください。今回の実行は中断されますが保存済みデータは破損しません。",
	}
}

// NewAgentDispatchError はブラウジングエージェント呼び出し失敗のエラーを生成する。
func NewAgentDispatchError(reason string) *AutomationError {
	return &AutomationError{
		Code:     ErrCodeAgentDispatch,
		Message:  fmt.Sprintf("エージェントのタスク実行に失敗しました: %s", reason),
		Category: "agent",
		Action:   "エージェントサービスの稼働状況を確認してください。対象の会話は次回パスで再処理されます。",
	}
}

// NewPricingUnavailableError は価格テーブルから該当モデルを引けない場合のエラーを生成する。
func NewPricingUnavailableError(product string) *AutomationError {
	return &AutomationError{
		Code:     ErrCodePricingUnavailable,
		Message:  fmt.Sprintf("価格テーブルに該当モデルがありません: %s", product),
		Category: "policy",
		Action:   "価格データを更新するか、対象商品の設定を確認してください。",
	}
}
