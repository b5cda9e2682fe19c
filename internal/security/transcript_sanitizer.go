// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TranscriptSanitizerService はブラウジングエージェントのレポートから抽出した
// テキストをサニタイズする。エージェントはブラウザのDOMを読み取るため、
// レポートにHTML断片やスクリプトタグがそのまま混入することがある。
// 抽出フィールド（出品者名・商品名・メッセージ本文）を保存する前に
// bluemondayのStrictPolicyで全タグを除去する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TranscriptSanitizerService はエージェントレポート由来テキストのサニタイズ機能の
// インターフェースを定義する。抽出フィールドの保存前に使用される。
type TranscriptSanitizerService interface {
	// Sanitize は入力からすべてのHTMLタグを除去し、前後の空白を取り除いて返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// transcriptSanitizer はTranscriptSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type transcriptSanitizer struct {
	policy *bluemonday.Policy
}

// NewTranscriptSanitizer はTranscriptSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはすべてのタグと属性を除去し、テキストのみを通過させる。
func NewTranscriptSanitizer() *transcriptSanitizer {
	return &transcriptSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からすべてのHTMLタグを除去して返す。
func (s *transcriptSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
