// Package model はドメインモデルを定義する。
package model

import (
	"regexp"
	"strings"
	"time"
)

// ConversationStatus は交渉スレッドの状態を表す。
type ConversationStatus string

const (
	// StatusNew は発見直後でまだ未処理のスレッド。
	StatusNew ConversationStatus = "new"
	// StatusAwaitingResponse は初回オファー送信済みで返信待ちの状態。
	StatusAwaitingResponse ConversationStatus = "awaiting_response"
	// StatusNegotiating は価格交渉中の状態。
	StatusNegotiating ConversationStatus = "negotiating"
	// StatusAnsweringQuestions は出品者からの質問に回答中の状態。
	StatusAnsweringQuestions ConversationStatus = "answering_questions"
	// StatusDealPending は合意済みで受け渡し待ちの状態。自動処理はここで終了する。
	StatusDealPending ConversationStatus = "deal_pending"
	// StatusDealClosed は取引完了の状態。
	StatusDealClosed ConversationStatus = "deal_closed"
	// StatusNeedsHelp は自動処理では判断できず人間の介入が必要な状態。
	StatusNeedsHelp ConversationStatus = "needs_help"
	// StatusClosed は交渉打ち切りの状態。
	StatusClosed ConversationStatus = "closed"
	// StatusItemSold は商品が他で売れてしまった状態。
	StatusItemSold ConversationStatus = "item_sold"
	// StatusRejected は出品者に最終的に断られた状態。
	StatusRejected ConversationStatus = "rejected"
	// StatusNoResponseFinal は長期間返信がなく打ち切った状態。
	// クリーンアップジョブのみがこの状態へ遷移させる。
	StatusNoResponseFinal ConversationStatus = "no_response_final"
)

// terminalStatuses は自動処理を再開してはならない終端状態の集合。
var terminalStatuses = map[ConversationStatus]bool{
	StatusDealPending:     true,
	StatusDealClosed:      true,
	StatusNeedsHelp:       true,
	StatusClosed:          true,
	StatusItemSold:        true,
	StatusRejected:        true,
	StatusNoResponseFinal: true,
}

// IsTerminal はこの状態が終端状態かどうかを返す。
// 終端状態のスレッドに対してオーケストレーターはエージェント呼び出しを行わない。
func (s ConversationStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// MessageSender はメッセージの送信者を表す。
type MessageSender string

const (
	// SenderUs は自分側のメッセージ。
	SenderUs MessageSender = "us"
	// SenderSeller は出品者側のメッセージ。
	SenderSeller MessageSender = "seller"
)

// Message はスレッド内の1メッセージを表す。
// メッセージ履歴は追記専用であり、過去のエントリを書き換えてはならない。
type Message struct {
	Timestamp time.Time
	From      MessageSender
	Body      string
}

// Conversation は出品者との1チャットスレッドを表す。
type Conversation struct {
	ID              string
	ConversationURL string
	// MessageID はスレッドURLから抽出した安定識別子。同一MessageIDは同一スレッド。
	MessageID      string
	SellerName     string
	ProductName    string
	Status         ConversationStatus
	LastMessage    string
	LastUpdated    time.Time
	MessageHistory []Message
	// OfferAmount は初回オファー額（ドル）。0は未設定を表す。
	// 一度確定した値は検証済みソース以外から上書きしてはならない。
	// 特に出品者のカウンターオファーから逆算して設定することは禁止。
	OfferAmount int
	// CounterOffer は出品者が最後に提示したカウンター価格。ラウンドごとに上書きされうる。
	CounterOffer int
	// FinalPrice は合意した最終価格。
	FinalPrice int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AppendOurMessage は自分側のメッセージを履歴に追記し、last_messageを更新する。
func (c *Conversation) AppendOurMessage(body string, now time.Time) {
	c.MessageHistory = append(c.MessageHistory, Message{Timestamp: now, From: SenderUs, Body: body})
	c.LastMessage = body
	c.LastUpdated = now
}

// AppendSellerMessage は出品者側のメッセージを履歴に追記し、last_messageを更新する。
func (c *Conversation) AppendSellerMessage(body string, now time.Time) {
	c.MessageHistory = append(c.MessageHistory, Message{Timestamp: now, From: SenderSeller, Body: body})
	c.LastMessage = body
	c.LastUpdated = now
}

// LastSellerMessage は履歴中の最新の出品者メッセージを返す。存在しない場合は空文字。
func (c *Conversation) LastSellerMessage() string {
	for i := len(c.MessageHistory) - 1; i >= 0; i-- {
		if c.MessageHistory[i].From == SenderSeller && c.MessageHistory[i].Body != "" {
			return c.MessageHistory[i].Body
		}
	}
	return ""
}

// LastOurMessage は履歴中の最新の自分側メッセージを返す。存在しない場合は空文字。
func (c *Conversation) LastOurMessage() string {
	for i := len(c.MessageHistory) - 1; i >= 0; i-- {
		if c.MessageHistory[i].From == SenderUs && c.MessageHistory[i].Body != "" {
			return c.MessageHistory[i].Body
		}
	}
	return ""
}

// ThreadID はこのスレッドの正規化済み識別子を返す。
// 保存済みMessageIDを優先するが、過去の不正な書き込みに備えて
// MessageID自体が数字列でない場合はConversationURLからの再抽出を試みる。
func (c *Conversation) ThreadID() string {
	if c.MessageID != "" && isDigits(c.MessageID) {
		return c.MessageID
	}
	if id := ExtractThreadID(c.MessageID); id != "" {
		return id
	}
	return ExtractThreadID(c.ConversationURL)
}

var (
	threadIDNumericPattern = regexp.MustCompile(`/messages/t/(\d+)`)
	threadIDLoosePattern   = regexp.MustCompile(`/messages/t/([A-Za-z0-9]+)`)
	trailingGarbagePattern = regexp.MustCompile(`(\\n|\n).*$`)
)

// ExtractThreadID はスレッドURLからメッセージスレッドIDを抽出する。
// エージェントのレポートに混入する改行やマーカー文字列を除去した上で、
// 数字のみのIDを優先し、見つからない場合は英数字IDにフォールバックする。
// 抽出できない場合は空文字を返す。
func ExtractThreadID(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	clean := strings.TrimSpace(rawURL)
	clean = trailingGarbagePattern.ReplaceAllString(clean, "")
	if i := strings.Index(clean, "CONVERSATION_URL_END"); i >= 0 {
		clean = clean[:i]
	}
	if i := strings.Index(clean, "CONVERSATION_URL_START"); i >= 0 {
		clean = clean[:i]
	}
	clean = strings.TrimSpace(clean)

	if m := threadIDNumericPattern.FindStringSubmatch(clean); m != nil {
		return m[1]
	}
	if m := threadIDLoosePattern.FindStringSubmatch(clean); m != nil {
		return m[1]
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Summary は保存時に再計算される会話セットの統計情報。
type Summary struct {
	Total       int
	Active      int
	Closed      int
	DealsClosed int
	LastUpdated time.Time
}

// ConversationSet は永続化対象の全会話と統計のまとまり。
type ConversationSet struct {
	Conversations []*Conversation
	Summary       Summary
}

// Recount は会話リストから統計カウンターを再計算する。
func (s *ConversationSet) Recount(now time.Time) {
	var active, closed, deals int
	for _, c := range s.Conversations {
		if c.Status.IsTerminal() {
			closed++
		} else {
			active++
		}
		if c.Status == StatusDealClosed {
			deals++
		}
	}
	s.Summary = Summary{
		Total:       len(s.Conversations),
		Active:      active,
		Closed:      closed,
		DealsClosed: deals,
		LastUpdated: now,
	}
}
