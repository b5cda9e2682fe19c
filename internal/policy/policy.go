package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hitoshi/dealman/internal/model"
	"github.com/hitoshi/dealman/internal/parser"
)

// SideEffect は意思決定に伴って実行すべき副作用の種別。
// Decide自体は純粋関数であり、副作用の実行は呼び出し側の責務。
type SideEffect string

const (
	// SideEffectNotifyDeal は取引成立通知。deal_pendingへの遷移時に1回だけ発火する。
	SideEffectNotifyDeal SideEffect = "notify_deal"
	// SideEffectNotifyHelp は人間の介入要求通知。
	SideEffectNotifyHelp SideEffect = "notify_help"
)

// Decision はDecideの出力。
type Decision struct {
	// OutgoingMessage は出品者へ送るべき返信。空なら送信しない。
	OutgoingMessage string
	// NewStatus は遷移先の状態。空なら変更なし。
	NewStatus model.ConversationStatus
	// SideEffects は呼び出し側が実行すべき副作用のリスト。
	SideEffects []SideEffect
	// Heartbeat がtrueの場合、last_updatedの更新以外の変更を行ってはならない。
	Heartbeat bool
	// SellerEcho は履歴に記録する出品者側メッセージの要約。空なら記録しない。
	SellerEcho string
	// CounterOffer は出品者が提示したカウンター価格。0なら提示なし。
	CounterOffer int
	// FinalPrice は合意した最終価格。0なら未合意。
	FinalPrice int
}

// PriceResolver は商品名から初回オファーの基準価格を引く。
// 価格テーブルに該当モデルがない場合はok=falseを返す。
type PriceResolver interface {
	BasePriceFor(product string) (price int, ok bool)
}

// Engine は交渉ポリシーの実装。スクリプトと価格照会を保持する。
type Engine struct {
	script *Script
	prices PriceResolver
}

// NewEngine はEngineを生成する。pricesはnilでもよく、その場合
// 基準価格の解決は会話フィールドと履歴スキャンのみで行われる。
func NewEngine(script *Script, prices PriceResolver) *Engine {
	return &Engine{script: script, prices: prices}
}

// historyOfferPattern は履歴中の初回オファーメッセージから金額を抽出する。
// "Hi I can do $280 cash for it" 形式の自分側メッセージにマッチする。
var historyOfferPattern = regexp.MustCompile(`(?i)(?:I can do|can do)\s*\$(\d+)`)

// Decide は会話と解析結果から次のアクションを決定する純粋関数。
// 永続化もメッセージ送信も行わず、Decisionとして返すだけ。
func (e *Engine) Decide(conv *model.Conversation, result parser.Result) Decision {
	switch result.Kind {
	case parser.KindNoResponse:
		// 返信なしはハートビート。状態も履歴も変更しない。
		return Decision{Heartbeat: true}

	case parser.KindAccepted:
		return Decision{
			OutgoingMessage: e.script.Response(ResponseAccept),
			NewStatus:       model.StatusDealPending,
			SideEffects:     []SideEffect{SideEffectNotifyDeal},
			SellerEcho:      "I'll take your offer",
			FinalPrice:      conv.OfferAmount,
		}

	case parser.KindCounterOffer:
		return e.decideCounter(conv, result.Amount)

	case parser.KindDeclined:
		return e.decideDeclined(conv)

	case parser.KindQuestion:
		return e.decideQuestion(result.Category)

	case parser.KindNeedsHelp:
		return Decision{
			NewStatus:   model.StatusNeedsHelp,
			SideEffects: []SideEffect{SideEffectNotifyHelp},
		}

	default:
		// 分類不能。newのままの会話だけは初回接触済みとして先へ進める。
		if conv.Status == model.StatusNew {
			return Decision{NewStatus: model.StatusAwaitingResponse}
		}
		return Decision{}
	}
}

// decideCounter はカウンターオファーへの応答を決定する。
func (e *Engine) decideCounter(conv *model.Conversation, counterAmount int) Decision {
	initialOffer, ok := e.resolveInitialOffer(conv)
	if !ok {
		// 基準となる自分側のオファー額が検証できない場合は推測せず中断する。
		return Decision{
			NewStatus:    model.StatusNeedsHelp,
			SideEffects:  []SideEffect{SideEffectNotifyHelp},
			CounterOffer: counterAmount,
		}
	}

	// 基準額がカウンター以上になることは正常な交渉ではありえない。
	// 出品者の希望価格を自分側のオファーと誤抽出した兆候なので中断する。
	if initialOffer >= counterAmount {
		return Decision{
			NewStatus:    model.StatusNeedsHelp,
			SideEffects:  []SideEffect{SideEffectNotifyHelp},
			CounterOffer: counterAmount,
		}
	}

	maxAcceptable := initialOffer + e.script.MaxCounterIncrement
	if counterAmount <= maxAcceptable {
		return Decision{
			OutgoingMessage: fmt.Sprintf("I can do $%d. When and where can we meet?", counterAmount),
			NewStatus:       model.StatusDealPending,
			SideEffects:     []SideEffect{SideEffectNotifyDeal},
			CounterOffer:    counterAmount,
			FinalPrice:      counterAmount,
		}
	}

	ourCounter := initialOffer + e.script.MaxCounterIncrement
	return Decision{
		OutgoingMessage: e.script.RenderCounter(counterAmount, ourCounter),
		NewStatus:       model.StatusNegotiating,
		CounterOffer:    counterAmount,
	}
}

// decideDeclined は価格提示なしの拒否への応答を決定する。
// 交渉中の拒否は最終回答とみなして打ち切り、それ以外は希望額を聞き返す。
func (e *Engine) decideDeclined(conv *model.Conversation) Decision {
	if conv.Status == model.StatusNegotiating {
		return Decision{
			OutgoingMessage: e.script.Response(ResponseDeclineCounter),
			NewStatus:       model.StatusRejected,
		}
	}
	return Decision{
		OutgoingMessage: e.script.Response(ResponseDecline),
		NewStatus:       model.StatusNegotiating,
	}
}

// decideQuestion は質問カテゴリへの応答を決定する。
// sold / other_buyers は会話の終了を意味するため終端状態へ遷移させる。
func (e *Engine) decideQuestion(category parser.QuestionCategory) Decision {
	switch category {
	case parser.QuestionSold:
		return Decision{
			OutgoingMessage: e.script.Scenario(ScenarioItemSold),
			NewStatus:       model.StatusItemSold,
		}
	case parser.QuestionOtherBuyers:
		return Decision{
			OutgoingMessage: e.script.Scenario(ScenarioOtherBuyers),
			NewStatus:       model.StatusClosed,
		}
	}

	var msg string
	switch category {
	case parser.QuestionLocation:
		msg = e.script.Scenario(ScenarioAskLocation)
	case parser.QuestionCondition:
		msg = e.script.Scenario(ScenarioAskCondition)
	case parser.QuestionPayment:
		msg = e.script.Scenario(ScenarioAskPayment)
	case parser.QuestionTiming:
		msg = e.script.Scenario(ScenarioAskTiming)
	case parser.QuestionAboutUs:
		msg = e.script.Scenario(ScenarioAskAboutUs)
	case parser.QuestionMeetingPlace:
		msg = e.script.Scenario(ScenarioLocationNegotiation)
	default:
		msg = fallbackGenericQuestion
	}
	return Decision{
		OutgoingMessage: msg,
		NewStatus:       model.StatusAnsweringQuestions,
	}
}

// resolveInitialOffer は自分側の初回オファー額を解決する。
// 優先順: 会話のOfferAmount、価格テーブル、履歴中の初回オファーメッセージ。
// いずれも得られない場合はok=false。絶対に推測で埋めない。
func (e *Engine) resolveInitialOffer(conv *model.Conversation) (int, bool) {
	if conv.OfferAmount > 0 {
		return conv.OfferAmount, true
	}

	if e.prices != nil && conv.ProductName != "" {
		if price, ok := e.prices.BasePriceFor(conv.ProductName); ok && price > 0 {
			return price, true
		}
	}

	for _, msg := range conv.MessageHistory {
		if msg.From != model.SenderUs {
			continue
		}
		if m := historyOfferPattern.FindStringSubmatch(msg.Body); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
				return v, true
			}
		}
	}

	return 0, false
}

// closingPhrases は交渉を打ち切った際の定型文の断片。
// 過去の実行で状態遷移が保存されないままメッセージだけ送信された会話を
// 検出して修復するために使う。
var closingPhrases = []string{
	"thanks for letting me know",
	"if it falls through",
	"let me know if anything changes",
	"my offer will still stand",
}

// MatchesClosingPhrase は最後の送信メッセージが打ち切り定型文かどうかを返す。
func MatchesClosingPhrase(lastMessage string) bool {
	lower := strings.ToLower(lastMessage)
	for _, phrase := range closingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
