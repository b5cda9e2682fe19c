// Package parser はブラウジングエージェントの自由テキストレポートから
// 構造化されたシグナルを抽出する。
//
// エージェントの出力は非決定的なLLMテキストであるため、解析は
// 優先順位付きの固定ルールテーブルで行う。先にマッチしたルールが勝つ。
// 文字列containsの散在ではなくテーブルとして持つことで、優先順位が
// テストで検証可能になる。
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hitoshi/dealman/internal/model"
	"github.com/hitoshi/dealman/internal/security"
)

// ResultKind はレポート分類の種別を表す。
type ResultKind string

const (
	// KindNoResponse は出品者からの新着返信がないことを表す。
	// この結果に対して状態機械はlast_updatedの更新以外の変更を行わない。
	KindNoResponse ResultKind = "no_response"
	// KindAccepted は出品者がこちらのオファーを受諾したことを表す。
	KindAccepted ResultKind = "accepted"
	// KindCounterOffer は出品者がカウンター価格を提示したことを表す。
	KindCounterOffer ResultKind = "counter_offer"
	// KindDeclined は出品者が価格提示なしで断ったことを表す。
	KindDeclined ResultKind = "declined"
	// KindQuestion は出品者からの質問を表す。
	KindQuestion ResultKind = "question"
	// KindNeedsHelp はエージェント自身が人間の介入を要求したことを表す。
	KindNeedsHelp ResultKind = "needs_help"
	// KindUnrecognized はどのルールにもマッチしなかったことを表す。
	KindUnrecognized ResultKind = "unrecognized"
)

// QuestionCategory は出品者からの質問の分類を表す。
type QuestionCategory string

const (
	QuestionLocation     QuestionCategory = "location"
	QuestionCondition    QuestionCategory = "condition"
	QuestionPayment      QuestionCategory = "payment"
	QuestionTiming       QuestionCategory = "timing"
	QuestionOtherBuyers  QuestionCategory = "other_buyers"
	QuestionSold         QuestionCategory = "sold"
	QuestionAboutUs      QuestionCategory = "about_us"
	QuestionMeetingPlace QuestionCategory = "meeting_place"
	// QuestionGeneric は既知カテゴリに該当しない質問のフォールバック。
	QuestionGeneric QuestionCategory = "generic"
)

// knownCategories は認識可能な質問カテゴリの集合。
var knownCategories = map[QuestionCategory]bool{
	QuestionLocation:     true,
	QuestionCondition:    true,
	QuestionPayment:      true,
	QuestionTiming:       true,
	QuestionOtherBuyers:  true,
	QuestionSold:         true,
	QuestionAboutUs:      true,
	QuestionMeetingPlace: true,
}

// Result はレポート分類の結果を表すタグ付き値。
// KindがKindCounterOfferの場合のみAmountが有効、
// KindQuestionの場合のみCategoryが有効になる。
type Result struct {
	Kind     ResultKind
	Amount   int
	Category QuestionCategory
}

// AuxFields はレポートから抽出した補助フィールド。分類結果とは独立して抽出される。
// 値が空のフィールドは「レポートに含まれていなかった」ことを表す。
type AuxFields struct {
	SellerName      string
	ProductName     string
	OurInitialOffer int
	LastMessage     string
	LastMessageFrom string
}

var (
	noResponseTokens = []string{"no_response", "no response", "no new messages", "hasn't responded"}

	counterAmountPattern = regexp.MustCompile(`(?i)counter_offer:\s*\$?(\d+)`)
	questionPattern      = regexp.MustCompile(`(?i)seller_questions:\s*(\w+)`)

	sellerNamePattern   = regexp.MustCompile(`(?i)SELLER_NAME:\s*(.+)`)
	productNamePattern  = regexp.MustCompile(`(?i)PRODUCT_NAME:\s*(.+)`)
	initialOfferPattern = regexp.MustCompile(`(?i)OUR_INITIAL_OFFER:\s*\$?(\d+)`)
	lastMessagePattern  = regexp.MustCompile(`(?i)LAST_MESSAGE:\s*(.+)`)
	lastFromPattern     = regexp.MustCompile(`(?i)LAST_MESSAGE_FROM:\s*(\w+)`)

	// placeholderPattern はエージェントが指示文をそのまま復唱したケースを検出する。
	// 角括弧で囲まれたテキストはプロンプトのプレースホルダーの可能性が高い。
	placeholderPattern = regexp.MustCompile(`^\s*[\[<{]`)
)

// ResultParser はエージェントレポートの解析器。
// 抽出したテキストフィールドはサニタイザーを通してから返す。
type ResultParser struct {
	sanitizer security.TranscriptSanitizerService
	// offerMinSane / offerMaxSane はOUR_INITIAL_OFFERとして受理する金額の範囲。
	// エージェントが出品者の希望価格を自分側のオファーと誤読することがあるため、
	// 帯域外の金額は抽出失敗として扱う。
	offerMinSane int
	offerMaxSane int
}

// NewResultParser はResultParserを生成する。
// offerMinSane/offerMaxSaneは補助フィールドの金額抽出で受理する範囲（ドル）。
func NewResultParser(sanitizer security.TranscriptSanitizerService, offerMinSane, offerMaxSane int) *ResultParser {
	return &ResultParser{
		sanitizer:    sanitizer,
		offerMinSane: offerMinSane,
		offerMaxSane: offerMaxSane,
	}
}

// Parse はレポート全文を分類する。ルールは優先順位順に評価され、
// 最初にマッチしたものが採用される。大文字小文字は区別しない。
func (p *ResultParser) Parse(report string) Result {
	lower := strings.ToLower(report)

	// ルール1: 返信なし。counter_offer等のトークンが同時に含まれていても
	// 返信なしが優先される。
	for _, token := range noResponseTokens {
		if strings.Contains(lower, token) {
			return Result{Kind: KindNoResponse}
		}
	}

	// ルール2: 受諾
	if strings.Contains(lower, "seller_accepted") {
		return Result{Kind: KindAccepted}
	}

	// ルール3: カウンターオファー。金額が抽出できない場合は
	// 価格を明かさない曖昧な拒否として扱い、希望額を聞き返す側に回す。
	if strings.Contains(lower, "counter_offer") {
		if m := counterAmountPattern.FindStringSubmatch(report); m != nil {
			amount, err := strconv.Atoi(m[1])
			if err == nil && amount > 0 {
				return Result{Kind: KindCounterOffer, Amount: amount}
			}
		}
		return Result{Kind: KindDeclined}
	}

	// ルール4: 拒否（価格提示なし）
	if strings.Contains(lower, "seller_declined") {
		return Result{Kind: KindDeclined}
	}

	// ルール5: 質問。未知のカテゴリは汎用カテゴリにフォールバックする。
	if m := questionPattern.FindStringSubmatch(report); m != nil {
		category := QuestionCategory(strings.ToLower(m[1]))
		if !knownCategories[category] {
			category = QuestionGeneric
		}
		return Result{Kind: KindQuestion, Category: category}
	}

	// ルール6: 人間の介入要求
	if strings.Contains(lower, "needs_human_help") {
		return Result{Kind: KindNeedsHelp}
	}

	// ルール7: 分類不能
	return Result{Kind: KindUnrecognized}
}

// ExtractAux はレポートから補助フィールドを抽出する。
// 分類結果とは独立に、含まれているフィールドだけを返す。
// プレースホルダーの復唱と帯域外の金額は抽出失敗として空のまま返す。
func (p *ResultParser) ExtractAux(report string) AuxFields {
	aux := AuxFields{}

	if v := p.extractText(report, sellerNamePattern); v != "" {
		aux.SellerName = v
	}
	if v := p.extractText(report, productNamePattern); v != "" {
		aux.ProductName = v
	}
	if m := initialOfferPattern.FindStringSubmatch(report); m != nil {
		if amount, err := strconv.Atoi(m[1]); err == nil {
			if amount >= p.offerMinSane && amount <= p.offerMaxSane {
				aux.OurInitialOffer = amount
			}
		}
	}
	if v := p.extractText(report, lastMessagePattern); v != "" {
		aux.LastMessage = v
	}
	if m := lastFromPattern.FindStringSubmatch(report); m != nil {
		from := strings.ToLower(strings.TrimSpace(m[1]))
		if from == string(model.SenderUs) || from == string(model.SenderSeller) {
			aux.LastMessageFrom = from
		}
	}

	return aux
}

// extractText は正規表現で1行分のテキストを抽出し、サニタイズして返す。
// プレースホルダーの復唱は拒否する。判定はサニタイズ後に行う。
// HTMLタグで始まる実値を復唱と誤認しないためで、タグを剥がした後に
// 角括弧で始まる値だけがプレースホルダーになる。
func (p *ResultParser) extractText(report string, pattern *regexp.Regexp) string {
	m := pattern.FindStringSubmatch(report)
	if m == nil {
		return ""
	}
	raw := strings.TrimSpace(m[1])
	if raw == "" {
		return ""
	}
	clean := strings.TrimSpace(p.sanitizer.Sanitize(raw))
	if clean == "" || placeholderPattern.MatchString(clean) {
		return ""
	}
	return clean
}

// ApplyTo は抽出済みフィールドを会話に反映する。
// 既に値が入っているフィールドは上書きしない。抽出ノイズで確定済みの値を
// 壊さないための規則であり、特にOfferAmountには厳密に適用される。
func (a AuxFields) ApplyTo(conv *model.Conversation) {
	if conv.SellerName == "" && a.SellerName != "" {
		conv.SellerName = a.SellerName
	}
	if conv.ProductName == "" && a.ProductName != "" {
		conv.ProductName = a.ProductName
	}
	if conv.OfferAmount == 0 && a.OurInitialOffer > 0 {
		conv.OfferAmount = a.OurInitialOffer
	}
	if conv.LastMessage == "" && a.LastMessage != "" {
		conv.LastMessage = a.LastMessage
	}
}
