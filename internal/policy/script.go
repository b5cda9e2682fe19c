// Package policy は交渉の意思決定ロジックを提供する。
//
// 返信メッセージの文面は外部のMarkdownドキュメント（交渉スクリプト）から
// 読み込む。スクリプトはシナリオごとの定型文とルール（カウンター上限）を
// 定義し、運用者がコードを変更せずに文面を調整できる。
// スクリプトが欠けていても意思決定が止まらないよう、全シナリオに
// ハードコードされたフォールバック文面を持つ。
package policy

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// 交渉スクリプトのシナリオキー。
const (
	ResponseAccept         = "accept"
	ResponseDecline        = "decline"
	ResponseCounter        = "counter"
	ResponseDeclineCounter = "decline_counter"

	ScenarioAskLocation         = "ask_location"
	ScenarioAskCondition        = "ask_condition"
	ScenarioAskPayment          = "ask_payment"
	ScenarioAskTiming           = "ask_timing"
	ScenarioOtherBuyers         = "other_buyers"
	ScenarioItemSold            = "item_sold"
	ScenarioAskAboutUs          = "ask_about_us"
	ScenarioLocationNegotiation = "location_negotiation"
)

// DefaultMaxCounterIncrement はスクリプトからルールを読み取れない場合の
// カウンター上限増分（ドル）。
const DefaultMaxCounterIncrement = 20

// fallbackResponses はスクリプトに文面がない場合のフォールバック。
// 意思決定が文面なしで終わることは許されないため、必ず値が引ける。
var fallbackResponses = map[string]string{
	ResponseAccept:         "Great! Let's meet up. Where and when works for you?",
	ResponseDecline:        "How much were you looking to get for it?",
	ResponseCounter:        "Hmm ${theirOffer} would be tough for me. I could do ${ourCounter} though",
	ResponseDeclineCounter: "All good, thanks for letting me know. If it falls through my offer will still stand.",
}

// fallbackScenarios は質問カテゴリ別フォールバック文面。
var fallbackScenarios = map[string]string{
	ScenarioAskLocation:         "I'm located nearby and can come to you. Where works best?",
	ScenarioAskCondition:        "As long as it powers on and matches the listing I'm good with it.",
	ScenarioAskPayment:          "I'll pay cash when we meet.",
	ScenarioAskTiming:           "I'm pretty flexible. What time works for you?",
	ScenarioOtherBuyers:         "Thanks for letting me know. If it falls through my offer will still stand.",
	ScenarioItemSold:            "Thanks for letting me know. Good luck!",
	ScenarioAskAboutUs:          "I buy used phones locally and pay cash. Happy to answer anything else.",
	ScenarioLocationNegotiation: "Sure, somewhere public works for me. Where did you have in mind?",
}

// fallbackGenericQuestion は既知カテゴリに該当しない質問への汎用返信。
const fallbackGenericQuestion = "Sure, what would you like to know?"

// Script は交渉スクリプトドキュメントの解析結果。
type Script struct {
	// Responses はオファー応答シナリオの文面。キーはResponse*定数。
	Responses map[string]string
	// Scenarios は質問カテゴリ別の文面。キーはScenario*定数。
	Scenarios map[string]string
	// Location は標準の受け渡し場所。
	Location string
	// MaxCounterIncrement はカウンター受諾上限の増分（ドル）。
	MaxCounterIncrement int
}

// scriptSectionPatterns はMarkdownの見出しと文面を対応付ける。
// 文面は見出し直後の **Response**: "..." 形式から抽出する。
var scriptSectionPatterns = []struct {
	kind    string // "response" or "scenario"
	key     string
	pattern *regexp.Regexp
}{
	{"response", ResponseAccept, sectionPattern(`If Seller Accepts Our Initial Offer`)},
	{"response", ResponseDecline, sectionPattern(`If Seller Declines Initial Offer \(No Counter-Offer\)`)},
	{"response", ResponseCounter, sectionPattern(`If Seller Makes Counter-Offer`)},
	{"response", ResponseDeclineCounter, sectionPattern(`If Seller Declines Our Counter-Offer`)},
	{"scenario", ScenarioAskLocation, sectionPattern(`If Seller Asks About Location/Where We're Located`)},
	{"scenario", ScenarioAskCondition, sectionPattern(`If Seller Asks Questions About Phone Condition`)},
	{"scenario", ScenarioAskPayment, sectionPattern(`If Seller Asks About Payment Method`)},
	{"scenario", ScenarioAskTiming, sectionPattern(`If Seller Asks About Timing/When to Meet`)},
	{"scenario", ScenarioOtherBuyers, sectionPattern(`If Seller Mentions Other Interested Buyers`)},
	{"scenario", ScenarioItemSold, sectionPattern(`If Seller Says Item is Sold`)},
	{"scenario", ScenarioAskAboutUs, sectionPattern(`If Seller Asks for More Details About Us`)},
	{"scenario", ScenarioLocationNegotiation, sectionPattern(`If Seller Wants to Negotiate Meeting Location`)},
}

func sectionPattern(heading string) *regexp.Regexp {
	return regexp.MustCompile(`### ` + heading + `\s*\*\*Response\*\*:\s*"([^"]+)"`)
}

var (
	locationPattern   = regexp.MustCompile(`(?m)\*\*Standard Location\*\*:\s*(.+)$`)
	maxCounterPattern = regexp.MustCompile(`(?m)Maximum counter-offer:\s*(.+)$`)
	incrementPattern  = regexp.MustCompile(`\$?(\d+)`)
)

// LoadScript は交渉スクリプトをファイルから読み込む。
// defaultIncrementはスクリプトがルール行を持たない場合のカウンター上限増分で、
// 0以下ならDefaultMaxCounterIncrementを使う。
// ファイルが読めない場合はフォールバックのみのスクリプトを返す。
// この関数がエラーを返すことはなく、第2戻り値は読み込みの警告を表す。
func LoadScript(path string, defaultIncrement int) (*Script, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return defaultScript(defaultIncrement), fmt.Errorf("交渉スクリプトの読み込みに失敗したためフォールバックを使用します: %w", err)
	}
	return ParseScript(string(content), defaultIncrement), nil
}

// ParseScript は交渉スクリプト本文を解析する。
// 見つからなかったシナリオはマップに含まれず、取得時にフォールバックされる。
// スクリプトのルール行はdefaultIncrementより優先される。
func ParseScript(content string, defaultIncrement int) *Script {
	if defaultIncrement <= 0 {
		defaultIncrement = DefaultMaxCounterIncrement
	}
	s := &Script{
		Responses:           map[string]string{},
		Scenarios:           map[string]string{},
		MaxCounterIncrement: defaultIncrement,
	}

	for _, sec := range scriptSectionPatterns {
		if m := sec.pattern.FindStringSubmatch(content); m != nil {
			if sec.kind == "response" {
				s.Responses[sec.key] = m[1]
			} else {
				s.Scenarios[sec.key] = m[1]
			}
		}
	}

	if m := locationPattern.FindStringSubmatch(content); m != nil {
		s.Location = strings.TrimSpace(m[1])
	}

	// ルール行は "Initial offer + $20" 形式。増分の数値だけを取り出す。
	if m := maxCounterPattern.FindStringSubmatch(content); m != nil {
		rule := strings.TrimSpace(m[1])
		if strings.Contains(rule, "+") {
			if im := incrementPattern.FindStringSubmatch(rule); im != nil {
				if v, err := strconv.Atoi(im[1]); err == nil && v > 0 {
					s.MaxCounterIncrement = v
				}
			}
		}
	}

	return s
}

func defaultScript(defaultIncrement int) *Script {
	if defaultIncrement <= 0 {
		defaultIncrement = DefaultMaxCounterIncrement
	}
	return &Script{
		Responses:           map[string]string{},
		Scenarios:           map[string]string{},
		MaxCounterIncrement: defaultIncrement,
	}
}

// Response はシナリオキーに対応する文面を返す。未定義ならフォールバック。
func (s *Script) Response(key string) string {
	if v, ok := s.Responses[key]; ok && v != "" {
		return v
	}
	return fallbackResponses[key]
}

// Scenario は質問カテゴリキーに対応する文面を返す。
// 未定義カテゴリは汎用の聞き返し文面にフォールバックする。
func (s *Script) Scenario(key string) string {
	if v, ok := s.Scenarios[key]; ok && v != "" {
		return v
	}
	if v, ok := fallbackScenarios[key]; ok {
		return v
	}
	return fallbackGenericQuestion
}

// RenderCounter はカウンター文面テンプレートのプレースホルダーを置換する。
func (s *Script) RenderCounter(theirOffer, ourCounter int) string {
	msg := s.Response(ResponseCounter)
	msg = strings.ReplaceAll(msg, "${theirOffer}", strconv.Itoa(theirOffer))
	msg = strings.ReplaceAll(msg, "{theirOffer}", strconv.Itoa(theirOffer))
	msg = strings.ReplaceAll(msg, "${ourCounter}", strconv.Itoa(ourCounter))
	msg = strings.ReplaceAll(msg, "{ourCounter}", strconv.Itoa(ourCounter))
	return msg
}
