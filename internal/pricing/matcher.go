// Package pricing は出品テキストから買取オファー価格を算出する機能を提供する。
// 価格テーブルとのモデル照合、コンディショングレード判定、
// キャリアロック判定、外部価格ドキュメントからのテーブル更新を含む。
package pricing

import (
	"regexp"
	"strings"

	"github.com/hitoshi/dealman/internal/model"
)

// グレード判定のキーワード。出品タイトルと説明文の連結テキストに対して
// 上から順に評価され、どれにも該当しなければGradeBになる。
var (
	doaKeywords    = []string{"dead", "won't turn on", "no power", "for parts"}
	gradeDKeywords = []string{"lines on screen", "lcd damage", "ink spots", "bad lcd"}
)

// lockKeywords はキャリアロックを示唆するキーワード。
// "unlocked" が含まれる場合はロックなしとして扱う。
var lockKeywords = []string{"locked", "verizon", "att", "t-mobile", "sprint"}

var (
	modelNumberPattern = regexp.MustCompile(`iphone\s*(\d+)`)
	storagePattern     = regexp.MustCompile(`(\d+)\s*gb`)
)

// variantKeywords はモデル照合で加点対象となるバリアント名。
var variantKeywords = []string{"pro", "max", "plus", "mini"}

// DetectGrade は出品テキストからコンディショングレードを判定する。
func DetectGrade(text string) model.Grade {
	lower := strings.ToLower(text)

	for _, kw := range doaKeywords {
		if strings.Contains(lower, kw) {
			return model.GradeDOA
		}
	}
	for _, kw := range gradeDKeywords {
		if strings.Contains(lower, kw) {
			return model.GradeD
		}
	}
	// "crack" はガラス割れを表すが、"not cracked" の否定と
	// LCD破損（上で判定済みのGradeD領域）は除外する。
	if strings.Contains(lower, "crack") && !strings.Contains(lower, "not crack") && !strings.Contains(lower, "lcd") {
		return model.GradeC
	}
	return model.GradeB
}

// DetectLocked は出品テキストからキャリアロックの有無を判定する。
func DetectLocked(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "unlocked") {
		return false
	}
	for _, kw := range lockKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// MatchModel は出品テキストに最も適合する価格エントリをスコアリングで選ぶ。
// モデル名が一致しないエントリは候補から除外し、ロック種別・
// ストレージ容量・バリアント名の一致で加点する。
// 候補がない場合はnilを返す。
func MatchModel(text string, entries []*model.PriceEntry) *model.PriceEntry {
	lower := strings.ToLower(text)
	isLocked := DetectLocked(lower)
	lockText := "unlocked"
	if isLocked {
		lockText = "carrier locked"
	}

	var best *model.PriceEntry
	bestScore := 0

	for _, entry := range entries {
		entryModel := strings.ToLower(entry.Model)

		// モデル照合が関門になる。ロック種別や容量だけの一致では
		// 無関係な製品に価格を付けてしまうため、ここを通らない
		// エントリは候補にしない。
		score := modelScore(lower, entryModel)
		if score == 0 {
			continue
		}

		if strings.Contains(entryModel, lockText) {
			score += 20
		}
		if m := storagePattern.FindStringSubmatch(lower); m != nil && strings.Contains(entryModel, m[1]) {
			score += 10
		}
		for _, variant := range variantKeywords {
			if strings.Contains(lower, variant) && strings.Contains(entryModel, variant) {
				score += 5
			}
		}

		if score > bestScore {
			bestScore = score
			best = entry
		}
	}

	return best
}

// lockTypeTokens はモデル名のうちロック種別を表す語。モデル照合では無視する。
var lockTypeTokens = map[string]bool{"unlocked": true, "carrier": true, "locked": true}

// modelScore はテキストとエントリのモデル名の一致度を返す。
// モデル番号が一致するか、エントリのモデル名トークンが全てテキストに
// 含まれる場合のみ正のスコアになる。モデル番号が食い違う場合は不一致。
func modelScore(text, entryModel string) int {
	textNum := modelNumberPattern.FindStringSubmatch(text)
	entryNum := modelNumberPattern.FindStringSubmatch(entryModel)
	if textNum != nil && entryNum != nil {
		if textNum[1] == entryNum[1] {
			return 15
		}
		return 0
	}

	matched := false
	for _, token := range strings.Fields(entryModel) {
		if lockTypeTokens[token] {
			continue
		}
		if !strings.Contains(text, token) {
			return 0
		}
		matched = true
	}
	if !matched {
		return 0
	}
	return 15
}

// Quote は出品タイトルと説明文から価格照会結果を組み立てる。
// 適合するモデルが見つからない場合はnilを返す。
func Quote(title, description string, entries []*model.PriceEntry) *model.PriceQuote {
	text := title + " " + description

	match := MatchModel(text, entries)
	if match == nil {
		return nil
	}

	grade := DetectGrade(text)
	return &model.PriceQuote{
		Model:      match.Model,
		Grade:      grade,
		OfferPrice: match.PriceFor(grade),
		IsUnlocked: !DetectLocked(text),
	}
}
