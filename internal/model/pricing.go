// Package model はドメインモデルを定義する。
package model

import "time"

// Grade は端末のコンディショングレードを表す。
type Grade string

const (
	// GradeA は新品同様のコンディション。
	GradeA Grade = "grade_a"
	// GradeB は通常の中古。割れ・破損なし。デフォルトのグレード。
	GradeB Grade = "grade_b"
	// GradeC は前面ガラス割れだがLCDは正常。
	GradeC Grade = "grade_c"
	// GradeD はLCD不良（ライン・インクスポット）。
	GradeD Grade = "grade_d"
	// GradeDOA は起動しない端末。
	GradeDOA Grade = "doa"
)

// PriceEntry は1モデル分の買取基準価格を表す。価格はドル、0は未設定。
type PriceEntry struct {
	Model     string
	Swap      int
	GradeA    int
	GradeB    int
	GradeC    int
	GradeD    int
	DOA       int
	UpdatedAt time.Time
}

// PriceFor は指定グレードの価格を返す。未設定の場合はGradeBにフォールバックする。
func (e *PriceEntry) PriceFor(g Grade) int {
	var p int
	switch g {
	case GradeA:
		p = e.GradeA
	case GradeB:
		p = e.GradeB
	case GradeC:
		p = e.GradeC
	case GradeD:
		p = e.GradeD
	case GradeDOA:
		p = e.DOA
	}
	if p == 0 {
		p = e.GradeB
	}
	return p
}

// PriceQuote は出品に対する価格照会の結果を表す。
type PriceQuote struct {
	Model      string
	Grade      Grade
	OfferPrice int
	IsUnlocked bool
}
