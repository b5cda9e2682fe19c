package model

import "testing"

func TestPriceEntry_PriceFor(t *testing.T) {
	entry := &PriceEntry{
		Model:  "iPhone 13 128GB unlocked",
		GradeA: 320,
		GradeB: 280,
		GradeC: 220,
		GradeD: 160,
		DOA:    80,
	}

	tests := []struct {
		grade Grade
		want  int
	}{
		{GradeA, 320},
		{GradeB, 280},
		{GradeC, 220},
		{GradeD, 160},
		{GradeDOA, 80},
	}

	for _, tt := range tests {
		t.Run(string(tt.grade), func(t *testing.T) {
			if got := entry.PriceFor(tt.grade); got != tt.want {
				t.Errorf("PriceFor(%q) = %d, want %d", tt.grade, got, tt.want)
			}
		})
	}
}

// 未設定グレードはGradeBにフォールバックする。
func TestPriceEntry_PriceFor_FallbackToGradeB(t *testing.T) {
	entry := &PriceEntry{Model: "iPhone 12 64GB", GradeB: 200}

	if got := entry.PriceFor(GradeC); got != 200 {
		t.Errorf("PriceFor(grade_c) = %d, want 200", got)
	}
	if got := entry.PriceFor(GradeDOA); got != 200 {
		t.Errorf("PriceFor(doa) = %d, want 200", got)
	}
}
