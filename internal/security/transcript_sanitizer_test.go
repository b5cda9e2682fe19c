package security

import "testing"

func TestTranscriptSanitizer_RemovesTags(t *testing.T) {
	s := NewTranscriptSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキスト", "John Smith", "John Smith"},
		{"scriptタグ除去", `<script>alert("xss")</script>iPhone 13`, "iPhone 13"},
		{"HTMLタグ除去", "<b>iPhone 12 Pro</b> 128GB", "iPhone 12 Pro 128GB"},
		{"前後空白の除去", "  hello  ", "hello"},
		{"空文字", "", ""},
		{"imgのonerror除去", `<img src=x onerror=alert(1)>Jane`, "Jane"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// 同一入力への再適用で出力が変わらないことを検証
func TestTranscriptSanitizer_Idempotent(t *testing.T) {
	s := NewTranscriptSanitizer()

	input := `<div>seller <b>name</b></div>`
	once := s.Sanitize(input)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("サニタイズが冪等でない: %q -> %q", once, twice)
	}
}
