package security

import (
	"testing"
	"time"
)

func TestSSRFGuard_ValidateURL(t *testing.T) {
	g := NewSSRFGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"正常なHTTPS URL", "https://example.com/pricing.json", false},
		{"正常なHTTP URL", "http://example.com/pricing.json", false},
		{"ftpスキーム", "ftp://example.com/file", true},
		{"fileスキーム", "file:///etc/passwd", true},
		{"localhost", "http://localhost:8080/", true},
		{"ループバックIP", "http://127.0.0.1/", true},
		{"プライベートIP 10系", "http://10.0.0.5/", true},
		{"プライベートIP 192.168系", "http://192.168.1.1/", true},
		{"プライベートIP 172.16系", "http://172.16.0.1/", true},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data/", true},
		{"IPv6ループバック", "http://[::1]/", true},
		{"ホストなし", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestSSRFGuard_NewSafeClient(t *testing.T) {
	g := NewSSRFGuard()

	client := g.NewSafeClient(5 * time.Second)
	if client == nil {
		t.Fatal("クライアントがnil")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("client.Timeout = %v", client.Timeout)
	}
	if client.Transport == nil {
		t.Error("Transportが設定されていない")
	}
}
