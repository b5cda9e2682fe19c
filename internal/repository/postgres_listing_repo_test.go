package repository

import (
	"database/sql"
	"testing"
	"time"
)

// PostgresListingRepoはListingRepositoryインターフェースを満たすことを検証
func TestPostgresListingRepo_ImplementsInterface(t *testing.T) {
	var _ ListingRepository = (*PostgresListingRepo)(nil)
}

// PostgresPricingRepoはPricingRepositoryインターフェースを満たすことを検証
func TestPostgresPricingRepo_ImplementsInterface(t *testing.T) {
	var _ PricingRepository = (*PostgresPricingRepo)(nil)
}

func TestNullTime(t *testing.T) {
	if nullTime(nil).Valid {
		t.Error("nilの場合はValid=falseであるべき")
	}

	now := time.Now()
	nt := nullTime(&now)
	if !nt.Valid || !nt.Time.Equal(now) {
		t.Errorf("nullTime(&now) = %+v", nt)
	}
}

func TestNullBool(t *testing.T) {
	if nullBool(nil).Valid {
		t.Error("nilの場合はValid=falseであるべき")
	}

	v := false
	nb := nullBool(&v)
	if !nb.Valid || nb.Bool {
		t.Errorf("nullBool(&false) = %+v", nb)
	}
}

func TestNullString(t *testing.T) {
	if nullString("").Valid {
		t.Error("空文字の場合はValid=falseであるべき")
	}
	if v := nullString("x"); !v.Valid || v.String != "x" {
		t.Errorf("nullString(\"x\") = %+v", v)
	}
	if nullStringValue(sql.NullString{}) != "" {
		t.Error("無効なNullStringは空文字を返すべき")
	}
}
