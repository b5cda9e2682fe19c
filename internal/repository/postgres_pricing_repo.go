package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/dealman/internal/model"
)

// PostgresPricingRepo はPostgreSQLを使用した買取価格リポジトリ。
type PostgresPricingRepo struct {
	db *sql.DB
}

// NewPostgresPricingRepo はPostgresPricingRepoを生成する。
func NewPostgresPricingRepo(db *sql.DB) *PostgresPricingRepo {
	return &PostgresPricingRepo{db: db}
}

// ListAll は全モデルの価格エントリを取得する。
func (r *PostgresPricingRepo) ListAll(ctx context.Context) ([]*model.PriceEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT model, swap, grade_a, grade_b, grade_c, grade_d, doa, updated_at
		 FROM pricing ORDER BY model`)
	if err != nil {
		return nil, fmt.Errorf("価格テーブルの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []*model.PriceEntry
	for rows.Next() {
		e := &model.PriceEntry{}
		if err := rows.Scan(&e.Model, &e.Swap, &e.GradeA, &e.GradeB, &e.GradeC, &e.GradeD, &e.DOA, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("価格行の読み取りに失敗しました: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertAll は価格エントリをモデル名をキーに一括UPSERTする。
func (r *PostgresPricingRepo) UpsertAll(ctx context.Context, entries []*model.PriceEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pricing (model, swap, grade_a, grade_b, grade_c, grade_d, doa, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (model) DO UPDATE SET
			    swap = EXCLUDED.swap, grade_a = EXCLUDED.grade_a, grade_b = EXCLUDED.grade_b,
			    grade_c = EXCLUDED.grade_c, grade_d = EXCLUDED.grade_d, doa = EXCLUDED.doa,
			    updated_at = EXCLUDED.updated_at`,
			e.Model, e.Swap, e.GradeA, e.GradeB, e.GradeC, e.GradeD, e.DOA, e.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("価格エントリのUPSERTに失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("価格テーブルの保存コミットに失敗しました: %w", err)
	}
	return nil
}
