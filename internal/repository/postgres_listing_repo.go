package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/dealman/internal/model"
)

// PostgresListingRepo はPostgreSQLを使用した出品リポジトリ。
type PostgresListingRepo struct {
	db *sql.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

const listingColumns = `item_id, display_id, url, title, seller_name, product,
	        messaged, messaged_at, relevant, unavailable, message_id, offer_price,
	        created_at, updated_at`

func scanListing(scanner interface{ Scan(...any) error }) (*model.Listing, error) {
	l := &model.Listing{}
	var title, sellerName, product, messageID sql.NullString
	var messagedAt sql.NullTime
	var relevant sql.NullBool

	err := scanner.Scan(
		&l.ItemID, &l.DisplayID, &l.URL, &title, &sellerName, &product,
		&l.Messaged, &messagedAt, &relevant, &l.Unavailable, &messageID, &l.OfferPrice,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Title = nullStringValue(title)
	l.SellerName = nullStringValue(sellerName)
	l.Product = nullStringValue(product)
	l.MessageID = nullStringValue(messageID)
	if messagedAt.Valid {
		t := messagedAt.Time
		l.MessagedAt = &t
	}
	if relevant.Valid {
		b := relevant.Bool
		l.Relevant = &b
	}
	return l, nil
}

// ListAll は全出品をdisplay_id順で取得する。
func (r *PostgresListingRepo) ListAll(ctx context.Context) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings ORDER BY display_id, item_id`)
	if err != nil {
		return nil, fmt.Errorf("出品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

// ListUnmessaged は未オファーかつ有効な出品を取得する。
func (r *PostgresListingRepo) ListUnmessaged(ctx context.Context, limit int) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings
		 WHERE messaged = FALSE
		   AND unavailable = FALSE
		   AND (relevant IS NULL OR relevant = TRUE)
		 ORDER BY created_at
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("未オファー出品の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

func collectListings(rows *sql.Rows) ([]*model.Listing, error) {
	var listings []*model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("出品行の読み取りに失敗しました: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// FindByItemID は指定IDの出品を取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByItemID(ctx context.Context, itemID int64) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE item_id = $1`, itemID)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}
	return l, nil
}

// SaveAll はマージ済み出品セット全体をアトミックに書き込む。
func (r *PostgresListingRepo) SaveAll(ctx context.Context, listings []*model.Listing) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	for _, l := range listings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO listings (item_id, display_id, url, title, seller_name, product,
			                       messaged, messaged_at, relevant, unavailable, message_id,
			                       offer_price, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 ON CONFLICT (item_id) DO UPDATE SET
			    display_id = EXCLUDED.display_id,
			    url = EXCLUDED.url,
			    title = EXCLUDED.title,
			    seller_name = EXCLUDED.seller_name,
			    product = EXCLUDED.product,
			    messaged = EXCLUDED.messaged,
			    messaged_at = EXCLUDED.messaged_at,
			    relevant = EXCLUDED.relevant,
			    unavailable = EXCLUDED.unavailable,
			    message_id = EXCLUDED.message_id,
			    offer_price = EXCLUDED.offer_price,
			    updated_at = EXCLUDED.updated_at`,
			l.ItemID, l.DisplayID, l.URL, nullString(l.Title), nullString(l.SellerName),
			nullString(l.Product), l.Messaged, nullTime(l.MessagedAt), nullBool(l.Relevant),
			l.Unavailable, nullString(l.MessageID), l.OfferPrice, l.CreatedAt, l.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("出品のUPSERTに失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("出品セットの保存コミットに失敗しました: %w", err)
	}
	return nil
}

// Update は出品のステータスフィールドを更新する。
func (r *PostgresListingRepo) Update(ctx context.Context, l *model.Listing) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET
		    title = $2, seller_name = $3, messaged = $4, messaged_at = $5,
		    relevant = $6, unavailable = $7, message_id = $8, offer_price = $9,
		    updated_at = $10
		 WHERE item_id = $1`,
		l.ItemID, nullString(l.Title), nullString(l.SellerName), l.Messaged,
		nullTime(l.MessagedAt), nullBool(l.Relevant), l.Unavailable,
		nullString(l.MessageID), l.OfferPrice, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("出品の更新に失敗しました: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
