package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"sealed-auction/internal/domain"
)

// Store is the MySQL-backed AuctionStore. Per-auction atomicity comes
// from row locks: UpsertBid takes SELECT ... FOR UPDATE on the auction
// row, Finalize is a single conditional UPDATE. The DSN must carry
// parseTime=true.
type Store struct {
	db          *sql.DB
	minDuration time.Duration
}

func NewStore(db *sql.DB, minDuration time.Duration) *Store {
	return &Store{db: db, minDuration: minDuration}
}

// EnsureSchema creates the auctions and bids tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS auctions (
            id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
            owner VARCHAR(255) NOT NULL,
            title TEXT NOT NULL,
            description TEXT NOT NULL,
            reserve_price BIGINT NOT NULL,
            start_time DATETIME(6) NOT NULL,
            end_time DATETIME(6) NOT NULL,
            state TINYINT NOT NULL,
            winner VARCHAR(255) NULL,
            price BIGINT NULL,
            PRIMARY KEY (id)
        )`,
		`CREATE TABLE IF NOT EXISTS bids (
            auction_id BIGINT UNSIGNED NOT NULL,
            bidder VARCHAR(255) NOT NULL,
            amount BIGINT NOT NULL,
            placed_at DATETIME(6) NOT NULL,
            PRIMARY KEY (auction_id, bidder)
        )`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storageErr(err)
		}
	}
	return nil
}

func (s *Store) Allocate(ctx context.Context, owner, title, description string, duration time.Duration, reservePrice int64, now time.Time) (*domain.Auction, error) {
	if duration < s.minDuration || reservePrice <= 0 {
		return nil, domain.ErrInvalidParameters
	}

	query := `
        INSERT INTO auctions (owner, title, description, reserve_price, start_time, end_time, state)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	endTime := now.Add(duration)
	res, err := s.db.ExecContext(ctx, query,
		owner, title, description, reservePrice, now, endTime, int(domain.StateActive))
	if err != nil {
		return nil, storageErr(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr(err)
	}

	return &domain.Auction{
		ID:           uint64(id),
		Owner:        owner,
		Title:        title,
		Description:  description,
		ReservePrice: reservePrice,
		StartTime:    now,
		EndTime:      endTime,
		State:        domain.StateActive,
		Bids:         make(map[string]domain.Bid),
	}, nil
}

func (s *Store) Get(ctx context.Context, id uint64) (*domain.Auction, error) {
	query := `
        SELECT id, owner, title, description, reserve_price, start_time, end_time, state, winner, price
        FROM auctions WHERE id = ?
    `
	auction, err := scanAuction(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT bidder, amount, placed_at FROM bids WHERE auction_id = ?`, id)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var bid domain.Bid
		if err := rows.Scan(&bid.Bidder, &bid.Amount, &bid.PlacedAt); err != nil {
			return nil, storageErr(err)
		}
		auction.Bids[bid.Bidder] = bid
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}

	return auction, nil
}

// ListActive returns active records without their bid sets; callers
// that settle go through Get.
func (s *Store) ListActive(ctx context.Context) ([]*domain.Auction, error) {
	query := `
        SELECT id, owner, title, description, reserve_price, start_time, end_time, state, winner, price
        FROM auctions WHERE state = ?
    `
	rows, err := s.db.QueryContext(ctx, query, int(domain.StateActive))
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}

	return auctions, nil
}

func (s *Store) UpsertBid(ctx context.Context, id uint64, bidder string, amount int64, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback()

	var state int
	var endTime time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT state, end_time FROM auctions WHERE id = ? FOR UPDATE`, id).
		Scan(&state, &endTime)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAuctionNotFound
	}
	if err != nil {
		return storageErr(err)
	}

	if domain.AuctionState(state) != domain.StateActive || !now.Before(endTime) {
		return domain.ErrAuctionNotActive
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO bids (auction_id, bidder, amount, placed_at)
        VALUES (?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE amount = VALUES(amount), placed_at = VALUES(placed_at)
    `, id, bidder, amount, now)
	if err != nil {
		return storageErr(err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr(err)
	}
	return nil
}

func (s *Store) Finalize(ctx context.Context, id uint64, outcome domain.Outcome) error {
	winner := sql.NullString{String: outcome.Winner, Valid: outcome.HasWinner()}
	price := sql.NullInt64{Int64: outcome.Price, Valid: outcome.HasWinner()}

	res, err := s.db.ExecContext(ctx,
		`UPDATE auctions SET state = ?, winner = ?, price = ? WHERE id = ? AND state = ?`,
		int(domain.StateEnded), winner, price, id, int(domain.StateActive))
	if err != nil {
		return storageErr(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if affected == 1 {
		return nil
	}

	// No row flipped: either the record is gone or someone finalized first.
	var state int
	err = s.db.QueryRowContext(ctx, `SELECT state FROM auctions WHERE id = ?`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAuctionNotFound
	}
	if err != nil {
		return storageErr(err)
	}
	return domain.ErrAlreadyFinalized
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var auction domain.Auction
	var state int
	var winner sql.NullString
	var price sql.NullInt64

	err := row.Scan(&auction.ID, &auction.Owner, &auction.Title, &auction.Description,
		&auction.ReservePrice, &auction.StartTime, &auction.EndTime, &state, &winner, &price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}

	auction.State = domain.AuctionState(state)
	auction.Bids = make(map[string]domain.Bid)
	if auction.State == domain.StateEnded {
		auction.Outcome = &domain.Outcome{Winner: winner.String, Price: price.Int64}
	}
	return &auction, nil
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}
