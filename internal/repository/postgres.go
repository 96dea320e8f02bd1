package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/shopmarcas/smallauctions/internal/auctionerrors"
	"github.com/shopmarcas/smallauctions/internal/dbx"
	model "github.com/shopmarcas/smallauctions/internal/models"
	"github.com/shopmarcas/smallauctions/internal/repository/migrations"
)

const uniqueViolation = "23505"

const auctionColumns = `id, title, description, seller_id, category_id, starting_price, current_price,
	currency, start_time, end_time, status, is_active, winner_id, created_at, updated_at`

const auctionColumnsA = `a.id, a.title, a.description, a.seller_id, a.category_id, a.starting_price, a.current_price,
	a.currency, a.start_time, a.end_time, a.status, a.is_active, a.winner_id, a.created_at, a.updated_at`

const paymentColumns = `id, auction_id, buyer_id, session_id, amount, currency, status, created_at, updated_at`

// errSessionRecorded aborts a payment transaction that lost a race on the session id
var errSessionRecorded = errors.New("session already recorded")

// PostgresRepo is a PostgreSQL implementation of Store. Bid acceptance and
// payment completion lock the auction row for the duration of the write.
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgresRepo creates a repository on top of an open connection pool
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// PoolConfig holds connection pool settings
type PoolConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenPostgres opens a pgx-backed pool and verifies the connection
func OpenPostgres(ctx context.Context, cfg PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (model.AuctionItem, error) {
	var (
		a        model.AuctionItem
		category sql.NullString
		winner   sql.NullString
		status   string
	)
	err := row.Scan(&a.AuctionID, &a.Title, &a.Description, &a.SellerID, &category,
		&a.StartingPrice, &a.CurrentPrice, &a.Currency, &a.StartTime, &a.EndTime,
		&status, &a.IsActive, &winner, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.AuctionItem{}, err
	}
	a.CategoryID = category.String
	a.WinnerID = winner.String
	a.Status = model.AuctionStatus(status)
	return a, nil
}

func scanAuctions(rows *sql.Rows) ([]model.AuctionItem, error) {
	defer rows.Close()

	auctions := make([]model.AuctionItem, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return auctions, nil
}

func scanPayment(row rowScanner) (model.Payment, error) {
	var (
		p      model.Payment
		status string
	)
	err := row.Scan(&p.PaymentID, &p.AuctionID, &p.BuyerID, &p.SessionID, &p.Amount,
		&p.Currency, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Payment{}, err
	}
	p.Status = model.PaymentStatus(status)
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateUser stores a user and its profile in one transaction
func (r *PostgresRepo) CreateUser(ctx context.Context, user model.User, profile model.Profile) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, username, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
			user.UserID, user.Username, user.PasswordHash, user.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("create user %s: %w", user.Username, auctionerrors.ErrUsernameTaken)
			}
			return fmt.Errorf("db error: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO profiles (user_id, display_name, country, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
			user.UserID, profile.DisplayName, profile.Country, profile.CreatedAt, profile.UpdatedAt)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepo) getUser(ctx context.Context, column, value string) (model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE `+column+` = $1`, value).
		Scan(&u.UserID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, fmt.Errorf("get user %s: %w", value, auctionerrors.ErrUserNotFound)
		}
		return model.User{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// GetUser returns a user by id
func (r *PostgresRepo) GetUser(ctx context.Context, userID string) (model.User, error) {
	return r.getUser(ctx, "id", userID)
}

// GetUserByUsername returns a user by login name
func (r *PostgresRepo) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getUser(ctx, "username", username)
}

// GetProfile returns the profile of a user
func (r *PostgresRepo) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	var p model.Profile
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, display_name, country, created_at, updated_at FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.DisplayName, &p.Country, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Profile{}, fmt.Errorf("get profile %s: %w", userID, auctionerrors.ErrUserNotFound)
		}
		return model.Profile{}, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// UpdateProfile replaces the editable fields of a profile
func (r *PostgresRepo) UpdateProfile(ctx context.Context, profile model.Profile) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET display_name = $1, country = $2, updated_at = $3 WHERE user_id = $4`,
		profile.DisplayName, profile.Country, profile.UpdatedAt, profile.UserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update profile %s: %w", profile.UserID, auctionerrors.ErrUserNotFound)
	}
	return nil
}

// CreateCategory stores a category; slugs are unique
func (r *PostgresRepo) CreateCategory(ctx context.Context, category model.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, slug) VALUES ($1, $2, $3)`,
		category.CategoryID, category.Name, category.Slug)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create category %s: %w", category.Slug, auctionerrors.ErrCategoryExists)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetCategory returns a category by id
func (r *PostgresRepo) GetCategory(ctx context.Context, categoryID string) (model.Category, error) {
	var c model.Category
	err := r.db.QueryRowContext(ctx, `SELECT id, name, slug FROM categories WHERE id = $1`, categoryID).
		Scan(&c.CategoryID, &c.Name, &c.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Category{}, fmt.Errorf("get category %s: %w", categoryID, auctionerrors.ErrCategoryNotFound)
		}
		return model.Category{}, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by name
func (r *PostgresRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	categories := make([]model.Category, 0)
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.CategoryID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return categories, nil
}

// CreateAuction stores a new listing
func (r *PostgresRepo) CreateAuction(ctx context.Context, a model.AuctionItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auction_items (`+auctionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.AuctionID, a.Title, a.Description, a.SellerID, nullable(a.CategoryID),
		a.StartingPrice, a.CurrentPrice, a.Currency, a.StartTime, a.EndTime,
		string(a.Status), a.IsActive, nullable(a.WinnerID), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func getAuction(ctx context.Context, db dbx.DBTX, auctionID string, lock bool) (model.AuctionItem, error) {
	query := `SELECT ` + auctionColumns + ` FROM auction_items WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	a, err := scanAuction(db.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AuctionItem{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
		}
		return model.AuctionItem{}, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// GetAuction returns a listing by id
func (r *PostgresRepo) GetAuction(ctx context.Context, auctionID string) (model.AuctionItem, error) {
	return getAuction(ctx, r.db, auctionID, false)
}

// ListOpenAuctions returns active listings whose end time is after now, newest first
func (r *PostgresRepo) ListOpenAuctions(ctx context.Context, now time.Time, categoryID string) ([]model.AuctionItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auctionColumns+` FROM auction_items
		 WHERE is_active AND end_time > $1 AND ($2 = '' OR category_id = $2)
		 ORDER BY created_at DESC`, now, categoryID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanAuctions(rows)
}

// EndExpiredAuctions moves open listings whose end time has passed to the
// ended state and records the latest bidder as winner
func (r *PostgresRepo) EndExpiredAuctions(ctx context.Context, now time.Time) ([]model.AuctionItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE auction_items a
		 SET status = 'ended',
		     winner_id = (SELECT b.bidder_id FROM bids b WHERE b.auction_id = a.id
		                  ORDER BY b.created_at DESC, b.amount DESC LIMIT 1),
		     updated_at = $1
		 WHERE a.status = 'open' AND a.end_time <= $1
		 RETURNING `+auctionColumnsA, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanAuctions(rows)
}

// RecordBid locks the auction row, checks the bid against the current price
// and appends it while the lock is held. created_at is raised to the
// auction's previous latest bid if the caller's clock lags behind it.
func (r *PostgresRepo) RecordBid(ctx context.Context, bid model.Bid) (model.AuctionItem, model.Bid, error) {
	var updated model.AuctionItem
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		auction, err := getAuction(ctx, tx, bid.AuctionID, true)
		if err != nil {
			return err
		}
		if !auction.IsActive {
			return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrAuctionClosed)
		}
		if !bid.Amount.GreaterThan(auction.CurrentPrice) {
			return fmt.Errorf("record bid for auction %s: %w - current price is %s",
				bid.AuctionID, auctionerrors.ErrBidTooLow, auction.CurrentPrice.StringFixed(2))
		}

		if err := tx.QueryRowContext(ctx,
			`INSERT INTO bids (id, auction_id, bidder_id, amount, created_at)
			 VALUES ($1, $2, $3, $4, GREATEST($5::timestamptz,
			   COALESCE((SELECT max(created_at) FROM bids WHERE auction_id = $2), $5::timestamptz)))
			 RETURNING created_at`,
			bid.BidID, bid.AuctionID, bid.BidderID, bid.Amount, bid.CreatedAt).Scan(&bid.CreatedAt); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE auction_items SET current_price = $1, updated_at = $2 WHERE id = $3`,
			bid.Amount, bid.CreatedAt, bid.AuctionID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		auction.CurrentPrice = bid.Amount
		auction.UpdatedAt = bid.CreatedAt
		updated = auction
		return nil
	})
	if err != nil {
		return model.AuctionItem{}, model.Bid{}, err
	}
	return updated, bid, nil
}

func scanBids(rows *sql.Rows) ([]model.Bid, error) {
	defer rows.Close()

	bids := make([]model.Bid, 0)
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.BidID, &b.AuctionID, &b.BidderID, &b.Amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return bids, nil
}

// GetBidsByAuction returns all bids for an auction, newest first
func (r *PostgresRepo) GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, auction_id, bidder_id, amount, created_at FROM bids
		 WHERE auction_id = $1 ORDER BY created_at DESC, amount DESC`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanBids(rows)
}

// GetLatestBid returns the most recently created bid for an auction
func (r *PostgresRepo) GetLatestBid(ctx context.Context, auctionID string) (model.Bid, error) {
	var b model.Bid
	err := r.db.QueryRowContext(ctx,
		`SELECT id, auction_id, bidder_id, amount, created_at FROM bids
		 WHERE auction_id = $1 ORDER BY created_at DESC, amount DESC LIMIT 1`, auctionID).
		Scan(&b.BidID, &b.AuctionID, &b.BidderID, &b.Amount, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Bid{}, fmt.Errorf("get latest bid for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
		}
		return model.Bid{}, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

// GetAuctionsByBidder returns the auctions a user has bid on, most recent activity first
func (r *PostgresRepo) GetAuctionsByBidder(ctx context.Context, userID string) ([]model.AuctionItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auctionColumnsA+` FROM auction_items a
		 JOIN (SELECT auction_id, MAX(created_at) AS last_bid FROM bids
		       WHERE bidder_id = $1 GROUP BY auction_id) b ON b.auction_id = a.id
		 ORDER BY b.last_bid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return scanAuctions(rows)
}

func getPaymentBySession(ctx context.Context, db dbx.DBTX, sessionID string) (model.Payment, error) {
	p, err := scanPayment(db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE session_id = $1`, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Payment{}, fmt.Errorf("get payment for session %s: %w", sessionID, auctionerrors.ErrPaymentNotFound)
		}
		return model.Payment{}, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// CompletePayment records a paid settlement and closes the auction. A session
// id that was already recorded returns the stored payment and false.
func (r *PostgresRepo) CompletePayment(ctx context.Context, payment model.Payment) (model.Payment, bool, error) {
	var (
		result  model.Payment
		created bool
	)
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		existing, err := getPaymentBySession(ctx, tx, payment.SessionID)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, auctionerrors.ErrPaymentNotFound) {
			return err
		}

		auction, err := getAuction(ctx, tx, payment.AuctionID, true)
		if err != nil {
			return err
		}
		if !auction.IsActive {
			return fmt.Errorf("complete payment for auction %s: %w", payment.AuctionID, auctionerrors.ErrAlreadyPaid)
		}

		payment.Amount = auction.CurrentPrice
		payment.Currency = auction.Currency
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO payments (`+paymentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			payment.PaymentID, payment.AuctionID, payment.BuyerID, payment.SessionID, payment.Amount,
			payment.Currency, string(payment.Status), payment.CreatedAt, payment.UpdatedAt); err != nil {
			if isUniqueViolation(err) {
				return errSessionRecorded
			}
			return fmt.Errorf("db error: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE auction_items SET is_active = FALSE, status = 'closed', updated_at = $1 WHERE id = $2`,
			payment.CreatedAt, payment.AuctionID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		result = payment
		created = true
		return nil
	})
	if errors.Is(err, errSessionRecorded) {
		existing, getErr := r.GetPaymentBySession(ctx, payment.SessionID)
		return existing, false, getErr
	}
	if err != nil {
		return model.Payment{}, false, err
	}
	return result, created, nil
}

// GetPaymentBySession returns the payment recorded for a checkout session
func (r *PostgresRepo) GetPaymentBySession(ctx context.Context, sessionID string) (model.Payment, error) {
	return getPaymentBySession(ctx, r.db, sessionID)
}

// HasPaidPayment reports whether an auction has a paid settlement
func (r *PostgresRepo) HasPaidPayment(ctx context.Context, auctionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE auction_id = $1 AND status = 'paid')`, auctionID).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
