package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/iliyamo/rental-booking/internal/model"
)

// bookingsSchema creates the bookings table. Timestamps are stored with
// microsecond precision in UTC (the DSN built by database.Open sets
// loc=UTC and parseTime=true).
const bookingsSchema = `CREATE TABLE IF NOT EXISTS bookings (
    id          CHAR(36)      NOT NULL PRIMARY KEY,
    user_id     VARCHAR(191)  NOT NULL,
    item_id     VARCHAR(191)  NOT NULL,
    start_date  DATETIME(6)   NOT NULL,
    end_date    DATETIME(6)   NOT NULL,
    total_price DECIMAL(18,4) NOT NULL,
    status      VARCHAR(16)   NOT NULL,
    payment_id  VARCHAR(191)  NULL,
    created_at  DATETIME(6)   NOT NULL,
    updated_at  DATETIME(6)   NOT NULL,
    KEY idx_bookings_user (user_id),
    KEY idx_bookings_item_status (item_id, status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const bookingColumns = `id, user_id, item_id, start_date, end_date, total_price, status, payment_id, created_at, updated_at`

// MySQLBookingRepo is a durable BookingStore backed by the bookings table.
type MySQLBookingRepo struct {
    db *sql.DB
}

// NewMySQLBookingRepo returns a MySQLBookingRepo bound to the given database.
func NewMySQLBookingRepo(db *sql.DB) *MySQLBookingRepo { return &MySQLBookingRepo{db: db} }

// EnsureSchema creates the bookings table when it does not exist yet.
func (r *MySQLBookingRepo) EnsureSchema(ctx context.Context) error {
    _, err := r.db.ExecContext(ctx, bookingsSchema)
    return err
}

// Put upserts the booking row. created_at is never overwritten by an
// update so the column stays immutable even if a caller passes a
// different value.
func (r *MySQLBookingRepo) Put(ctx context.Context, b *model.Booking) error {
    if err := validateRecord(b); err != nil {
        return err
    }
    const q = `INSERT INTO bookings (` + bookingColumns + `)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE
                   user_id = VALUES(user_id),
                   item_id = VALUES(item_id),
                   start_date = VALUES(start_date),
                   end_date = VALUES(end_date),
                   total_price = VALUES(total_price),
                   status = VALUES(status),
                   payment_id = VALUES(payment_id),
                   updated_at = VALUES(updated_at)`
    var paymentID sql.NullString
    if b.PaymentID != nil {
        paymentID = sql.NullString{String: *b.PaymentID, Valid: true}
    }
    _, err := r.db.ExecContext(ctx, q,
        b.ID, b.UserID, b.ItemID,
        b.StartDate.UTC(), b.EndDate.UTC(),
        b.TotalPrice, string(b.Status), paymentID,
        b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
    )
    return err
}

// Get loads a single booking by ID.
func (r *MySQLBookingRepo) Get(ctx context.Context, id string) (*model.Booking, error) {
    row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
    b, err := scanBooking(row)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrBookingNotFound
    }
    if err != nil {
        return nil, err
    }
    return b, nil
}

func (r *MySQLBookingRepo) ListByUser(ctx context.Context, userID string) ([]*model.Booking, error) {
    return r.list(ctx, `WHERE user_id = ? ORDER BY created_at, id`, userID)
}

func (r *MySQLBookingRepo) ListByItem(ctx context.Context, itemID string) ([]*model.Booking, error) {
    return r.list(ctx, `WHERE item_id = ? ORDER BY created_at, id`, itemID)
}

// ListActiveByItem filters on status in SQL; the active set comes from
// model.Status so the two definitions cannot drift apart.
func (r *MySQLBookingRepo) ListActiveByItem(ctx context.Context, itemID string) ([]*model.Booking, error) {
    active := []model.Status{model.StatusPending, model.StatusConfirmed}
    placeholders := strings.TrimSuffix(strings.Repeat("?,", len(active)), ",")
    args := make([]interface{}, 0, len(active)+1)
    args = append(args, itemID)
    for _, s := range active {
        args = append(args, string(s))
    }
    out, err := r.list(ctx, `WHERE item_id = ? AND status IN (`+placeholders+`) ORDER BY created_at, id`, args...)
    if err != nil {
        return nil, err
    }
    return filterActive(out), nil
}

func (r *MySQLBookingRepo) list(ctx context.Context, where string, args ...interface{}) ([]*model.Booking, error) {
    rows, err := r.db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings `+where, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]*model.Booking, 0)
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanBooking(s rowScanner) (*model.Booking, error) {
    var (
        b         model.Booking
        status    string
        paymentID sql.NullString
    )
    if err := s.Scan(
        &b.ID, &b.UserID, &b.ItemID, &b.StartDate, &b.EndDate,
        &b.TotalPrice, &status, &paymentID, &b.CreatedAt, &b.UpdatedAt,
    ); err != nil {
        return nil, err
    }
    b.Status = model.Status(status)
    if err := checkStored(&b); err != nil {
        return nil, err
    }
    if paymentID.Valid {
        pid := paymentID.String
        b.PaymentID = &pid
    }
    return &b, nil
}
