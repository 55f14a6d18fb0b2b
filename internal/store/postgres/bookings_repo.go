package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"bookingcrm/backend/internal/domain"
	"bookingcrm/backend/internal/store"
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

var overlapConstraints = map[string]struct{}{
	"bookings_staff_no_overlap": {},
	"bookings_team_no_overlap":  {},
}

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

type bookingTx struct {
	tx bun.Tx
}

func (r *BookingRepo) ListCandidates(ctx context.Context, q store.CandidateQuery) ([]domain.Booking, error) {
	return listCandidates(ctx, r.db, q)
}

func (r *BookingRepo) ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	return listTeamMembers(ctx, r.db, teamID)
}

func (r *BookingRepo) GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	return getBooking(ctx, r.db, bookingID, false)
}

func (r *BookingRepo) InResourceTransaction(ctx context.Context, keys []string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockResources(ctx, tx, keys); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

// lockResources takes transaction-scoped advisory locks in a stable order so
// that two writers locking overlapping key sets cannot deadlock.
func lockResources(ctx context.Context, tx bun.Tx, keys []string) error {
	for _, key := range sortedUnique(keys) {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx); err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
	}
	return nil
}

func sortedUnique(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r bookingTx) ListCandidates(ctx context.Context, q store.CandidateQuery) ([]domain.Booking, error) {
	return listCandidates(ctx, r.tx, q)
}

func (r bookingTx) ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, error) {
	return listTeamMembers(ctx, r.tx, teamID)
}

func (r bookingTx) GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	return getBooking(ctx, r.tx, bookingID, true)
}

func (r bookingTx) CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	m.StartDate = domain.Date(b.StartDate)
	if b.EndDate != nil {
		end := domain.Date(*b.EndDate)
		m.EndDate = &end
	}

	err := withSavepoint(ctx, r.tx, func() error {
		_, err := r.tx.NewInsert().Model(&m).Returning("NULL").Exec(ctx)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if isOverlapViolation(pgErr) {
				return domain.Booking{}, store.ErrConflict
			}
			if pgErr.Code == pgUniqueViolation {
				existing, selectErr := getBooking(ctx, r.tx, m.ID, false)
				if selectErr != nil {
					return domain.Booking{}, err
				}
				if !sameBooking(existing, m) {
					return domain.Booking{}, store.ErrIdempotencyConflict
				}
				return existing, nil
			}
		}
		return domain.Booking{}, err
	}

	return m, nil
}

func (r bookingTx) UpdateBookingSchedule(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	m.StartDate = domain.Date(b.StartDate)
	if b.EndDate != nil {
		end := domain.Date(*b.EndDate)
		m.EndDate = &end
	}

	var res sql.Result
	err := withSavepoint(ctx, r.tx, func() error {
		var err error
		res, err = r.tx.NewUpdate().
			Model(&m).
			Column("staff_id", "team_id", "title", "start_date", "end_date", "start_time", "end_time", "updated_at").
			WherePK().
			Where("deleted_at IS NULL").
			Exec(ctx)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && isOverlapViolation(pgErr) {
			return domain.Booking{}, store.ErrConflict
		}
		return domain.Booking{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, err
	}
	if affected == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	return m, nil
}

func (r bookingTx) SoftDeleteBooking(ctx context.Context, bookingID uuid.UUID) error {
	now := time.Now().UTC()
	res, err := r.tx.NewUpdate().
		Model((*domain.Booking)(nil)).
		Set("deleted_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", bookingID).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// withSavepoint runs fn so that a constraint violation leaves the enclosing
// transaction usable.
func withSavepoint(ctx context.Context, tx bun.Tx, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT booking_write"); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT booking_write"); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT booking_write")
	return err
}

func isOverlapViolation(pgErr *pgconn.PgError) bool {
	if pgErr.Code != pgExclusionViolation {
		return false
	}
	_, ok := overlapConstraints[pgErr.ConstraintName]
	return ok
}

func sameBooking(a, b domain.Booking) bool {
	return uuidPtrEqual(a.StaffID, b.StaffID) &&
		uuidPtrEqual(a.TeamID, b.TeamID) &&
		a.Title == b.Title &&
		domain.Date(a.StartDate).Equal(domain.Date(b.StartDate)) &&
		a.EffectiveEndDate().Equal(b.EffectiveEndDate()) &&
		clockEqual(a.StartTime, b.StartTime) &&
		clockEqual(a.EndTime, b.EndTime)
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func clockEqual(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	am, errA := domain.ParseEndClock(a)
	bm, errB := domain.ParseEndClock(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return am == bm
}

func selectBookings(db bun.IDB, rows *[]domain.Booking) *bun.SelectQuery {
	return db.NewSelect().
		Model(rows).
		Column("id", "staff_id", "team_id", "title", "start_date", "end_date", "status", "deleted_at", "created_at", "updated_at").
		ColumnExpr("to_char(b.start_time, 'HH24:MI') AS start_time").
		ColumnExpr("to_char(b.end_time, 'HH24:MI') AS end_time")
}

func listCandidates(ctx context.Context, db bun.IDB, q store.CandidateQuery) ([]domain.Booking, error) {
	var column string
	switch q.Kind {
	case domain.ResourceStaff:
		column = "b.staff_id"
	case domain.ResourceTeam:
		column = "b.team_id"
	default:
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownResource, q.Kind)
	}

	var rows []domain.Booking
	sel := selectBookings(db, &rows).
		Where(column+" = ?", q.ResourceID).
		Where("b.start_date >= ?::date", domain.FormatDate(q.WindowStart)).
		Where("b.start_date <= ?::date", domain.FormatDate(q.WindowEnd)).
		Where("b.status NOT IN (?)", bun.In(domain.InactiveStatuses)).
		Where("b.deleted_at IS NULL")
	if q.ExcludeID != uuid.Nil {
		sel = sel.Where("b.id <> ?", q.ExcludeID)
	}

	err := sel.OrderExpr("b.start_date ASC, b.start_time ASC, b.id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func getBooking(ctx context.Context, db bun.IDB, bookingID uuid.UUID, forUpdate bool) (domain.Booking, error) {
	var rows []domain.Booking
	sel := selectBookings(db, &rows).
		Where("b.id = ?", bookingID).
		Where("b.deleted_at IS NULL").
		Limit(1)
	if forUpdate {
		sel = sel.For("UPDATE")
	}
	if err := sel.Scan(ctx); err != nil {
		return domain.Booking{}, err
	}
	if len(rows) == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	return rows[0], nil
}

func listTeamMembers(ctx context.Context, db bun.IDB, teamID uuid.UUID) ([]uuid.UUID, error) {
	var rows []domain.TeamMember
	err := db.NewSelect().
		Model(&rows).
		Where("tm.team_id = ?", teamID).
		OrderExpr("tm.created_at ASC, tm.staff_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]uuid.UUID, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.StaffID)
	}
	return out, nil
}
