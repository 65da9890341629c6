package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"trimslot/backend/internal/domain"
	"trimslot/backend/internal/store"
)

type SchedulingRepo struct {
	db *bun.DB
}

func NewSchedulingRepo(db *bun.DB) *SchedulingRepo {
	return &SchedulingRepo{db: db}
}

type calendarTx struct {
	tx bun.Tx
}

func (r *SchedulingRepo) GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	var row domain.Provider
	err := r.db.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Provider{}, mapLookupError(err)
	}
	return row, nil
}

func (r *SchedulingRepo) GetRequester(ctx context.Context, id uuid.UUID) (domain.Requester, error) {
	var row domain.Requester
	err := r.db.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Requester{}, mapLookupError(err)
	}
	return row, nil
}

func (r *SchedulingRepo) GetService(ctx context.Context, id uuid.UUID) (domain.Service, error) {
	var row domain.Service
	err := r.db.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Service{}, mapLookupError(err)
	}
	return row, nil
}

func (r *SchedulingRepo) ListServices(ctx context.Context, providerID uuid.UUID) ([]domain.Service, error) {
	var rows []domain.Service
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		OrderExpr("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SchedulingRepo) ListServicesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []domain.Service
	err := r.db.NewSelect().
		Model(&rows).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SchedulingRepo) CreateAvailabilityWindow(ctx context.Context, window domain.AvailabilityWindow) (domain.AvailabilityWindow, error) {
	m := window
	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "availability_windows_provider_weekday_key" {
			return domain.AvailabilityWindow{}, store.ErrConflict
		}
		return domain.AvailabilityWindow{}, err
	}
	return m, nil
}

func (r *SchedulingRepo) GetAvailabilityWindow(ctx context.Context, id uuid.UUID) (domain.AvailabilityWindow, error) {
	var row domain.AvailabilityWindow
	err := r.db.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.AvailabilityWindow{}, mapLookupError(err)
	}
	return row, nil
}

func (r *SchedulingRepo) GetAvailabilityForWeekday(ctx context.Context, providerID uuid.UUID, weekday int16) (*domain.AvailabilityWindow, error) {
	var rows []domain.AvailabilityWindow
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("weekday = ?", weekday).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return &rows[0], nil
	default:
		// The unique constraint makes this unreachable; refuse to pick
		// one silently if it happens anyway.
		return nil, fmt.Errorf("provider %s has %d availability windows for weekday %d", providerID, len(rows), weekday)
	}
}

func (r *SchedulingRepo) ListAvailabilityWindows(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error) {
	var rows []domain.AvailabilityWindow
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		OrderExpr("weekday ASC, start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SchedulingRepo) UpdateAvailabilityWindow(ctx context.Context, window domain.AvailabilityWindow) (domain.AvailabilityWindow, error) {
	m := window
	res, err := r.db.NewUpdate().
		Model(&m).
		Column("weekday", "start_minute", "end_minute", "break_start_minute", "break_end_minute", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "availability_windows_provider_weekday_key" {
			return domain.AvailabilityWindow{}, store.ErrConflict
		}
		return domain.AvailabilityWindow{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.AvailabilityWindow{}, err
	}
	if affected == 0 {
		return domain.AvailabilityWindow{}, store.ErrNotFound
	}
	return m, nil
}

func (r *SchedulingRepo) DeleteAvailabilityWindow(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.AvailabilityWindow)(nil)).
		Where("id = ?", id).
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

func (r *SchedulingRepo) ListAgendaEntries(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.AgendaEntry, error) {
	var rows []domain.AgendaEntry
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SchedulingRepo) CreateBooking(ctx context.Context, providerID uuid.UUID, res domain.Reservation, entry domain.AgendaEntry) (domain.Reservation, domain.AgendaEntry, error) {
	var outRes domain.Reservation
	var outEntry domain.AgendaEntry
	err := r.InProviderTransaction(ctx, providerID, func(ctx context.Context, tx store.CalendarTx) error {
		if err := ensureNoBookingConflicts(ctx, tx, providerID, domain.TimeSpan{Start: entry.StartTime, End: entry.EndTime}); err != nil {
			return err
		}
		created, err := tx.InsertReservation(ctx, res)
		if err != nil {
			return err
		}
		entry.ReservationID = created.ID
		createdEntry, err := tx.InsertAgendaEntry(ctx, entry)
		if err != nil {
			return err
		}
		outRes = created
		outEntry = createdEntry
		return nil
	})
	if err != nil {
		return domain.Reservation{}, domain.AgendaEntry{}, err
	}
	return outRes, outEntry, nil
}

func (r *SchedulingRepo) GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	var row domain.Reservation
	err := r.db.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Reservation{}, mapLookupError(err)
	}
	return row, nil
}

func (r *SchedulingRepo) ListReservations(ctx context.Context, requesterID uuid.UUID) ([]domain.Reservation, error) {
	var rows []domain.Reservation
	err := r.db.NewSelect().
		Model(&rows).
		Where("requester_id = ?", requesterID).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SchedulingRepo) CancelBooking(ctx context.Context, providerID, reservationID uuid.UUID) error {
	return r.InProviderTransaction(ctx, providerID, func(ctx context.Context, tx store.CalendarTx) error {
		if err := tx.DeleteAgendaEntryForReservation(ctx, reservationID); err != nil {
			return err
		}
		return tx.DeleteReservation(ctx, reservationID)
	})
}

// InProviderTransaction serializes all calendar mutations for one
// provider behind an advisory lock while leaving other providers'
// calendars uncontended.
func (r *SchedulingRepo) InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderCalendar(ctx, tx, providerID); err != nil {
			return err
		}
		return fn(ctx, calendarTx{tx: tx})
	})
}

func lockProviderCalendar(ctx context.Context, tx bun.Tx, providerID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", providerID.String()).Exec(ctx)
	return err
}

func (c calendarTx) ListAgendaEntries(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.AgendaEntry, error) {
	var rows []domain.AgendaEntry
	err := c.tx.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c calendarTx) InsertReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	m := res
	if _, err := c.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Reservation{}, err
	}
	return m, nil
}

func (c calendarTx) InsertAgendaEntry(ctx context.Context, entry domain.AgendaEntry) (domain.AgendaEntry, error) {
	m := entry
	if _, err := c.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "agenda_entries_no_overlap" {
			return domain.AgendaEntry{}, store.ErrConflict
		}
		return domain.AgendaEntry{}, err
	}
	return m, nil
}

func (c calendarTx) DeleteReservation(ctx context.Context, reservationID uuid.UUID) error {
	res, err := c.tx.NewDelete().
		Model((*domain.Reservation)(nil)).
		Where("id = ?", reservationID).
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

func (c calendarTx) DeleteAgendaEntryForReservation(ctx context.Context, reservationID uuid.UUID) error {
	res, err := c.tx.NewDelete().
		Model((*domain.AgendaEntry)(nil)).
		Where("reservation_id = ?", reservationID).
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

// ensureNoBookingConflicts re-checks the provider's committed calendar
// for the requested interval. The check runs under the provider lock,
// so two concurrent bookings cannot both pass it; the exclusion
// constraint on agenda_entries backstops it regardless.
func ensureNoBookingConflicts(ctx context.Context, tx store.CalendarTx, providerID uuid.UUID, requested domain.TimeSpan) error {
	existing, err := tx.ListAgendaEntries(ctx, providerID, requested.Start, requested.End)
	if err != nil {
		return err
	}
	for _, e := range existing {
		span := domain.TimeSpan{Start: e.StartTime.UTC(), End: e.EndTime.UTC()}
		if requested.Overlaps(span) {
			return store.ErrConflict
		}
	}
	return nil
}

func mapLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
