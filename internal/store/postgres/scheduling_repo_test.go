package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"trimslot/backend/internal/domain"
	"trimslot/backend/internal/store"
)

type fakeCalendarTx struct {
	listAgendaEntriesFn func(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.AgendaEntry, error)
}

func (f *fakeCalendarTx) ListAgendaEntries(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.AgendaEntry, error) {
	if f.listAgendaEntriesFn == nil {
		return nil, nil
	}
	return f.listAgendaEntriesFn(ctx, providerID, windowStart, windowEnd)
}

func (f *fakeCalendarTx) InsertReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	panic("not used")
}

func (f *fakeCalendarTx) InsertAgendaEntry(ctx context.Context, entry domain.AgendaEntry) (domain.AgendaEntry, error) {
	panic("not used")
}

func (f *fakeCalendarTx) DeleteReservation(ctx context.Context, reservationID uuid.UUID) error {
	panic("not used")
}

func (f *fakeCalendarTx) DeleteAgendaEntryForReservation(ctx context.Context, reservationID uuid.UUID) error {
	panic("not used")
}

func TestEnsureNoBookingConflicts(t *testing.T) {
	providerID := uuid.MustParse("00000000-0000-0000-0000-000000000401")
	requested := domain.TimeSpan{
		Start: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC),
	}

	entry := func(start, end time.Time) domain.AgendaEntry {
		return domain.AgendaEntry{
			ID:         uuid.MustParse("00000000-0000-0000-0000-000000000501"),
			ProviderID: providerID,
			StartTime:  start,
			EndTime:    end,
		}
	}

	t.Run("overlapping entry detected", func(t *testing.T) {
		tx := &fakeCalendarTx{
			listAgendaEntriesFn: func(ctx context.Context, pid uuid.UUID, windowStart, windowEnd time.Time) ([]domain.AgendaEntry, error) {
				if pid != providerID {
					t.Fatalf("provider = %s, want %s", pid, providerID)
				}
				if !windowStart.Equal(requested.Start) || !windowEnd.Equal(requested.End) {
					t.Fatalf("query window = [%v, %v), want requested span", windowStart, windowEnd)
				}
				return []domain.AgendaEntry{
					entry(requested.Start.Add(30*time.Minute), requested.End.Add(30*time.Minute)),
				}, nil
			},
		}

		err := ensureNoBookingConflicts(context.Background(), tx, providerID, requested)
		if err != store.ErrConflict {
			t.Fatalf("err = %v, want %v", err, store.ErrConflict)
		}
	})

	t.Run("adjacent entries do not conflict", func(t *testing.T) {
		tx := &fakeCalendarTx{
			listAgendaEntriesFn: func(ctx context.Context, pid uuid.UUID, windowStart, windowEnd time.Time) ([]domain.AgendaEntry, error) {
				return []domain.AgendaEntry{
					entry(requested.Start.Add(-time.Hour), requested.Start),
					entry(requested.End, requested.End.Add(time.Hour)),
				}, nil
			},
		}

		err := ensureNoBookingConflicts(context.Background(), tx, providerID, requested)
		if err != nil {
			t.Fatalf("err = %v, want nil", err)
		}
	})

	t.Run("empty calendar passes", func(t *testing.T) {
		err := ensureNoBookingConflicts(context.Background(), &fakeCalendarTx{}, providerID, requested)
		if err != nil {
			t.Fatalf("err = %v, want nil", err)
		}
	})

	t.Run("list error propagates", func(t *testing.T) {
		boom := errors.New("boom")
		tx := &fakeCalendarTx{
			listAgendaEntriesFn: func(ctx context.Context, pid uuid.UUID, windowStart, windowEnd time.Time) ([]domain.AgendaEntry, error) {
				return nil, boom
			},
		}

		err := ensureNoBookingConflicts(context.Background(), tx, providerID, requested)
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want %v", err, boom)
		}
	})
}
