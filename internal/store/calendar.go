package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"trimslot/backend/internal/domain"
)

// CalendarTx is the slice of a provider-locked transaction the booking
// paths operate through. All times are UTC.
type CalendarTx interface {
	ListAgendaEntries(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.AgendaEntry, error)
	InsertReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error)
	InsertAgendaEntry(ctx context.Context, entry domain.AgendaEntry) (domain.AgendaEntry, error)
	DeleteReservation(ctx context.Context, reservationID uuid.UUID) error
	DeleteAgendaEntryForReservation(ctx context.Context, reservationID uuid.UUID) error
}
