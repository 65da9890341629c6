package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"trimslot/backend/internal/domain"
)

// SchedulingRepository is the storage surface of the booking engine.
// It enforces no business rules beyond the agenda non-overlap invariant
// guarded inside CreateBooking; everything else is validated upstream.
type SchedulingRepository interface {
	GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error)
	GetRequester(ctx context.Context, id uuid.UUID) (domain.Requester, error)
	GetService(ctx context.Context, id uuid.UUID) (domain.Service, error)
	ListServices(ctx context.Context, providerID uuid.UUID) ([]domain.Service, error)
	// ListServicesByIDs fetches catalog rows for the given ids in one
	// query; ids without a row are omitted from the result.
	ListServicesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Service, error)

	CreateAvailabilityWindow(ctx context.Context, window domain.AvailabilityWindow) (domain.AvailabilityWindow, error)
	GetAvailabilityWindow(ctx context.Context, id uuid.UUID) (domain.AvailabilityWindow, error)
	// GetAvailabilityForWeekday returns nil when the provider has no
	// window on that weekday; that is a result, not an error.
	GetAvailabilityForWeekday(ctx context.Context, providerID uuid.UUID, weekday int16) (*domain.AvailabilityWindow, error)
	ListAvailabilityWindows(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error)
	UpdateAvailabilityWindow(ctx context.Context, window domain.AvailabilityWindow) (domain.AvailabilityWindow, error)
	DeleteAvailabilityWindow(ctx context.Context, id uuid.UUID) error

	ListAgendaEntries(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.AgendaEntry, error)

	// CreateBooking persists the reservation and its paired agenda entry
	// as one atomic unit, re-checking the provider's calendar for
	// overlap first. Returns ErrConflict without writes when the
	// interval is taken.
	CreateBooking(ctx context.Context, providerID uuid.UUID, res domain.Reservation, entry domain.AgendaEntry) (domain.Reservation, domain.AgendaEntry, error)
	GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	ListReservations(ctx context.Context, requesterID uuid.UUID) ([]domain.Reservation, error)
	// CancelBooking removes the reservation and its agenda entry
	// together, freeing the interval.
	CancelBooking(ctx context.Context, providerID, reservationID uuid.UUID) error
}
