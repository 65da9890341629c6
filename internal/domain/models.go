package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Provider is the professional whose time is being scheduled. Profile
// management lives outside this service; the engine reads the timezone
// for wall-clock composition and nothing else.
type Provider struct {
	bun.BaseModel `bun:"table:providers"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	DisplayName string    `bun:"display_name,notnull"`
	Timezone    string    `bun:"timezone,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (p *Provider) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return applyTimestampDefaults(query, &p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Requester is the party booking a provider's time.
type Requester struct {
	bun.BaseModel `bun:"table:requesters"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	DisplayName string    `bun:"display_name,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (r *Requester) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return applyTimestampDefaults(query, &r.ID, &r.CreatedAt, &r.UpdatedAt)
}

// Service is a catalog entry; the engine only projects end times from
// DurationMinutes.
type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID      uuid.UUID `bun:"provider_id,notnull,type:uuid"`
	Name            string    `bun:"name,notnull"`
	PriceCents      int64     `bun:"price_cents,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

func (s *Service) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return applyTimestampDefaults(query, &s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// AvailabilityWindow is a recurring weekly open-hours definition.
// Wall-clock fields are minutes from local midnight; weekday is 1..7
// with Monday = 1. At most one window exists per provider and weekday.
type AvailabilityWindow struct {
	bun.BaseModel `bun:"table:availability_windows"`

	ID               uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID       uuid.UUID `bun:"provider_id,notnull,type:uuid"`
	Weekday          int16     `bun:"weekday,notnull"`
	StartMinute      int       `bun:"start_minute,notnull"`
	EndMinute        int       `bun:"end_minute,notnull"`
	BreakStartMinute *int      `bun:"break_start_minute"`
	BreakEndMinute   *int      `bun:"break_end_minute"`
	CreatedAt        time.Time `bun:"created_at,notnull"`
	UpdatedAt        time.Time `bun:"updated_at,notnull"`
}

func (w *AvailabilityWindow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return applyTimestampDefaults(query, &w.ID, &w.CreatedAt, &w.UpdatedAt)
}

// AgendaEntry is a committed busy interval on a provider's calendar,
// half-open [StartTime, EndTime) in UTC. Entries are created only as
// the agenda half of a booking and carry the reservation that produced
// them.
type AgendaEntry struct {
	bun.BaseModel `bun:"table:agenda_entries"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID    uuid.UUID `bun:"provider_id,notnull,type:uuid"`
	ServiceID     uuid.UUID `bun:"service_id,notnull,type:uuid"`
	ReservationID uuid.UUID `bun:"reservation_id,notnull,type:uuid"`
	StartTime     time.Time `bun:"start_time,notnull"`
	EndTime       time.Time `bun:"end_time,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func (e *AgendaEntry) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return applyTimestampDefaults(query, &e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// Reservation is the requester-facing half of a booking. Its end time
// is derived from the service duration, never stored.
type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	RequesterID uuid.UUID `bun:"requester_id,notnull,type:uuid"`
	ServiceID   uuid.UUID `bun:"service_id,notnull,type:uuid"`
	StartTime   time.Time `bun:"start_time,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (r *Reservation) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return applyTimestampDefaults(query, &r.ID, &r.CreatedAt, &r.UpdatedAt)
}

func applyTimestampDefaults(query bun.Query, id *uuid.UUID, createdAt, updatedAt *time.Time) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if *id == uuid.Nil {
			generated, err := uuid.NewV7()
			if err != nil {
				return err
			}
			*id = generated
		}
		if createdAt.IsZero() {
			*createdAt = now
		}
		if updatedAt.IsZero() {
			*updatedAt = now
		}
	case *bun.UpdateQuery:
		*updatedAt = now
	}
	return nil
}
