package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trimslot/backend/internal/domain"
	"trimslot/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// NotFoundError names the entity a lookup missed so callers can report
// which reference was dangling. It unwraps to store.ErrNotFound.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

func (e *NotFoundError) Unwrap() error {
	return store.ErrNotFound
}

func notFound(entity string) error {
	return &NotFoundError{Entity: entity}
}

type Service struct {
	repo store.SchedulingRepository
}

func NewService(repo store.SchedulingRepository) *Service {
	return &Service{repo: repo}
}

// GenerateSlots returns the bookable "HH:MM" start times for the
// provider, service and calendar date ("YYYY-MM-DD"). A weekday without
// an availability window yields an empty list, not an error.
func (s *Service) GenerateSlots(ctx context.Context, providerID, serviceID uuid.UUID, date string) ([]string, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	if serviceID == uuid.Nil {
		return nil, validationError("service_id is required")
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, validationError(fmt.Sprintf("invalid date %q, want YYYY-MM-DD", date))
	}

	provider, svc, err := s.resolveProviderService(ctx, providerID, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.DurationMinutes <= 0 {
		return nil, validationError("service duration must be positive")
	}

	loc, err := time.LoadLocation(provider.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load provider timezone %q: %w", provider.Timezone, err)
	}

	window, err := s.repo.GetAvailabilityForWeekday(ctx, providerID, domain.ISOWeekday(day.Weekday()))
	if err != nil {
		return nil, err
	}
	if window == nil {
		return []string{}, nil
	}

	bounds := domain.DayBounds(day, loc)
	entries, err := s.repo.ListAgendaEntries(ctx, providerID, bounds.Start, bounds.End)
	if err != nil {
		return nil, err
	}

	busy := make([]domain.TimeSpan, 0, len(entries))
	for _, e := range entries {
		busy = append(busy, domain.TimeSpan{Start: e.StartTime.UTC(), End: e.EndTime.UTC()})
	}

	return domain.GenerateSlots(*window, day, loc, busy, svc.DurationMinutes), nil
}

type CreateReservationInput struct {
	RequesterID uuid.UUID
	ServiceID   uuid.UUID
	ProviderID  uuid.UUID
	StartTime   string
}

// Booking is the pair of records a successful reservation produces.
// The agenda entry carries the derived end time.
type Booking struct {
	Reservation domain.Reservation
	Entry       domain.AgendaEntry
}

// CreateReservation arbitrates a booking attempt: it resolves every
// reference, projects the end time, and hands the pair to the store's
// provider-serialized create. A lost race surfaces as store.ErrConflict
// with no partial writes.
func (s *Service) CreateReservation(ctx context.Context, in CreateReservationInput) (Booking, error) {
	if in.RequesterID == uuid.Nil {
		return Booking{}, validationError("requester_id is required")
	}
	if in.ServiceID == uuid.Nil {
		return Booking{}, validationError("service_id is required")
	}
	if in.ProviderID == uuid.Nil {
		return Booking{}, validationError("provider_id is required")
	}

	if _, err := s.repo.GetRequester(ctx, in.RequesterID); err != nil {
		return Booking{}, mapLookup(err, "requester")
	}
	provider, svc, err := s.resolveProviderService(ctx, in.ProviderID, in.ServiceID)
	if err != nil {
		return Booking{}, err
	}

	loc, err := time.LoadLocation(provider.Timezone)
	if err != nil {
		return Booking{}, fmt.Errorf("load provider timezone %q: %w", provider.Timezone, err)
	}

	start, err := domain.ParseTimestamp(in.StartTime, loc)
	if err != nil {
		return Booking{}, validationError(err.Error())
	}
	end, err := domain.ComputeEndTime(start, svc.DurationMinutes)
	if err != nil {
		return Booking{}, validationError(err.Error())
	}

	res := domain.Reservation{
		RequesterID: in.RequesterID,
		ServiceID:   in.ServiceID,
		StartTime:   start,
	}
	entry := domain.AgendaEntry{
		ProviderID: in.ProviderID,
		ServiceID:  in.ServiceID,
		StartTime:  start,
		EndTime:    end,
	}

	createdRes, createdEntry, err := s.repo.CreateBooking(ctx, in.ProviderID, res, entry)
	if err != nil {
		return Booking{}, err
	}
	return Booking{Reservation: createdRes, Entry: createdEntry}, nil
}

// CancelReservation frees the booked interval: the reservation and its
// paired agenda entry are removed in the same provider-locked
// transaction.
func (s *Service) CancelReservation(ctx context.Context, reservationID uuid.UUID) error {
	if reservationID == uuid.Nil {
		return validationError("reservation_id is required")
	}

	res, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return mapLookup(err, "reservation")
	}
	svc, err := s.repo.GetService(ctx, res.ServiceID)
	if err != nil {
		return mapLookup(err, "service")
	}

	if err := s.repo.CancelBooking(ctx, svc.ProviderID, reservationID); err != nil {
		return mapLookup(err, "reservation")
	}
	return nil
}

// ReservationView is a reservation with its projected end time.
type ReservationView struct {
	Reservation domain.Reservation
	EndTime     time.Time
}

func (s *Service) ListReservations(ctx context.Context, requesterID uuid.UUID) ([]ReservationView, error) {
	if requesterID == uuid.Nil {
		return nil, validationError("requester_id is required")
	}
	if _, err := s.repo.GetRequester(ctx, requesterID); err != nil {
		return nil, mapLookup(err, "requester")
	}

	rows, err := s.repo.ListReservations(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []ReservationView{}, nil
	}

	// One batched catalog fetch covers every listed reservation.
	ids := make([]uuid.UUID, 0, len(rows))
	seen := make(map[uuid.UUID]struct{}, len(rows))
	for _, res := range rows {
		if _, ok := seen[res.ServiceID]; ok {
			continue
		}
		seen[res.ServiceID] = struct{}{}
		ids = append(ids, res.ServiceID)
	}
	services, err := s.repo.ListServicesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.Service, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc
	}

	out := make([]ReservationView, 0, len(rows))
	for _, res := range rows {
		svc, ok := byID[res.ServiceID]
		if !ok {
			return nil, notFound("service")
		}
		end, err := domain.ComputeEndTime(res.StartTime, svc.DurationMinutes)
		if err != nil {
			return nil, fmt.Errorf("reservation %s: %w", res.ID, err)
		}
		out = append(out, ReservationView{Reservation: res, EndTime: end})
	}
	return out, nil
}

type AvailabilityInput struct {
	Weekday    int16
	StartTime  string
	EndTime    string
	BreakStart string
	BreakEnd   string
}

func (s *Service) CreateAvailability(ctx context.Context, providerID uuid.UUID, in AvailabilityInput) (domain.AvailabilityWindow, error) {
	if providerID == uuid.Nil {
		return domain.AvailabilityWindow{}, validationError("provider_id is required")
	}
	if _, err := s.repo.GetProvider(ctx, providerID); err != nil {
		return domain.AvailabilityWindow{}, mapLookup(err, "provider")
	}

	window := domain.AvailabilityWindow{ProviderID: providerID}
	if err := applyAvailabilityInput(&window, in); err != nil {
		return domain.AvailabilityWindow{}, err
	}
	return s.repo.CreateAvailabilityWindow(ctx, window)
}

type AvailabilityPatch struct {
	Weekday    *int16
	StartTime  *string
	EndTime    *string
	BreakStart *string
	BreakEnd   *string
	ClearBreak bool
}

func (s *Service) UpdateAvailability(ctx context.Context, windowID uuid.UUID, patch AvailabilityPatch) (domain.AvailabilityWindow, error) {
	if windowID == uuid.Nil {
		return domain.AvailabilityWindow{}, validationError("availability_id is required")
	}

	window, err := s.repo.GetAvailabilityWindow(ctx, windowID)
	if err != nil {
		return domain.AvailabilityWindow{}, mapLookup(err, "availability window")
	}

	if patch.Weekday != nil {
		window.Weekday = *patch.Weekday
	}
	if patch.StartTime != nil {
		minute, err := parseClockField(*patch.StartTime, "start_time")
		if err != nil {
			return domain.AvailabilityWindow{}, err
		}
		window.StartMinute = minute
	}
	if patch.EndTime != nil {
		minute, err := parseClockField(*patch.EndTime, "end_time")
		if err != nil {
			return domain.AvailabilityWindow{}, err
		}
		window.EndMinute = minute
	}
	if patch.ClearBreak {
		window.BreakStartMinute = nil
		window.BreakEndMinute = nil
	}
	if patch.BreakStart != nil {
		minute, err := parseClockField(*patch.BreakStart, "break_start")
		if err != nil {
			return domain.AvailabilityWindow{}, err
		}
		window.BreakStartMinute = &minute
	}
	if patch.BreakEnd != nil {
		minute, err := parseClockField(*patch.BreakEnd, "break_end")
		if err != nil {
			return domain.AvailabilityWindow{}, err
		}
		window.BreakEndMinute = &minute
	}

	if err := validateAvailabilityWindow(window); err != nil {
		return domain.AvailabilityWindow{}, err
	}
	updated, err := s.repo.UpdateAvailabilityWindow(ctx, window)
	if err != nil {
		return domain.AvailabilityWindow{}, mapLookup(err, "availability window")
	}
	return updated, nil
}

func (s *Service) ListAvailability(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	if _, err := s.repo.GetProvider(ctx, providerID); err != nil {
		return nil, mapLookup(err, "provider")
	}
	return s.repo.ListAvailabilityWindows(ctx, providerID)
}

func (s *Service) DeleteAvailability(ctx context.Context, windowID uuid.UUID) error {
	if windowID == uuid.Nil {
		return validationError("availability_id is required")
	}
	if err := s.repo.DeleteAvailabilityWindow(ctx, windowID); err != nil {
		return mapLookup(err, "availability window")
	}
	return nil
}

func (s *Service) ListAgenda(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.AgendaEntry, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	start := windowStart.UTC()
	end := windowEnd.UTC()
	if end.Equal(start) || end.Before(start) {
		return nil, validationError("to must be after from")
	}
	if _, err := s.repo.GetProvider(ctx, providerID); err != nil {
		return nil, mapLookup(err, "provider")
	}
	return s.repo.ListAgendaEntries(ctx, providerID, start, end)
}

func (s *Service) ListServices(ctx context.Context, providerID uuid.UUID) ([]domain.Service, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	if _, err := s.repo.GetProvider(ctx, providerID); err != nil {
		return nil, mapLookup(err, "provider")
	}
	return s.repo.ListServices(ctx, providerID)
}

func (s *Service) resolveProviderService(ctx context.Context, providerID, serviceID uuid.UUID) (domain.Provider, domain.Service, error) {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return domain.Provider{}, domain.Service{}, mapLookup(err, "service")
	}
	if svc.ProviderID != providerID {
		return domain.Provider{}, domain.Service{}, validationError("service does not belong to provider")
	}
	provider, err := s.repo.GetProvider(ctx, providerID)
	if err != nil {
		return domain.Provider{}, domain.Service{}, mapLookup(err, "provider")
	}
	return provider, svc, nil
}

func applyAvailabilityInput(window *domain.AvailabilityWindow, in AvailabilityInput) error {
	window.Weekday = in.Weekday

	start, err := parseClockField(in.StartTime, "start_time")
	if err != nil {
		return err
	}
	end, err := parseClockField(in.EndTime, "end_time")
	if err != nil {
		return err
	}
	window.StartMinute = start
	window.EndMinute = end

	if (in.BreakStart == "") != (in.BreakEnd == "") {
		return validationError("break_start and break_end must be provided together")
	}
	if in.BreakStart != "" {
		bs, err := parseClockField(in.BreakStart, "break_start")
		if err != nil {
			return err
		}
		be, err := parseClockField(in.BreakEnd, "break_end")
		if err != nil {
			return err
		}
		window.BreakStartMinute = &bs
		window.BreakEndMinute = &be
	}

	return validateAvailabilityWindow(*window)
}

func validateAvailabilityWindow(window domain.AvailabilityWindow) error {
	if window.Weekday < 1 || window.Weekday > 7 {
		return validationError("weekday must be 1 (Monday) through 7 (Sunday)")
	}
	if window.StartMinute >= window.EndMinute {
		return validationError("end_time must be after start_time")
	}
	if !domain.ValidClockMinute(window.StartMinute) || !domain.ValidClockMinute(window.EndMinute) {
		return validationError("window times must fall within one day")
	}
	if (window.BreakStartMinute == nil) != (window.BreakEndMinute == nil) {
		return validationError("break_start and break_end must be provided together")
	}
	if window.BreakStartMinute != nil {
		bs := *window.BreakStartMinute
		be := *window.BreakEndMinute
		if bs > be {
			return validationError("break_end must not be before break_start")
		}
		if bs < window.StartMinute || be > window.EndMinute {
			return validationError("break must fall within the window")
		}
	}
	return nil
}

func parseClockField(value, field string) (int, error) {
	minute, err := domain.ParseClock(value)
	if err != nil {
		return 0, validationError(fmt.Sprintf("invalid %s: %v", field, err))
	}
	return minute, nil
}

func mapLookup(err error, entity string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(entity)
	}
	return err
}
