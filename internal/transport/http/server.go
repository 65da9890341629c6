package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"trimslot/backend/internal/domain"
	"trimslot/backend/internal/service/scheduling"
	"trimslot/backend/internal/store"
)

type schedulingService interface {
	GenerateSlots(ctx context.Context, providerID, serviceID uuid.UUID, date string) ([]string, error)
	CreateReservation(ctx context.Context, in scheduling.CreateReservationInput) (scheduling.Booking, error)
	CancelReservation(ctx context.Context, reservationID uuid.UUID) error
	ListReservations(ctx context.Context, requesterID uuid.UUID) ([]scheduling.ReservationView, error)
	CreateAvailability(ctx context.Context, providerID uuid.UUID, in scheduling.AvailabilityInput) (domain.AvailabilityWindow, error)
	UpdateAvailability(ctx context.Context, windowID uuid.UUID, patch scheduling.AvailabilityPatch) (domain.AvailabilityWindow, error)
	ListAvailability(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error)
	DeleteAvailability(ctx context.Context, windowID uuid.UUID) error
	ListAgenda(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.AgendaEntry, error)
	ListServices(ctx context.Context, providerID uuid.UUID) ([]domain.Service, error)
}

type Server struct {
	svc schedulingService
	log *slog.Logger
}

func NewServer(svc schedulingService, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		svc: svc,
		log: log.With(slog.String("component", "http.scheduling")),
	}
}

// Router builds the gin engine with all scheduling routes mounted.
func (s *Server) Router(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if len(allowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = allowedOrigins
		corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		r.Use(cors.New(corsCfg))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		v1.GET("/providers/:provider_id/slots", s.getSlots)
		v1.GET("/providers/:provider_id/agenda", s.listAgenda)
		v1.GET("/providers/:provider_id/services", s.listServices)
		v1.POST("/providers/:provider_id/availability", s.createAvailability)
		v1.GET("/providers/:provider_id/availability", s.listAvailability)
		v1.PUT("/availability/:availability_id", s.updateAvailability)
		v1.DELETE("/availability/:availability_id", s.deleteAvailability)
		v1.POST("/reservations", s.createReservation)
		v1.DELETE("/reservations/:reservation_id", s.deleteReservation)
		v1.GET("/requesters/:requester_id/reservations", s.listReservations)
	}

	return r
}

func (s *Server) getSlots(c *gin.Context) {
	log := s.log.With(slog.String("route", "GetSlots"))

	providerID, ok := pathUUID(c, log, "provider_id")
	if !ok {
		return
	}
	serviceID, err := uuid.Parse(c.Query("service_id"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_service_id"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "service_id must be a UUID"})
		return
	}
	date := c.Query("date")

	slots, err := s.svc.GenerateSlots(c.Request.Context(), providerID, serviceID, date)
	if err != nil {
		s.writeError(c, log, err)
		return
	}

	log.Debug(
		"slots generated",
		slog.String("provider_id", providerID.String()),
		slog.String("date", date),
		slog.Int("count", len(slots)),
	)
	c.JSON(http.StatusOK, gin.H{"available_slots": slots})
}

type createReservationRequest struct {
	RequesterID string `json:"requester_id"`
	ServiceID   string `json:"service_id"`
	ProviderID  string `json:"provider_id"`
	StartTime   string `json:"start_time"`
}

func (s *Server) createReservation(c *gin.Context) {
	log := s.log.With(slog.String("route", "CreateReservation"))

	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	requesterID, ok := fieldUUID(c, log, req.RequesterID, "requester_id")
	if !ok {
		return
	}
	serviceID, ok := fieldUUID(c, log, req.ServiceID, "service_id")
	if !ok {
		return
	}
	providerID, ok := fieldUUID(c, log, req.ProviderID, "provider_id")
	if !ok {
		return
	}

	booking, err := s.svc.CreateReservation(c.Request.Context(), scheduling.CreateReservationInput{
		RequesterID: requesterID,
		ServiceID:   serviceID,
		ProviderID:  providerID,
		StartTime:   req.StartTime,
	})
	if err != nil {
		s.writeError(c, log, err)
		return
	}

	log.Info(
		"reservation created",
		slog.String("reservation_id", booking.Reservation.ID.String()),
		slog.String("provider_id", providerID.String()),
		slog.Time("start_time", booking.Entry.StartTime),
		slog.Time("end_time", booking.Entry.EndTime),
	)
	c.JSON(http.StatusCreated, gin.H{"reservation": toReservationResponse(booking.Reservation, booking.Entry.EndTime)})
}

func (s *Server) deleteReservation(c *gin.Context) {
	log := s.log.With(slog.String("route", "DeleteReservation"))

	reservationID, ok := pathUUID(c, log, "reservation_id")
	if !ok {
		return
	}

	if err := s.svc.CancelReservation(c.Request.Context(), reservationID); err != nil {
		s.writeError(c, log, err)
		return
	}

	log.Info("reservation cancelled", slog.String("reservation_id", reservationID.String()))
	c.JSON(http.StatusOK, gin.H{"message": "reservation cancelled"})
}

func (s *Server) listReservations(c *gin.Context) {
	log := s.log.With(slog.String("route", "ListReservations"))

	requesterID, ok := pathUUID(c, log, "requester_id")
	if !ok {
		return
	}

	views, err := s.svc.ListReservations(c.Request.Context(), requesterID)
	if err != nil {
		s.writeError(c, log, err)
		return
	}

	out := make([]reservationResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toReservationResponse(v.Reservation, v.EndTime))
	}
	c.JSON(http.StatusOK, gin.H{"reservations": out})
}

type availabilityRequest struct {
	Weekday    int16  `json:"weekday"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	BreakStart string `json:"break_start"`
	BreakEnd   string `json:"break_end"`
}

func (s *Server) createAvailability(c *gin.Context) {
	log := s.log.With(slog.String("route", "CreateAvailability"))

	providerID, ok := pathUUID(c, log, "provider_id")
	if !ok {
		return
	}

	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	window, err := s.svc.CreateAvailability(c.Request.Context(), providerID, scheduling.AvailabilityInput{
		Weekday:    req.Weekday,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		BreakStart: req.BreakStart,
		BreakEnd:   req.BreakEnd,
	})
	if err != nil {
		s.writeError(c, log, err)
		return
	}

	log.Info(
		"availability registered",
		slog.String("availability_id", window.ID.String()),
		slog.String("provider_id", providerID.String()),
		slog.Int("weekday", int(window.Weekday)),
	)
	c.JSON(http.StatusCreated, gin.H{"availability": toAvailabilityResponse(window)})
}

type availabilityPatchRequest struct {
	Weekday    *int16  `json:"weekday"`
	StartTime  *string `json:"start_time"`
	EndTime    *string `json:"end_time"`
	BreakStart *string `json:"break_start"`
	BreakEnd   *string `json:"break_end"`
	ClearBreak bool    `json:"clear_break"`
}

func (s *Server) updateAvailability(c *gin.Context) {
	log := s.log.With(slog.String("route", "UpdateAvailability"))

	windowID, ok := pathUUID(c, log, "availability_id")
	if !ok {
		return
	}

	var req availabilityPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	window, err := s.svc.UpdateAvailability(c.Request.Context(), windowID, scheduling.AvailabilityPatch{
		Weekday:    req.Weekday,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		BreakStart: req.BreakStart,
		BreakEnd:   req.BreakEnd,
		ClearBreak: req.ClearBreak,
	})
	if err != nil {
		s.writeError(c, log, err)
		return
	}

	log.Info("availability updated", slog.String("availability_id", windowID.String()))
	c.JSON(http.StatusOK, gin.H{"availability": toAvailabilityResponse(window)})
}

func (s *Server) listAvailability(c *gin.Context) {
	log := s.log.With(slog.String("route", "ListAvailability"))

	providerID, ok := pathUUID(c, log, "provider_id")
	if !ok {
		return
	}

	windows, err := s.svc.ListAvailability(c.Request.Context(), providerID)
	if err != nil {
		s.writeError(c, log, err)
		return
	}

	out := make([]availabilityResponse, 0, len(windows))
	for _, w := range windows {
		out = append(out, toAvailabilityResponse(w))
	}
	c.JSON(http.StatusOK, gin.H{"availability": out})
}

func (s *Server) deleteAvailability(c *gin.Context) {
	log := s.log.With(slog.String("route", "DeleteAvailability"))

	windowID, ok := pathUUID(c, log, "availability_id")
	if !ok {
		return
	}

	if err := s.svc.DeleteAvailability(c.Request.Context(), windowID); err != nil {
		s.writeError(c, log, err)
		return
	}

	log.Info("availability removed", slog.String("availability_id", windowID.String()))
	c.JSON(http.StatusOK, gin.H{"message": "availability removed"})
}

func (s *Server) listAgenda(c *gin.Context) {
	log := s.log.With(slog.String("route", "ListAgenda"))

	providerID, ok := pathUUID(c, log, "provider_id")
	if !ok {
		return
	}
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_from"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an RFC 3339 timestamp"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_to"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be an RFC 3339 timestamp"})
		return
	}

	entries, err := s.svc.ListAgenda(c.Request.Context(), providerID, from, to)
	if err != nil {
		s.writeError(c, log, err)
		return
	}

	out := make([]agendaEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAgendaEntryResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"agenda": out})
}

func (s *Server) listServices(c *gin.Context) {
	log := s.log.With(slog.String("route", "ListServices"))

	providerID, ok := pathUUID(c, log, "provider_id")
	if !ok {
		return
	}

	services, err := s.svc.ListServices(c.Request.Context(), providerID)
	if err != nil {
		s.writeError(c, log, err)
		return
	}

	out := make([]serviceResponse, 0, len(services))
	for _, svc := range services {
		out = append(out, toServiceResponse(svc))
	}
	c.JSON(http.StatusOK, gin.H{"services": out})
}

// writeError maps the service error taxonomy onto HTTP statuses.
// Conflicts are expected under concurrent load and logged at Info.
func (s *Server) writeError(c *gin.Context, log *slog.Logger, err error) {
	var nfErr *scheduling.NotFoundError
	var vErr *scheduling.ValidationError
	switch {
	case errors.As(err, &nfErr):
		log.Info("lookup missed", slog.String("entity", nfErr.Entity))
		c.JSON(http.StatusNotFound, gin.H{"error": nfErr.Error()})
	case errors.Is(err, store.ErrConflict):
		log.Info("booking conflict")
		c.JSON(http.StatusConflict, gin.H{"error": "slot already taken"})
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	default:
		log.Error("request failed", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathUUID(c *gin.Context, log *slog.Logger, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_"+param))
		c.JSON(http.StatusBadRequest, gin.H{"error": param + " must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func fieldUUID(c *gin.Context, log *slog.Logger, value, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_"+field))
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

type reservationResponse struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	ServiceID   string    `json:"service_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	CreatedAt   time.Time `json:"created_at"`
}

func toReservationResponse(res domain.Reservation, endTime time.Time) reservationResponse {
	return reservationResponse{
		ID:          res.ID.String(),
		RequesterID: res.RequesterID.String(),
		ServiceID:   res.ServiceID.String(),
		StartTime:   res.StartTime.UTC(),
		EndTime:     endTime.UTC(),
		CreatedAt:   res.CreatedAt.UTC(),
	}
}

type availabilityResponse struct {
	ID         string  `json:"id"`
	ProviderID string  `json:"provider_id"`
	Weekday    int16   `json:"weekday"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	BreakStart *string `json:"break_start,omitempty"`
	BreakEnd   *string `json:"break_end,omitempty"`
}

func toAvailabilityResponse(w domain.AvailabilityWindow) availabilityResponse {
	out := availabilityResponse{
		ID:         w.ID.String(),
		ProviderID: w.ProviderID.String(),
		Weekday:    w.Weekday,
		StartTime:  domain.FormatClock(w.StartMinute),
		EndTime:    domain.FormatClock(w.EndMinute),
	}
	if w.BreakStartMinute != nil && w.BreakEndMinute != nil {
		bs := domain.FormatClock(*w.BreakStartMinute)
		be := domain.FormatClock(*w.BreakEndMinute)
		out.BreakStart = &bs
		out.BreakEnd = &be
	}
	return out
}

type agendaEntryResponse struct {
	ID            string    `json:"id"`
	ProviderID    string    `json:"provider_id"`
	ServiceID     string    `json:"service_id"`
	ReservationID string    `json:"reservation_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

func toAgendaEntryResponse(e domain.AgendaEntry) agendaEntryResponse {
	return agendaEntryResponse{
		ID:            e.ID.String(),
		ProviderID:    e.ProviderID.String(),
		ServiceID:     e.ServiceID.String(),
		ReservationID: e.ReservationID.String(),
		StartTime:     e.StartTime.UTC(),
		EndTime:       e.EndTime.UTC(),
	}
}

type serviceResponse struct {
	ID              string `json:"id"`
	ProviderID      string `json:"provider_id"`
	Name            string `json:"name"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
}

func toServiceResponse(svc domain.Service) serviceResponse {
	return serviceResponse{
		ID:              svc.ID.String(),
		ProviderID:      svc.ProviderID.String(),
		Name:            svc.Name,
		PriceCents:      svc.PriceCents,
		DurationMinutes: svc.DurationMinutes,
	}
}
