package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"portal-api/internal/domain/appointment"
	"portal-api/internal/infrastructure/metrics"
	"portal-api/internal/infrastructure/observability"
	"portal-api/internal/interfaces/httpserver/middlewares"
	"portal-api/internal/utils/platformerrors"
)

// BookRequest is the booking form.
type BookRequest struct {
	Name  string `json:"name" example:"Ada Lovelace"`
	Email string `json:"email" example:"ada@example.com"`
	Date  string `json:"date" example:"2026-03-02"`
	Time  string `json:"time" example:"09:30"`
}

// RescheduleRequest moves an appointment to another slot.
type RescheduleRequest struct {
	Date string `json:"date" example:"2026-03-02"`
	Time string `json:"time" example:"10:00"`
}

// AppointmentResponse wraps one appointment.
type AppointmentResponse struct {
	Success     bool                    `json:"success" example:"true"`
	Appointment appointment.Appointment `json:"appointment"`
}

// AppointmentsResponse wraps a list of appointments.
type AppointmentsResponse struct {
	Success      bool                      `json:"success" example:"true"`
	Appointments []appointment.Appointment `json:"appointments"`
}

// BookedSlotsResponse lists occupied slots without owner details.
type BookedSlotsResponse struct {
	Success bool               `json:"success" example:"true"`
	Slots   []appointment.Slot `json:"slots"`
}

// AppointmentHandler serves the applicant side of appointment booking.
type AppointmentHandler struct {
	appointments appointment.Service
	log          zerolog.Logger
}

// NewAppointmentHandler wires dependencies for appointment routes.
func NewAppointmentHandler(appointments appointment.Service, log zerolog.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		appointments: appointments,
		log:          log.With().Str("component", "appointment-handler").Logger(),
	}
}

// List godoc
// @Summary      List own appointments
// @Tags         appointments
// @Produce      json
// @Success      200  {object}  AppointmentsResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /api/termine [get]
func (h *AppointmentHandler) List(c *gin.Context) {
	p := middlewares.PrincipalFromContext(c)
	appts, err := h.appointments.ListMine(c.Request.Context(), *p.UserID)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, AppointmentsResponse{Success: true, Appointments: appts})
}

// Booked godoc
// @Summary      List booked slots
// @Description  Returns only date and time of every active appointment.
// @Tags         appointments
// @Produce      json
// @Success      200  {object}  BookedSlotsResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /api/termine/belegt [get]
func (h *AppointmentHandler) Booked(c *gin.Context) {
	slots, err := h.appointments.BookedSlots(c.Request.Context())
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, BookedSlotsResponse{Success: true, Slots: slots})
}

// Book godoc
// @Summary      Book an appointment
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Param        body  body      BookRequest  true  "Booking form"
// @Success      200   {object}  AppointmentResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Router       /api/termine [post]
func (h *AppointmentHandler) Book(c *gin.Context) {
	var req BookRequest
	if !bindJSON(c, &req) {
		return
	}
	p := middlewares.PrincipalFromContext(c)

	ctx, span := observability.StartSpan(c.Request.Context(), "appointment.book",
		attribute.String("appointment.date", req.Date),
		attribute.String("appointment.time", req.Time),
	)
	defer span.End()

	appt, err := h.appointments.Book(ctx, appointment.BookInput{
		UserID: *p.UserID,
		Name:   req.Name,
		Email:  req.Email,
		Date:   req.Date,
		Time:   req.Time,
	})
	metrics.RecordAppointment("book", outcome(err))
	if err != nil {
		observability.RecordError(span, err)
		platformerrors.WriteError(c, err, h.log)
		return
	}
	span.SetAttributes(attribute.Int64("appointment.id", appt.ID))
	c.JSON(http.StatusOK, AppointmentResponse{Success: true, Appointment: appt})
}

// Reschedule godoc
// @Summary      Reschedule an own appointment
// @Tags         appointments
// @Accept       json
// @Produce      json
// @Param        id    path      int                true  "Appointment id"
// @Param        body  body      RescheduleRequest  true  "New slot"
// @Success      200   {object}  AppointmentResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Router       /api/termine/{id} [patch]
func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid appointment id")
	if !ok {
		return
	}
	var req RescheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	p := middlewares.PrincipalFromContext(c)

	ctx, span := observability.StartSpan(c.Request.Context(), "appointment.reschedule",
		attribute.Int64("appointment.id", id),
		attribute.String("appointment.date", req.Date),
		attribute.String("appointment.time", req.Time),
	)
	defer span.End()

	appt, err := h.appointments.Reschedule(ctx, id, *p.UserID, req.Date, req.Time)
	metrics.RecordAppointment("reschedule", outcome(err))
	if err != nil {
		observability.RecordError(span, err)
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, AppointmentResponse{Success: true, Appointment: appt})
}

// Cancel godoc
// @Summary      Cancel an own appointment
// @Tags         appointments
// @Produce      json
// @Param        id   path      int  true  "Appointment id"
// @Success      200  {object}  SuccessResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/termine/{id} [delete]
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid appointment id")
	if !ok {
		return
	}
	p := middlewares.PrincipalFromContext(c)

	err := h.appointments.Cancel(c.Request.Context(), id, *p.UserID)
	metrics.RecordAppointment("cancel", outcome(err))
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
