package intake

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medicenter/medicenter/internal/domain/identity"
	"github.com/medicenter/medicenter/internal/domain/record"
	"github.com/medicenter/medicenter/internal/platform/apperr"
	"github.com/medicenter/medicenter/pkg/pagination"
)

type Handler struct {
	d *Dispatcher
}

func NewHandler(d *Dispatcher) *Handler {
	return &Handler{d: d}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/facilities", h.ListFacilities)
	api.GET("/facilities/compare", h.CompareFacilities)
	api.GET("/facilities/:id", h.GetFacility)
	api.GET("/facilities/:id/queue", h.GetQueue)
	api.GET("/facilities/:id/next", h.NextForAttention)
	api.POST("/facilities/:id/claim", h.Claim)
	api.POST("/facilities/:id/requeue", h.Requeue)
	api.GET("/facilities/:id/pending", h.PendingUnconfirmed)
	api.GET("/facilities/:id/records", h.FacilityRecords)

	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.GET("/patients/:id/history", h.GetHistory)
	api.GET("/patients/:id/facilities", h.EligibleFacilities)

	api.POST("/staff", h.CreateStaff)
	api.GET("/staff/:id", h.GetStaff)
	api.GET("/staff/:id/patients", h.AssignedPatients)

	api.GET("/records/:id", h.GetRecord)
	api.POST("/records/:id/confirm", h.Confirm)
	api.POST("/records/:id/transfer", h.Transfer)
}

// persisted answers with code and body when err is nil or only a
// persistence failure; the in-memory change stands either way.
func persisted(c echo.Context, code int, body interface{}, err error) error {
	if err == nil {
		return c.JSON(code, body)
	}
	if errors.Is(err, apperr.ErrPersistence) {
		c.Response().Header().Set("X-Persist-Error", "true")
		return c.JSON(code, body)
	}
	return apperr.ToHTTP(err)
}

func (h *Handler) ListFacilities(c echo.Context) error {
	return c.JSON(http.StatusOK, h.d.Facilities())
}

func (h *Handler) CompareFacilities(c echo.Context) error {
	return c.JSON(http.StatusOK, h.d.CompareFacilities())
}

func (h *Handler) GetFacility(c echo.Context) error {
	st, err := h.d.Facility(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) GetQueue(c echo.Context) error {
	entries, err := h.d.QueueSnapshot(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if entries == nil {
		entries = []QueueEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) NextForAttention(c echo.Context) error {
	t, ok, err := h.d.NextForAttention(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Claim(c echo.Context) error {
	t, ok, err := h.d.Claim(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, t)
}

type requeueResponse struct {
	Token    Token `json:"token"`
	Position int   `json:"position"`
}

func (h *Handler) Requeue(c echo.Context) error {
	var t Token
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if t.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id and record_id are required")
	}
	pos, err := h.d.Requeue(c.Request().Context(), t, c.Param("id"))
	return persisted(c, http.StatusOK, requeueResponse{Token: t, Position: pos}, err)
}

func (h *Handler) PendingUnconfirmed(c echo.Context) error {
	records, err := h.d.PendingUnconfirmed(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, page(c, records))
}

func (h *Handler) FacilityRecords(c echo.Context) error {
	records, err := h.d.FacilityRecords(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, page(c, records))
}

func page(c echo.Context, records []*record.ClinicalRecord) *pagination.Response {
	p := pagination.FromContext(c)
	return pagination.NewResponse(pagination.Page(p, records), len(records), p.Limit, p.Offset).
		WithNext(c.Request().URL.Path)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p identity.Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.d.RegisterPatient(c.Request().Context(), &p)
	return persisted(c, http.StatusCreated, out, err)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.d.Patient(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetHistory(c echo.Context) error {
	history, err := h.d.History(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, history)
}

func (h *Handler) EligibleFacilities(c echo.Context) error {
	list, err := h.d.EligibleFacilities(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateStaff(c echo.Context) error {
	var s identity.Staff
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.d.RegisterStaff(c.Request().Context(), &s)
	return persisted(c, http.StatusCreated, out, err)
}

func (h *Handler) GetStaff(c echo.Context) error {
	s, err := h.d.Staff(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) AssignedPatients(c echo.Context) error {
	list, err := h.d.AssignedPatients(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetRecord(c echo.Context) error {
	r, err := h.d.Record(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, r)
}

type confirmRequest struct {
	ClinicianID string  `json:"clinician_id"`
	Diagnosis   *string `json:"diagnosis"`
	Treatment   *string `json:"treatment"`
	Observation *string `json:"observation"`
}

func (h *Handler) Confirm(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ClinicianID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "clinician_id is required")
	}
	r, err := h.d.Confirm(c.Request().Context(), c.Param("id"), req.ClinicianID, record.Edits{
		Diagnosis:   req.Diagnosis,
		Treatment:   req.Treatment,
		Observation: req.Observation,
	})
	return persisted(c, http.StatusOK, r, err)
}

type transferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *Handler) Transfer(c echo.Context) error {
	var req transferRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.d.Transfer(c.Request().Context(), c.Param("id"), req.From, req.To)
	return persisted(c, http.StatusOK, r, err)
}
