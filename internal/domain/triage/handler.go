package triage

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medicenter/medicenter/internal/platform/apperr"
)

// Starter opens a session for a patient at a facility. The dispatcher
// implements it so eligibility is checked before the walk starts.
type Starter interface {
	BeginTriage(ctx context.Context, patientID, facilityID string, symptoms []string) (*Session, error)
}

type Handler struct {
	starter  Starter
	sessions *SessionStore
	tree     *Tree
}

func NewHandler(starter Starter, sessions *SessionStore, tree *Tree) *Handler {
	return &Handler{starter: starter, sessions: sessions, tree: tree}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/triage/symptoms", h.ListSymptoms)
	api.GET("/triage/tree", h.GetTree)
	api.POST("/triage/sessions", h.CreateSession)
	api.GET("/triage/sessions/:id", h.GetSession)
	api.POST("/triage/sessions/:id/answers", h.SubmitAnswer)
	api.POST("/triage/sessions/:id/finalize", h.FinalizeSession)
	api.DELETE("/triage/sessions/:id", h.DeleteSession)
}

type createSessionRequest struct {
	PatientID  string   `json:"patient_id"`
	FacilityID string   `json:"facility_id"`
	Symptoms   []string `json:"symptoms"`
}

type answerRequest struct {
	Answer *Answer `json:"answer"`
}

type finalizeResponse struct {
	State
	PersistError string `json:"persist_error,omitempty"`
}

func (h *Handler) ListSymptoms(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"symptoms": Catalogue})
}

func (h *Handler) GetTree(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"root":  h.tree.Root(),
		"depth": h.tree.Depth(),
		"paths": h.tree.Paths(),
	})
}

func (h *Handler) CreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, err := h.starter.BeginTriage(c.Request().Context(), req.PatientID, req.FacilityID, req.Symptoms)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	h.sessions.Add(s)
	return c.JSON(http.StatusCreated, s.State())
}

func (h *Handler) GetSession(c echo.Context) error {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, s.State())
}

func (h *Handler) SubmitAnswer(c echo.Context) error {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Answer == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "answer is required")
	}
	state, err := s.Submit(*req.Answer)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (h *Handler) FinalizeSession(c echo.Context) error {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	state, err := s.Finalize(c.Request().Context())
	if err != nil && !errors.Is(err, apperr.ErrPersistence) {
		return apperr.ToHTTP(err)
	}
	// the record now lives in the dispatcher; the session has no further use
	_ = h.sessions.Delete(c.Param("id"))
	resp := finalizeResponse{State: state}
	if err != nil {
		resp.PersistError = err.Error()
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
