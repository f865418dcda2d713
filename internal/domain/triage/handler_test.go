package triage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type fakeStarter struct {
	tree    *Tree
	intaker *fakeIntaker
}

func (f *fakeStarter) BeginTriage(_ context.Context, patientID, facilityID string, symptoms []string) (*Session, error) {
	return NewSession(f.tree, f.intaker, SessionConfig{
		PatientID:  patientID,
		FacilityID: facilityID,
		Symptoms:   symptoms,
		Shortcuts:  true,
	})
}

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()
	tree := mustDefaultTree(t)
	h := NewHandler(&fakeStarter{tree: tree, intaker: &fakeIntaker{}}, NewSessionStore(), tree)
	return h, echo.New()
}

func jsonContext(e *echo.Echo, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_CreateSession(t *testing.T) {
	h, e := newTestHandler(t)
	c, rec := jsonContext(e, http.MethodPost, `{"patient_id":"P0001","facility_id":"H001","symptoms":["Fiebre","Tos"]}`)

	if err := h.CreateSession(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var st State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.ID == "" || st.NodeID != "fiebre_si" {
		t.Errorf("unexpected state %+v", st)
	}
	if h.sessions.Len() != 1 {
		t.Errorf("expected session to be stored")
	}
}

func TestHandler_CreateSession_BadSymptoms(t *testing.T) {
	h, e := newTestHandler(t)
	c, _ := jsonContext(e, http.MethodPost, `{"patient_id":"P0001","facility_id":"H001","symptoms":[]}`)

	err := h.CreateSession(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_AnswerAndFinalize(t *testing.T) {
	h, e := newTestHandler(t)
	s, _ := h.starter.BeginTriage(context.Background(), "P0001", "H001", []string{"Mareos"})
	id := h.sessions.Add(s)

	for _, body := range []string{`{"answer":"no"}`, `{"answer":false}`, `{"answer":"no"}`} {
		c, rec := jsonContext(e, http.MethodPost, body)
		c.SetParamNames("id")
		c.SetParamValues(id)
		if err := h.SubmitAnswer(c); err != nil {
			t.Fatalf("SubmitAnswer(%s): %v", body, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}

	c, rec := jsonContext(e, http.MethodPost, "")
	c.SetParamNames("id")
	c.SetParamValues(id)
	if err := h.FinalizeSession(c); err != nil {
		t.Fatalf("FinalizeSession: %v", err)
	}
	var resp finalizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Finalized || resp.RecordID == "" || resp.QueuePosition != 1 {
		t.Errorf("unexpected response %+v", resp)
	}

	c, _ = jsonContext(e, http.MethodPost, "")
	c.SetParamNames("id")
	c.SetParamValues(id)
	if n := h.sessions.Len(); n != 0 {
		t.Errorf("finalized session still stored: %d open", n)
	}
	err := h.FinalizeSession(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second finalize, got %v", err)
	}
}

func TestHandler_SubmitAnswer_Missing(t *testing.T) {
	h, e := newTestHandler(t)
	s, _ := h.starter.BeginTriage(context.Background(), "P0001", "H001", []string{"Mareos"})
	id := h.sessions.Add(s)

	c, _ := jsonContext(e, http.MethodPost, `{}`)
	c.SetParamNames("id")
	c.SetParamValues(id)
	err := h.SubmitAnswer(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_GetSession_NotFound(t *testing.T) {
	h, e := newTestHandler(t)
	c, _ := jsonContext(e, http.MethodGet, "")
	c.SetParamNames("id")
	c.SetParamValues("missing")
	err := h.GetSession(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_DeleteSession(t *testing.T) {
	h, e := newTestHandler(t)
	s, _ := h.starter.BeginTriage(context.Background(), "P0001", "H001", []string{"Tos"})
	id := h.sessions.Add(s)

	c, rec := jsonContext(e, http.MethodDelete, "")
	c.SetParamNames("id")
	c.SetParamValues(id)
	if err := h.DeleteSession(c); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_GetTree(t *testing.T) {
	h, e := newTestHandler(t)
	c, rec := jsonContext(e, http.MethodGet, "")
	if err := h.GetTree(c); err != nil {
		t.Fatalf("GetTree: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "diag_neumonia_covid") {
		t.Error("expected tree paths in response")
	}
}
