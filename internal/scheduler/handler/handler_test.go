package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"juriscalc/internal/scheduler"
	dErrors "juriscalc/pkg/domain-errors"
)

type fakeService struct {
	entries []scheduler.Entry
	history []scheduler.UpdateResult

	gotDataType  scheduler.DataType
	gotFrequency *scheduler.Frequency
	gotEnabled   *bool
	gotLimit     int

	entry  *scheduler.Entry
	result *scheduler.UpdateResult
	err    error
}

func (f *fakeService) GetSchedule(context.Context) ([]scheduler.Entry, error) {
	return f.entries, f.err
}

func (f *fakeService) SetSchedule(_ context.Context, dataType scheduler.DataType, frequency *scheduler.Frequency, enabled *bool) (*scheduler.Entry, error) {
	f.gotDataType, f.gotFrequency, f.gotEnabled = dataType, frequency, enabled
	return f.entry, f.err
}

func (f *fakeService) Trigger(_ context.Context, dataType scheduler.DataType) (*scheduler.UpdateResult, error) {
	f.gotDataType = dataType
	return f.result, f.err
}

func (f *fakeService) History(_ context.Context, limit int) ([]scheduler.UpdateResult, error) {
	f.gotLimit = limit
	return f.history, f.err
}

func serve(svc Service, method, target, body string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	h := New(svc)
	h.RegisterRoutes(router)
	h.RegisterAdminRoutes(router)

	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetSchedule(t *testing.T) {
	svc := &fakeService{entries: []scheduler.Entry{
		{DataType: scheduler.DataFederalTax, Frequency: scheduler.FreqMonthly, Enabled: true},
	}}

	rec := serve(svc, http.MethodGet, "/updates/schedule", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Schedule []scheduler.Entry `json:"schedule"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Schedule, 1)
	require.Equal(t, scheduler.DataFederalTax, body.Schedule[0].DataType)
}

func TestGetHistoryPassesLimit(t *testing.T) {
	svc := &fakeService{history: []scheduler.UpdateResult{
		{DataType: scheduler.DataStateTax, Status: scheduler.StatusSuccess, Timestamp: time.Now()},
	}}

	rec := serve(svc, http.MethodGet, "/updates/history?limit=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 7, svc.gotLimit)
}

func TestGetHistoryRejectsBadLimit(t *testing.T) {
	rec := serve(&fakeService{}, http.MethodGet, "/updates/history?limit=soon", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "limit")
}

func TestPatchSchedule(t *testing.T) {
	svc := &fakeService{entry: &scheduler.Entry{
		DataType: scheduler.DataFederalTax, Frequency: scheduler.FreqWeekly, Enabled: false,
	}}

	rec := serve(svc, http.MethodPatch, "/updates/schedule/federal_tax",
		`{"frequency":"weekly","enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, scheduler.DataFederalTax, svc.gotDataType)
	require.NotNil(t, svc.gotFrequency)
	require.Equal(t, scheduler.FreqWeekly, *svc.gotFrequency)
	require.NotNil(t, svc.gotEnabled)
	require.False(t, *svc.gotEnabled)
}

func TestPatchScheduleUnknownDataType(t *testing.T) {
	rec := serve(&fakeService{}, http.MethodPatch, "/updates/schedule/astrology", `{"enabled":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchScheduleEmptyBody(t *testing.T) {
	rec := serve(&fakeService{}, http.MethodPatch, "/updates/schedule/federal_tax", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "at least one")
}

func TestPatchScheduleBadFrequency(t *testing.T) {
	rec := serve(&fakeService{}, http.MethodPatch, "/updates/schedule/federal_tax",
		`{"frequency":"hourly"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrigger(t *testing.T) {
	svc := &fakeService{result: &scheduler.UpdateResult{
		DataType:      scheduler.DataChildSupport,
		Status:        scheduler.StatusSuccess,
		TriggerSource: scheduler.SourceManual,
	}}

	rec := serve(svc, http.MethodPost, "/updates/trigger/child_support", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, scheduler.DataChildSupport, svc.gotDataType)

	var body scheduler.UpdateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, scheduler.StatusSuccess, body.Status)
	require.Equal(t, scheduler.SourceManual, body.TriggerSource)
}

func TestTriggerNoAdapter(t *testing.T) {
	svc := &fakeService{err: dErrors.New(dErrors.CodeNotFound, "no ingestion adapter for business_formation")}

	rec := serve(svc, http.MethodPost, "/updates/trigger/business_formation", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
