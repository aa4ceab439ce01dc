package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"juriscalc/internal/childsupport"
	dErrors "juriscalc/pkg/domain-errors"
)

type fakeService struct {
	gotInput childsupport.CalculationInput
	result   *childsupport.Result
	err      error
}

func (f *fakeService) Calculate(_ context.Context, input childsupport.CalculationInput) (*childsupport.Result, error) {
	f.gotInput = input
	return f.result, f.err
}

func post(t *testing.T, svc Service, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := chi.NewRouter()
	New(svc).RegisterRoutes(router)
	req := httptest.NewRequest(http.MethodPost, "/calculations/child-support", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func validBody() string {
	return `{
		"jurisdiction": "CA",
		"calculation_type": "initial",
		"parent1": {"gross_monthly_income": 6750, "overnights_per_year": 100},
		"parent2": {"gross_monthly_income": 2250, "overnights_per_year": 265,
			"deductions": [{"type": "union_dues", "amount": 50}]},
		"children": [
			{"date_of_birth": "2016-03-01", "health_insurance": "parent1"},
			{"date_of_birth": "2019-09-01"}
		]
	}`
}

func TestCalculateSuccess(t *testing.T) {
	svc := &fakeService{result: &childsupport.Result{
		PayingParent: childsupport.Parent1,
		NetSupport:   decimal.RequireFromString("900"),
		Warnings:     []string{},
	}}

	rec := post(t, svc, validBody())
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, childsupport.TypeInitial, svc.gotInput.Type)
	require.True(t, svc.gotInput.Parent1.GrossMonthlyIncome.Equal(decimal.NewFromInt(6750)))
	require.Len(t, svc.gotInput.Parent2.Deductions, 1)
	require.Len(t, svc.gotInput.Children, 2)
	require.Equal(t, childsupport.CoverageParent1, svc.gotInput.Children[0].HealthInsurance)
	require.Equal(t, childsupport.CoverageNeither, svc.gotInput.Children[1].HealthInsurance)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "parent1", body["paying_parent"])
	require.Equal(t, "900", body["net_support"])
}

func TestCalculateDefaultsTypeToInitial(t *testing.T) {
	svc := &fakeService{result: &childsupport.Result{}}
	body := `{"jurisdiction":"CA","parent1":{},"parent2":{},"children":[{"date_of_birth":"2016-03-01"}]}`

	rec := post(t, svc, body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, childsupport.TypeInitial, svc.gotInput.Type)
}

func TestCalculateMalformedJSON(t *testing.T) {
	rec := post(t, &fakeService{}, `{"jurisdiction"`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "bad_request", body["error"])
}

func TestCalculateBadDateOfBirth(t *testing.T) {
	body := `{"jurisdiction":"CA","parent1":{},"parent2":{},"children":[{"date_of_birth":"03/01/2016"}]}`
	rec := post(t, &fakeService{}, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "date_of_birth")
}

func TestCalculateBadCoverageValue(t *testing.T) {
	body := `{"jurisdiction":"CA","parent1":{},"parent2":{},"children":[{"date_of_birth":"2016-03-01","health_insurance":"grandparent"}]}`
	rec := post(t, &fakeService{}, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "health_insurance")
}

func TestCalculateGuidelineNotFound(t *testing.T) {
	svc := &fakeService{err: dErrors.New(dErrors.CodeRuleNotFound, "no child-support guideline for CA")}

	rec := post(t, svc, validBody())
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "rule_not_found", body["error"])
}
