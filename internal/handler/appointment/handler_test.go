package appointment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/rdv-api/internal/middleware"
	"github.com/jwalitptl/rdv-api/internal/model"
	apperrors "github.com/jwalitptl/rdv-api/pkg/errors"
	"github.com/jwalitptl/rdv-api/pkg/httputil"
	pkgvalidator "github.com/jwalitptl/rdv-api/pkg/validator"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := pkgvalidator.Register(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type stubService struct {
	created    *model.CreateAppointmentRequest
	createErr  error
	getErr     error
	listFilter *model.AppointmentFilters
	status     string
	reason     string
	deleted    int64
}

func (s *stubService) Create(_ context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	s.created = req
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &model.Appointment{
		Base:       model.Base{ID: 7},
		ProviderID: req.ProviderID,
		ServiceID:  req.ServiceID,
		Date:       req.Date,
		StartTime:  req.StartTime,
		EndTime:    "11:00",
		Status:     model.AppointmentStatusPending,
	}, nil
}

func (s *stubService) Get(_ context.Context, id int64) (*model.Appointment, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &model.Appointment{Base: model.Base{ID: id}, Status: model.AppointmentStatusConfirmed}, nil
}

func (s *stubService) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, int, error) {
	s.listFilter = filters
	return []*model.Appointment{{Base: model.Base{ID: 1}}}, 1, nil
}

func (s *stubService) History(_ context.Context, id int64) ([]*model.AppointmentLog, error) {
	return []*model.AppointmentLog{{AppointmentID: id, Action: "created"}}, nil
}

func (s *stubService) UpdateStatus(_ context.Context, id int64, status string) (*model.Appointment, error) {
	s.status = status
	return &model.Appointment{Base: model.Base{ID: id}, Status: model.AppointmentStatus(status)}, nil
}

func (s *stubService) Cancel(_ context.Context, id int64, reason string) (*model.Appointment, error) {
	s.reason = reason
	return &model.Appointment{Base: model.Base{ID: id}, Status: model.AppointmentStatusCancelled}, nil
}

func (s *stubService) Reschedule(_ context.Context, id int64, _ *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	return &model.Appointment{Base: model.Base{ID: id}}, nil
}

func (s *stubService) Delete(_ context.Context, id int64) error {
	s.deleted = id
	return nil
}

func (s *stubService) Stats(_ context.Context, _, _ string) (*model.AppointmentStats, error) {
	return &model.AppointmentStats{Total: 3}, nil
}

func setupRouter(svc Service) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	api := r.Group("/api/v1")
	NewHandler(svc).RegisterRoutes(api, api)
	return r
}

func perform(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, httputil.Response) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp httputil.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestCreateAppointment(t *testing.T) {
	svc := &stubService{}
	r := setupRouter(svc)

	w, resp := perform(r, http.MethodPost, "/api/v1/appointments",
		`{"provider_id":1,"service_id":2,"date":"2025-03-10","start_time":"10:00","customer_name":"Alice"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, svc.created)
	assert.Equal(t, "10:00", svc.created.StartTime)
	assert.Equal(t, "Alice", svc.created.CustomerName)
}

func TestCreateAppointment_BindingErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing date", `{"provider_id":1,"service_id":2,"start_time":"10:00"}`, string(apperrors.CodeMissingRequiredParams)},
		{"missing provider", `{"service_id":2,"date":"2025-03-10","start_time":"10:00"}`, string(apperrors.CodeMissingRequiredParams)},
		{"bad clock", `{"provider_id":1,"service_id":2,"date":"2025-03-10","start_time":"25:00"}`, string(apperrors.CodeBadRequest)},
		{"bad date", `{"provider_id":1,"service_id":2,"date":"10/03/2025","start_time":"10:00"}`, string(apperrors.CodeBadRequest)},
		{"unknown field", `{"provider_id":1,"service_id":2,"date":"2025-03-10","start_time":"10:00","admin":true}`, string(apperrors.CodeBadRequest)},
		{"malformed json", `{"provider_id":`, string(apperrors.CodeBadRequest)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			w, resp := perform(setupRouter(svc), http.MethodPost, "/api/v1/appointments", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Code)
			assert.Nil(t, svc.created)
		})
	}
}

func TestCreateAppointment_ServiceErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"slot taken", apperrors.SlotUnavailable(""), http.StatusBadRequest, string(apperrors.CodeSlotUnavailable), ""},
		{"unknown provider", apperrors.NewNotFound("provider", nil), http.StatusNotFound, string(apperrors.CodeNotFound), ""},
		{"storage failure", apperrors.NewInternal(assert.AnError), http.StatusInternalServerError, string(apperrors.CodeInternal), "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{createErr: tt.err}
			w, resp := perform(setupRouter(svc), http.MethodPost, "/api/v1/appointments",
				`{"provider_id":1,"service_id":2,"date":"2025-03-10","start_time":"10:00"}`)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, resp.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Message)
			}
		})
	}
}

func TestListAppointments(t *testing.T) {
	svc := &stubService{}
	r := setupRouter(svc)

	w, resp := perform(r, http.MethodGet, "/api/v1/appointments?status=confirmed&provider_id=1&start_date=2025-03-01", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, svc.listFilter)
	assert.Equal(t, model.AppointmentStatusConfirmed, svc.listFilter.Status)
	assert.Equal(t, int64(1), svc.listFilter.ProviderID)
	assert.Equal(t, "2025-03-01", svc.listFilter.StartDate)

	w, resp = perform(r, http.MethodGet, "/api/v1/appointments?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperrors.CodeInvalidStatus), resp.Code)

	w, _ = perform(r, http.MethodGet, "/api/v1/appointments?start_date=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAppointment(t *testing.T) {
	r := setupRouter(&stubService{})
	w, resp := perform(r, http.MethodGet, "/api/v1/appointments/12", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	w, resp = perform(r, http.MethodGet, "/api/v1/appointments/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperrors.CodeBadRequest), resp.Code)

	missing := setupRouter(&stubService{getErr: apperrors.NewNotFound("appointment", nil)})
	w, resp = perform(missing, http.MethodGet, "/api/v1/appointments/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperrors.CodeNotFound), resp.Code)
}

func TestUpdateStatus(t *testing.T) {
	svc := &stubService{}
	r := setupRouter(svc)

	w, _ := perform(r, http.MethodPut, "/api/v1/appointments/3/status", `{"status":"confirmed"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "confirmed", svc.status)

	w, resp := perform(r, http.MethodPut, "/api/v1/appointments/3/status", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperrors.CodeMissingRequiredParams), resp.Code)
}

func TestCancelAppointment(t *testing.T) {
	svc := &stubService{}
	r := setupRouter(svc)

	w, _ := perform(r, http.MethodPost, "/api/v1/appointments/3/cancel", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, svc.reason)

	w, _ = perform(r, http.MethodPost, "/api/v1/appointments/3/cancel", `{"reason":"client absent"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "client absent", svc.reason)
}

func TestDeleteAndStats(t *testing.T) {
	svc := &stubService{}
	r := setupRouter(svc)

	w, resp := perform(r, http.MethodDelete, "/api/v1/appointments/5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "appointment deleted", resp.Message)
	assert.Equal(t, int64(5), svc.deleted)

	w, resp = perform(r, http.MethodGet, "/api/v1/appointments/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 3, data["total"])
}
