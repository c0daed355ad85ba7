package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/rdv-api/internal/config"
	"github.com/jwalitptl/rdv-api/internal/email"
	apptHandler "github.com/jwalitptl/rdv-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/rdv-api/internal/handler/auth"
	availHandler "github.com/jwalitptl/rdv-api/internal/handler/availability"
	catalogHandler "github.com/jwalitptl/rdv-api/internal/handler/catalog"
	exportHandler "github.com/jwalitptl/rdv-api/internal/handler/export"
	healthHandler "github.com/jwalitptl/rdv-api/internal/handler/health"
	notifHandler "github.com/jwalitptl/rdv-api/internal/handler/notification"
	"github.com/jwalitptl/rdv-api/internal/middleware"
	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/internal/payment"
	"github.com/jwalitptl/rdv-api/internal/repository/repositorytest"
	apptService "github.com/jwalitptl/rdv-api/internal/service/appointment"
	authService "github.com/jwalitptl/rdv-api/internal/service/auth"
	availService "github.com/jwalitptl/rdv-api/internal/service/availability"
	catalogService "github.com/jwalitptl/rdv-api/internal/service/catalog"
	"github.com/jwalitptl/rdv-api/internal/service/emailqueue"
	exportService "github.com/jwalitptl/rdv-api/internal/service/export"
	"github.com/jwalitptl/rdv-api/internal/service/notification"
	"github.com/jwalitptl/rdv-api/pkg/auth"
	"github.com/jwalitptl/rdv-api/pkg/httputil"
	"github.com/jwalitptl/rdv-api/pkg/security"
	pkgvalidator "github.com/jwalitptl/rdv-api/pkg/validator"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "s3cret-pass"
	day           = "2030-03-11"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := pkgvalidator.Register(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notification.Event, *model.Appointment) {}

type nopSender struct{}

func (nopSender) Send(context.Context, email.Message) error { return nil }

type testServer struct {
	engine *gin.Engine
	jwt    auth.JWTService
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	appointments := repositorytest.NewAppointments()
	providers := repositorytest.NewProviders(
		&model.Provider{Base: model.Base{ID: 1}, Name: "Dr Durand", Email: "durand@example.com", Active: true},
	)
	services := repositorytest.NewServices(
		&model.Service{Base: model.Base{ID: 2}, Name: "Consultation", Duration: 60, Price: 45, Capacity: 1, Status: model.ServiceStatusActive},
	)

	hash, err := security.HashPassword(adminPassword, bcrypt.MinCost)
	require.NoError(t, err)
	jwtSvc := auth.NewJWTService("router-secret", time.Hour)
	authSvc := authService.NewService(config.AdminConfig{Email: adminEmail, PasswordHash: hash}, jwtSvc, nil)

	avail := availService.NewService(appointments, providers, services, nil, nil)
	appts := apptService.NewService(appointments, avail, payment.NewProcessor(), nopNotifier{}, nil, nil)
	catalog := catalogService.NewService(providers, services, avail, nil)
	queue := emailqueue.NewService(repositorytest.NewEmailFailures(), nopSender{}, 3, nil, nil)
	exports := exportService.NewService(appointments, providers, services)

	registry := prometheus.NewRegistry()
	r := NewRouter(middleware.NewAuthMiddleware(authSvc), Handlers{
		Health:        healthHandler.NewHandler(nil, registry),
		Auth:          authHandler.NewHandler(authSvc),
		Availability:  availHandler.NewHandler(avail),
		Appointments:  apptHandler.NewHandler(appts),
		Catalog:       catalogHandler.NewHandler(catalog),
		Notifications: notifHandler.NewHandler(queue, 50),
		Exports:       exportHandler.NewHandler(exports),
	}, RouterConfig{Mode: gin.TestMode, Registerer: registry})
	r.Setup()

	return &testServer{engine: r.Engine(), jwt: jwtSvc}
}

func (s *testServer) do(method, path, body, token string) (*httptest.ResponseRecorder, httputil.Response) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp httputil.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	w, resp := s.do(http.MethodPost, "/api/v1/auth/login",
		`{"email":"`+adminEmail+`","password":"`+adminPassword+`"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	token, _ := data["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func dataMap(t *testing.T, resp httputil.Response) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func TestHealthAndHeaders(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodGet, "/api/v1/health/live", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1.0", w.Header().Get("X-API-Version"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w, _ = s.do(http.MethodGet, "/api/v1/health/ready", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/health/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rdv_http_requests_total")
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(http.MethodGet, "/api/v1/appointments", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", resp.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/appointments", "", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	viewer, _, err := s.jwt.GenerateAccessToken("viewer@example.com", "viewer")
	require.NoError(t, err)
	w, resp = s.do(http.MethodGet, "/api/v1/appointments", "", viewer)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", resp.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/auth/login", `{"email":"`+adminEmail+`","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/appointments", "", s.login(t))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPublicCatalogIsOpen(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(http.MethodGet, "/api/v1/providers", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	providers, ok := resp.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, providers, 1)

	w, _ = s.do(http.MethodGet, "/api/v1/services/2", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = s.do(http.MethodGet, "/api/v1/services/42", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", resp.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/services", `{"name":"Massage","duration":30}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	book := func(start string) (*httptest.ResponseRecorder, httputil.Response) {
		return s.do(http.MethodPost, "/api/v1/appointments",
			`{"provider_id":1,"service_id":2,"customer_name":"Alice Martin","customer_email":"alice@example.com","date":"`+day+`","start_time":"`+start+`"}`, "")
	}

	w, resp := book("10:00")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := dataMap(t, resp)
	assert.Equal(t, "11:00", first["end_time"])
	assert.Equal(t, "pending", first["status"])
	id := int64(first["id"].(float64))

	w, resp = book("10:30")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "slot_unavailable", resp.Code)

	w, _ = book("11:00")
	require.Equal(t, http.StatusCreated, w.Code)

	w, resp = s.do(http.MethodGet, "/api/v1/availability/slots?provider_id=1&service_id=2&date="+day, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	slots, ok := resp.Data.([]interface{})
	require.True(t, ok)
	for _, raw := range slots {
		slot := raw.(map[string]interface{})
		assert.NotEqual(t, "10:00", slot["start"])
		assert.NotEqual(t, "11:00", slot["start"])
	}

	path := "/api/v1/appointments/" + itoa(id)
	w, resp = s.do(http.MethodPut, path+"/status", `{"status":"confirmed"}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "confirmed", dataMap(t, resp)["status"])

	w, resp = s.do(http.MethodGet, path, "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "confirmed", dataMap(t, resp)["status"])

	w, resp = s.do(http.MethodPost, path+"/cancel", `{"reason":"empêchement"}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", dataMap(t, resp)["status"])

	w, _ = s.do(http.MethodPost, path+"/cancel", "", token)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = s.do(http.MethodGet, "/api/v1/appointments/stats", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, dataMap(t, resp)["total"])

	w, _ = s.do(http.MethodGet, "/api/v1/exports?type=appointments", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "rapport_appointments_")
	assert.Contains(t, w.Body.String(), "Alice Martin")

	w, resp = s.do(http.MethodGet, "/api/v1/exports?format=pdf", "", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", resp.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestNotificationQueueRoutes(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	w, resp := s.do(http.MethodGet, "/api/v1/notifications/failures/stats", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	w, _ = s.do(http.MethodPost, "/api/v1/notifications/failures/process?limit=10", "", token)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = s.do(http.MethodPost, "/api/v1/notifications/failures/cleanup?days=0", "", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", resp.Code)
}

func TestUnknownRouteAndBodyLimit(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodGet, "/api/v1/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	big := `{"provider_id":1,"service_id":2,"date":"` + day + `","start_time":"10:00","notes":"` +
		strings.Repeat("x", int(middleware.DefaultMaxBodySize)) + `"}`
	w, _ = s.do(http.MethodPost, "/api/v1/appointments", big, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
