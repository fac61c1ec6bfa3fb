package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harborhq/furlough/pkg/leave"
	"github.com/harborhq/furlough/pkg/policy"
	"github.com/harborhq/furlough/pkg/ratelimit"
)

const bootstrapToken = "root-token"

type testEnv struct {
	server *Server
	gin    *gin.Engine
}

func newTestEnv(t *testing.T) testEnv {
	return newTestEnvWithPolicies(t, ratelimit.DefaultPolicies())
}

func newTestEnvWithPolicies(t *testing.T, policies ratelimit.Policies) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:furlough-test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(allModels()...))

	limiter := ratelimit.New(policies, time.Hour, zerolog.Nop())
	t.Cleanup(limiter.Stop)

	srv := &Server{
		db:          db,
		logger:      zerolog.Nop(),
		limiter:     limiter,
		leavePolicy: policy.Default(),
		tokenHasher: NewTokenHasher([]byte("test-salt")),
		adminToken:  bootstrapToken,
		uploadDir:   t.TempDir(),
	}

	g := gin.New()
	srv.registerLeaveRoutes(g)
	srv.registerApprovalRoutes(g)
	srv.registerAdminRoutes(g)

	return testEnv{server: srv, gin: g}
}

// createUser inserts a user plus an API token whose raw value is returned.
func (e testEnv) createUser(t *testing.T, name, role string, managerID *uint) (User, string) {
	t.Helper()
	user := User{
		Email:     name + "@example.com",
		Name:      name,
		Role:      role,
		ManagerID: managerID,
		Active:    true,
	}
	require.NoError(t, e.server.db.Create(&user).Error)

	raw := name + "-token"
	token := APIToken{
		UserID:    user.ID,
		Label:     "test",
		TokenHash: e.server.tokenHasher.HashString(raw),
	}
	require.NoError(t, e.server.db.Create(&token).Error)
	return user, raw
}

func (e testEnv) createLeaveType(t *testing.T, name string, daysPerYear int, requiresApproval bool) LeaveType {
	t.Helper()
	lt := LeaveType{
		Name:             name,
		DaysPerYear:      daysPerYear,
		RequiresApproval: requiresApproval,
		Active:           true,
	}
	require.NoError(t, e.server.db.Create(&lt).Error)
	return lt
}

func (e testEnv) createRequest(t *testing.T, userID, typeID uint, start, end string, days int, status leave.Status) LeaveRequest {
	t.Helper()
	startDate, err := time.Parse(dateLayout, start)
	require.NoError(t, err)
	endDate, err := time.Parse(dateLayout, end)
	require.NoError(t, err)

	record := LeaveRequest{
		UserID:      userID,
		LeaveTypeID: typeID,
		StartDate:   leave.Day(startDate),
		EndDate:     leave.Day(endDate),
		Days:        days,
		Status:      status,
	}
	require.NoError(t, e.server.db.Create(&record).Error)
	return record
}

func (e testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	e.gin.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), out))
}

func requireStatus(t *testing.T, resp *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, resp.Code, "body: %s", resp.Body.String())
}
