package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborhq/furlough/pkg/leave"
)

func TestManagerApprovesReportRequest(t *testing.T) {
	env := newTestEnv(t)
	manager, managerToken := env.createUser(t, "mallory", RoleManager, nil)
	alice, _ := env.createUser(t, "alice", RoleEmployee, &manager.ID)
	lt := env.createLeaveType(t, "vacation", 25, true)
	record := env.createRequest(t, alice.ID, lt.ID, "2025-06-02", "2025-06-03", 2, leave.StatusPending)

	resp := env.do(t, http.MethodPost, "/v1/requests/"+itoa(record.ID)+"/approve", managerToken,
		map[string]any{"note": "enjoy"})
	requireStatus(t, resp, http.StatusOK)

	var decided LeaveRequest
	decodeBody(t, resp, &decided)
	require.Equal(t, leave.StatusApproved, decided.Status)
	require.NotNil(t, decided.ApproverID)
	require.Equal(t, manager.ID, *decided.ApproverID)
	require.Equal(t, "enjoy", decided.DecisionNote)
	require.NotNil(t, decided.DecidedAt)
}

func TestUnrelatedManagerCannotDecide(t *testing.T) {
	env := newTestEnv(t)
	_, otherToken := env.createUser(t, "oscar", RoleManager, nil)
	alice, _ := env.createUser(t, "alice", RoleEmployee, nil)
	lt := env.createLeaveType(t, "vacation", 25, true)
	record := env.createRequest(t, alice.ID, lt.ID, "2025-06-02", "2025-06-03", 2, leave.StatusPending)

	resp := env.do(t, http.MethodPost, "/v1/requests/"+itoa(record.ID)+"/approve", otherToken, nil)
	requireStatus(t, resp, http.StatusForbidden)
}

func TestCannotDecideOwnRequest(t *testing.T) {
	env := newTestEnv(t)
	manager, managerToken := env.createUser(t, "mallory", RoleManager, nil)
	lt := env.createLeaveType(t, "vacation", 25, true)
	record := env.createRequest(t, manager.ID, lt.ID, "2025-06-02", "2025-06-03", 2, leave.StatusPending)

	resp := env.do(t, http.MethodPost, "/v1/requests/"+itoa(record.ID)+"/approve", managerToken,
		map[string]any{"note": "looks fine to me"})
	requireStatus(t, resp, http.StatusForbidden)
}

func TestRejectRequiresNote(t *testing.T) {
	env := newTestEnv(t)
	_, hrToken := env.createUser(t, "harriet", RoleHR, nil)
	alice, _ := env.createUser(t, "alice", RoleEmployee, nil)
	lt := env.createLeaveType(t, "vacation", 25, true)
	record := env.createRequest(t, alice.ID, lt.ID, "2025-06-02", "2025-06-03", 2, leave.StatusPending)

	resp := env.do(t, http.MethodPost, "/v1/requests/"+itoa(record.ID)+"/reject", hrToken, nil)
	requireStatus(t, resp, http.StatusBadRequest)

	resp = env.do(t, http.MethodPost, "/v1/requests/"+itoa(record.ID)+"/reject", hrToken,
		map[string]any{"note": "short staffed that week"})
	requireStatus(t, resp, http.StatusOK)

	var decided LeaveRequest
	decodeBody(t, resp, &decided)
	require.Equal(t, leave.StatusRejected, decided.Status)
}

func TestDecisionIsFinal(t *testing.T) {
	env := newTestEnv(t)
	_, hrToken := env.createUser(t, "harriet", RoleHR, nil)
	alice, _ := env.createUser(t, "alice", RoleEmployee, nil)
	lt := env.createLeaveType(t, "vacation", 25, true)
	record := env.createRequest(t, alice.ID, lt.ID, "2025-06-02", "2025-06-03", 2, leave.StatusPending)

	resp := env.do(t, http.MethodPost, "/v1/requests/"+itoa(record.ID)+"/approve", hrToken, nil)
	requireStatus(t, resp, http.StatusOK)

	resp = env.do(t, http.MethodPost, "/v1/requests/"+itoa(record.ID)+"/reject", hrToken,
		map[string]any{"note": "changed my mind"})
	requireStatus(t, resp, http.StatusConflict)
}

func TestEmployeeCannotApprove(t *testing.T) {
	env := newTestEnv(t)
	alice, _ := env.createUser(t, "alice", RoleEmployee, nil)
	_, bobToken := env.createUser(t, "bob", RoleEmployee, nil)
	lt := env.createLeaveType(t, "vacation", 25, true)
	record := env.createRequest(t, alice.ID, lt.ID, "2025-06-02", "2025-06-03", 2, leave.StatusPending)

	resp := env.do(t, http.MethodPost, "/v1/requests/"+itoa(record.ID)+"/approve", bobToken, nil)
	requireStatus(t, resp, http.StatusForbidden)
}

func TestApprovedRequestCanStillBeCancelledByOwner(t *testing.T) {
	env := newTestEnv(t)
	_, hrToken := env.createUser(t, "harriet", RoleHR, nil)
	alice, aliceToken := env.createUser(t, "alice", RoleEmployee, nil)
	lt := env.createLeaveType(t, "vacation", 25, true)
	record := env.createRequest(t, alice.ID, lt.ID, "2025-06-02", "2025-06-03", 2, leave.StatusPending)

	resp := env.do(t, http.MethodPost, "/v1/requests/"+itoa(record.ID)+"/approve", hrToken, nil)
	requireStatus(t, resp, http.StatusOK)

	resp = env.do(t, http.MethodPost, "/v1/requests/"+itoa(record.ID)+"/cancel", aliceToken, nil)
	requireStatus(t, resp, http.StatusOK)

	var cancelled LeaveRequest
	decodeBody(t, resp, &cancelled)
	require.Equal(t, leave.StatusCancelled, cancelled.Status)
}
