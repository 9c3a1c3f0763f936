package apitest

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

func do(t *testing.T, method, url, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAuthRoutes(t *testing.T) {
	srv := New(t)

	resp, out := do(t, http.MethodPost, srv.APIURL()+"/auth/register", "",
		`{"name":"Ada","email":"ada@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, out["token"])

	resp, out = do(t, http.MethodPost, srv.APIURL()+"/auth/register", "",
		`{"name":"Ada","email":"ada@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Email already registered", out["error"])

	resp, out = do(t, http.MethodPost, srv.APIURL()+"/auth/login", "",
		`{"email":"ada@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", out["error"])

	resp, _ = do(t, http.MethodPost, srv.APIURL()+"/auth/login", "",
		`{"email":"ada@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireAuth(t *testing.T) {
	srv := New(t)

	resp, out := do(t, http.MethodGet, srv.APIURL()+"/tasks", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized", out["error"])

	resp, out = do(t, http.MethodGet, srv.APIURL()+"/tasks", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid or expired token", out["error"])
}

func TestTaskVisibility(t *testing.T) {
	srv := New(t)
	ada, adaTok := srv.AddUser("Ada", "ada@example.com", "pw1234")
	bob, bobTok := srv.AddUser("Bob", "bob@example.com", "pw1234")

	srv.AddTask(ada.ID, v1.Task{Title: "Ada's"})
	srv.AddTask(bob.ID, v1.Task{Title: "Bob's", AssignedTo: &ada.ID})
	srv.AddTask(bob.ID, v1.Task{Title: "Bob only"})

	_, out := do(t, http.MethodGet, srv.APIURL()+"/tasks", adaTok, "")
	assert.Len(t, out["tasks"], 2)

	_, out = do(t, http.MethodGet, srv.APIURL()+"/tasks", bobTok, "")
	assert.Len(t, out["tasks"], 2)

	resp, out := do(t, http.MethodGet, srv.APIURL()+"/tasks/3", adaTok, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Task not found", out["error"])
}

func TestCreateRejectsPartialDueDate(t *testing.T) {
	srv := New(t)
	_, tok := srv.AddUser("Ada", "ada@example.com", "pw1234")

	resp, _ := do(t, http.MethodPost, srv.APIURL()+"/tasks", tok, `{"title":"x","due_date":"2024-05-01"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out := do(t, http.MethodPost, srv.APIURL()+"/tasks", tok, `{"title":"x","due_date":"2024-05-01T00:00:00.000Z"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	task := out["task"].(map[string]any)
	assert.Equal(t, "todo", task["status"])
	assert.Equal(t, "medium", task["priority"])
}

func TestDeleteTwice(t *testing.T) {
	srv := New(t)
	u, tok := srv.AddUser("Ada", "ada@example.com", "pw1234")
	task := srv.AddTask(u.ID, v1.Task{Title: "x"})
	url := srv.APIURL() + "/tasks/" + jsonNumber(task.ID)

	resp, out := do(t, http.MethodDelete, url, tok, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Task deleted successfully", out["message"])

	resp, _ = do(t, http.MethodDelete, url, tok, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, srv.Tasks())
}

func TestFailNextIsConsumedOnce(t *testing.T) {
	srv := New(t)
	_, tok := srv.AddUser("Ada", "ada@example.com", "pw1234")
	srv.FailNext(http.MethodGet, "/api/tasks", http.StatusInternalServerError, `{"error":"boom"}`)

	resp, out := do(t, http.MethodGet, srv.APIURL()+"/tasks", tok, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "boom", out["error"])

	resp, _ = do(t, http.MethodGet, srv.APIURL()+"/tasks", tok, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, srv.RequestCount())
}

func TestDefaultSuggestionIsDoubleEncoded(t *testing.T) {
	status, body := DefaultSuggestion("ship it")
	assert.Equal(t, http.StatusOK, status)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	var resp v1.SuggestResponse
	require.NoError(t, json.Unmarshal(raw, &resp))

	s, encoded, err := resp.Decode()
	require.NoError(t, err)
	assert.True(t, encoded)
	assert.Equal(t, "ship it", s.Title)
	assert.Len(t, s.Subtasks, 3)
	assert.Equal(t, "2 days", s.TimeEstimate)
}

func TestSocketReceivesTaskUpdate(t *testing.T) {
	srv := New(t)
	u, tok := srv.AddUser("Ada", "ada@example.com", "pw1234")

	header := http.Header{"Authorization": {"Bearer " + tok}}
	conn, _, err := websocket.DefaultDialer.Dial(srv.WSURL()+"/"+jsonNumber(u.ID), header)
	require.NoError(t, err)
	defer conn.Close()
	require.True(t, srv.WaitForSocket(u.ID, 2*time.Second))

	resp, _ := do(t, http.MethodPost, srv.APIURL()+"/tasks", tok, `{"title":"x"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg v1.PushMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, v1.PushTypeTaskUpdate, msg.Type)
}

func TestSocketRejectsOtherUser(t *testing.T) {
	srv := New(t)
	_, tok := srv.AddUser("Ada", "ada@example.com", "pw1234")
	bob, _ := srv.AddUser("Bob", "bob@example.com", "pw1234")

	header := http.Header{"Authorization": {"Bearer " + tok}}
	_, resp, err := websocket.DefaultDialer.Dial(srv.WSURL()+"/"+jsonNumber(bob.ID), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
