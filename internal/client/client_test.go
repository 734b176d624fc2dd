package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vhq-lag/vhq/internal/models"
)

type call struct {
	Command string
	Args    map[string]interface{}
}

// fakeHost answers invoke requests from a table keyed by command.
func fakeHost(t *testing.T, answers map[string]string, calls *[]call) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Write([]byte(`{"ok":true,"db":"ok"}`))
			return
		}
		if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, "/invoke/") {
			http.NotFound(w, r)
			return
		}
		cmd := strings.TrimPrefix(r.URL.Path, "/invoke/")
		body, _ := io.ReadAll(r.Body)
		var args map[string]interface{}
		json.Unmarshal(body, &args)
		if calls != nil {
			*calls = append(*calls, call{Command: cmd, Args: args})
		}
		answer, ok := answers[cmd]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"unknown command: ` + cmd + `"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(answer))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetAgentStatus(t *testing.T) {
	var calls []call
	srv := fakeHost(t, map[string]string{
		CmdGetAgentStatus: `{"name":"vitra_lag","status":"running","last_activity":"2025-06-15T10:00:00Z","memory_usage":1024,"cpu_usage":12.5}`,
	}, &calls)

	c := New(srv.URL)
	st, err := c.GetAgentStatus(context.Background(), "vitra_lag")
	require.NoError(t, err)

	assert.Equal(t, "vitra_lag", st.Name)
	assert.Equal(t, models.AgentRunning, st.State())
	assert.Equal(t, int64(1024), st.MemoryUsage)
	assert.Equal(t, 12.5, st.CPUUsage)

	require.Len(t, calls, 1)
	assert.Equal(t, map[string]interface{}{"agentName": "vitra_lag"}, calls[0].Args)
}

func TestGetQueueStatus(t *testing.T) {
	srv := fakeHost(t, map[string]string{
		CmdGetQueueStatus: `{
			"queue_stats":{"pending":2,"running":1,"completed":3,"failed":0,"total":6},
			"agents":[{"name":"GHOST_LAG","status":"busy","health_score":0.97,"capabilities":["content_generation"],"current_task":"t-1"}],
			"max_concurrent_tasks":5}`,
	}, nil)

	qs, err := New(srv.URL).GetQueueStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, qs.QueueStats.Total)
	assert.Equal(t, 5, qs.MaxConcurrentTasks)
	require.Len(t, qs.Agents, 1)
	require.NotNil(t, qs.Agents[0].CurrentTask)
	assert.Equal(t, "t-1", *qs.Agents[0].CurrentTask)
}

func TestListsAndMetrics(t *testing.T) {
	srv := fakeHost(t, map[string]string{
		CmdGetGhostModels:    `["llama2","mistral"]`,
		CmdGetVitraLanguages: `["en","es"]`,
		CmdGetSystemMetrics:  `{"total_memory":100,"used_memory":40,"cpu_usage":3.5,"disk_usage":50,"active_tasks":1,"completed_tasks":2,"failed_tasks":0,"uptime":3600}`,
		CmdGetAgentInfo:      `{"name":"VITRA_LAG","model":"base"}`,
	}, nil)
	c := New(srv.URL)
	ctx := context.Background()

	names, err := c.GetGhostModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"llama2", "mistral"}, names)

	langs, err := c.GetVitraLanguages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "es"}, langs)

	m, err := c.GetSystemMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(40), m.UsedMemory)
	assert.Equal(t, 3600.0, m.Uptime)

	info, err := c.GetAgentInfo(ctx, "vitra_lag")
	require.NoError(t, err)
	assert.Equal(t, "base", info["model"])
}

func TestCommandsWithoutResult(t *testing.T) {
	var calls []call
	srv := fakeHost(t, map[string]string{
		CmdClearCompletedTasks: `null`,
		CmdCancelTask:          ``,
	}, &calls)
	c := New(srv.URL)

	require.NoError(t, c.ClearCompletedTasks(context.Background()))
	require.NoError(t, c.CancelTask(context.Background(), "abc"))

	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].Args, "argument-less commands send an empty object")
	assert.Equal(t, "abc", calls[1].Args["taskId"])
}

func TestSubmitTask_WrapsRequest(t *testing.T) {
	var calls []call
	srv := fakeHost(t, map[string]string{
		CmdProcessFile: `{"task_id":"t-9","status":"queued","message":"Task queued for vitra_lag"}`,
	}, &calls)

	resp, err := New(srv.URL).SubmitTask(context.Background(), models.ProcessRequest{FilePath: "/tmp/a.mp3"})
	require.NoError(t, err)
	assert.Equal(t, "t-9", resp.TaskID)

	require.Len(t, calls, 1)
	req, ok := calls[0].Args["request"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/tmp/a.mp3", req["file_path"])
	assert.NotContains(t, req, "agent_type")
}

func TestHostError(t *testing.T) {
	srv := fakeHost(t, map[string]string{}, nil)

	_, err := New(srv.URL).GetAgentStatus(context.Background(), "nobody")
	require.Error(t, err)

	var hostErr *HostError
	require.True(t, errors.As(err, &hostErr))
	assert.Equal(t, CmdGetAgentStatus, hostErr.Command)
	assert.Equal(t, http.StatusNotFound, hostErr.StatusCode)
	assert.Equal(t, "unknown command: get_agent_status", hostErr.Message)
}

func TestHostError_PlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New(srv.URL).ClearCompletedTasks(context.Background())
	var hostErr *HostError
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, "boom", hostErr.Message)
}

func TestInvoke_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewWithTimeout(srv.URL, 50*time.Millisecond)
	_, err := c.GetQueueStatus(context.Background())
	assert.Error(t, err)
}

func TestInvoke_ContextCancelled(t *testing.T) {
	srv := fakeHost(t, map[string]string{CmdGetQueueStatus: `{}`}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(srv.URL).GetQueueStatus(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckHealth(t *testing.T) {
	srv := fakeHost(t, nil, nil)
	ok, err := New(srv.URL + "/").CheckHealth(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = New("http://127.0.0.1:1").CheckHealth(context.Background())
	assert.Error(t, err)
}
