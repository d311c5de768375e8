package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"disasterwatch/internal/domain"
	"disasterwatch/internal/metrics"
	"disasterwatch/internal/service"
)

func init() { gin.SetMode(gin.TestMode) }

type stubAnswerer struct {
	ans      domain.Answer
	err      error
	question string
	k        int
}

func (s *stubAnswerer) Answer(_ context.Context, q string, k int) (domain.Answer, error) {
	s.question = q
	s.k = k
	return s.ans, s.err
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := NewRouter(&stubAnswerer{}, nil, zaptest.NewLogger(t))
	w := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAsk_OK(t *testing.T) {
	a := &stubAnswerer{ans: domain.Answer{Text: "Floods in Assam.", Sources: []string{"n1", "n2", "n3"}}}
	r := NewRouter(a, nil, zaptest.NewLogger(t))

	w := do(t, r, http.MethodPost, "/ask", `{"question":"What about Assam?","k":4}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"Floods in Assam.","sources":["n1","n2","n3"]}`, w.Body.String())
	assert.Equal(t, "What about Assam?", a.question)
	assert.Equal(t, 4, a.k)
}

func TestAsk_NoDataKeepsEmptySourcesArray(t *testing.T) {
	a := &stubAnswerer{ans: domain.Answer{Text: service.NoDataAnswer, Sources: []string{}}}
	w := do(t, NewRouter(a, nil, zaptest.NewLogger(t)), http.MethodPost, "/ask", `{"question":"q"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []any{}, body["sources"])
	assert.Equal(t, 0, a.k)
}

func TestAsk_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "question=hi"},
		{"missing question", `{"k":3}`},
		{"blank question", `{"question":"   "}`},
		{"wrong type", `{"question":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &stubAnswerer{}
			w := do(t, NewRouter(a, nil, zaptest.NewLogger(t)), http.MethodPost, "/ask", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
			assert.Empty(t, a.question)
		})
	}
}

func TestAsk_Failures(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: provider down", service.ErrGeneration), http.StatusInternalServerError},
		{fmt.Errorf("%w: store down", service.ErrRetrieval), http.StatusInternalServerError},
		{service.ErrEmptyQuestion, http.StatusBadRequest},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		a := &stubAnswerer{err: tt.err}
		w := do(t, NewRouter(a, nil, zaptest.NewLogger(t)), http.MethodPost, "/ask", `{"question":"q"}`)
		assert.Equal(t, tt.code, w.Code, tt.err.Error())
		assert.Contains(t, w.Body.String(), tt.err.Error())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, func() int { return 2 })
	m.Answers.WithLabelValues("answered").Inc()

	w := do(t, NewRouter(&stubAnswerer{}, reg, zaptest.NewLogger(t)), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `disasterwatch_answers_total{outcome="answered"} 1`)
	assert.Contains(t, w.Body.String(), "disasterwatch_seen_keys 2")

	w = do(t, NewRouter(&stubAnswerer{}, nil, zaptest.NewLogger(t)), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	srv := &http.Server{Addr: addr, Handler: NewRouter(&stubAnswerer{}, nil, nil)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, zaptest.NewLogger(t)) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
