package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"log/slog"

	apihttp "github.com/appclacks/sloworker/internal/http"
	"github.com/appclacks/sloworker/internal/http/handlers"
	"github.com/appclacks/sloworker/internal/memory"
	"github.com/appclacks/sloworker/pkg/slo"
	"github.com/appclacks/sloworker/pkg/slo/aggregates"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func toJson(t *testing.T, s any) []byte {
	t.Helper()
	result, err := json.Marshal(s)
	assert.NoError(t, err, "fail to marshal to json")
	return result
}

func fromJson(t *testing.T, s any, data []byte) {
	t.Helper()
	err := json.Unmarshal(data, s)
	assert.NoError(t, err, "fail to unmarshal to json data %s", string(data))
}

func readBody(t *testing.T, body io.ReadCloser) []byte {
	b, err := io.ReadAll(body)
	defer body.Close()
	assert.NoError(t, err)
	return b
}

type testCase struct {
	url            string
	expectedStatus int
	method         string
	payload        any
	headers        map[string]string
	body           string
}

var baseURL = "http://127.0.0.1:10000"
var httpClient = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func testHTTP(t *testing.T, c testCase, result any) {
	t.Helper()
	var reqBody io.Reader
	if c.payload != nil {
		reqBody = bytes.NewBuffer(toJson(t, c.payload))
	}
	request, err := http.NewRequest(
		c.method,
		fmt.Sprintf("%s%s", baseURL, c.url),
		reqBody)
	assert.NoError(t, err)
	if c.payload != nil {
		request.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	for k, v := range c.headers {
		request.Header.Set(k, v)
	}
	response, err := httpClient.Do(request)
	assert.NoError(t, err)
	body := readBody(t, response.Body)
	assert.Equal(t, c.expectedStatus, response.StatusCode, string(body))
	if result != nil {
		fromJson(t, result, body)
	}
	if c.body != "" {
		assert.Contains(t, string(body), c.body)
	}
}

const sloFile = `SLOs:
  - url: "https://a.example.com"
    successful-responses-SLO: 0.9
    fast-responses-SLO: "0.5"
  - url: "https://b.example.com"
    successful-responses-SLO: 0.5
    fast-responses-SLO: 0.99
`

func TestIntegration(t *testing.T) {
	reg := prometheus.NewRegistry()
	logger := slog.Default()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(sloFile), 0600)
	assert.NoError(t, err)

	store := memory.New()
	ctx := context.Background()
	// a: 3/4 successful, 3/4 fast. b: 1/1 successful, 0/1 fast
	err = store.RecordBatch(ctx, []aggregates.Outcome{
		{URL: "https://a.example.com", Successful: true, Fast: true},
		{URL: "https://a.example.com", Successful: true, Fast: true},
		{URL: "https://a.example.com", Successful: true, Fast: false},
		{URL: "https://a.example.com", Successful: false, Fast: true},
		{URL: "https://b.example.com", Successful: true, Fast: false},
	})
	assert.NoError(t, err)

	service := slo.New(logger, store)
	handlersBuilder := handlers.NewBuilder(logger, service, slo.NewConfigStore(path))
	server, err := apihttp.NewServer(logger, apihttp.Configuration{
		Host: "127.0.0.1",
		Port: 10000,
	}, reg, handlersBuilder)
	assert.NoError(t, err)
	server.Start()
	defer func() {
		assert.NoError(t, server.Stop())
	}()
	time.Sleep(1 * time.Second)

	testHTTP(t, testCase{
		url:            "/healthz",
		expectedStatus: 200,
		method:         "GET",
	}, nil)

	// list

	listResult := handlers.ListSLIsOutput{}
	testHTTP(t, testCase{
		url:            "/api/v1/sli",
		expectedStatus: 200,
		method:         "GET",
	}, &listResult)
	assert.Equal(t, []handlers.SLI{
		{
			URL:                 "https://a.example.com",
			SuccessRate:         0.75,
			SuccessObjectiveMet: false,
			FastRate:            0.75,
			FastObjectiveMet:    true,
		},
		{
			URL:                 "https://b.example.com",
			SuccessRate:         1,
			SuccessObjectiveMet: true,
			FastRate:            0,
			FastObjectiveMet:    false,
		},
	}, listResult.Result)

	// status

	statusResult := handlers.SLI{}
	testHTTP(t, testCase{
		url:            fmt.Sprintf("/api/v1/sli/status?url=%s", url.QueryEscape("https://b.example.com")),
		expectedStatus: 200,
		method:         "GET",
	}, &statusResult)
	assert.Equal(t, "https://b.example.com", statusResult.URL)
	assert.True(t, statusResult.SuccessObjectiveMet)

	testHTTP(t, testCase{
		url:            "/api/v1/sli/status?url=unknown",
		expectedStatus: 404,
		method:         "GET",
		body:           "no SLI recorded for unknown",
	}, nil)

	testHTTP(t, testCase{
		url:            "/api/v1/sli/status",
		expectedStatus: 400,
		method:         "GET",
	}, nil)

	// definitions

	sloResult := handlers.ListSLOsOutput{}
	testHTTP(t, testCase{
		url:            "/api/v1/slo",
		expectedStatus: 200,
		method:         "GET",
	}, &sloResult)
	assert.Equal(t, []aggregates.Definition{
		{URL: "https://a.example.com", SuccessRateThreshold: 0.9, FastRateThreshold: 0.5},
		{URL: "https://b.example.com", SuccessRateThreshold: 0.5, FastRateThreshold: 0.99},
	}, sloResult.Result)

	// metrics

	testHTTP(t, testCase{
		url:            "/metrics",
		expectedStatus: 200,
		method:         "GET",
		body:           "http_responses_total",
	}, nil)

	testHTTP(t, testCase{
		url:            "/api/v1/unknown",
		expectedStatus: 404,
		method:         "GET",
		body:           "not found",
	}, nil)

}

func startServer(t *testing.T, config apihttp.Configuration, store slo.Store) *apihttp.Server {
	t.Helper()
	logger := slog.Default()
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(sloFile), 0600)
	assert.NoError(t, err)
	handlersBuilder := handlers.NewBuilder(logger, slo.New(logger, store), slo.NewConfigStore(path))
	server, err := apihttp.NewServer(logger, config, prometheus.NewRegistry(), handlersBuilder)
	assert.NoError(t, err)
	server.Start()
	time.Sleep(1 * time.Second)
	return server
}

func TestZeroTotalRow(t *testing.T) {
	store := memory.New()
	err := store.EnsureRow(context.Background(), "https://a.example.com")
	assert.NoError(t, err)
	server := startServer(t, apihttp.Configuration{Host: "127.0.0.1", Port: 10001}, store)
	defer func() {
		assert.NoError(t, server.Stop())
	}()

	request, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:10001/api/v1/sli", nil)
	assert.NoError(t, err)
	response, err := httpClient.Do(request)
	assert.NoError(t, err)
	body := readBody(t, response.Body)
	assert.Equal(t, http.StatusInternalServerError, response.StatusCode, string(body))
}

func TestBasicAuth(t *testing.T) {
	store := memory.New()
	err := store.RecordBatch(context.Background(), []aggregates.Outcome{
		{URL: "https://a.example.com", Successful: true, Fast: true},
	})
	assert.NoError(t, err)
	server := startServer(t, apihttp.Configuration{
		Host: "127.0.0.1",
		Port: 10002,
		BasicAuth: apihttp.BasicAuth{
			Username: "sloworker",
			Password: "secret",
		},
	}, store)
	defer func() {
		assert.NoError(t, server.Stop())
	}()

	cases := []struct {
		username       string
		password       string
		expectedStatus int
	}{
		{expectedStatus: http.StatusUnauthorized},
		{username: "sloworker", password: "wrong", expectedStatus: http.StatusUnauthorized},
		{username: "sloworker", password: "secret", expectedStatus: http.StatusOK},
	}
	for _, c := range cases {
		request, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:10002/api/v1/sli", nil)
		assert.NoError(t, err)
		if c.username != "" {
			request.SetBasicAuth(c.username, c.password)
		}
		response, err := httpClient.Do(request)
		assert.NoError(t, err)
		body := readBody(t, response.Body)
		assert.Equal(t, c.expectedStatus, response.StatusCode, string(body))
	}

	// healthz stays public
	request, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:10002/healthz", nil)
	assert.NoError(t, err)
	response, err := httpClient.Do(request)
	assert.NoError(t, err)
	readBody(t, response.Body)
	assert.Equal(t, http.StatusOK, response.StatusCode)
}
