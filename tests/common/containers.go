package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// WireMockImage serves canned Frappe responses for API integration tests.
const WireMockImage = "wiremock/wiremock:3.9.1"

// FrappeStub wraps a WireMock container standing in for a Frappe site.
type FrappeStub struct {
	container testcontainers.Container
	url       string
}

// StubMapping is one WireMock request/response pair.
type StubMapping struct {
	Request  map[string]interface{} `json:"request"`
	Response map[string]interface{} `json:"response"`
}

// JSONStub answers method+path with status and a JSON body.
func JSONStub(method, path string, status int, body interface{}) StubMapping {
	return StubMapping{
		Request: map[string]interface{}{
			"method":  method,
			"urlPath": path,
		},
		Response: map[string]interface{}{
			"status":   status,
			"jsonBody": body,
			"headers":  map[string]string{"Content-Type": "application/json"},
		},
	}
}

// StartFrappeStub starts a WireMock container. The test is skipped in short
// mode or when Docker is unavailable. When TOOLSMITH_TEST_REMOTE_URL is set,
// that server is used instead and no container is started.
func StartFrappeStub(t *testing.T) *FrappeStub {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if url := GetRemoteURL(); url != "" {
		return &FrappeStub{url: url}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	ctr, err := testcontainers.Run(ctx, WireMockImage,
		testcontainers.WithExposedPorts("8080/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/__admin/mappings").WithPort("8080/tcp").WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		if ctr != nil {
			ctr.Terminate(context.Background())
		}
		t.Skipf("docker unavailable, skipping integration test: %v", err)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		ctr.Terminate(context.Background())
		t.Fatalf("get wiremock host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "8080/tcp")
	if err != nil {
		ctr.Terminate(context.Background())
		t.Fatalf("get wiremock port: %v", err)
	}

	stub := &FrappeStub{
		container: ctr,
		url:       fmt.Sprintf("http://%s:%s", host, port.Port()),
	}
	t.Cleanup(func() {
		stub.CollectLogs(filepath.Join(GetResultsDir(), t.Name()))
		stub.Cleanup()
	})
	return stub
}

// URL returns the base URL of the stubbed site.
func (f *FrappeStub) URL() string {
	return f.url
}

// Stub registers mappings through the WireMock admin API.
func (f *FrappeStub) Stub(t *testing.T, mappings ...StubMapping) {
	t.Helper()
	for _, m := range mappings {
		body, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("encode stub: %v", err)
		}
		resp, err := http.Post(f.url+"/__admin/mappings", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("register stub: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("register stub returned %d", resp.StatusCode)
		}
	}
}

// Reset drops all mappings and the request journal.
func (f *FrappeStub) Reset(t *testing.T) {
	t.Helper()
	resp, err := http.Post(f.url+"/__admin/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("reset wiremock: %v", err)
	}
	resp.Body.Close()
}

// RequestCount returns how many journaled requests match pattern.
func (f *FrappeStub) RequestCount(t *testing.T, pattern map[string]interface{}) int {
	t.Helper()
	body, _ := json.Marshal(pattern)
	resp, err := http.Post(f.url+"/__admin/requests/count", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("count requests: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode request count: %v", err)
	}
	return out.Count
}

// CollectLogs saves the container output to dir.
func (f *FrappeStub) CollectLogs(dir string) {
	if f == nil || f.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reader, err := f.container.Logs(ctx)
	if err != nil {
		return
	}
	defer reader.Close()
	logs, err := io.ReadAll(reader)
	if err != nil {
		return
	}
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, "wiremock.log"), logs, 0644)
}

// Cleanup terminates the container.
// Uses a fresh context for teardown in case the test context expired.
func (f *FrappeStub) Cleanup() {
	if f == nil || f.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	f.container.Terminate(ctx)
}
