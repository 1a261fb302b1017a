package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobmcallan/toolsmith/internal/common"
)

func newTestClient(url string) *Client {
	return New(Options{BaseURL: url, APIKey: "key", APISecret: "secret"}, common.NewSilentLogger())
}

func TestList_EncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/api/resource/Sales Invoice" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("fields") != `["name","customer"]` {
			t.Errorf("unexpected fields: %s", q.Get("fields"))
		}
		if q.Get("filters") != `{"status":"Paid"}` {
			t.Errorf("unexpected filters: %s", q.Get("filters"))
		}
		if q.Get("order_by") != "modified desc" {
			t.Errorf("unexpected order_by: %s", q.Get("order_by"))
		}
		if q.Get("limit_start") != "20" || q.Get("limit_page_length") != "10" {
			t.Errorf("unexpected paging: start=%s length=%s", q.Get("limit_start"), q.Get("limit_page_length"))
		}
		if got := r.Header.Get("Authorization"); got != "token key:secret" {
			t.Errorf("unexpected Authorization: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"name":"SINV-0001"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.List(context.Background(), "Sales Invoice", ListQuery{
		Filters: map[string]interface{}{"status": "Paid"},
		Fields:  []string{"name", "customer"},
		OrderBy: "modified desc",
		Offset:  20,
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"data":[{"name":"SINV-0001"}]}` {
		t.Errorf("body not returned verbatim: %s", resp.Body)
	}
}

func TestCreateAndUpdate_WrapPayload(t *testing.T) {
	var methods []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method+" "+r.URL.Path)
		mu.Unlock()
		var body map[string]map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if body["data"]["customer_name"] != "Acme" {
			t.Errorf("payload not wrapped in data: %v", body)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type")
		}
		w.Write([]byte(`{"data":{"name":"CUST-1"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	payload := map[string]interface{}{"customer_name": "Acme"}
	if _, err := c.Create(context.Background(), "Customer", payload); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := c.Update(context.Background(), "Customer", "CUST-1", payload); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	want := []string{"POST /api/resource/Customer", "PUT /api/resource/Customer/CUST-1"}
	for i, m := range want {
		if methods[i] != m {
			t.Errorf("request %d: expected %s, got %s", i, m, methods[i])
		}
	}
}

func TestCallProcedure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/method/erpnext.stock.get_item_details" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"item_code":"ITEM-1"}` {
			t.Errorf("unexpected body: %s", body)
		}
		w.Write([]byte(`{"message":{"rate":10}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.CallProcedure(context.Background(), "erpnext.stock.get_item_details", map[string]interface{}{"item_code": "ITEM-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != `{"message":{"rate":10}}` {
		t.Errorf("unexpected body: %s", resp.Body)
	}
}

func TestStatusError_FrappeBody(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantExcType string
		wantMessage string
	}{
		{"exc_type", 417, `{"exc_type":"MandatoryError","exception":"frappe.exceptions.MandatoryError: customer_name"}`, "MandatoryError", "frappe.exceptions.MandatoryError: customer_name"},
		{"exception prefix", 500, `{"exception":"frappe.exceptions.ValidationError: bad"}`, "ValidationError", "frappe.exceptions.ValidationError: bad"},
		{"server messages", 403, `{"_server_messages":"[\"{\\\"message\\\": \\\"Not permitted\\\"}\"]"}`, "", "Not permitted"},
		{"plain text", 502, `Bad Gateway`, "", "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Get(context.Background(), "Customer", "X", nil)
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected *StatusError, got %v", err)
			}
			if se.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, se.StatusCode)
			}
			if se.ExcType != tt.wantExcType {
				t.Errorf("expected exc_type %q, got %q", tt.wantExcType, se.ExcType)
			}
			if se.Message != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, se.Message)
			}
			if string(se.Body) != tt.body {
				t.Errorf("body not kept verbatim: %s", se.Body)
			}
		})
	}
}

func TestCredentials_Override(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := WithCredentials(context.Background(), "token other:pair")
	if _, err := c.Get(ctx, "Customer", "X", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Load() != "token other:pair" {
		t.Errorf("override not applied: %v", got.Load())
	}
}

func TestHasCredentials(t *testing.T) {
	anon := New(Options{BaseURL: "http://localhost"}, common.NewSilentLogger())
	if anon.HasCredentials(context.Background()) {
		t.Error("expected no credentials")
	}
	if !anon.HasCredentials(WithCredentials(context.Background(), "Bearer abc")) {
		t.Error("expected override to count as credentials")
	}
	session := New(Options{BaseURL: "http://localhost", SessionToken: "abc"}, common.NewSilentLogger())
	if !session.HasCredentials(context.Background()) {
		t.Error("expected session token to count as credentials")
	}
	// key without secret is incomplete
	half := New(Options{BaseURL: "http://localhost", APIKey: "key"}, common.NewSilentLogger())
	if half.HasCredentials(context.Background()) {
		t.Error("expected key without secret to be ignored")
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, common.NewSilentLogger())
	_, err := c.Get(context.Background(), "Customer", "X", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestListResourceTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/resource/DocType" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"name":"Customer","module":"Selling","istable":0},{"name":"Sales Invoice Item","module":"Accounts","istable":1}]}`))
	}))
	defer srv.Close()

	types, err := newTestClient(srv.URL).ListResourceTypes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(types) != 2 || types[0].Name != "Customer" || types[1].IsTable != 1 {
		t.Errorf("unexpected listing: %+v", types)
	}
}

func TestRateLimit_Concurrent(t *testing.T) {
	var count int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&count, 1)
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, RateLimit: 1000, RateBurst: 5}, common.NewSilentLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), "Customer", "X", nil); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if atomic.LoadInt64(&count) != 20 {
		t.Errorf("expected 20 requests, got %d", count)
	}
}

func TestResponseBodyLimit(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		tooBig bool
	}{
		{"under", 63, false},
		{"at limit", 64, false},
		{"over", 200, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`"` + strings.Repeat("x", tt.size-2) + `"`))
			}))
			defer srv.Close()

			c := New(Options{BaseURL: srv.URL, MaxResponseBytes: 64}, common.NewSilentLogger())
			resp, err := c.Get(context.Background(), "Customer", "C-1", nil)
			if !tt.tooBig {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(resp.Body) != tt.size {
					t.Errorf("expected %d bytes, got %d", tt.size, len(resp.Body))
				}
				return
			}
			var tooLarge *ResponseTooLargeError
			if !errors.As(err, &tooLarge) {
				t.Fatalf("expected ResponseTooLargeError, got resp=%v err=%v", resp, err)
			}
			if tooLarge.Limit != 64 || tooLarge.StatusCode != http.StatusOK {
				t.Errorf("unexpected error fields %+v", tooLarge)
			}
		})
	}
}
