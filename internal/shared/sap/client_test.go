package sap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testClient(baseURL string, batchSize, maxRetries int) *Client {
	return NewClient(Config{
		BaseURL:    baseURL,
		Username:   "testuser",
		Password:   "testpass",
		BatchSize:  batchSize,
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
		Timeout:    time.Second,
	}, zap.NewNop())
}

// v2Page builds a d.results envelope with n records starting at offset
func v2Page(offset, n int) []byte {
	records := make([]json.RawMessage, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, json.RawMessage(fmt.Sprintf(`{"Material":"MAT-%03d"}`, offset+i)))
	}
	body, _ := json.Marshal(map[string]interface{}{
		"d": map[string]interface{}{"results": records},
	})
	return body
}

// TestFetchAllPagination 5条记录、批次大小2：应发起3次请求（skip 0/2/4），
// 末批不满即终止
func TestFetchAllPagination(t *testing.T) {
	const total = 5
	const batchSize = 2

	var requests int32
	var skips []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)

		if r.URL.Query().Get("$format") != "json" {
			t.Errorf("missing $format=json, got query %s", r.URL.RawQuery)
		}
		top, _ := strconv.Atoi(r.URL.Query().Get("$top"))
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
		if top != batchSize {
			t.Errorf("expected $top=%d, got %d", batchSize, top)
		}
		skips = append(skips, skip)

		n := total - skip
		if n > batchSize {
			n = batchSize
		}
		if n < 0 {
			n = 0
		}
		w.Write(v2Page(skip, n))
	}))
	defer srv.Close()

	client := testClient(srv.URL, batchSize, 3)
	records, err := client.FetchAll(context.Background(), "A_Product")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if len(records) != total {
		t.Fatalf("expected %d records, got %d", total, len(records))
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Fatalf("expected 3 requests, got %d", got)
	}
	want := []int{0, 2, 4}
	for i, skip := range skips {
		if skip != want[i] {
			t.Fatalf("request %d: expected skip %d, got %d", i, want[i], skip)
		}
	}
}

// TestFetchAllExactMultiple 记录数恰为批次整数倍时，额外请求一次空批次后终止
func TestFetchAllExactMultiple(t *testing.T) {
	const total = 4
	const batchSize = 2

	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
		n := total - skip
		if n > batchSize {
			n = batchSize
		}
		if n < 0 {
			n = 0
		}
		w.Write(v2Page(skip, n))
	}))
	defer srv.Close()

	client := testClient(srv.URL, batchSize, 3)
	records, err := client.FetchAll(context.Background(), "A_Product")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(records) != total {
		t.Fatalf("expected %d records, got %d", total, len(records))
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Fatalf("expected 3 requests (2 full + 1 empty), got %d", got)
	}
}

// TestFetchAllRetryExhaustion 持续失败时恰好尝试MaxRetries次后放弃
func TestFetchAllRetryExhaustion(t *testing.T) {
	const maxRetries = 3

	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := testClient(srv.URL, 100, maxRetries)
	_, err := client.FetchAll(context.Background(), "A_Product")
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if got := atomic.LoadInt32(&requests); got != maxRetries {
		t.Fatalf("expected exactly %d attempts, got %d", maxRetries, got)
	}
}

// TestFetchAllRetryCounterResets 瞬时失败恢复后计数归零，
// 后续批次的失败重新从1计起
func TestFetchAllRetryCounterResets(t *testing.T) {
	const batchSize = 2

	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))

		// 每个批次第一次请求都失败一次
		if n == 1 || n == 3 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		if skip == 0 {
			w.Write(v2Page(0, batchSize))
			return
		}
		w.Write(v2Page(skip, 1))
	}))
	defer srv.Close()

	// MaxRetries=2：单批次连续失败2次才放弃，间隔失败不累计
	client := testClient(srv.URL, batchSize, 2)
	records, err := client.FetchAll(context.Background(), "A_Product")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
}

// TestFetchAllBasicAuth Basic认证头随每个请求发送
func TestFetchAllBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "testuser" || pass != "testpass" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Write(v2Page(0, 1))
	}))
	defer srv.Close()

	client := testClient(srv.URL, 10, 1)
	records, err := client.FetchAll(context.Background(), "A_Supplier")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

// TestEnvelopeShapes v2的d.results、v4的value、未知形态均可解析
func TestEnvelopeShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"v2 d.results", `{"d":{"results":[{"a":1},{"a":2}]}}`, 2},
		{"v4 value", `{"value":[{"a":1}]}`, 1},
		{"unknown shape", `{"foo":"bar"}`, 0},
		{"empty v2", `{"d":{"results":[]}}`, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var env envelope
			if err := json.Unmarshal([]byte(tc.body), &env); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			records := env.records()
			if records == nil {
				t.Fatal("records() must not return nil")
			}
			if len(records) != tc.want {
				t.Fatalf("expected %d records, got %d", tc.want, len(records))
			}
		})
	}
}

// TestFetchAllContextCancel 取消context后重试等待立即返回
func TestFetchAllContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:    srv.URL,
		BatchSize:  10,
		MaxRetries: 5,
		RetryDelay: time.Minute,
		Timeout:    time.Second,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.FetchAll(ctx, "A_Product")
	if err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("cancellation did not interrupt retry wait")
	}
}
