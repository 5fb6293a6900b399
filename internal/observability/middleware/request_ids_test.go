package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"lingo/internal/observability/middleware"
)

func TestRequestAndTraceIDsReachHandlerContext(t *testing.T) {
	var gotReq, gotTrace string
	h := middleware.WithRequestAndTrace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = middleware.RequestIDFromContext(r.Context())
		gotTrace = middleware.TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/roster", nil)
	req.Header.Set("X-Request-ID", "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotReq != "req-42" {
		t.Fatalf("request id from context = %q, want the header value", gotReq)
	}
	if gotTrace == "" {
		t.Fatalf("trace id should be generated when the header is absent")
	}
}

func TestRequestIDGeneratedWhenHeaderMissing(t *testing.T) {
	var got string
	h := middleware.WithRequestAndTrace(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.RequestIDFromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got == "" {
		t.Fatalf("request id should never be empty")
	}
}

func TestIDAccessorsOnBareContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if middleware.RequestIDFromContext(r.Context()) != "" {
		t.Fatalf("bare context should yield an empty request id")
	}
	if middleware.TraceIDFromContext(r.Context()) != "" {
		t.Fatalf("bare context should yield an empty trace id")
	}
}
