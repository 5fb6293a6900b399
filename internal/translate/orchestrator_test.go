package translate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"lingo/internal/observability/metrics"
	"lingo/internal/translate"
)

func TestMain(m *testing.M) {
	metrics.MustRegister("test")
	os.Exit(m.Run())
}

func TestTranslateSuccess(t *testing.T) {
	var gotBody struct {
		Text           string `json:"text"`
		SourceLanguage string `json:"sourceLanguage"`
		TargetLanguage string `json:"targetLanguage"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"translatedText": "नमस्ते"})
	}))
	defer srv.Close()

	o := translate.New(srv.URL, time.Second)
	res := o.Translate(context.Background(), "hello", "English", "Hindi")
	if !res.IsTranslated || res.Text != "नमस्ते" {
		t.Fatalf("expected translated result, got %+v", res)
	}
	if gotBody.SourceLanguage != "en-IN" || gotBody.TargetLanguage != "hi-IN" {
		t.Fatalf("gateway should receive language codes, got %+v", gotBody)
	}
	if gotBody.Text != "hello" {
		t.Fatalf("gateway should receive the original text, got %q", gotBody.Text)
	}
}

func TestTranslateSameLanguageShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	o := translate.New(srv.URL, time.Second)
	res := o.Translate(context.Background(), "hello", "English", "English")
	if res.IsTranslated || res.Text != "hello" {
		t.Fatalf("same language should pass through, got %+v", res)
	}
	if calls.Load() != 0 {
		t.Fatalf("gateway must not be called for same-language pairs")
	}
}

func TestTranslateUnknownLanguageShortCircuits(t *testing.T) {
	o := translate.New("http://127.0.0.1:1", time.Second)
	res := o.Translate(context.Background(), "hello", "English", "Klingon")
	if res.IsTranslated || res.Text != "hello" {
		t.Fatalf("unknown target should pass through, got %+v", res)
	}
}

func TestTranslateGatewayErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := translate.New(srv.URL, time.Second)
	res := o.Translate(context.Background(), "hello", "English", "Hindi")
	if res.IsTranslated || res.Text != "hello" {
		t.Fatalf("gateway error should degrade to original, got %+v", res)
	}
}

func TestTranslateEmptyResponseDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"translatedText": "   "})
	}))
	defer srv.Close()

	o := translate.New(srv.URL, time.Second)
	res := o.Translate(context.Background(), "hello", "English", "Hindi")
	if res.IsTranslated || res.Text != "hello" {
		t.Fatalf("blank gateway output should degrade to original, got %+v", res)
	}
}

func TestTranslateTimeoutDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]string{"translatedText": "late"})
	}))
	defer srv.Close()

	o := translate.New(srv.URL, 20*time.Millisecond)
	res := o.Translate(context.Background(), "hello", "English", "Hindi")
	if res.IsTranslated || res.Text != "hello" {
		t.Fatalf("timeout should degrade to original, got %+v", res)
	}
}

func TestSupportedLanguages(t *testing.T) {
	langs := translate.SupportedLanguages()
	if len(langs) == 0 {
		t.Fatalf("expected a non-empty language list")
	}
	for i := 1; i < len(langs); i++ {
		if langs[i-1] >= langs[i] {
			t.Fatalf("languages should be sorted: %v", langs)
		}
	}
	if !translate.IsSupported("Hindi") {
		t.Fatalf("Hindi should be supported")
	}
	if translate.IsSupported("Klingon") {
		t.Fatalf("unknown language reported as supported")
	}
	if translate.LanguageCode("Bodo") != "brx-IN" {
		t.Fatalf("unexpected code for Bodo: %q", translate.LanguageCode("Bodo"))
	}
}
