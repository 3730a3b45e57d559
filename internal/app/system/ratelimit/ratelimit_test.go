package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNew_DisabledIsNil(t *testing.T) {
	if l := New(0, 5); l != nil {
		t.Fatal("expected nil limiter for a zero rate")
	}
	var l *Limiter
	if ok, _ := l.Allow("anyone"); !ok {
		t.Error("nil limiter must allow")
	}
}

func TestAllow_BurstThenRefill(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := New(60, 2) // one token per second
	l.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow("a"); !ok {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	ok, wait := l.Allow("a")
	if ok {
		t.Fatal("expected third request to be limited")
	}
	if wait <= 0 || wait > time.Second {
		t.Errorf("expected wait in (0, 1s], got %s", wait)
	}

	// Other keys have their own bucket.
	if ok, _ := l.Allow("b"); !ok {
		t.Error("independent key was limited")
	}

	clock = clock.Add(time.Second)
	if ok, _ := l.Allow("a"); !ok {
		t.Error("expected a token after one second")
	}
}

func TestSweep_AtMostOncePerHalfIdle(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := New(60, 2)
	l.now = func() time.Time { return clock }

	for i := 0; i < sweepMin+100; i++ {
		l.Allow("ip:" + strconv.Itoa(i))
	}

	// Every bucket is now idle, but a sweep ran a moment ago.
	clock = clock.Add(l.idle + time.Second)
	l.lastSweep = clock.Add(-time.Second)
	l.Allow("fresh")
	if got := len(l.buckets); got != sweepMin+101 {
		t.Fatalf("buckets = %d, want %d: swept again too soon", got, sweepMin+101)
	}

	clock = clock.Add(l.idle / 2)
	l.Allow("fresh")
	if got := len(l.buckets); got != 1 {
		t.Errorf("buckets = %d after the half-idle interval, want only the fresh one", got)
	}
	if !l.lastSweep.Equal(clock) {
		t.Errorf("lastSweep = %v, want %v", l.lastSweep, clock)
	}
}

func TestMiddleware(t *testing.T) {
	l := New(1, 1)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	user := models.User{ID: primitive.NewObjectID(), FullName: "Ada"}
	send := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, testutil.WithActor(httptest.NewRequest(http.MethodPost, "/posts", nil), user))
		return rec
	}

	if rec := send(); rec.Code != http.StatusCreated {
		t.Fatalf("first write: expected 201, got %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:1234", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.7 "}, "10.0.0.1:1234", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.9", "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
