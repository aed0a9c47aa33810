package crystalcache

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestNewContext(t *testing.T) {
	ctx := NewContext("GET", "http://localhost:3001/api/categories")

	if ctx.RequestID == "" {
		t.Error("RequestID should not be empty")
	}
	if ctx.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}
	if ctx.Method != "GET" {
		t.Errorf("expected 'GET', got '%s'", ctx.Method)
	}
	if ctx.Metadata == nil {
		t.Error("Metadata should be initialized")
	}
	if other := NewContext("GET", ctx.URL); other.RequestID == ctx.RequestID {
		t.Error("request ids should be unique")
	}
}

func TestContextElapsed_UsesClock(t *testing.T) {
	clk := clock.NewMock()
	ctx := NewContextWithClock("GET", "/categories", clk)

	if !ctx.StartTime.Equal(clk.Now()) {
		t.Errorf("expected start %v, got %v", clk.Now(), ctx.StartTime)
	}
	clk.Add(150 * time.Millisecond)
	if got := ctx.Elapsed(); got != 150*time.Millisecond {
		t.Errorf("expected 150ms elapsed, got %v", got)
	}
}

func TestContextSetGet(t *testing.T) {
	ctx := NewContext("POST", "/products")
	ctx.Set("attempts", 2)

	if val := ctx.Get("attempts"); val != 2 {
		t.Errorf("expected 2, got '%v'", val)
	}
	if val := ctx.Get("nonexistent"); val != nil {
		t.Errorf("expected nil, got '%v'", val)
	}
}

func TestWithContext(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("expected nil request context on a bare context")
	}

	rc := NewContext("GET", "/config")
	ctx := WithContext(context.Background(), rc)
	if FromContext(ctx) != rc {
		t.Error("expected attached request context")
	}
}
