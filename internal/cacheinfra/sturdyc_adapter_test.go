package cacheinfra

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/goliatone/go-sqldao/cache"
)

func newTestHandler(t *testing.T) *SturdycHandler {
	t.Helper()
	h, err := NewSturdycHandler(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("NewSturdycHandler() error = %v", err)
	}
	return h
}

func TestNewSturdycHandlerRejectsInvalidConfig(t *testing.T) {
	cfg := cache.DefaultConfig()
	cfg.Capacity = 0
	if _, err := NewSturdycHandler(cfg); err == nil {
		t.Fatal("NewSturdycHandler() accepted an invalid config")
	}
}

func TestSturdycHandlerRoundTrip(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	rows := []map[string]any{{"id": int64(1), "name": "ann"}}

	if _, ok, err := h.Get(ctx, "user_dao:get_user:1"); ok || err != nil {
		t.Fatalf("Get() on empty cache = ok %v, err %v", ok, err)
	}

	if err := h.Set(ctx, "user_dao:get_user:1", rows, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := h.Get(ctx, "user_dao:get_user:1")
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if !reflect.DeepEqual(v, rows) {
		t.Errorf("Get() = %v", v)
	}

	if err := h.Delete(ctx, "user_dao:get_user:1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := h.Get(ctx, "user_dao:get_user:1"); ok {
		t.Error("Get() after Delete() still hits")
	}
}

func TestSturdycHandlerGetBulk(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b"} {
		if err := h.Set(ctx, k, k+"-value", 0); err != nil {
			t.Fatalf("Set(%s) error = %v", k, err)
		}
	}

	got, err := h.GetBulk(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("GetBulk() error = %v", err)
	}
	want := map[string]any{"a": "a-value", "b": "b-value"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetBulk() = %v, want %v", got, want)
	}
}

func TestSturdycHandlerStoresNullMarker(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	if err := h.Set(ctx, "user_dao:get_user:404", cache.Null, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := h.Get(ctx, "user_dao:get_user:404")
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if !cache.IsNull(v) {
		t.Errorf("stored marker came back as %v", v)
	}
}
