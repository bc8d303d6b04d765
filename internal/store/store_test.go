package store

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/reelrate/reelrate/internal/pgtest"
)

func TestStoreHealthAndStats(t *testing.T) {
	_, dsn := pgtest.StartWithDSN(t)

	st, err := New(context.Background(), dsn, Options{
		MaxConns:    4,
		ConnTimeout: 10 * time.Second,
		Logger:      log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)

	if err := st.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check: %v", err)
	}

	stat := st.Stats()
	if stat == nil {
		t.Fatal("stats should be available on an open pool")
	}
	if stat.MaxConns() != 4 {
		t.Fatalf("max conns = %d, want 4", stat.MaxConns())
	}

	collector := NewStatsCollector(st)
	if got := testutil.CollectAndCount(collector); got != 7 {
		t.Fatalf("collector emitted %d metrics, want 7", got)
	}
}

func TestStatsCollectorWithoutPool(t *testing.T) {
	collector := NewStatsCollector(&Store{})
	if got := testutil.CollectAndCount(collector); got != 0 {
		t.Fatalf("collector over closed store emitted %d metrics, want 0", got)
	}
}
