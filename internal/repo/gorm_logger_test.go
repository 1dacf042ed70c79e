package repo

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestQueryLogger_NeverLogsAddresses(t *testing.T) {
	var buf bytes.Buffer
	ql := NewQueryLogger(zerolog.New(&buf)).LogMode(logger.Info)
	db, err := Open("file:"+t.Name()+"?mode=memory&cache=shared", Options{Logger: ql})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	ctx := context.Background()
	const addr = "private.reader@example.com"
	if _, err := FindByEmail(ctx, db, addr); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByEmail miss: %v", err)
	}
	if _, err := CreateSubscription(ctx, db, addr); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if _, err := CreateSubscription(ctx, db, addr); err == nil {
		t.Fatalf("expected duplicate error")
	}

	out := buf.String()
	if !strings.Contains(out, "subscriptions") {
		t.Fatalf("expected statements in the log at info level, got %q", out)
	}
	if strings.Contains(out, addr) {
		t.Fatalf("subscriber address leaked into log: %q", out)
	}
	if strings.Contains(out, `"level":"error"`) {
		t.Fatalf("expected misses and duplicates not to log as errors: %q", out)
	}
}

func TestQueryLogger_DefaultIsQuietOnMiss(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })

	db, err := Open("file:"+t.Name()+"?mode=memory&cache=shared", Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	if _, err := FindByEmail(context.Background(), db, "ac@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByEmail: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output for a lookup miss, got %q", buf.String())
	}
}

func TestQueryLogger_TraceLevels(t *testing.T) {
	var buf bytes.Buffer
	ql := NewQueryLogger(zerolog.New(&buf))
	fc := func() (string, int64) { return "SELECT 1", 0 }

	ql.Trace(context.Background(), time.Now(), fc, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast successful query should not log at warn level: %q", buf.String())
	}

	ql.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
	if !strings.Contains(buf.String(), "slow query") {
		t.Fatalf("expected slow query warning, got %q", buf.String())
	}

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), fc, errors.New("disk I/O error"))
	if !strings.Contains(buf.String(), `"level":"error"`) || !strings.Contains(buf.String(), "disk I/O error") {
		t.Fatalf("expected error line, got %q", buf.String())
	}

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), fc, gorm.ErrRecordNotFound)
	ql.LogMode(logger.Silent).Trace(context.Background(), time.Now().Add(-time.Second), fc, errors.New("x"))
	if buf.Len() != 0 {
		t.Fatalf("expected nothing logged, got %q", buf.String())
	}
}
