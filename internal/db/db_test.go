package db

import (
	"context"
	"errors"
	"testing"

	"github.com/suPer8Hu/sentinel-chat/internal/observability"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type note struct {
	ID   uint
	Text string
}

func TestConnectLogsSQLErrorsThroughZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gdb, err := Connect("sqlite:file:"+t.Name()+"?mode=memory&cache=shared", zap.New(core), &note{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx := observability.WithRequestID(context.Background(), "req-1")
	var n note
	if err := gdb.WithContext(ctx).First(&n, 42).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := logs.FilterMessage("sql failed").Len(); got != 0 {
		t.Fatalf("not found must not be logged as a failure, got %d entries", got)
	}

	if err := gdb.WithContext(ctx).Table("missing_table").Find(&[]note{}).Error; err == nil {
		t.Fatalf("expected error on missing table")
	}
	failed := logs.FilterMessage("sql failed").All()
	if len(failed) != 1 {
		t.Fatalf("expected one sql failure entry, got %+v", logs.All())
	}
	fields := failed[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["sql"] == "" {
		t.Fatalf("unexpected fields %+v", fields)
	}
}

func TestOpenWithoutLogger(t *testing.T) {
	gdb, err := Open("sqlite:file:"+t.Name()+"?mode=memory&cache=shared", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := gdb.Table("missing_table").Find(&[]note{}).Error; err == nil {
		t.Fatalf("expected error on missing table")
	}
}
