package httpapi

import (
	"context"
	"testing"
	"time"
)

type ctxKey struct{}

func TestSetBaseContext_NilResetsToBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	cancel()
	// nolint:staticcheck // SA1012: nil is the documented reset
	SetBaseContext(nil)
	if serverBaseCtx.Err() != nil {
		t.Fatalf("base context should be Background after reset")
	}
}

func TestJoinContexts_CancelsWhenBaseDone(t *testing.T) {
	base, bc := context.WithCancel(context.Background())
	req, rc := context.WithCancel(context.Background())
	defer rc()
	j, cancelJ := joinContexts(base, req)
	defer cancelJ()
	bc()
	select {
	case <-j.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("joined context did not cancel when base canceled")
	}
}

func TestJoinContexts_CancelsWhenRequestDone(t *testing.T) {
	base, bc := context.WithCancel(context.Background())
	defer bc()
	req, rc := context.WithCancel(context.Background())
	j, cancelJ := joinContexts(base, req)
	defer cancelJ()
	rc()
	select {
	case <-j.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("joined context did not cancel when request canceled")
	}
}

func TestJoinContexts_KeepsRequestValues(t *testing.T) {
	req := context.WithValue(context.Background(), ctxKey{}, "rid")
	j, cancel := joinContexts(context.Background(), req)
	defer cancel()
	if j.Value(ctxKey{}) != "rid" {
		t.Fatalf("request values lost")
	}
}
