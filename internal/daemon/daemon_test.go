package daemon

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/remote"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

// TestFxModuleWiring verifies the fx dependency graph resolves and the daemon
// answers REST calls once started.
func TestFxModuleWiring(t *testing.T) {
	dir := t.TempDir()
	var srv *Server
	app := fxtest.New(t,
		Module(Params{DataDir: dir, Addr: "127.0.0.1:0"}),
		fx.Populate(&srv),
	)
	app.RequireStart()
	defer app.RequireStop()

	base := fmt.Sprintf("http://%s/api", srv.Addr())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sums, err := api.New(base, "alice-token", zap.NewNop()).FetchConversationSummaries(ctx)
	if err != nil {
		t.Fatalf("FetchConversationSummaries() error = %v", err)
	}
	if len(sums) != 1 || sums[0].CounterpartyName != "Bob" {
		t.Errorf("summaries = %+v", sums)
	}
}

// TestSecondDaemonRefused verifies the data dir lock keeps a second daemon
// from starting on the same directory.
func TestSecondDaemonRefused(t *testing.T) {
	dir := t.TempDir()
	first := fxtest.New(t, Module(Params{DataDir: dir, Addr: "127.0.0.1:0"}))
	first.RequireStart()
	defer first.RequireStop()

	second := fx.New(Module(Params{DataDir: dir, Addr: "127.0.0.1:0"}), fx.NopLogger)
	err := second.Err()
	var held *lock.HeldError
	if !errors.As(err, &held) {
		t.Fatalf("second daemon error = %v, want *lock.HeldError", err)
	}
	if held.Owner != Binary {
		t.Errorf("owner = %q, want %q", held.Owner, Binary)
	}
}

func TestNewServerBusyPort(t *testing.T) {
	svc := remote.NewService(nil, nil, nil, nil)
	first, err := NewServer(Params{Addr: "127.0.0.1:0"}, zap.NewNop(), svc)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Stop(context.Background())

	if _, err := NewServer(Params{Addr: first.Addr().String()}, zap.NewNop(), svc); err == nil {
		t.Fatal("expected an error binding a busy address")
	}
}
