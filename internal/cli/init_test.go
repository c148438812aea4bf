package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ledgerspace/internal/config"
	"ledgerspace/internal/core"
	"ledgerspace/internal/ledger"
	"ledgerspace/internal/log"
)

func init() {
	core.SecretCost = bcrypt.MinCost
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		StateKey:         "test/state.json",
		BlobDriver:       "fs",
		BlobFSRoot:       t.TempDir(),
		AdminSecret:      "admin-secret",
		AdvisorTimeout:   time.Second,
		AdvisorCacheSize: 1,
		ExportInterval:   time.Minute,
	}
}

func TestOpenStore_BootstrapsAndPersists(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	rt, err := OpenStore(ctx, cfg, log.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	first := rt.Store.Snapshot()
	if len(first.Users) != 1 || len(first.Workspaces) != 1 {
		t.Fatalf("unexpected bootstrap state: %d users, %d workspaces", len(first.Users), len(first.Workspaces))
	}
	if rt.AMQP != nil {
		t.Fatal("AMQP should not be wired without a URL")
	}

	if _, err := rt.Store.Apply(ctx, &ledger.Authenticate{Identifier: core.DefaultAdminEmail, Secret: "admin-secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	again, err := OpenStore(ctx, cfg, log.Discard())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	s := again.Store.Snapshot()
	if s.Version != 1 || s.ActiveUserID != first.Users[0].ID {
		t.Fatalf("snapshot not persisted: version %d active %q", s.Version, s.ActiveUserID)
	}
}

func TestOpenStore_BadDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.BlobDriver = "tape"
	if _, err := OpenStore(context.Background(), cfg, log.Discard()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenStore_MissingAdminSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdminSecret = ""
	_, err := OpenStore(context.Background(), cfg, log.Discard())
	if err == nil || !strings.Contains(err.Error(), "load ledger") {
		t.Fatalf("expected bootstrap failure, got %v", err)
	}
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&buf, "warn", "")
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}

	buf.Reset()
	logger = SetupLogger(&buf, "info", "json")
	logger.Info("started")
	if out := buf.String(); !strings.HasPrefix(out, "{") || !strings.Contains(out, `"component":"app"`) {
		t.Fatalf("unexpected json output %q", out)
	}
}
