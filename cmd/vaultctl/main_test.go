package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cred-vault.backend/internal/config"
	"cred-vault.backend/internal/domain/entities"
)

func TestParseEngineType(t *testing.T) {
	for _, valid := range []string{"postgresql", "mysql", "mongodb", "sqlite"} {
		engine, err := parseEngineType(valid)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", valid, err)
		}
		if string(engine) != valid {
			t.Fatalf("expected %s got %s", valid, engine)
		}
	}
	if _, err := parseEngineType("oracle"); err == nil {
		t.Fatal("expected error for unsupported engine")
	}
	if _, err := parseEngineType(""); err == nil {
		t.Fatal("expected error for empty engine")
	}
}

func TestSessionFlag(t *testing.T) {
	if sessionFlag("").Valid {
		t.Fatal("empty session must map to null")
	}
	s := sessionFlag("sess-a")
	if !s.Valid || s.String != "sess-a" {
		t.Fatalf("unexpected session value: %+v", s)
	}
}

func TestMain_ExitsOnInvalidAction(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_VAULTCTL") == "1" {
		os.Args = []string{"vaultctl", "-action", "explode"}
		main()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestMain_ExitsOnInvalidAction")
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_VAULTCTL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected helper process to fail on invalid action")
	}
}

type fakeVaultRuntime struct {
	saveResult *entities.SaveResult
	saveErr    error
	creds      []*entities.Credential
	listErr    error
	secret     string
	secretErr  error
	deleted    bool
	deleteErr  error
	duplicate  *entities.Credential
	checkErr   error
	entries    []*entities.AuditEntry
	auditErr   error
}

func (f fakeVaultRuntime) SaveCredential(context.Context, *entities.SaveCredentialInput) (*entities.SaveResult, error) {
	return f.saveResult, f.saveErr
}

func (f fakeVaultRuntime) ListCredentials(context.Context, null.String) ([]*entities.Credential, error) {
	return f.creds, f.listErr
}

func (f fakeVaultRuntime) GetSecret(context.Context, uint, null.String) (string, error) {
	return f.secret, f.secretErr
}

func (f fakeVaultRuntime) DeleteCredential(context.Context, uint, null.String) (bool, error) {
	return f.deleted, f.deleteErr
}

func (f fakeVaultRuntime) CheckDuplicate(context.Context, string, int, string, string, entities.EngineType) (*entities.Credential, error) {
	return f.duplicate, f.checkErr
}

func (f fakeVaultRuntime) ListAuditTrail(context.Context, *uint, int) ([]*entities.AuditEntry, error) {
	return f.entries, f.auditErr
}

func testDeps(rt vaultRuntime, out io.Writer) vaultctlDeps {
	return vaultctlDeps{
		loadEnv: func() error { return nil },
		loadCfg: func() *config.Config {
			cfg := &config.Config{}
			cfg.Server.Env = "production"
			return cfg
		},
		prepare: func(*config.Config) (vaultRuntime, io.Closer, error) {
			return rt, nopCloser{}, nil
		},
		out: out,
	}
}

func TestRunVaultctl_Branches(t *testing.T) {
	t.Run("flag parse error", func(t *testing.T) {
		err := runVaultctl([]string{"-unknown-flag"}, testDeps(fakeVaultRuntime{}, &bytes.Buffer{}))
		if err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("invalid action", func(t *testing.T) {
		err := runVaultctl([]string{"-action", "noop"}, testDeps(fakeVaultRuntime{}, &bytes.Buffer{}))
		if err == nil || !strings.Contains(err.Error(), "invalid action") {
			t.Fatalf("expected invalid action error, got %v", err)
		}
	})

	t.Run("prepare error", func(t *testing.T) {
		deps := testDeps(fakeVaultRuntime{}, &bytes.Buffer{})
		deps.loadEnv = func() error { return errors.New("no env") }
		deps.prepare = func(*config.Config) (vaultRuntime, io.Closer, error) {
			return nil, nil, errors.New("db failed")
		}
		err := runVaultctl([]string{"-action", "list"}, deps)
		if err == nil || !strings.Contains(err.Error(), "db failed") {
			t.Fatalf("expected prepare error, got %v", err)
		}
	})

	t.Run("save success", func(t *testing.T) {
		var out bytes.Buffer
		rt := fakeVaultRuntime{saveResult: &entities.SaveResult{
			Status:     entities.SaveStatusCreated,
			Credential: &entities.Credential{ID: 7, ConnectionHash: "abc123"},
		}}
		err := runVaultctl([]string{
			"-action", "save",
			"-host", "db.internal", "-database", "app", "-username", "u1", "-secret", "p",
		}, testDeps(rt, &out))
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if !strings.Contains(out.String(), "status=created") || !strings.Contains(out.String(), "credential_id=7") {
			t.Fatalf("unexpected output: %s", out.String())
		}
	})

	t.Run("save rejects bad engine", func(t *testing.T) {
		err := runVaultctl([]string{"-action", "save", "-engine", "oracle"}, testDeps(fakeVaultRuntime{}, &bytes.Buffer{}))
		if err == nil || !strings.Contains(err.Error(), "invalid engine") {
			t.Fatalf("expected engine error, got %v", err)
		}
	})

	t.Run("save error", func(t *testing.T) {
		rt := fakeVaultRuntime{saveErr: errors.New("boom")}
		err := runVaultctl([]string{"-action", "save"}, testDeps(rt, &bytes.Buffer{}))
		if err == nil || !strings.Contains(err.Error(), "failed to save credential") {
			t.Fatalf("expected save error, got %v", err)
		}
	})

	t.Run("list success", func(t *testing.T) {
		var out bytes.Buffer
		rt := fakeVaultRuntime{creds: []*entities.Credential{
			{ID: 1, Name: "a", EngineType: entities.EnginePostgreSQL, Host: "h", Port: 5432, Database: "d", Username: "u"},
			{ID: 2, Name: "b", EngineType: entities.EngineMySQL, Host: "h2", Port: 3306, Database: "d2", Username: "u2"},
		}}
		err := runVaultctl([]string{"-action", "list"}, testDeps(rt, &out))
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if !strings.Contains(out.String(), "total=2") {
			t.Fatalf("unexpected output: %s", out.String())
		}
		if strings.Contains(out.String(), "SECRET") {
			t.Fatalf("listing must not print secrets: %s", out.String())
		}
	})

	t.Run("secret requires id", func(t *testing.T) {
		err := runVaultctl([]string{"-action", "secret"}, testDeps(fakeVaultRuntime{}, &bytes.Buffer{}))
		if err == nil || !strings.Contains(err.Error(), "--id is required") {
			t.Fatalf("expected id error, got %v", err)
		}
	})

	t.Run("secret success", func(t *testing.T) {
		var out bytes.Buffer
		err := runVaultctl([]string{"-action", "secret", "-id", "3"}, testDeps(fakeVaultRuntime{secret: "p@ss"}, &out))
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if !strings.Contains(out.String(), "SECRET=p@ss") {
			t.Fatalf("unexpected output: %s", out.String())
		}
	})

	t.Run("secret error", func(t *testing.T) {
		rt := fakeVaultRuntime{secretErr: errors.New("decrypt failed")}
		err := runVaultctl([]string{"-action", "secret", "-id", "3"}, testDeps(rt, &bytes.Buffer{}))
		if err == nil || !strings.Contains(err.Error(), "failed to get secret") {
			t.Fatalf("expected secret error, got %v", err)
		}
	})

	t.Run("delete success", func(t *testing.T) {
		var out bytes.Buffer
		err := runVaultctl([]string{"-action", "delete", "-id", "3"}, testDeps(fakeVaultRuntime{deleted: true}, &out))
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if !strings.Contains(out.String(), "deleted=true") {
			t.Fatalf("unexpected output: %s", out.String())
		}
	})

	t.Run("delete requires id", func(t *testing.T) {
		err := runVaultctl([]string{"-action", "delete"}, testDeps(fakeVaultRuntime{}, &bytes.Buffer{}))
		if err == nil || !strings.Contains(err.Error(), "--id is required") {
			t.Fatalf("expected id error, got %v", err)
		}
	})

	t.Run("check both outcomes", func(t *testing.T) {
		var out bytes.Buffer
		err := runVaultctl([]string{"-action", "check", "-host", "h", "-database", "d", "-username", "u"},
			testDeps(fakeVaultRuntime{duplicate: &entities.Credential{ID: 9}}, &out))
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if !strings.Contains(out.String(), "exists=true credential_id=9") {
			t.Fatalf("unexpected output: %s", out.String())
		}

		out.Reset()
		err = runVaultctl([]string{"-action", "check", "-host", "h", "-database", "d", "-username", "u"},
			testDeps(fakeVaultRuntime{}, &out))
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if !strings.Contains(out.String(), "exists=false") {
			t.Fatalf("unexpected output: %s", out.String())
		}
	})

	t.Run("audit success", func(t *testing.T) {
		var out bytes.Buffer
		id := uint(3)
		rt := fakeVaultRuntime{entries: []*entities.AuditEntry{
			{CredentialID: &id, Operation: entities.AuditOpCreate, Success: true, Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
			{Operation: entities.AuditOpAccess, Success: false, ErrorMessage: null.StringFrom("credential not found"), Timestamp: time.Date(2026, 3, 1, 9, 1, 0, 0, time.UTC)},
		}}
		err := runVaultctl([]string{"-action", "audit", "-id", "3"}, testDeps(rt, &out))
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if !strings.Contains(out.String(), "operation=create success=true") {
			t.Fatalf("unexpected output: %s", out.String())
		}
		if !strings.Contains(out.String(), "credential_id=- operation=access success=false") {
			t.Fatalf("unexpected output: %s", out.String())
		}
		if !strings.Contains(out.String(), "total=2") {
			t.Fatalf("unexpected output: %s", out.String())
		}
	})

	t.Run("audit error", func(t *testing.T) {
		rt := fakeVaultRuntime{auditErr: errors.New("query failed")}
		err := runVaultctl([]string{"-action", "audit"}, testDeps(rt, &bytes.Buffer{}))
		if err == nil || !strings.Contains(err.Error(), "failed to list audit trail") {
			t.Fatalf("expected audit error, got %v", err)
		}
	})
}

func TestRunVaultctl_DefaultNilsForLoaders(t *testing.T) {
	var out bytes.Buffer
	deps := vaultctlDeps{
		loadEnv: nil,
		loadCfg: nil,
		prepare: func(*config.Config) (vaultRuntime, io.Closer, error) {
			return fakeVaultRuntime{creds: nil}, nil, nil
		},
		out: &out,
	}
	err := runVaultctl([]string{"-action", "list"}, deps)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !strings.Contains(out.String(), "total=0") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestDefaultVaultctlDeps_PrepareBranches(t *testing.T) {
	deps := defaultVaultctlDeps()
	if deps.loadEnv == nil || deps.loadCfg == nil || deps.prepare == nil || deps.out == nil {
		t.Fatalf("default deps must not be nil")
	}

	cfg := &config.Config{}
	cfg.Database.Host = "localhost"
	cfg.Database.Port = -1
	cfg.Vault.MasterKey = "test-master-key"

	_, _, err := deps.prepare(cfg)
	if err == nil || !strings.Contains(err.Error(), "database preflight failed") {
		t.Fatalf("expected preflight error, got %v", err)
	}

	origPreflight := vaultPreflight
	origOpen := openVaultDB
	defer func() {
		vaultPreflight = origPreflight
		openVaultDB = origOpen
	}()
	vaultPreflight = func(config.DatabaseConfig) (*sql.DB, error) {
		return sql.Open("postgres", "host=localhost")
	}
	openVaultDB = func(string) (*gorm.DB, error) {
		return gorm.Open(sqlite.Open("file:vaultctl_prepare_success?mode=memory&cache=shared"), &gorm.Config{})
	}

	cfg.Database.Port = 5432
	runtime, closer, err := deps.prepare(cfg)
	if err != nil {
		t.Fatalf("expected prepare success with mocked db, got %v", err)
	}
	if runtime == nil || closer == nil {
		t.Fatalf("expected runtime and closer, got runtime=%v closer=%v", runtime, closer)
	}
	_ = closer.Close()

	// an empty master key must refuse to build the cipher
	cfg.Vault.MasterKey = ""
	_, _, err = deps.prepare(cfg)
	if err == nil || !strings.Contains(err.Error(), "failed to init cipher") {
		t.Fatalf("expected cipher error, got %v", err)
	}
}

func TestDefaultVaultctlDeps_Prepare_SQLDBInitErrorBranch(t *testing.T) {
	deps := defaultVaultctlDeps()
	cfg := &config.Config{}
	cfg.Vault.MasterKey = "test-master-key"

	origPreflight := vaultPreflight
	origOpen := openVaultDB
	origOpenSQL := openVaultSQLDB
	defer func() {
		vaultPreflight = origPreflight
		openVaultDB = origOpen
		openVaultSQLDB = origOpenSQL
	}()

	vaultPreflight = func(config.DatabaseConfig) (*sql.DB, error) {
		return sql.Open("postgres", "host=localhost")
	}
	openVaultDB = func(string) (*gorm.DB, error) {
		return gorm.Open(sqlite.Open("file:vaultctl_sql_err?mode=memory&cache=shared"), &gorm.Config{})
	}
	openVaultSQLDB = func(*gorm.DB) (io.Closer, error) {
		return nil, errors.New("sql db init failed")
	}

	_, _, err := deps.prepare(cfg)
	if err == nil || !strings.Contains(err.Error(), "failed to init sql db") {
		t.Fatalf("expected sql db init error, got %v", err)
	}
}
