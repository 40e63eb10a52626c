package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/volatiletech/null/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cred-vault.backend/internal/config"
	"cred-vault.backend/internal/domain/entities"
	postgresds "cred-vault.backend/internal/infrastructure/datasources/postgres"
	"cred-vault.backend/internal/infrastructure/repositories"
	"cred-vault.backend/internal/usecases"
	"cred-vault.backend/pkg/crypto"
	"cred-vault.backend/pkg/logger"
)

var vaultPreflight = postgresds.NewConnection

var openVaultDB = func(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), &gorm.Config{PrepareStmt: false})
}

var openVaultSQLDB = func(db *gorm.DB) (io.Closer, error) {
	return db.DB()
}

type vaultRuntime interface {
	SaveCredential(ctx context.Context, input *entities.SaveCredentialInput) (*entities.SaveResult, error)
	ListCredentials(ctx context.Context, ownerSession null.String) ([]*entities.Credential, error)
	GetSecret(ctx context.Context, id uint, ownerSession null.String) (string, error)
	DeleteCredential(ctx context.Context, id uint, ownerSession null.String) (bool, error)
	CheckDuplicate(ctx context.Context, host string, port int, database, username string, engineType entities.EngineType) (*entities.Credential, error)
	ListAuditTrail(ctx context.Context, credentialID *uint, limit int) ([]*entities.AuditEntry, error)
}

type vaultctlDeps struct {
	loadEnv func() error
	loadCfg func() *config.Config
	prepare func(cfg *config.Config) (vaultRuntime, io.Closer, error)
	out     io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func defaultVaultctlDeps() vaultctlDeps {
	return vaultctlDeps{
		loadEnv: func() error { return godotenv.Load() },
		loadCfg: config.Load,
		prepare: func(cfg *config.Config) (vaultRuntime, io.Closer, error) {
			pre, err := vaultPreflight(cfg.Database)
			if err != nil {
				return nil, nil, fmt.Errorf("database preflight failed: %w", err)
			}
			pre.Close()

			db, err := openVaultDB(cfg.Database.URL())
			if err != nil {
				return nil, nil, fmt.Errorf("failed to connect db: %w", err)
			}

			sqlDB, err := openVaultSQLDB(db)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to init sql db: %w", err)
			}

			cipher, err := crypto.NewCredentialCipher(cfg.Vault.MasterKey)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to init cipher: %w", err)
			}

			vault := usecases.NewVaultUsecase(
				repositories.NewCredentialRepository(db),
				repositories.NewAuditRepository(db),
				repositories.NewUnitOfWork(db),
				cipher,
				cfg.Vault.SessionScopedDelete,
				cfg.Vault.AuditListLimit,
			)
			return vault, sqlDB, nil
		},
		out: os.Stdout,
	}
}

func parseEngineType(s string) (entities.EngineType, error) {
	switch entities.EngineType(s) {
	case entities.EnginePostgreSQL, entities.EngineMySQL, entities.EngineMongoDB, entities.EngineSQLite:
		return entities.EngineType(s), nil
	}
	return "", fmt.Errorf("invalid engine: %s (allowed: postgresql, mysql, mongodb, sqlite)", s)
}

func sessionFlag(s string) null.String {
	if s == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}

func runVaultctl(args []string, deps vaultctlDeps) error {
	if deps.loadEnv == nil {
		deps.loadEnv = func() error { return godotenv.Load() }
	}
	if deps.loadCfg == nil {
		deps.loadCfg = config.Load
	}
	if deps.prepare == nil {
		def := defaultVaultctlDeps()
		deps.prepare = def.prepare
	}
	if deps.out == nil {
		deps.out = os.Stdout
	}

	fs := flag.NewFlagSet("vaultctl", flag.ContinueOnError)
	action := fs.String("action", "", "one of: save, list, secret, delete, check, audit")
	name := fs.String("name", "", "credential display name (save)")
	host := fs.String("host", "", "database host (save, check)")
	port := fs.Int("port", 5432, "database port (save, check)")
	database := fs.String("database", "", "database name (save, check)")
	username := fs.String("username", "", "database username (save, check)")
	secret := fs.String("secret", "", "database password (save)")
	engine := fs.String("engine", string(entities.EnginePostgreSQL), "database engine (save, check)")
	session := fs.String("session", "", "owner session tag (optional)")
	id := fs.Uint("id", 0, "credential id (secret, delete, audit)")
	limit := fs.Int("limit", 0, "max audit entries (audit)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch *action {
	case "save", "list", "secret", "delete", "check", "audit":
	default:
		return fmt.Errorf("invalid action: %q (allowed: save, list, secret, delete, check, audit)", *action)
	}

	if err := deps.loadEnv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := deps.loadCfg()
	logger.Init(cfg.Server.Env)

	runtime, closer, err := deps.prepare(cfg)
	if err != nil {
		return err
	}
	if closer == nil {
		closer = nopCloser{}
	}
	defer closer.Close()

	ctx := context.WithValue(context.Background(), logger.RequestIDKey, uuid.NewString())
	ctx = usecases.WithClientInfo(ctx, "127.0.0.1", "vaultctl")

	switch *action {
	case "save":
		engineType, err := parseEngineType(*engine)
		if err != nil {
			return err
		}
		result, err := runtime.SaveCredential(ctx, &entities.SaveCredentialInput{
			Name:         *name,
			Host:         *host,
			Port:         *port,
			Database:     *database,
			Username:     *username,
			Secret:       *secret,
			EngineType:   engineType,
			OwnerSession: sessionFlag(*session),
		})
		if err != nil {
			return fmt.Errorf("failed to save credential: %w", err)
		}
		fmt.Fprintf(deps.out, "status=%s\n", result.Status)
		fmt.Fprintf(deps.out, "credential_id=%d\n", result.Credential.ID)
		fmt.Fprintf(deps.out, "connection_hash=%s\n", result.Credential.ConnectionHash)
		return nil

	case "list":
		creds, err := runtime.ListCredentials(ctx, sessionFlag(*session))
		if err != nil {
			return fmt.Errorf("failed to list credentials: %w", err)
		}
		for _, c := range creds {
			fmt.Fprintf(deps.out, "id=%d name=%s engine=%s host=%s:%d database=%s username=%s\n",
				c.ID, c.Name, c.EngineType, c.Host, c.Port, c.Database, c.Username)
		}
		fmt.Fprintf(deps.out, "total=%d\n", len(creds))
		return nil

	case "secret":
		if *id == 0 {
			return fmt.Errorf("--id is required")
		}
		value, err := runtime.GetSecret(ctx, *id, sessionFlag(*session))
		if err != nil {
			return fmt.Errorf("failed to get secret: %w", err)
		}
		fmt.Fprintf(deps.out, "SECRET=%s\n", value)
		return nil

	case "delete":
		if *id == 0 {
			return fmt.Errorf("--id is required")
		}
		deleted, err := runtime.DeleteCredential(ctx, *id, sessionFlag(*session))
		if err != nil {
			return fmt.Errorf("failed to delete credential: %w", err)
		}
		fmt.Fprintf(deps.out, "deleted=%t\n", deleted)
		return nil

	case "check":
		engineType, err := parseEngineType(*engine)
		if err != nil {
			return err
		}
		dup, err := runtime.CheckDuplicate(ctx, *host, *port, *database, *username, engineType)
		if err != nil {
			return fmt.Errorf("failed to check duplicate: %w", err)
		}
		if dup == nil {
			fmt.Fprintln(deps.out, "exists=false")
			return nil
		}
		fmt.Fprintf(deps.out, "exists=true credential_id=%d\n", dup.ID)
		return nil

	case "audit":
		var credID *uint
		if *id != 0 {
			v := *id
			credID = &v
		}
		entries, err := runtime.ListAuditTrail(ctx, credID, *limit)
		if err != nil {
			return fmt.Errorf("failed to list audit trail: %w", err)
		}
		for _, e := range entries {
			credential := "-"
			if e.CredentialID != nil {
				credential = fmt.Sprintf("%d", *e.CredentialID)
			}
			fmt.Fprintf(deps.out, "%s credential_id=%s operation=%s success=%t error=%s\n",
				e.Timestamp.Format("2006-01-02T15:04:05Z07:00"), credential, e.Operation, e.Success, e.ErrorMessage.String)
		}
		fmt.Fprintf(deps.out, "total=%d\n", len(entries))
		return nil
	}
	return nil
}

func main() {
	if err := runVaultctl(os.Args[1:], defaultVaultctlDeps()); err != nil {
		log.Fatal(err)
	}
}
