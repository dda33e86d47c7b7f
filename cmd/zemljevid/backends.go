package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/erazemk/zemljevid/internal/api"
	"github.com/erazemk/zemljevid/internal/auth"
	"github.com/erazemk/zemljevid/internal/blob"
	"github.com/erazemk/zemljevid/internal/config"
	"github.com/erazemk/zemljevid/internal/identity"
	"github.com/erazemk/zemljevid/internal/model"
	"github.com/erazemk/zemljevid/internal/store"
	"github.com/erazemk/zemljevid/internal/store/mongostore"
)

// openStore opens the configured storage backend.
func openStore(ctx context.Context, cfg config.Storage) (store.Store, error) {
	switch cfg.Backend {
	case config.StorageMongo:
		st, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		slog.Info("storage ready", "backend", cfg.Backend, "database", cfg.MongoDatabase)
		return st, nil
	default:
		st, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("storage ready", "backend", cfg.Backend, "path", cfg.SQLitePath)
		return st, nil
	}
}

// openImages returns the image backend and, for MinIO, its health check.
func openImages(ctx context.Context, cfg config.Images, st store.Store) (store.Images, api.Pinger, error) {
	if cfg.Backend != config.ImagesMinIO {
		return st, nil, nil
	}

	m, err := blob.NewMinIO(blob.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		Region:    cfg.MinIO.Region,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := m.EnsureBucket(ctx); err != nil {
		return nil, nil, err
	}
	slog.Info("image storage ready", "backend", cfg.Backend, "bucket", cfg.MinIO.Bucket)
	return m, m, nil
}

// openIdentity returns the configured identity provider. In local mode the
// first run creates an admin account and prints its password once.
func openIdentity(ctx context.Context, cfg config.Identity, st store.Store) (identity.Provider, error) {
	if cfg.Mode == config.IdentityRemote {
		slog.Info("identity ready", "mode", cfg.Mode, "upstream", cfg.RemoteURL)
		return identity.NewRemote(cfg.RemoteURL, cfg.RemoteTimeout, cfg.CacheTTL), nil
	}

	secret := cfg.JWTSecret
	if secret == "" {
		var err error
		if secret, err = st.JWTSecret(ctx); err != nil {
			return nil, fmt.Errorf("loading JWT secret: %w", err)
		}
	}

	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	local := identity.NewLocal(st, hasher, auth.NewTokens(secret, cfg.TokenTTL))

	password, err := generatePassword(16)
	if err != nil {
		return nil, fmt.Errorf("generating password: %w", err)
	}
	created, err := local.Bootstrap(ctx, model.Registration{
		DisplayName: cfg.AdminName,
		Email:       cfg.AdminEmail,
		Password:    password,
	})
	if err != nil {
		return nil, fmt.Errorf("creating admin account: %w", err)
	}
	if created {
		printAdminAccount(cfg.AdminName, cfg.AdminEmail, password)
	}

	slog.Info("identity ready", "mode", config.IdentityLocal, "bcrypt_cost", hasher.Cost())
	return local, nil
}

// printAdminAccount prints the bootstrap admin credentials to stdout.
func printAdminAccount(name, email, password string) {
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", name)
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
