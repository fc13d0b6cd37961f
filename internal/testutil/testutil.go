package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"
	"gorm.io/gorm"

	"lmdPortal/internal/config"
	"lmdPortal/internal/db"
	"lmdPortal/repository"
)

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// The DB is closed via t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	// Shared cache keeps one named database per test, reachable from any connection.
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	d, err := db.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + name + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(d) })
	return d
}

// OpenStore is OpenInMemoryDB wrapped in a repository.Store named after the test.
func OpenStore(t *testing.T) *repository.Store {
	t.Helper()
	return repository.NewStore(OpenInMemoryDB(t, t.Name()))
}

// GenerateJWT returns a signed HS256 token carrying the claims the portal reads.
func GenerateJWT(t *testing.T, secret, sub, name, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  sub,
		"name": name,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// CtxWithBearer returns a context containing gRPC metadata Authorization header with the given token.
func CtxWithBearer(ctx context.Context, token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(ctx, md)
}

// OutgoingBearer attaches the token to outgoing gRPC metadata for client calls.
func OutgoingBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
