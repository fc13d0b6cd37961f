package auth

import (
	"context"
	"errors"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"
)

// Roles issued by the identity provider.
const (
	RoleAdmin             = "Admin"
	RoleOperationsManager = "Operations Manager"
	RoleSupervisor        = "Supervisor"
	RoleWarehouseStaff    = "Warehouse Staff"
	RoleDriver            = "Driver"
	RoleCustomerService   = "Customer Service"
)

// Principal represents the authenticated caller from JWT.
type Principal struct {
	ID   string // subject claim
	Name string
	Role string
}

// HasRole reports whether the principal carries one of roles (case-insensitive).
func (p *Principal) HasRole(roles ...string) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if strings.EqualFold(p.Role, r) {
			return true
		}
	}
	return false
}

// Actor is the identity attached to every mutating operation and its audit entry.
type Actor struct {
	ID   string
	Name string
	Role string
	IP   string
}

// Actor converts the principal into an Actor seen from ip.
func (p *Principal) Actor(ip string) Actor {
	if p == nil {
		return Actor{IP: ip}
	}
	return Actor{ID: p.ID, Name: p.Name, Role: p.Role, IP: ip}
}

// DisplayName returns the name recorded in audit logs, falling back to the id.
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// ParseFromMD extracts and validates a Bearer JWT from gRPC metadata and returns a Principal.
func ParseFromMD(ctx context.Context, secret string) (*Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, errors.New("missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return nil, errors.New("missing authorization")
	}
	return ParseBearer(vals[0], secret)
}

// ParseBearer validates an Authorization header value of the form "Bearer <jwt>".
func ParseBearer(header, secret string) (*Principal, error) {
	if header == "" {
		return nil, errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errors.New("invalid authorization header")
	}
	return parseJWT(strings.TrimSpace(parts[1]), secret)
}

// parseJWT validates and extracts claims from a JWT token.
func parseJWT(tokenStr string, secret string) (*Principal, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}

	type claims struct {
		Name string `json:"name"`
		Role string `json:"role"`
		jwt.RegisteredClaims
	}

	tok, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, err
	}
	c, _ := tok.Claims.(*claims)
	if c == nil || c.Subject == "" || c.Role == "" {
		return nil, errors.New("invalid claims")
	}
	return &Principal{ID: c.Subject, Name: c.Name, Role: c.Role}, nil
}
