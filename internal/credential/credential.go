// ABOUTME: Control-plane credential and the Source boundary that resolves it
// ABOUTME: Static source backs the credential with values from the gateway config

package credential

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// authUser is the fixed Basic auth user name the control plane expects.
const authUser = "riot"

// ErrUnresolved is returned when no credential can be produced, for example
// because the game client is not running.
var ErrUnresolved = errors.New("credential not resolvable")

// Credential addresses and authenticates the local control plane.
// It is immutable once resolved.
type Credential struct {
	Host      string
	Port      int
	AuthToken string
}

// Source resolves the control-plane credential.
type Source interface {
	Resolve(ctx context.Context) (Credential, error)
}

// Validate reports whether the credential can be used to reach the control plane.
func (c Credential) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is empty", ErrUnresolved)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrUnresolved, c.Port)
	}
	if c.AuthToken == "" {
		return fmt.Errorf("%w: auth token is empty", ErrUnresolved)
	}
	return nil
}

// Addr returns host:port.
func (c Credential) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL is the root of the request API.
func (c Credential) BaseURL() string {
	return "https://" + c.Addr()
}

// EventURL is the endpoint of the event stream.
func (c Credential) EventURL() string {
	return "wss://" + c.Addr() + "/"
}

// AuthorizationHeader returns the value for the Authorization header used by
// both the request API and the event stream.
func (c Credential) AuthorizationHeader() string {
	raw := authUser + ":" + c.AuthToken
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// Static is a Source that always returns the same credential.
type Static struct {
	cred Credential
}

// NewStatic creates a Source from fixed values.
func NewStatic(host string, port int, token string) *Static {
	return &Static{cred: Credential{Host: host, Port: port, AuthToken: token}}
}

// Resolve returns the configured credential, or ErrUnresolved when it is incomplete.
func (s *Static) Resolve(ctx context.Context) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	if err := s.cred.Validate(); err != nil {
		return Credential{}, err
	}
	return s.cred, nil
}
