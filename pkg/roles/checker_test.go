package roles

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/commonshold/core/pkg/contracts"
)

func TestCheckAuthorized(t *testing.T) {
	src := NewStaticSource()
	src.Grant("agent-a", RoleAccountable)
	c := NewChecker(src)

	res, err := c.Check(context.Background(), "agent-a", contracts.ActionUse)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Fatalf("expected allowed, got %+v", res)
	}
	if res.Status != "Authorized" {
		t.Fatalf("expected Authorized status, got %q", res.Status)
	}
}

func TestCheckInsufficientRole(t *testing.T) {
	src := NewStaticSource()
	src.Grant("hauler", RoleTransport)
	c := NewChecker(src)

	// Transport role does not cover Modify, which requires Repair.
	res, err := c.Check(context.Background(), "hauler", contracts.ActionModify)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("expected denial")
	}
	if !strings.Contains(res.Status, "Insufficient role") {
		t.Fatalf("expected Insufficient role status, got %q", res.Status)
	}
	if len(res.RequiredRoles) != 1 || res.RequiredRoles[0] != RoleRepair {
		t.Fatalf("expected required roles [Repair], got %v", res.RequiredRoles)
	}
}

func TestCheckDenialIsNotError(t *testing.T) {
	c := NewChecker(NewStaticSource())
	res, err := c.Check(context.Background(), "unknown-agent", contracts.ActionTransfer)
	if err != nil {
		t.Fatalf("denial must not be an error: %v", err)
	}
	if res.Allowed {
		t.Fatal("agent with no roles must be denied")
	}
}

type failingSource struct{}

func (failingSource) GetRoles(context.Context, string) ([]Role, error) {
	return nil, errors.New("identity provider timeout")
}

func TestCheckSourceFailureWrapsCollaboratorUnavailable(t *testing.T) {
	c := NewChecker(failingSource{})
	_, err := c.Check(context.Background(), "agent-a", contracts.ActionUse)
	if !errors.Is(err, contracts.ErrCollaboratorUnavailable) {
		t.Fatalf("expected ErrCollaboratorUnavailable, got %v", err)
	}
}

func TestTokenSourceRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := IssueToken(priv, "commonshold/identity", "agent-a",
		[]Role{RoleAccountable, RoleTransport}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	src := NewTokenSource(pub, "commonshold/identity")
	src.Register("agent-a", tok)

	held, err := src.GetRoles(context.Background(), "agent-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(held) != 2 {
		t.Fatalf("expected 2 roles, got %v", held)
	}
}

func TestTokenSourceRejectsForeignKey(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(rand.Reader)
	_, otherPriv, _ := ed25519.GenerateKey(rand.Reader)

	tok, err := IssueToken(otherPriv, "commonshold/identity", "agent-a",
		[]Role{RoleSteward}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	src := NewTokenSource(pub, "commonshold/identity")
	src.Register("agent-a", tok)

	if _, err := src.GetRoles(context.Background(), "agent-a"); err == nil {
		t.Fatal("token signed by a foreign key must be rejected")
	}
}
