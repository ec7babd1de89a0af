package token

import (
	"errors"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec("test-secret-test-secret-test-secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return codec
}

func TestIssueAndValidate(t *testing.T) {
	codec := newTestCodec(t)

	access, refresh, err := codec.Issue(42, []int64{1, 3})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("expected both token families")
	}
	if access == refresh {
		t.Fatal("access and refresh tokens must differ")
	}

	id, err := codec.Validate(access)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected principal 42, got %d", id)
	}

	claims, err := codec.Parse(access)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(claims.RoleIDs) != 2 || claims.RoleIDs[0] != 1 || claims.RoleIDs[1] != 3 {
		t.Fatalf("unexpected role snapshot: %v", claims.RoleIDs)
	}
}

func TestValidateExpired(t *testing.T) {
	codec := newTestCodec(t)

	issued := time.Now()
	codec.now = func() time.Time { return issued }
	access, _, err := codec.Issue(7, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Still valid just before the TTL elapses.
	codec.now = func() time.Time { return issued.Add(59 * time.Second) }
	if _, err := codec.Validate(access); err != nil {
		t.Fatalf("expected valid before ttl, got %v", err)
	}

	codec.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = codec.Validate(access)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateTampered(t *testing.T) {
	codec := newTestCodec(t)
	access, _, err := codec.Issue(7, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = codec.Validate(access + "x")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}

	other, _ := NewCodec("another-secret-another-secret-secret", time.Minute, time.Hour)
	_, err = other.Validate(access)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong secret, got %v", err)
	}
}

func TestValidateGarbage(t *testing.T) {
	codec := newTestCodec(t)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := codec.Validate(tok); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("token %q: expected ErrTokenInvalid, got %v", tok, err)
		}
	}
}
