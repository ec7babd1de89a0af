package httpx_test

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/meridian-admin/meridian-admin/internal/platform/httpx"
	"github.com/meridian-admin/meridian-admin/internal/policy"
	"github.com/meridian-admin/meridian-admin/internal/shared"
	"github.com/meridian-admin/meridian-admin/internal/token"
)

func respond(t *testing.T, err error) (int, httpx.Envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	httpx.RespondError(rec, err)
	var body httpx.Envelope
	if decodeErr := json.NewDecoder(rec.Body).Decode(&body); decodeErr != nil {
		t.Fatalf("decode envelope: %v", decodeErr)
	}
	return rec.Code, body
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"expired token", token.ErrTokenExpired, 401, httpx.CodeTokenExpired},
		{"invalid token", token.ErrTokenInvalid, 401, httpx.CodeTokenInvalid},
		{"invalid input", fmt.Errorf("%w: cycle", shared.ErrInvalidInput), 400, 400},
		{"bad credentials", shared.ErrInvalidCredentials, 401, 401},
		{"locked account", shared.ErrUserLocked, 403, 403},
		{"forbidden", shared.ErrForbidden, 403, 403},
		{"not found", shared.ErrNotFound, 404, 404},
		{"duplicate", shared.ErrDuplicate, 409, 409},
		{"store down", shared.ErrStoreUnavailable, 503, 503},
		{"unknown", fmt.Errorf("boom"), 500, 500},
	}
	for _, tc := range cases {
		status, body := respond(t, tc.err)
		if status != tc.status || body.Code != tc.code {
			t.Fatalf("%s: got status=%d code=%d, want %d/%d", tc.name, status, body.Code, tc.status, tc.code)
		}
	}
}

// Rule sentinels are mapped through the shared taxonomy, so the translator
// handles them without a dependency on the policy package.
func TestRespondErrorPolicySentinels(t *testing.T) {
	status, body := respond(t, policy.ErrRuleNotFound)
	if status != 404 {
		t.Fatalf("rule not found: got status %d, want 404", status)
	}
	if body.Msg != policy.ErrRuleNotFound.Error() {
		t.Fatalf("rule not found: got msg %q", body.Msg)
	}

	status, body = respond(t, policy.ErrDuplicateRule)
	if status != 409 {
		t.Fatalf("duplicate rule: got status %d, want 409", status)
	}
	if body.Msg != policy.ErrDuplicateRule.Error() {
		t.Fatalf("duplicate rule: got msg %q", body.Msg)
	}
}
