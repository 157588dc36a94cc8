package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinRequest_NormalizeAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		req         JoinRequest
		requireName bool
		wantEmail   string
		wantErr     bool
	}{
		{"valid", JoinRequest{Name: "  Alice  ", Email: "  A@X.com "}, false, "a@x.com", false},
		{"name optional", JoinRequest{Email: "a@x.com"}, false, "a@x.com", false},
		{"name required", JoinRequest{Email: "a@x.com"}, true, "a@x.com", true},
		{"no at", JoinRequest{Email: "foo"}, false, "foo", true},
		{"no domain", JoinRequest{Email: "foo@"}, false, "foo@", true},
		{"empty", JoinRequest{Email: ""}, false, "", true},
		{"no local part", JoinRequest{Email: "@bar.com"}, false, "@bar.com", true},
		{"no tld", JoinRequest{Email: "foo@bar"}, false, "foo@bar", true},
		{"inner space", JoinRequest{Email: "fo o@bar.com"}, false, "fo o@bar.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			req.Normalize()
			assert.Equal(t, tt.wantEmail, req.Email)

			err := req.Validate(tt.requireName)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJoinRequest_NormalizeCollapsesName(t *testing.T) {
	req := JoinRequest{Name: " Alice   van  Dyke "}
	req.Normalize()
	assert.Equal(t, "Alice van Dyke", req.Name)
}

func TestUnsubscribeRequest(t *testing.T) {
	req := UnsubscribeRequest{Email: "  "}
	req.Normalize()
	assert.ErrorIs(t, req.Validate(), ErrInvalidInput)

	req = UnsubscribeRequest{Email: " B@Y.org"}
	req.Normalize()
	assert.Equal(t, "b@y.org", req.Email)
	assert.NoError(t, req.Validate())
}

func TestError_MatchingByCode(t *testing.T) {
	wrapped := fmt.Errorf("join: %w", &Error{Code: CodeNotFound, Message: "gone"})
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrAlreadyRegistered)
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.Equal(t, "gone", MessageOf(wrapped))

	cause := errors.New("disk full")
	internal := Internal("Failed to join", cause)
	assert.ErrorIs(t, internal, cause)
	assert.Equal(t, CodeInternal, CodeOf(internal))
	assert.Equal(t, "INTERNAL: Failed to join: disk full", internal.Error())

	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, "Something went wrong", MessageOf(errors.New("boom")))
}
