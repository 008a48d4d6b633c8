package seats

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/config"
	"supportdesk/internal/core/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), config.SeatsConfig{
		ValidatorURL: srv.URL + "/",
		Timeout:      time.Second,
	})
}

func TestClient_Validate(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    domain.Seat
		wantErr error
	}{
		{
			name:   "valid",
			status: http.StatusOK,
			body:   `{"seatId":7,"agentId":"k3yk3yk3yk3yk3yk","userType":"agent"}`,
			want:   domain.Seat{SeatID: 7, AgentID: "k3yk3yk3yk3yk3yk"},
		},
		{name: "unknown", status: http.StatusNotFound, body: "Agent key not found", wantErr: domain.ErrUnknownCredential},
		{name: "inactive", status: http.StatusForbidden, body: "Agent key not active", wantErr: domain.ErrInactiveCredential},
		{name: "expired", status: http.StatusForbidden, body: "Agent key expired", wantErr: domain.ErrExpiredCredential},
		{name: "server error", status: http.StatusInternalServerError, wantErr: domain.ErrValidatorUnavailable},
		{name: "garbage body", status: http.StatusOK, body: "{", wantErr: domain.ErrValidatorUnavailable},
		{name: "missing agent", status: http.StatusOK, body: `{"seatId":1}`, wantErr: domain.ErrValidatorUnavailable},
		{name: "customer key", status: http.StatusOK, body: `{"seatId":1,"agentId":"x","userType":"customer"}`, wantErr: domain.ErrUnknownCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.EscapedPath()
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			seat, err := c.Validate(t.Context(), "k3y/with space")

			assert.Equal(t, "/_internal/validate_agent_key/k3y%2Fwith%20space", gotPath)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, seat)
		})
	}
}

func TestClient_ValidateRejectsEmpty(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.Validate(t.Context(), "")
	assert.ErrorIs(t, err, domain.ErrUnknownCredential)
	assert.False(t, called)
}

func TestClient_ValidateUnreachable(t *testing.T) {
	c := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), config.SeatsConfig{ValidatorURL: "http://127.0.0.1:1"})
	_, err := c.Validate(t.Context(), "abc")
	assert.ErrorIs(t, err, domain.ErrValidatorUnavailable)
	assert.False(t, domain.IsCredentialRejection(err))
}
