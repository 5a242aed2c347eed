package auth

import (
	"errors"
	"testing"
)

// TestClassifyDeviceCodeError covers the terminal-failure classification:
// expired_token and access_denied are recognized by name, anything else
// passes through as-is.
func TestClassifyDeviceCodeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"expired token", errors.New("AADSTS70008: expired_token, the device code has expired"), "device code expired before authentication completed"},
		{"token expired alt wording", errors.New("token_expired during polling"), "device code expired before authentication completed"},
		{"access denied", errors.New("AADSTS70016: access_denied by the user"), "user denied the device code authentication request"},
		{"unrecognized error passes through", errors.New("network unreachable"), "network unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyDeviceCodeError(tt.err)
			if got != tt.want {
				t.Errorf("classifyDeviceCodeError(%q) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
