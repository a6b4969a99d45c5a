package vpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPIPLookup(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    netip.Addr
		wantErr string
	}{
		{name: "ipv4", status: http.StatusOK, body: `{"ip":"198.51.100.7","country_code":"FR"}`, want: netip.MustParseAddr("198.51.100.7")},
		{name: "ipv6", status: http.StatusOK, body: `{"ip":"2001:db8::1"}`, want: netip.MustParseAddr("2001:db8::1")},
		{name: "server error", status: http.StatusBadGateway, body: "bad gateway", wantErr: "502"},
		{name: "not json", status: http.StatusOK, body: "198.51.100.7", wantErr: "decode"},
		{name: "invalid address", status: http.StatusOK, body: `{"ip":"localhost"}`, wantErr: "invalid address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Accept"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			addr, err := NewHTTPIPLookup(srv.URL, time.Second).PublicIP(context.Background())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr)
		})
	}
}

func TestHTTPIPLookup_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPIPLookup(url, time.Second).PublicIP(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IP lookup failed")
}

func TestSSHSourcePrefix(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, netip.MustParsePrefix("198.51.100.7/32"), env.builder.sshSourcePrefix(context.Background()))
}
