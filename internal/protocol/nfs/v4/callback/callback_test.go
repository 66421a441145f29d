package callback

import "testing"

// TestParseUaddr covers Seed Scenario G: a well-formed universal address
// parses to the expected "host:port", and every malformed variant --
// including an out-of-range octet like the port byte 256 in the scenario's
// own example -- is rejected rather than silently wrapping or truncating.
func TestParseUaddr(t *testing.T) {
	cases := []struct {
		name    string
		netID   string
		addr    string
		want    string
		wantErr bool
	}{
		{
			name:  "valid address and low port",
			netID: "tcp",
			addr:  "10.0.0.1.0.111",
			want:  "10.0.0.1:111",
		},
		{
			name:  "valid address and high port",
			netID: "tcp",
			addr:  "192.168.1.5.195.80",
			want:  "192.168.1.5:50000",
		},
		{
			name:    "port octet out of range",
			netID:   "tcp",
			addr:    "10.0.0.1.256.0",
			wantErr: true,
		},
		{
			name:    "host octet out of range",
			netID:   "tcp",
			addr:    "300.0.0.1.0.111",
			wantErr: true,
		},
		{
			name:    "wrong number of parts",
			netID:   "tcp",
			addr:    "10.0.0.1.111",
			wantErr: true,
		},
		{
			name:    "non-numeric part",
			netID:   "tcp",
			addr:    "10.0.0.1.abc.111",
			wantErr: true,
		},
		{
			name:    "unsupported netid",
			netID:   "udp",
			addr:    "10.0.0.1.0.111",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseUaddr(tc.netID, tc.addr)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error for addr %q, got host:port %q", tc.addr, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for addr %q: %v", tc.addr, err)
			}
			if got != tc.want {
				t.Fatalf("parseUaddr(%q) = %q, want %q", tc.addr, got, tc.want)
			}
		})
	}
}
