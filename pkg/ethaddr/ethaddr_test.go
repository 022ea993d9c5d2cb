package ethaddr

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{
			name:     "lowercase to checksum",
			in:       "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
			expected: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		},
		{
			name:     "uppercase to checksum",
			in:       "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED",
			expected: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		},
		{
			name:     "already checksummed",
			in:       "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
			expected: "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		},
		{
			name:     "short opaque key passes through",
			in:       "0xAAA",
			expected: "0xAAA",
		},
		{
			name:     "empty passes through",
			in:       "",
			expected: "",
		},
		{
			name:     "non-hex passes through",
			in:       "wallet-1",
			expected: "wallet-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Normalize(tt.in); result != tt.expected {
				t.Errorf("Normalize(%q) = %q, expected %q", tt.in, result, tt.expected)
			}
		})
	}
}

func TestNormalizePtr(t *testing.T) {
	if NormalizePtr(nil) != nil {
		t.Fatal("NormalizePtr(nil) should be nil")
	}
	in := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	out := NormalizePtr(&in)
	if out == nil || *out != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Errorf("NormalizePtr(%q) = %v", in, out)
	}
}
