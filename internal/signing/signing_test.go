package signing

import "testing"

func TestFormatFingerprint(t *testing.T) {
	tests := []struct {
		name string
		fp   string
		want string
	}{
		{
			name: "40 char fingerprint",
			fp:   "D53626F8174A9846F6A573CC1253FA47EA19E301",
			want: "D536 26F8 174A 9846 F6A5 73CC 1253 FA47 EA19 E301",
		},
		{
			name: "lowercase gets uppercased",
			fp:   "d53626f8174a9846f6a573cc1253fa47ea19e301",
			want: "D536 26F8 174A 9846 F6A5 73CC 1253 FA47 EA19 E301",
		},
		{
			name: "already has spaces",
			fp:   "D536 26F8 174A 9846 F6A5 73CC 1253 FA47 EA19 E301",
			want: "D536 26F8 174A 9846 F6A5 73CC 1253 FA47 EA19 E301",
		},
		{
			name: "wrong length passes through",
			fp:   "ABCDEF",
			want: "ABCDEF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatFingerprint(tt.fp)
			if got != tt.want {
				t.Errorf("FormatFingerprint() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewVerifier_RejectsInvalidKey(t *testing.T) {
	_, err := NewVerifier("not a pgp key")
	if err == nil {
		t.Fatal("expected error for invalid armored key")
	}
}
