package pipeline

import "testing"

func TestCleanUpdate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		storedClean *string
		storedHash  *string
		newClean    string
		newHash     string
		wantWrite   bool
		wantBump    bool
	}{
		{
			name:      "first clean never bumps",
			newClean:  "fresh body",
			newHash:   "h-new",
			wantWrite: true,
		},
		{
			name:        "unchanged clean text skips",
			storedClean: strPtr("same body"),
			storedHash:  strPtr("h1"),
			newClean:    "same body",
			newHash:     "h1",
		},
		{
			name:        "refreshed raw text bumps after fingerprinting",
			storedClean: strPtr("old body"),
			storedHash:  strPtr("h-old"),
			newClean:    "corrected body",
			newHash:     "h-corrected",
			wantWrite:   true,
			wantBump:    true,
		},
		{
			name:        "clean changed before first fingerprint does not bump",
			storedClean: strPtr("short stub"),
			newClean:    "a much longer corrected body",
			newHash:     "h-long",
			wantWrite:   true,
		},
		{
			name:        "body shrinks below fingerprint size bumps",
			storedClean: strPtr("old body"),
			storedHash:  strPtr("h-old"),
			newClean:    "stub",
			newHash:     "",
			wantWrite:   true,
			wantBump:    true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			write, bump := cleanUpdate(tc.storedClean, tc.storedHash, tc.newClean, tc.newHash)
			if write != tc.wantWrite || bump != tc.wantBump {
				t.Errorf("cleanUpdate() = (write=%v, bump=%v), want (write=%v, bump=%v)", write, bump, tc.wantWrite, tc.wantBump)
			}
		})
	}
}
