package domain

import "testing"

// FuzzParseUserID checks the trust-boundary invariant: arbitrary input never
// panics and yields either a usable ID or an error, never both.
func FuzzParseUserID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE users;--")
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseUserID(input)
		if err == nil && id.IsNil() {
			t.Errorf("ParseUserID(%q) returned nil ID without error", input)
		}
		if err != nil && !id.IsNil() {
			t.Errorf("ParseUserID(%q) returned both ID and error", input)
		}
	})
}
