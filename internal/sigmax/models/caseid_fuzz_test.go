//go:build go1.18

package models

import (
	"testing"
)

// FuzzParseCaseID checks that parsing never panics and that every accepted
// identifier formats back to something that parses to the same value.
func FuzzParseCaseID(f *testing.F) {
	f.Add("SIA-1")
	f.Add("SIA-123.01")
	f.Add("  SIA-99.05  ")
	f.Add("SIA-0")
	f.Add("SIA-1.00")
	f.Add("SIA-99.05.02")
	f.Add("SIA-١٢")
	f.Add(string([]byte{0x00, 0xff}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseCaseID(input)
		if err != nil {
			return
		}
		if id.SignalID <= 0 {
			t.Fatalf("accepted non-positive signal id from %q", input)
		}
		if id.Sequence < 0 || id.Sequence > MaxSequenceNumber {
			t.Fatalf("accepted out-of-range sequence %d from %q", id.Sequence, input)
		}
		again, err := ParseCaseID(id.String())
		if err != nil {
			t.Fatalf("formatted id %q does not parse: %v", id.String(), err)
		}
		if again != id {
			t.Fatalf("round-trip changed %v to %v", id, again)
		}
	})
}
