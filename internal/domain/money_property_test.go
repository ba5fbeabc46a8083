package domain

import (
	"testing"

	"github.com/holiman/uint256"
	"pgregory.net/rapid"
)

func TestProperty_EtherRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		wei := *uint256.NewInt(rapid.Uint64().Draw(t, "wei"))

		got, err := ParseEther(FormatEther(wei))
		if err != nil {
			t.Fatalf("ParseEther(FormatEther(%s)) returned error: %v", wei.Dec(), err)
		}
		if !got.Eq(&wei) {
			t.Fatalf("round-trip failed: %s → %s → %s", wei.Dec(), FormatEther(wei), got.Dec())
		}
	})
}
