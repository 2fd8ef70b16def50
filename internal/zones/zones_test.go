package zones

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	fee, ok := Resolve("2118")
	assert.True(t, ok)
	assert.Equal(t, int64(0), fee)

	fee, ok = Resolve("2000")
	assert.True(t, ok)
	assert.Equal(t, int64(1500), fee)

	_, ok = Resolve("9999")
	assert.False(t, ok)

	_, ok = Resolve("")
	assert.False(t, ok)
}

func TestResolveIsStable(t *testing.T) {
	// same postcode always resolves to the same fee
	first, ok := Resolve("2148")
	assert.True(t, ok)
	for i := 0; i < 10; i++ {
		fee, ok := Resolve("2148")
		assert.True(t, ok)
		assert.Equal(t, first, fee)
	}
}

func TestEveryTablePostcodeResolves(t *testing.T) {
	for _, z := range zones {
		for _, pc := range z.Postcodes {
			fee, ok := Resolve(pc)
			assert.True(t, ok, "postcode %s should be deliverable", pc)
			assert.Equal(t, z.FeeCents, fee, "postcode %s", pc)

			name, ok := ZoneName(pc)
			assert.True(t, ok)
			assert.Equal(t, z.Name, name)
		}
	}
}

func TestNoPostcodeInTwoZones(t *testing.T) {
	seen := map[string]string{}
	for _, z := range zones {
		for _, pc := range z.Postcodes {
			if prev, dup := seen[pc]; dup {
				t.Fatalf("postcode %s appears in zones %s and %s", pc, prev, z.Name)
			}
			seen[pc] = z.Name
		}
	}
}
