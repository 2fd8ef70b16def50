// Package zones maps delivery postcodes to flat delivery fees. The zone
// table is static; postcodes outside every zone are not deliverable and
// checkout rejects them before payment.
package zones

// Zone groups postcodes sharing one flat fee in cents.
type Zone struct {
	Name      string
	FeeCents  int64
	Postcodes []string
}

// zones are checked in order; a postcode should appear in exactly one zone,
// and the first match wins if the table ever drifts.
var zones = []Zone{
	{
		Name:     "bakery-local",
		FeeCents: 0,
		Postcodes: []string{
			"2112", "2113", "2114", "2115", "2116", "2117", "2118", "2119", "2121",
		},
	},
	{
		Name:     "inner-ring",
		FeeCents: 900,
		Postcodes: []string{
			"2110", "2111", "2122", "2125", "2126", "2127", "2128", "2151", "2152",
		},
	},
	{
		Name:     "metro",
		FeeCents: 1500,
		Postcodes: []string{
			"2000", "2007", "2008", "2009", "2010", "2011", "2015", "2016", "2017",
			"2020", "2021", "2022", "2026", "2031", "2033", "2034", "2035",
		},
	},
	{
		Name:     "outer",
		FeeCents: 2500,
		Postcodes: []string{
			"2145", "2146", "2147", "2148", "2150", "2160", "2161", "2170",
			"2200", "2204",
		},
	},
}

// Resolve returns the delivery fee in cents for a postcode. ok is false when
// the postcode is outside every zone (not deliverable).
func Resolve(postcode string) (fee int64, ok bool) {
	for _, z := range zones {
		for _, pc := range z.Postcodes {
			if pc == postcode {
				return z.FeeCents, true
			}
		}
	}
	return 0, false
}

// ZoneName returns the name of the zone a postcode falls in, for display.
func ZoneName(postcode string) (string, bool) {
	for _, z := range zones {
		for _, pc := range z.Postcodes {
			if pc == postcode {
				return z.Name, true
			}
		}
	}
	return "", false
}
