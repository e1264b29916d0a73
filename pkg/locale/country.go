package locale

type Country struct {
	Code          string   // ISO 3166-1 alpha-2 country code (e.g., "IL", "US")
	Name          string   // Human-readable country name
	PhonePrefixes []string // Valid phone number prefixes (e.g., ["+972", "972"])
}

// regionOrder fixes the parse order for national-format numbers: a local
// number with no country prefix is assumed to belong to the first region.
var (
	regionOrder = []string{"IL", "US"}

	Countries = map[string]Country{
		"IL": {
			Code:          "IL",
			Name:          "Israel",
			PhonePrefixes: []string{"+972", "972"},
		},
		"US": {
			Code:          "US",
			Name:          "United States",
			PhonePrefixes: []string{"+1", "1"},
		},
	}
)

func Regions() []string {
	regions := make([]string, len(regionOrder))
	copy(regions, regionOrder)
	return regions
}
