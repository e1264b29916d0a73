package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"medaccess/pkg/locale"
)

// NormalizePhone returns the E.164 form of a patient contact number, or ""
// when no supported region can parse it. The region whose country prefix
// matches is tried first so "+1..." never parses as an Israeli number.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	if phone == "" {
		return ""
	}

	regions := locale.Regions()
	if country := locale.InferCountryFromPhone(phone); country != nil {
		reordered := make([]string, 0, len(regions))
		reordered = append(reordered, country.Code)
		for _, region := range regions {
			if region != country.Code {
				reordered = append(reordered, region)
			}
		}
		regions = reordered
	}

	for _, region := range regions {
		parsedNumber, err := phonenumbers.Parse(phone, region)
		if err == nil {
			return phonenumbers.Format(parsedNumber, phonenumbers.E164)
		}
	}
	return ""
}
