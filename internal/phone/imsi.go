package phone

// mobileCountryCodes maps ITU-T E.212 mobile country codes to regions.
var mobileCountryCodes = map[string]string{
	"202": "GR", "204": "NL", "206": "BE", "208": "FR", "214": "ES",
	"216": "HU", "222": "IT", "226": "RO", "228": "CH", "230": "CZ",
	"232": "AT", "234": "GB", "235": "GB", "238": "DK", "240": "SE",
	"242": "NO", "244": "FI", "250": "RU", "255": "UA", "260": "PL",
	"262": "DE", "268": "PT", "272": "IE", "302": "CA", "310": "US",
	"311": "US", "312": "US", "313": "US", "314": "US", "315": "US",
	"316": "US", "334": "MX", "404": "IN", "405": "IN", "406": "IN",
	"440": "JP", "441": "JP", "450": "KR", "460": "CN", "505": "AU",
	"530": "NZ", "655": "ZA", "722": "AR", "724": "BR",
}

// RegionForIMSI derives the region from the mobile country code that
// prefixes a subscriber identity. It returns "" when unknown.
func RegionForIMSI(imsi string) string {
	if len(imsi) < 3 {
		return ""
	}
	return mobileCountryCodes[imsi[:3]]
}
