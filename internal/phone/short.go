package phone

import "regexp"

// Short codes and emergency numbers per region. Numbers below
// MinPlausibleDigits are valid only when their region lists them here.
var shortNumbers = map[string]*regexp.Regexp{
	"":   regexp.MustCompile(`^(?:112|911)$`),
	"US": regexp.MustCompile(`^(?:112|911|[2-9]11|[2-9]\d{4,5})$`),
	"CA": regexp.MustCompile(`^(?:112|911|[2-9]11|[2-9]\d{4,5})$`),
	"IN": regexp.MustCompile(`^(?:1(?:0[0-8]|12)|[2-9]\d{4,5})$`),
	"DE": regexp.MustCompile(`^(?:11[02]|116\d{3}|[1-9]\d{4})$`),
	"GB": regexp.MustCompile(`^(?:999|112|101|111|[6-8]\d{4})$`),
	"PL": regexp.MustCompile(`^(?:11[02]|99[7-9]|[4-9]\d{3,4})$`),
	"FR": regexp.MustCompile(`^(?:1[578]|11[25]|3\d{3}|[3-8]\d{4})$`),
	"AU": regexp.MustCompile(`^(?:000|112|1[0-9]{4,5})$`),
}

func isShortNumber(digits, region string) bool {
	re, ok := shortNumbers[region]
	if !ok {
		re = shortNumbers[""]
	}
	return re.MatchString(digits)
}
