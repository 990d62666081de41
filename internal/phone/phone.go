// Package phone canonicalizes telephone numbers so that differently typed
// forms of the same number compare equal.
package phone

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/nyaruka/phonenumbers"
)

// MinPlausibleDigits is the digit count below which a number is treated as
// a short code and never run through the full parser.
const MinPlausibleDigits = 7

const defaultCacheSize = 512

var schemes = []string{"sms://", "sms:", "tel://", "tel:", "mms://", "mms:"}

// Number is the result of normalizing one raw input.
type Number struct {
	Raw     string
	Cleaned string // digits with an optional leading '+', or "" when unparseable
	E164    string // set only when the number is valid for the region
	Valid   bool
}

// Canonical returns the form used for identity: E.164 when known, otherwise
// the cleaned input.
func (n Number) Canonical() string {
	if n.E164 != "" {
		return n.E164
	}
	return n.Cleaned
}

// HasCanonical reports whether normalization produced a usable form.
func (n Number) HasCanonical() bool {
	return n.Canonical() != ""
}

type cacheKey struct {
	raw    string
	region string
}

// Normalizer canonicalizes numbers against a region hint. It is safe for
// concurrent use.
type Normalizer struct {
	cache *lru.Cache[cacheKey, Number]
}

// NewNormalizer returns a normalizer that remembers up to size results.
func NewNormalizer(size int) *Normalizer {
	if size <= 0 {
		size = defaultCacheSize
	}
	// lru.New only fails for non-positive sizes.
	cache, _ := lru.New[cacheKey, Number](size)
	return &Normalizer{cache: cache}
}

// Normalize parses raw using region (ISO 3166 alpha-2, case-insensitive) to
// resolve national forms. It is idempotent: normalizing a Canonical() value
// again yields the same canonical form.
func (n *Normalizer) Normalize(raw, region string) Number {
	key := cacheKey{raw: raw, region: strings.ToUpper(strings.TrimSpace(region))}
	if v, ok := n.cache.Get(key); ok {
		return v
	}
	v := normalize(raw, key.region)
	n.cache.Add(key, v)
	return v
}

// Equal reports whether a and b canonicalize to the same number.
func (n *Normalizer) Equal(a, b, region string) bool {
	ca := n.Normalize(a, region).Canonical()
	return ca != "" && ca == n.Normalize(b, region).Canonical()
}

// IsValid reports whether raw is a valid number in region.
func (n *Normalizer) IsValid(raw, region string) bool {
	return n.Normalize(raw, region).Valid
}

func normalize(raw, region string) Number {
	res := Number{Raw: raw}

	cleaned, ok := clean(raw)
	if !ok {
		return res
	}
	res.Cleaned = cleaned

	digits := strings.TrimPrefix(cleaned, "+")
	if len(digits) < MinPlausibleDigits {
		res.Valid = !strings.HasPrefix(cleaned, "+") && isShortNumber(digits, region)
		return res
	}

	num, err := phonenumbers.Parse(cleaned, region)
	if err != nil {
		return res
	}
	if phonenumbers.IsValidNumber(num) {
		res.Valid = true
		res.E164 = phonenumbers.Format(num, phonenumbers.E164)
	}
	return res
}

// clean strips URI schemes and punctuation. Input containing anything other
// than digits, spaces, "-", "(", ")" and a single leading "+" is rejected.
func clean(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	for _, scheme := range schemes {
		if strings.HasPrefix(lower, scheme) {
			s = strings.TrimSpace(s[len(scheme):])
			break
		}
	}
	if s == "" {
		return "", false
	}

	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+':
			if i != 0 {
				return "", false
			}
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", false
		}
	}

	out := b.String()
	if out == "" || out == "+" {
		return "", false
	}
	return out, true
}
