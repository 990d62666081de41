package profile

import (
	"fmt"
	"regexp"
)

var (
	nameRegexp    = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)
	accountRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)
)

// ValidateName checks that name conforms to profile naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: must match %s", name, nameRegexp)
	}
	return nil
}

// ValidateAccountID checks an account ID. IDs name files on disk, so they
// are restricted to lower-case letters, digits, '.', '_' and '-'.
func ValidateAccountID(id string) error {
	if !accountRegexp.MatchString(id) {
		return fmt.Errorf("invalid account id %q: must match %s", id, accountRegexp)
	}
	return nil
}
