package profile

import "testing"

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "work123", false},
		{"valid with hyphen", "my-profile", false},
		{"valid with underscore", "my_profile", false},
		{"valid single char", "a", false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"space", "my profile", true},
		{"dot", "my.profile", true},
		{"too long", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},
		{"slash", "my/profile", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAccountID(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"wa", false},
		{"sms.modem0", false},
		{"xmpp-work_2", false},
		{"", true},
		{".hidden", true},
		{"-flag", true},
		{"Upper", true},
		{"../escape", true},
		{"a b", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateAccountID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAccountID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
