package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeValid(t *testing.T) {
	n := NewNormalizer(0)

	tests := []struct {
		raw, region, want string
	}{
		{"9633123456", "IN", "+919633123456"},
		{"9633 123 456", "in", "+919633123456"},
		{"+91 9633 123 456", "US", "+919633123456"},
		{"09633123456", "IN", "+919633123456"},
		{"00919633123456", "IN", "+919633123456"},
		{"00919633123456", "GB", "+919633123456"},
		{"sms://00919633123456", "GB", "+919633123456"},
		{"tel:+919633123456", "", "+919633123456"},
		{"213-321-9876", "US", "+12133219876"},
		{"(213) 321-9876", "US", "+12133219876"},
		{"+1 213 321 9876", "DE", "+12133219876"},
		{"20 8759 9036", "GB", "+442087599036"},
	}
	for _, tt := range tests {
		t.Run(tt.raw+"/"+tt.region, func(t *testing.T) {
			got := n.Normalize(tt.raw, tt.region)
			assert.True(t, got.Valid)
			assert.Equal(t, tt.want, got.E164)
			assert.Equal(t, tt.want, got.Canonical())
		})
	}
}

func TestNormalizeInvalid(t *testing.T) {
	n := NewNormalizer(0)

	tests := []struct {
		raw, region string
	}{
		{"9633123456", "US"},
		{"123456", "IN"},
		{"123456", "US"},
		{"INVALID", "IN"},
		{"+9876543210A", "US"},
		{"", "US"},
		{"sms://", "US"},
	}
	for _, tt := range tests {
		t.Run(tt.raw+"/"+tt.region, func(t *testing.T) {
			got := n.Normalize(tt.raw, tt.region)
			assert.False(t, got.Valid)
			assert.Empty(t, got.E164)
		})
	}
}

func TestInvalidNumberKeepsCleanedForm(t *testing.T) {
	n := NewNormalizer(0)

	got := n.Normalize("963-312-3456", "US")
	assert.False(t, got.Valid)
	assert.Equal(t, "9633123456", got.Canonical())
}

func TestUnparseableHasNoCanonical(t *testing.T) {
	n := NewNormalizer(0)

	for _, raw := range []string{"BT-123", "INVALID", "12+34"} {
		got := n.Normalize(raw, "IN")
		assert.False(t, got.HasCanonical(), raw)
	}
}

func TestShortCodesPassThrough(t *testing.T) {
	n := NewNormalizer(0)

	tests := []struct {
		raw, region, want string
		valid             bool
	}{
		{"12345", "IN", "12345", false},
		{"72404", "DE", "72404", true},
		{"112", "DE", "112", true},
		{"911", "US", "911", true},
		{"sms://911", "US", "911", true},
		{"5555", "PL", "5555", true},
		{"7126", "PL", "7126", true},
		{"80510", "PL", "80510", true},
		{"112", "XX", "112", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw+"/"+tt.region, func(t *testing.T) {
			got := n.Normalize(tt.raw, tt.region)
			assert.Equal(t, tt.want, got.Canonical())
			assert.Equal(t, tt.valid, got.Valid)
			assert.Empty(t, got.E164)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := NewNormalizer(0)

	inputs := []struct{ raw, region string }{
		{"9633123456", "IN"},
		{"213-321-9876", "US"},
		{"5555", "PL"},
		{"963-312-3456", "US"},
	}
	for _, in := range inputs {
		first := n.Normalize(in.raw, in.region).Canonical()
		require.NotEmpty(t, first)
		second := n.Normalize(first, in.region).Canonical()
		assert.Equal(t, first, second, in.raw)
	}
}

func TestEqual(t *testing.T) {
	n := NewNormalizer(0)

	assert.True(t, n.Equal("09633123456", "+91 96331 23456", "IN"))
	assert.True(t, n.Equal("911", "sms://911", "US"))
	assert.False(t, n.Equal("9633123456", "9633123457", "IN"))
	assert.False(t, n.Equal("BT-123", "BT-123", "IN"))
}

func TestCacheReturnsSameResult(t *testing.T) {
	n := NewNormalizer(2)

	first := n.Normalize("9633123456", "IN")
	n.Normalize("213-321-9876", "US")
	n.Normalize("5555", "PL")
	again := n.Normalize("9633123456", "IN")

	assert.Equal(t, first, again)
}

func TestRegionForIMSI(t *testing.T) {
	tests := []struct{ imsi, want string }{
		{"404685505601234", "IN"},
		{"310150123456789", "US"},
		{"234150999999999", "GB"},
		{"26201", "DE"},
		{"999", ""},
		{"40", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RegionForIMSI(tt.imsi), tt.imsi)
	}
}
