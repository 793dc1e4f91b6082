package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLuhnValid(t *testing.T) {
	assert.True(t, LuhnValid("4242424242424242"))
	assert.False(t, LuhnValid("4242424242424241"))
	assert.True(t, LuhnValid("5555555555554444"))
	assert.True(t, LuhnValid("378282246310005"))
	assert.True(t, LuhnValid("6011111111111117"))
	assert.False(t, LuhnValid(""))
	assert.False(t, LuhnValid("4242-4242"))
}

func TestCardBrand(t *testing.T) {
	cases := map[string]string{
		"4242424242424242": BrandVisa,
		"5105105105105100": BrandMastercard,
		"5555555555554444": BrandMastercard,
		"5655555555554444": BrandUnknown,
		"378282246310005":  BrandAmex,
		"341111111111111":  BrandAmex,
		"6011111111111117": BrandDiscover,
		"6500000000000002": BrandDiscover,
		"3530111333300000": BrandUnknown,
	}
	for number, want := range cases {
		assert.Equal(t, want, CardBrand(number), number)
	}
}

func TestNormalizeAndMask(t *testing.T) {
	n := NormalizeCardNumber("4242 4242-4242 4242")
	assert.Equal(t, "4242424242424242", n)
	assert.Equal(t, "4242", LastFour(n))
	assert.Equal(t, 4, ExpectedCVCLength(BrandAmex))
	assert.Equal(t, 3, ExpectedCVCLength(BrandVisa))
	assert.Equal(t, 3, ExpectedCVCLength(BrandUnknown))
}
