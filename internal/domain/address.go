package domain

import (
	"fmt"
	"strings"
)

// Address is the postal address of a map record.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

// DefaultFormat renders the address in the fixed US-style order used when no
// country-aware layout is available.
func (a Address) DefaultFormat() string {
	return DefaultAddressString(a.Street, a.City, a.State, a.Zip, a.Country)
}

// DefaultAddressString renders "{street} {city}, {state} {zip}, {country}".
func DefaultAddressString(street, city, state, zip, country string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s, %s %s, %s", street, city, state, zip, country))
}

// CountryCodeType describes the shape of a country token.
type CountryCodeType int

const (
	CountryCodeName CountryCodeType = iota
	CountryCodeNumeric
	CountryCodeAlpha2
	CountryCodeAlpha3
)

func (t CountryCodeType) String() string {
	switch t {
	case CountryCodeNumeric:
		return "numeric"
	case CountryCodeAlpha2:
		return "alpha2"
	case CountryCodeAlpha3:
		return "alpha3"
	default:
		return "name"
	}
}

// ClassifyCountryCode derives the code type from the token's shape only.
// Digits win over length, so "040" is Numeric rather than Alpha3.
func ClassifyCountryCode(token string) CountryCodeType {
	switch {
	case isDigits(token):
		return CountryCodeNumeric
	case len(token) == 2:
		return CountryCodeAlpha2
	case len(token) == 3:
		return CountryCodeAlpha3
	default:
		return CountryCodeName
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
