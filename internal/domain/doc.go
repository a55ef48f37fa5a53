// Package domain models postal addresses and the result of resolving them
// to WGS-84 coordinates.
//
// # Addresses
//
// An [Address] is the five-field tuple used by map markers: street, city,
// state (or any country subdivision), postal code and a country token. The
// country token is whatever the upstream record stored, so it may be an ISO
// 3166 numeric code ("840"), an alpha-2 code ("US"), an alpha-3 code ("USA")
// or a free-text name ("Deutschland").
//
// # Country code classification
//
// [ClassifyCountryCode] derives a [CountryCodeType] purely from the shape of
// the token:
//
//	all digits  -> Numeric   "840", "040"
//	length 2    -> Alpha2    "US", "de"
//	length 3    -> Alpha3    "USA", "deu"
//	otherwise   -> Name      "United States", ""
//
// Classification is not validation. A two-letter country name is classified
// as Alpha2 and will simply not match any reference row.
//
// # Geocode results
//
// Every lookup ends in a [GeocodeResult] whose [Outcome] is one of:
//
//	success              coordinates are set
//	failure              this address could not be geocoded
//	rate_limited         the backend still rejected the request after retries
//	service_unavailable  the backend is misconfigured (bad key, bad request
//	                     shape) and should not be called again this run
//
// Lookups never return errors. Callers treat ServiceUnavailable as a signal
// to deactivate the backend, see package geocode.
package domain
