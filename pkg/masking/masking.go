// Package masking produces the partially-redacted contact strings shown to
// users when confirming where a security code was sent. The exact format is a
// public contract relied on by UI snapshots; do not change it.
package masking

import "strings"

const mask = "******"

// Email masks an email address, keeping all but the last four characters of
// the local part and the trailing two domain labels:
//
//	auth.user@digital.justice.gov.uk -> auth.******@******.gov.uk
func Email(address string) string {
	at := strings.LastIndexByte(address, '@')
	if at < 0 {
		return mask
	}
	local, domain := address[:at], address[at+1:]

	keep := len(local) - 4
	if keep < 0 {
		keep = 0
	}

	return local[:keep] + mask + "@" + mask + "." + domainSuffix(domain)
}

// Phone masks a phone number, keeping only the last four digits:
//
//	07700900321 -> *******0321
func Phone(number string) string {
	number = strings.ReplaceAll(number, " ", "")
	if len(number) <= 4 {
		return "*******" + number
	}
	return "*******" + number[len(number)-4:]
}

// domainSuffix keeps the last two labels of a domain, or just the final label
// when the domain has fewer than three.
func domainSuffix(domain string) string {
	labels := strings.Split(domain, ".")
	if len(labels) >= 3 {
		return strings.Join(labels[len(labels)-2:], ".")
	}
	return labels[len(labels)-1]
}
