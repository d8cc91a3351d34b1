// Package payfast verifies and records PayFast Instant Transaction
// Notifications (ITN).
package payfast

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const (
	SignatureField = "signature"
	PaymentIDField = "m_payment_id"
	EmailField     = "email_address"
)

// ParamString builds the string PayFast signs: every field except the
// signature, keys in byte order, values encoded the way PHP's urlencode
// does, and the passphrase appended last when it is not empty.
func ParamString(fields map[string]string, passphrase string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == SignatureField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(Encode(fields[k]))
	}

	if passphrase != "" {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString("passphrase=")
		b.WriteString(Encode(passphrase))
	}

	return b.String()
}

// Sign returns the lowercase hex MD5 of ParamString.
func Sign(fields map[string]string, passphrase string) string {
	sum := md5.Sum([]byte(ParamString(fields, passphrase)))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the signature field matches the one computed from
// the remaining fields. A missing signature never matches.
func Verify(fields map[string]string, passphrase string) bool {
	received, ok := fields[SignatureField]
	if !ok || received == "" {
		return false
	}
	expected := Sign(fields, passphrase)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

// Encode percent-encodes s like PHP's urlencode: A-Z a-z 0-9 - _ . pass
// through, space becomes '+', every other byte is %XX in upper case.
// url.QueryEscape differs only by leaving '~' alone.
func Encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "~", "%7E")
}
