package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// SignatureHeader carries the HMAC of the raw request body.
const SignatureHeader = "X-Esa-Signature"

const signaturePrefix = "sha256="

var (
	ErrSignatureMissing  = errors.New("x-esa-signature header is required")
	ErrSignatureMismatch = errors.New("signatures didn't match")
)

// Sign returns the X-Esa-Signature value esa sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the signature header of a request against the raw
// body bytes, as received.
func VerifySignature(secret string, header http.Header, body []byte) error {
	given, ok := headerValue(header, SignatureHeader)
	if !ok {
		return ErrSignatureMissing
	}
	if !hmac.Equal([]byte(given), []byte(Sign(secret, body))) {
		return ErrSignatureMismatch
	}
	return nil
}

// headerValue looks name up case-insensitively, so that headers copied
// verbatim from a proxy event (lower-cased keys) work as well as
// canonicalized ones.
func headerValue(h http.Header, name string) (string, bool) {
	if v, ok := h[http.CanonicalHeaderKey(name)]; ok && len(v) > 0 {
		return v[0], true
	}
	for k, v := range h {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0], true
		}
	}
	return "", false
}
