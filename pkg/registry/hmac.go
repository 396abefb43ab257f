package registry

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// signatureAt computes HMAC-SHA256(hmacKey, tntAddr||publicUri||"YYYYMMDDHHmm")
// for the minute-boundary t, per spec §4.9's HMAC authentication format.
func signatureAt(hmacKey, tntAddr, publicURI string, t time.Time) (string, error) {
	key, err := hex.DecodeString(hmacKey)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(tntAddr))
	mac.Write([]byte(publicURI))
	mac.Write([]byte(t.UTC().Format("200601021504")))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyHMAC accepts the signature if it matches the value computed at any
// of {t-1, t, t+1} minutes UTC, to allow bounded clock skew between the
// caller and this process.
func VerifyHMAC(hmacKey, tntAddr, publicURI, candidate string, now time.Time) bool {
	candidateBytes := []byte(candidate)
	for _, offset := range []time.Duration{-time.Minute, 0, time.Minute} {
		want, err := signatureAt(hmacKey, tntAddr, publicURI, now.Add(offset))
		if err != nil {
			return false
		}
		if hmac.Equal([]byte(want), candidateBytes) {
			return true
		}
	}
	return false
}
