package registry

import (
	"encoding/hex"
	"testing"
	"time"
)

func testHMACKey() string {
	return hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
}

func TestVerifyHMACAcceptsExactMinute(t *testing.T) {
	key := testHMACKey()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	sig, err := signatureAt(key, "addr1", "https://1.2.3.4", now)
	if err != nil {
		t.Fatalf("signatureAt: %v", err)
	}
	if !VerifyHMAC(key, "addr1", "https://1.2.3.4", sig, now) {
		t.Fatalf("expected exact-minute signature to verify")
	}
}

func TestVerifyHMACAcceptsSkew(t *testing.T) {
	key := testHMACKey()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	sig, err := signatureAt(key, "addr1", "https://1.2.3.4", now)
	if err != nil {
		t.Fatalf("signatureAt: %v", err)
	}
	if !VerifyHMAC(key, "addr1", "https://1.2.3.4", sig, now.Add(time.Minute)) {
		t.Fatalf("expected +1 minute skew to verify")
	}
	if !VerifyHMAC(key, "addr1", "https://1.2.3.4", sig, now.Add(-time.Minute)) {
		t.Fatalf("expected -1 minute skew to verify")
	}
}

func TestVerifyHMACRejectsBeyondWindow(t *testing.T) {
	key := testHMACKey()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	sig, err := signatureAt(key, "addr1", "https://1.2.3.4", now)
	if err != nil {
		t.Fatalf("signatureAt: %v", err)
	}
	if VerifyHMAC(key, "addr1", "https://1.2.3.4", sig, now.Add(2*time.Minute)) {
		t.Fatalf("expected +2 minute skew to be rejected")
	}
}

func TestVerifyHMACRejectsWrongKey(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	sig, err := signatureAt(testHMACKey(), "addr1", "https://1.2.3.4", now)
	if err != nil {
		t.Fatalf("signatureAt: %v", err)
	}
	otherKey := hex.EncodeToString([]byte("ffffffffffffffffffffffffffffffff"))
	if VerifyHMAC(otherKey, "addr1", "https://1.2.3.4", sig, now) {
		t.Fatalf("expected wrong key to be rejected")
	}
}
