package audit

import (
	"testing"
	"time"
)

func TestIPMatchesURI(t *testing.T) {
	if !ipMatchesURI("8.8.8.8", "https://8.8.8.8:9090") {
		t.Fatalf("expected matching IPs to pass")
	}
	if ipMatchesURI("1.2.3.4", "https://8.8.8.8:9090") {
		t.Fatalf("expected mismatched IPs to fail")
	}
	if ipMatchesURI("not-an-ip", "https://8.8.8.8:9090") {
		t.Fatalf("expected unparseable observed IP to fail")
	}
}

func TestClockSkewOK(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	if !clockSkewOK(now.Add(30*time.Second), now, time.Minute) {
		t.Fatalf("expected 30s skew within 1m window to pass")
	}
	if !clockSkewOK(now.Add(-time.Minute), now, time.Minute) {
		t.Fatalf("expected exactly -1m skew to pass")
	}
	if clockSkewOK(now.Add(2*time.Minute), now, time.Minute) {
		t.Fatalf("expected 2m skew to fail")
	}
}

func TestOverallPassRequiresAllPredicates(t *testing.T) {
	r := Result{
		IPPass: true, URIPass: true, TimePass: true, CalPass: true,
		CreditPass: true, VersionPass: true, BalancePass: true, Reachable: true,
	}
	if !r.OverallPass() {
		t.Fatalf("expected all-true result to pass overall")
	}
	r.BalancePass = false
	if r.OverallPass() {
		t.Fatalf("expected one false predicate to fail overall")
	}
}
