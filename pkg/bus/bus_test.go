package bus

import "testing"

func TestSubjectNaming(t *testing.T) {
	b := &Bus{cfg: Config{StreamName: "CALENDAR"}}
	got := b.subject(TypeAggregator)
	if got != "CALENDAR.aggregator" {
		t.Fatalf("got %q, want %q", got, "CALENDAR.aggregator")
	}
}

func TestDefaultConfigReconnectWait(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ReconnectWait.Seconds() != 5 {
		t.Fatalf("expected 5s reconnect wait per spec, got %v", cfg.ReconnectWait)
	}
}

func TestMessageDecode(t *testing.T) {
	m := &Message{Type: TypeReward, Payload: []byte(`{"tntAddr":"abc"}`)}
	var v struct {
		TntAddr string `json:"tntAddr"`
	}
	if err := m.Decode(&v); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v.TntAddr != "abc" {
		t.Fatalf("got %q, want %q", v.TntAddr, "abc")
	}
}
