package reward

import "testing"

func TestRewardBlockFieldsNodeOnly(t *testing.T) {
	m := Message{Node: Payout{Address: "0xnode", Amount: 100}}
	dataID, dataVal := rewardBlockFields(m, "tx1", "")
	if dataID != "tx1" {
		t.Fatalf("expected dataID tx1, got %s", dataID)
	}
	if dataVal != "0xnode:100" {
		t.Fatalf("expected dataVal 0xnode:100, got %s", dataVal)
	}
}

func TestRewardBlockFieldsNodeAndCore(t *testing.T) {
	m := Message{
		Node: Payout{Address: "0xnode", Amount: 100},
		Core: &Payout{Address: "0xcore", Amount: 50},
	}
	dataID, dataVal := rewardBlockFields(m, "tx1", "tx2")
	if dataID != "tx1:tx2" {
		t.Fatalf("expected dataID tx1:tx2, got %s", dataID)
	}
	if dataVal != "0xnode:100:0xcore:50" {
		t.Fatalf("expected dataVal 0xnode:100:0xcore:50, got %s", dataVal)
	}
}
