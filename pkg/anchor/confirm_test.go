package anchor

import (
	"encoding/hex"
	"testing"

	"github.com/chainpoint-network/calendar-core/pkg/merkle"
)

func TestConfirmSegmentEmptyPath(t *testing.T) {
	seg, err := confirmSegment(BTCMonMessage{})
	if err != nil {
		t.Fatalf("confirmSegment: %v", err)
	}
	if len(seg) != 0 {
		t.Fatalf("expected empty segment for empty path, got %+v", seg)
	}
}

func TestConfirmSegmentUsesDoubleSHA(t *testing.T) {
	path := hex.EncodeToString([]byte("leading-to-block-header-root"))
	seg, err := confirmSegment(BTCMonMessage{Path: path})
	if err != nil {
		t.Fatalf("confirmSegment: %v", err)
	}
	if len(seg) != 2 {
		t.Fatalf("expected 2 ops, got %d", len(seg))
	}
	if seg[0].R != path {
		t.Fatalf("expected R op to carry path, got %+v", seg[0])
	}
	if seg[1].Op != string(merkle.SHA256x2) {
		t.Fatalf("expected sha-256-x2 op, got %+v", seg[1])
	}
}

func TestConfirmSegmentRejectsNonHexPath(t *testing.T) {
	if _, err := confirmSegment(BTCMonMessage{Path: "not-hex!!"}); err == nil {
		t.Fatalf("expected error for non-hex path")
	}
}
