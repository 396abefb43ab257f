package anchor

import "testing"

func TestSplitAroundRootFindsBoundaries(t *testing.T) {
	root := []byte{0xAA, 0xBB, 0xCC}
	body := append([]byte{0x01, 0x02}, append(append([]byte{}, root...), 0x03, 0x04)...)

	prefix, suffix, err := splitAroundRoot(body, root)
	if err != nil {
		t.Fatalf("splitAroundRoot: %v", err)
	}
	if len(prefix) != 2 || prefix[0] != 0x01 || prefix[1] != 0x02 {
		t.Fatalf("unexpected prefix: %x", prefix)
	}
	if len(suffix) != 2 || suffix[0] != 0x03 || suffix[1] != 0x04 {
		t.Fatalf("unexpected suffix: %x", suffix)
	}
}

func TestSplitAroundRootMissing(t *testing.T) {
	if _, _, err := splitAroundRoot([]byte{0x01, 0x02}, []byte{0xFF}); err == nil {
		t.Fatalf("expected error when root absent")
	}
}

func TestSplitAroundRootAmbiguous(t *testing.T) {
	root := []byte{0xAA}
	body := []byte{0xAA, 0x00, 0xAA}
	if _, _, err := splitAroundRoot(body, root); err == nil {
		t.Fatalf("expected error when root occurs more than once")
	}
}
