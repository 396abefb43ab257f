package block

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenesisPrevHash is the 32 zero bytes, hex-encoded, used as id=0's PrevHash.
const GenesisPrevHash = "0000000000000000000000000000000000000000000000000000000000000000"[:64]

// metaString builds the "id:time:version:stackId:type:dataId" ASCII prefix
// hashed into every block.
func metaString(b *Block) string {
	return fmt.Sprintf("%d:%d:%d:%s:%s:%s", b.ID, b.Time, b.Version, b.StackID, b.Type, b.DataID)
}

// MetaString exposes the block's hash-preimage metadata prefix. Proof
// segments that bind a Merkle root to a specific block (spec §4.7 step 5,
// §4.8 step 3) replay this exact string as a literal {l} operand.
func MetaString(b *Block) string {
	return metaString(b)
}

// dataValBytes follows the hex-if-hex-else-utf8 rule: dataVal decodes as
// hex if it is valid hex, otherwise its literal UTF-8 bytes are used.
func dataValBytes(dataVal string) []byte {
	if b, err := hex.DecodeString(dataVal); err == nil {
		return b
	}
	return []byte(dataVal)
}

// computeHash returns SHA-256(utf8(meta) || bytes(dataVal) || bytes(prevHash)) hex-encoded.
func computeHash(b *Block) (string, error) {
	prevHash, err := hex.DecodeString(b.PrevHash)
	if err != nil {
		return "", fmt.Errorf("block: decode prevHash: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(metaString(b)))
	h.Write(dataValBytes(b.DataVal))
	h.Write(prevHash)
	return hex.EncodeToString(h.Sum(nil)), nil
}
