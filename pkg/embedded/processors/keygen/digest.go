package keygen

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Digest returns the lowercase hex SHA-256 of input.
func Digest(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

// AppendDigest sets the top-level field keyName of record to digest. A single
// existing field is replaced in place; when keyName occurs more than once all
// copies are dropped and the field is appended. Every other byte of record is
// kept. record must be a JSON object.
func AppendDigest(record []byte, keyName, digest string) ([]byte, error) {
	path := escapeKey(keyName)
	if countMembers(record, keyName) > 1 {
		var err error
		for gjson.GetBytes(record, path).Exists() {
			if record, err = sjson.DeleteBytes(record, path); err != nil {
				return nil, err
			}
		}
	}
	return sjson.SetBytes(record, path, digest)
}

func countMembers(record []byte, keyName string) int {
	n := 0
	gjson.ParseBytes(record).ForEach(func(key, _ gjson.Result) bool {
		if key.String() == keyName {
			n++
		}
		return true
	})
	return n
}

// escapeKey makes keyName a single literal path component.
func escapeKey(keyName string) string {
	if !strings.ContainsAny(keyName, `\.*?|#@:`) {
		return keyName
	}
	var b strings.Builder
	b.Grow(len(keyName) * 2)
	for i := 0; i < len(keyName); i++ {
		switch keyName[i] {
		case '\\', '.', '*', '?', '|', '#', '@', ':':
			b.WriteByte('\\')
		}
		b.WriteByte(keyName[i])
	}
	return b.String()
}
