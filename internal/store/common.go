package store

// Key prefixes of the court database
const (
	prefixEvent byte = iota + 1
	prefixMeta
	prefixDispute
)

// PrefixToString converts a prefix byte to a string
func PrefixToString(p byte) string {
	switch p {
	case prefixEvent:
		return "event"
	case prefixMeta:
		return "meta"
	case prefixDispute:
		return "dispute"
	default:
		return "unknown"
	}
}

// makeKey creates a key from a prefix and an id
func makeKey(prefix byte, id []byte) []byte {
	key := make([]byte, 1+len(id))
	key[0] = prefix
	copy(key[1:], id)
	return key
}
