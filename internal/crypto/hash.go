package crypto

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

type Hash [HashSize]byte

// Salt is the secret a juror mixes into a vote commitment.
type Salt [SaltSize]byte

func HashData(data []byte) Hash {
	return blake2b.Sum256(data)
}

// KeccakData hashes the input data using Keccak-256
func KeccakData(data []byte) Hash {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(data)
	hashed := hash.Sum(nil)

	var result Hash
	copy(result[:], hashed)
	return result
}

// CommitmentHash is the value a juror commits to: keccak(outcome ‖ salt).
func CommitmentHash(outcome uint8, salt Salt) Hash {
	buf := make([]byte, 0, 1+SaltSize)
	buf = append(buf, outcome)
	buf = append(buf, salt[:]...)
	return KeccakData(buf)
}

// DraftSeed derives the seed of the i-th draw of a sortition iteration.
func DraftSeed(randomness Hash, disputeID, iteration, index uint64) Hash {
	buf := make([]byte, 0, HashSize+24)
	buf = append(buf, randomness[:]...)
	buf = binary.BigEndian.AppendUint64(buf, disputeID)
	buf = binary.BigEndian.AppendUint64(buf, iteration)
	buf = binary.BigEndian.AppendUint64(buf, index)
	return HashData(buf)
}

// Uint64 interprets the first 8 bytes of the hash as a big-endian number
func (h Hash) Uint64() uint64 {
	return binary.BigEndian.Uint64(h[:8])
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// HashFromHex parses a 0x-prefixed or bare hex string of exactly HashSize bytes
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Hash{}, fmt.Errorf("decode hash: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("decode hash: want %d bytes, got %d", HashSize, len(b))
	}
	return Hash(b), nil
}
