package testutils

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eigerco/tribunal/internal/common"
	"github.com/eigerco/tribunal/internal/crypto"
)

func RandomHash(t *testing.T) crypto.Hash {
	var hash crypto.Hash
	_, err := rand.Read(hash[:])
	require.NoError(t, err)
	return hash
}

func RandomSalt(t *testing.T) crypto.Salt {
	return crypto.Salt(RandomHash(t))
}

// RandomAddress returns a fresh hex address, unique for the test run
func RandomAddress(t *testing.T) common.Address {
	var b [20]byte
	_, err := rand.Read(b[:])
	require.NoError(t, err)
	return common.Address("0x" + hex.EncodeToString(b[:]))
}
