package crypto

const (
	HashSize = 32
	SaltSize = 32
)
