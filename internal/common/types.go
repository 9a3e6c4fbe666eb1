package common

import "strings"

// TermID identifies a court term. Term 0 is the pre-start term.
type TermID uint64

// Next returns the following term
func (t TermID) Next() TermID {
	return t + 1
}

// Address identifies a participant: a juror, a subject, an appeal party or a keeper.
type Address string

// BurnAddress receives tokens that can be assigned to nobody.
const BurnAddress Address = "0x000000000000000000000000000000000000dead"

// IsZero reports whether the address is empty
func (a Address) IsZero() bool {
	return strings.TrimSpace(string(a)) == ""
}

func (a Address) String() string {
	return string(a)
}
