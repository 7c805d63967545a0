// internal/room/code.go
package room

import "math/rand"

// codeAlphabet excludes visually confusable characters (0/O, 1/I/L, 5/S,
// 8/B) so codes survive being read aloud or copied from a screen. This is a
// hard format contract with the clients.
const codeAlphabet = "ACDEFGHJKMNPQRTUVWXY234679"

// CodeLength matches the validator's contract of exactly five characters.
const CodeLength = 5

// maxCodeAttempts bounds collision retries before code generation is treated
// as a service-level failure rather than a per-request error.
const maxCodeAttempts = 50

func randomCode(rng *rand.Rand) string {
	b := make([]byte, CodeLength)
	for i := range b {
		b[i] = codeAlphabet[rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}
