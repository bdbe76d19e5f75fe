package testutil

import "math/rand"

const clickIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// RandomClickID generates a gclid-shaped opaque token given the
// pseudo random source.
func RandomClickID(rndm *rand.Rand, length int) string {
	str := make([]byte, length)
	for i := range str {
		str[i] = clickIDAlphabet[rndm.Intn(len(clickIDAlphabet))]
	}
	return string(str)
}

// RandomString generates a random lowercase string given the pseudo
// random source.
func RandomString(rndm *rand.Rand, length int) string {
	str := make([]rune, length)
	for i := range str {
		str[i] = 'a' + rune(rndm.Intn(26))
	}
	return string(str)
}
