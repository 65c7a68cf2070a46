package progression

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// DrawSeed derives the RNG seed for the nth offer drawn in a run.
func DrawSeed(runSeed string, draw int) int64 {
	//1.- Hash the inputs with separators so each part influences the result independently.
	digest := sha256.Sum256([]byte(fmt.Sprintf("progression.draw\x00%s\x00%d", runSeed, draw)))
	//2.- Convert the first eight bytes into a signed integer seed for math/rand.
	seed := int64(binary.LittleEndian.Uint64(digest[0:8]))
	if seed == 0 {
		seed = int64(binary.LittleEndian.Uint64(digest[8:16]))
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}

// NewRunSeed returns a random hex seed for a fresh run.
func NewRunSeed() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err == nil {
		return hex.EncodeToString(buf[:])
	}
	return fmt.Sprintf("%x", time.Now().UnixNano())
}
