package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	codeAlphabet       = "0123456789abcdefghijklmnopqrstuvwxyz"
	defaultCodeLength  = 6
	bloomExpectedCodes = 1_000_000
	bloomFalsePositive = 0.001
	maxBloomRejects    = 8
)

// CodeGenerator mints random base36 short codes. A bloom filter of codes seen
// by this process skips obvious collisions before the registry is asked; the
// registry's conditional insert remains the source of truth.
type CodeGenerator struct {
	length int
	mu     sync.Mutex
	seen   *bloom.BloomFilter
}

// NewCodeGenerator returns a generator producing codes of length characters.
func NewCodeGenerator(length int) *CodeGenerator {
	if length <= 0 {
		length = defaultCodeLength
	}
	return &CodeGenerator{
		length: length,
		seen:   bloom.NewWithEstimates(bloomExpectedCodes, bloomFalsePositive),
	}
}

// Next returns a candidate code not yet remembered by this generator.
func (g *CodeGenerator) Next() (string, error) {
	var code string
	for i := 0; i < maxBloomRejects; i++ {
		c, err := randomCode(g.length)
		if err != nil {
			return "", err
		}
		code = c
		if !g.mightExist(code) {
			break
		}
	}
	return code, nil
}

// Remember records a code as taken.
func (g *CodeGenerator) Remember(code string) {
	g.mu.Lock()
	g.seen.AddString(code)
	g.mu.Unlock()
}

func (g *CodeGenerator) mightExist(code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seen.TestString(code)
}

func randomCode(length int) (string, error) {
	base := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("generate short code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
