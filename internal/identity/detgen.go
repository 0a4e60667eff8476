package identity

import (
	"crypto/rsa"
	"io"
	"math/big"

	"nonmessenger/go-backend/internal/entropy"
)

// Deterministic key generation follows the entropy.StreamVersion
// contract: candidate primes are drawn from the expansion stream by
// rejection sampling, with the top two bits and the low bit forced, and
// accepted on ProbablyPrime(64). The public exponent is fixed at 65537
// and both primes are redrawn whenever any later check rejects the pair.
// stdlib rsa.GenerateKey deliberately injects nondeterminism, so the
// prime search is spelled out here and must not change under the same
// stream version.

const publicExponent = 65537

var bigOne = big.NewInt(1)

func generateDeterministicKey(src entropy.Source, bits int) (*rsa.PrivateKey, error) {
	e := big.NewInt(publicExponent)
	for {
		p, err := deterministicPrime(src, bits/2)
		if err != nil {
			return nil, err
		}
		q, err := deterministicPrime(src, bits-bits/2)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}

		n := new(big.Int).Mul(p, q)
		if n.BitLen() != bits {
			continue
		}

		pMinus := new(big.Int).Sub(p, bigOne)
		qMinus := new(big.Int).Sub(q, bigOne)
		totient := new(big.Int).Mul(pMinus, qMinus)
		d := new(big.Int).ModInverse(e, totient)
		if d == nil {
			// e shares a factor with p-1 or q-1.
			continue
		}

		key := &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{N: n, E: publicExponent},
			D:         d,
			Primes:    []*big.Int{p, q},
		}
		key.Precompute()
		if err := key.Validate(); err != nil {
			continue
		}
		return key, nil
	}
}

func deterministicPrime(src entropy.Source, bits int) (*big.Int, error) {
	buf := make([]byte, bits/8)
	defer zeroBytes(buf)
	for {
		if _, err := io.ReadFull(src, buf); err != nil {
			return nil, err
		}
		// Top two bits keep the modulus at full length, low bit keeps
		// the candidate odd.
		buf[0] |= 0xc0
		buf[len(buf)-1] |= 0x01

		candidate := new(big.Int).SetBytes(buf)
		if candidate.ProbablyPrime(64) {
			return candidate, nil
		}
	}
}
