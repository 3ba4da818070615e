package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// STARK curve y^2 = x^3 + alpha*x + beta over the prime field of fieldPrime,
// with the Pedersen hash constant points published by Starkware.
var (
	fieldPrime, _ = new(big.Int).SetString("800000000000011000000000000000000000000000000000000000000000001", 16)
	curveOrder, _ = new(big.Int).SetString("800000000000010ffffffffffffffffb781126dcae7b2321e66a241adc64d2f", 16)
	curveAlpha    = big.NewInt(1)
	curveBeta, _  = new(big.Int).SetString("6f21413efbe40de150e596d72f7a8c5609ad26c15c915c1f4cdfcb99cee9e89", 16)

	generator = mustPoint(
		"1ef15c18599971b7beced415a40f0c7deacfd9b0d1819e03d723d8bc943cfca",
		"5668060aa49730b7be4801df46ec62de53ecd11abe43a32873000c36e8dc1f",
	)

	shiftPoint = mustPoint(
		"49ee3eba8c1600700ee1b87eb599f16716b0b1022947733551fde4050ca6804",
		"3ca0cfe4b3bc6ddf346d49d06ea0ed34e621062c0e056c1d0405d266e10268a",
	)
	pedersenP0 = mustPoint(
		"234287dcbaffe7f969c748655fca9e58fa8120b6d56eb0c1080d17957ebe47b",
		"3b056f100f96fb21e889527d41f4e39940135dd7a6c94cc6ed0268ee89e5615",
	)
	pedersenP1 = mustPoint(
		"4fa56f376c83db33f9dab2656558f3399099ec1de5e3018b7a6932dba8aa378",
		"3fa0984c931c9e38113e0c0e47e4401562761f92a7a23b45168f4e80ff5b54d",
	)
	pedersenP2 = mustPoint(
		"4ba4cc166be8dec764910f75b45f74b40c690c74709e90f3aa372f0bd2d6997",
		"40301cf5c1751f4b971e46c4ede85fcac5c59a5ce5ae7c48151f27b24b219c",
	)
	pedersenP3 = mustPoint(
		"54302dcb0e6cc1c6e44cca8f61a63bb2ca65048d53fb325d36ff12c49a58202",
		"1b77b3e37d13504b348046268d8ae25ce98ad783c25561a879dcc77e99c2426",
	)

	// Signature components must fit in 251 bits.
	elementBound = new(big.Int).Lsh(big.NewInt(1), 251)

	low248Mask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 248), big.NewInt(1))
	felt250Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))
)

// Point is an affine point on the STARK curve. A nil Point is the point at
// infinity.
type Point struct {
	X, Y *big.Int
}

func mustPoint(xHex, yHex string) *Point {
	x, ok1 := new(big.Int).SetString(xHex, 16)
	y, ok2 := new(big.Int).SetString(yHex, 16)
	if !ok1 || !ok2 {
		panic("sign: bad curve constant")
	}
	return &Point{X: x, Y: y}
}

func ecAdd(a, b *Point) *Point {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.X.Cmp(b.X) == 0 {
		if a.Y.Cmp(b.Y) == 0 {
			return ecDouble(a)
		}
		return nil
	}
	// slope = (y2-y1)/(x2-x1)
	num := new(big.Int).Sub(b.Y, a.Y)
	den := new(big.Int).Sub(b.X, a.X)
	den.ModInverse(den, fieldPrime)
	slope := num.Mul(num, den)
	slope.Mod(slope, fieldPrime)

	x := new(big.Int).Mul(slope, slope)
	x.Sub(x, a.X)
	x.Sub(x, b.X)
	x.Mod(x, fieldPrime)

	y := new(big.Int).Sub(a.X, x)
	y.Mul(y, slope)
	y.Sub(y, a.Y)
	y.Mod(y, fieldPrime)

	return &Point{X: x, Y: y}
}

func ecDouble(a *Point) *Point {
	if a == nil || a.Y.Sign() == 0 {
		return nil
	}
	// slope = (3x^2 + alpha) / 2y
	num := new(big.Int).Mul(a.X, a.X)
	num.Mul(num, big.NewInt(3))
	num.Add(num, curveAlpha)
	den := new(big.Int).Lsh(a.Y, 1)
	den.ModInverse(den, fieldPrime)
	slope := num.Mul(num, den)
	slope.Mod(slope, fieldPrime)

	x := new(big.Int).Mul(slope, slope)
	x.Sub(x, new(big.Int).Lsh(a.X, 1))
	x.Mod(x, fieldPrime)

	y := new(big.Int).Sub(a.X, x)
	y.Mul(y, slope)
	y.Sub(y, a.Y)
	y.Mod(y, fieldPrime)

	return &Point{X: x, Y: y}
}

func ecMul(k *big.Int, p *Point) *Point {
	var acc *Point
	add := p
	for i := 0; i < k.BitLen(); i++ {
		if k.Bit(i) == 1 {
			acc = ecAdd(acc, add)
		}
		add = ecDouble(add)
	}
	return acc
}

// Pedersen computes the two-element Pedersen hash used throughout the
// typed-data scheme. Inputs must be field elements.
func Pedersen(a, b *big.Int) *big.Int {
	point := shiftPoint
	for _, part := range []struct {
		value     *big.Int
		low, high *Point
	}{
		{a, pedersenP0, pedersenP1},
		{b, pedersenP2, pedersenP3},
	} {
		low := new(big.Int).And(part.value, low248Mask)
		high := new(big.Int).Rsh(part.value, 248)
		if low.Sign() > 0 {
			point = ecAdd(point, ecMul(low, part.low))
		}
		if high.Sign() > 0 {
			point = ecAdd(point, ecMul(high, part.high))
		}
	}
	return new(big.Int).Set(point.X)
}

// HashElements folds Pedersen over the elements starting from zero and
// finishes with the element count, matching compute_hash_on_elements.
func HashElements(elems []*big.Int) *big.Int {
	h := big.NewInt(0)
	for _, e := range elems {
		h = Pedersen(h, e)
	}
	return Pedersen(h, big.NewInt(int64(len(elems))))
}

// Keccak is the Starknet variant of Keccak-256: the digest truncated to 250
// bits so it fits in a field element.
func Keccak(data []byte) *big.Int {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	out := new(big.Int).SetBytes(h.Sum(nil))
	return out.And(out, felt250Max)
}

// EncodeShortString encodes an ASCII string of at most 31 characters as a
// field element, byte big-endian.
func EncodeShortString(s string) (*big.Int, error) {
	if len(s) > 31 {
		return nil, fmt.Errorf("short string exceeds 31 characters: %q", s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return nil, fmt.Errorf("short string contains non-ASCII byte: %q", s)
		}
	}
	return new(big.Int).SetBytes([]byte(s)), nil
}

// PublicKey derives the account public key point for privKey.
func PublicKey(privKey *big.Int) *Point {
	return ecMul(privKey, generator)
}

// Sign produces a deterministic ECDSA signature (r, s) over msgHash on the
// STARK curve. The nonce comes from RFC 6979 with SHA-256; a retry counter
// feeds the extra-entropy slot on the rare rejected candidates.
func Sign(msgHash, privKey *big.Int) (r, s *big.Int, err error) {
	if privKey.Sign() <= 0 || privKey.Cmp(curveOrder) >= 0 {
		return nil, nil, errors.New("private key out of range")
	}
	if msgHash.Sign() < 0 || msgHash.BitLen() > 251 {
		return nil, nil, errors.New("message hash out of range")
	}

	for seed := 0; seed < 100; seed++ {
		k := rfc6979Nonce(msgHash, privKey, seed)
		if k.Sign() == 0 {
			continue
		}

		r = ecMul(k, generator).X
		if r.Sign() < 1 || r.Cmp(elementBound) >= 0 {
			continue
		}

		// t = msgHash + r*priv mod n must be invertible.
		t := new(big.Int).Mul(r, privKey)
		t.Add(t, msgHash)
		t.Mod(t, curveOrder)
		if t.Sign() == 0 {
			continue
		}

		w := new(big.Int).ModInverse(t, curveOrder)
		w.Mul(w, k)
		w.Mod(w, curveOrder)
		if w.Sign() < 1 || w.Cmp(elementBound) >= 0 {
			continue
		}

		s = new(big.Int).ModInverse(w, curveOrder)
		return r, s, nil
	}
	return nil, nil, errors.New("failed to produce a valid nonce")
}

// Verify reports whether (r, s) is a valid signature over msgHash for the
// public key point.
func Verify(msgHash, r, s *big.Int, pub *Point) bool {
	if r.Sign() < 1 || r.Cmp(elementBound) >= 0 {
		return false
	}
	if s.Sign() < 1 || s.Cmp(curveOrder) >= 0 {
		return false
	}
	w := new(big.Int).ModInverse(s, curveOrder)
	u1 := new(big.Int).Mul(msgHash, w)
	u1.Mod(u1, curveOrder)
	u2 := new(big.Int).Mul(r, w)
	u2.Mod(u2, curveOrder)

	point := ecAdd(ecMul(u1, generator), ecMul(u2, pub))
	if point == nil {
		return false
	}
	return point.X.Cmp(r) == 0
}

// rfc6979Nonce generates the deterministic nonce. Starkware's variant
// multiplies the hash by 16 when its bit length sits just under a byte
// boundary so the Python and native implementations agree.
func rfc6979Nonce(msgHash, privKey *big.Int, seed int) *big.Int {
	h := new(big.Int).Set(msgHash)
	if rem := h.BitLen() % 8; rem >= 1 && rem <= 4 && h.BitLen() >= 248 {
		h.Lsh(h, 4)
	}

	var extra []byte
	if seed > 0 {
		extra = make([]byte, 32)
		big.NewInt(int64(seed)).FillBytes(extra)
	}
	return generateK(curveOrder, privKey, h, extra)
}

const nonceByteLen = 32 // ceil(252 bits / 8)

func generateK(order, privKey, msgHash *big.Int, extra []byte) *big.Int {
	qlen := order.BitLen()

	bits2int := func(b []byte) *big.Int {
		v := new(big.Int).SetBytes(b)
		if excess := len(b)*8 - qlen; excess > 0 {
			v.Rsh(v, uint(excess))
		}
		return v
	}
	int2octets := func(v *big.Int) []byte {
		out := make([]byte, nonceByteLen)
		v.FillBytes(out)
		return out
	}

	hm := bits2int(int2octets(msgHash))
	hm.Mod(hm, order)

	v := make([]byte, sha256.Size)
	kd := make([]byte, sha256.Size)
	for i := range v {
		v[i] = 0x01
	}

	mac := func(key []byte, parts ...[]byte) []byte {
		m := hmac.New(sha256.New, key)
		for _, p := range parts {
			m.Write(p)
		}
		return m.Sum(nil)
	}

	kd = mac(kd, v, []byte{0x00}, int2octets(privKey), int2octets(hm), extra)
	v = mac(kd, v)
	kd = mac(kd, v, []byte{0x01}, int2octets(privKey), int2octets(hm), extra)
	v = mac(kd, v)

	for {
		var t []byte
		for len(t) < nonceByteLen {
			v = mac(kd, v)
			t = append(t, v...)
		}
		k := bits2int(t[:nonceByteLen])
		if k.Sign() > 0 && k.Cmp(order) < 0 {
			return k
		}
		kd = mac(kd, v, []byte{0x00})
		v = mac(kd, v)
	}
}
