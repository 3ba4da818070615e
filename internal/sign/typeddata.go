package sign

import (
	"fmt"
	"math/big"
)

// SNIP-12 type strings for the auth request message.
const (
	domainTypeString  = "StarkNetDomain(name:felt,chainId:felt,version:felt)"
	requestTypeString = "Request(method:felt,path:felt,body:felt,timestamp:felt,expiration:felt)"

	messagePrefix = "StarkNet Message"
	domainName    = "Paradex"
	domainVersion = "1"
)

// AuthRequest is the typed message exchanged for a bearer token.
type AuthRequest struct {
	Method     string
	Path       string
	Body       string
	Timestamp  int64
	Expiration int64
}

// AuthMessageHash computes the domain-separated typed-data hash the account
// key signs: pedersen chain over the message prefix, the domain struct hash,
// the account address and the request struct hash.
func AuthMessageHash(chainID string, account *big.Int, req AuthRequest) (*big.Int, error) {
	prefix, err := EncodeShortString(messagePrefix)
	if err != nil {
		return nil, err
	}

	domainHash, err := hashDomain(chainID)
	if err != nil {
		return nil, err
	}
	requestHash, err := hashRequest(req)
	if err != nil {
		return nil, err
	}

	return HashElements([]*big.Int{prefix, domainHash, account, requestHash}), nil
}

func hashDomain(chainID string) (*big.Int, error) {
	elems := []*big.Int{Keccak([]byte(domainTypeString))}
	for _, field := range []string{domainName, chainID, domainVersion} {
		enc, err := EncodeShortString(field)
		if err != nil {
			return nil, fmt.Errorf("encoding domain field: %w", err)
		}
		elems = append(elems, enc)
	}
	return HashElements(elems), nil
}

func hashRequest(req AuthRequest) (*big.Int, error) {
	elems := []*big.Int{Keccak([]byte(requestTypeString))}
	for _, field := range []string{req.Method, req.Path, req.Body} {
		enc, err := EncodeShortString(field)
		if err != nil {
			return nil, fmt.Errorf("encoding request field: %w", err)
		}
		elems = append(elems, enc)
	}
	elems = append(elems, big.NewInt(req.Timestamp), big.NewInt(req.Expiration))
	return HashElements(elems), nil
}
