package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// R2Simulator is the LogoStorage used when no bucket is configured: it
// never uploads anything and returns a deterministic fake URL.
type R2Simulator struct {
	bucket   string
	endpoint string
}

func NewR2Simulator(bucket, endpoint string) *R2Simulator {
	return &R2Simulator{
		bucket:   strings.TrimSpace(bucket),
		endpoint: strings.TrimSpace(endpoint),
	}
}

func (r *R2Simulator) UploadLogo(tokenAddress, symbol string, imageData []byte) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("empty image data")
	}
	return r.SimulatedURL(tokenAddress, symbol), nil
}

func (r *R2Simulator) UploadLogoFromURL(tokenAddress, symbol, sourceURL string) (string, error) {
	if sourceURL == "" {
		return "", fmt.Errorf("empty source url")
	}
	return r.SimulatedURL(tokenAddress, symbol), nil
}

func (r *R2Simulator) SimulatedURL(tokenAddress, symbol string) string {
	sum := sha256.Sum256([]byte(tokenAddress + ":" + symbol))
	key := hex.EncodeToString(sum[:])

	ep := r.endpoint
	if ep == "" {
		ep = "https://r2.example.invalid"
	}
	bucket := r.bucket
	if bucket == "" {
		bucket = "dexwatch"
	}

	return fmt.Sprintf("%s/%s/logos/%s.png", strings.TrimRight(ep, "/"), bucket, key)
}
