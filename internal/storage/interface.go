package storage

// LogoStorage persists token logo images and returns a public URL.
type LogoStorage interface {
	UploadLogo(tokenAddress, symbol string, imageData []byte) (string, error)
	// UploadLogoFromURL fetches the provider-hosted image and stores it.
	UploadLogoFromURL(tokenAddress, symbol, sourceURL string) (string, error)
}
