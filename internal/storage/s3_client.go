package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
)

type S3Client struct {
	client     *s3.Client
	bucket     string
	publicURL  string
	httpClient *http.Client
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	PublicURL string
	Region    string
}

func NewS3Client(cfg S3Config) (*S3Client, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	// Custom endpoint for R2-compatible providers.
	if cfg.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Client{
		client:     client,
		bucket:     cfg.Bucket,
		publicURL:  cfg.PublicURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// UploadLogo normalizes a logo to max 512x512 PNG and puts it in the bucket.
func (s *S3Client) UploadLogo(tokenAddress, symbol string, imageData []byte) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("empty image data")
	}

	if len(imageData) > 5*1024*1024 { // 5MB max
		return "", fmt.Errorf("image too large: %d bytes", len(imageData))
	}

	hash := sha256.Sum256(imageData)
	hashHex := hex.EncodeToString(hash[:])

	img, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	img = imaging.Fit(img, 512, 512, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	imageData = buf.Bytes()

	objectKey := fmt.Sprintf("logos/%s/%d_%s.png", keySafe(tokenAddress), time.Now().Unix(), hashHex[:12])

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(imageData),
		ContentType: aws.String("image/png"),
		Metadata: map[string]string{
			"token_address": tokenAddress,
			"symbol":        symbol,
			"image_hash":    hashHex,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, objectKey), nil
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, objectKey), nil
}

// DownloadLogo fetches the provider-hosted logo image.
func (s *S3Client) DownloadLogo(sourceURL string) ([]byte, error) {
	req, err := http.NewRequest("GET", sourceURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download logo: status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("invalid content type: %s", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if len(data) > 5*1024*1024 {
		return nil, fmt.Errorf("image too large: %d bytes", len(data))
	}

	return data, nil
}

// UploadLogoFromURL downloads from the provider CDN and re-uploads into the
// archive bucket.
func (s *S3Client) UploadLogoFromURL(tokenAddress, symbol, sourceURL string) (string, error) {
	imageData, err := s.DownloadLogo(sourceURL)
	if err != nil {
		return "", fmt.Errorf("failed to download logo: %w", err)
	}

	return s.UploadLogo(tokenAddress, symbol, imageData)
}

// keySafe keeps object keys flat even if an address somehow carries slashes.
func keySafe(s string) string {
	return strings.ReplaceAll(s, "/", "_")
}
