package transport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
)

// DefaultSigningService is the signing name of managed search domains.
const DefaultSigningService = "es"

// SigV4RoundTripper signs every request with AWS Signature Version 4.
type SigV4RoundTripper struct {
	Base        http.RoundTripper
	Credentials aws.CredentialsProvider
	Region      string
	Service     string

	signer *v4.Signer
	now    func() time.Time
}

// NewSigV4RoundTripper signs requests with credentials from the default AWS
// chain (environment, shared config, instance role).
func NewSigV4RoundTripper(ctx context.Context, region, service string, base http.RoundTripper) (*SigV4RoundTripper, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("aws region is required for request signing")
	}
	return NewSigV4WithCredentials(cfg.Credentials, cfg.Region, service, base), nil
}

// NewSigV4WithCredentials signs requests with an explicit credentials provider.
func NewSigV4WithCredentials(creds aws.CredentialsProvider, region, service string, base http.RoundTripper) *SigV4RoundTripper {
	if base == nil {
		base = NewHTTPTransport()
	}
	if service == "" {
		service = DefaultSigningService
	}
	return &SigV4RoundTripper{
		Base:        base,
		Credentials: creds,
		Region:      region,
		Service:     service,
		signer:      v4.NewSigner(),
		now:         time.Now,
	}
}

func (rt *SigV4RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	creds, err := rt.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve aws credentials: %w", err)
	}

	signed := req.Clone(ctx)
	var payload []byte
	if req.Body != nil && req.Body != http.NoBody {
		payload, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		signed.Body = io.NopCloser(bytes.NewReader(payload))
		signed.ContentLength = int64(len(payload))
		signed.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		}
	}

	sum := sha256.Sum256(payload)
	hash := hex.EncodeToString(sum[:])
	signed.Header.Set("X-Amz-Content-Sha256", hash)

	if err := rt.signer.SignHTTP(ctx, creds, signed, hash, rt.Service, rt.Region, rt.now()); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	return rt.Base.RoundTrip(signed)
}
