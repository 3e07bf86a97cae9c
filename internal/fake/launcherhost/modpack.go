package launcherhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kofuk/premises-launcher/internal/entity/launcher"
	"github.com/kofuk/premises-launcher/internal/mc/launchermeta"
	"github.com/kofuk/premises-launcher/internal/s3wrap"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const modpackInfoFile = "modpack_info.json"

var ErrNoModpackSource = errors.New("modpack source is not configured")

type ModpackProvider interface {
	Fetch(ctx context.Context) (*launcher.ModpackInfo, error)
}

// HTTPProvider reads modpack_info.json below a base URL.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
}

func NewHTTPProvider(client *http.Client, baseURL string) *HTTPProvider {
	return &HTTPProvider{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (p *HTTPProvider) Fetch(ctx context.Context) (*launcher.ModpackInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/"+modpackInfoFile, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch modpack info: %s", resp.Status)
	}

	var info launcher.ModpackInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("malformed modpack info: %w", err)
	}
	return &info, nil
}

type objectGetter interface {
	GetObject(ctx context.Context, bucket, key string) (*s3wrap.Object, error)
}

// S3Provider reads modpack_info.json below a bucket prefix.
type S3Provider struct {
	s3     objectGetter
	bucket string
	prefix string
}

func NewS3Provider(s3 objectGetter, bucket, prefix string) *S3Provider {
	return &S3Provider{
		s3:     s3,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (p *S3Provider) key() string {
	if p.prefix == "" {
		return modpackInfoFile
	}
	return p.prefix + "/" + modpackInfoFile
}

func (p *S3Provider) Fetch(ctx context.Context) (*launcher.ModpackInfo, error) {
	obj, err := p.s3.GetObject(ctx, p.bucket, p.key())
	if err != nil {
		return nil, err
	}
	defer obj.Body.Close()

	var info launcher.ModpackInfo
	if err := json.NewDecoder(obj.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("malformed modpack info: %w", err)
	}
	return &info, nil
}

// NewModpackProvider picks a provider for an http(s) or s3 URL. An empty URL
// yields no provider.
func NewModpackProvider(ctx context.Context, rawURL string, forcePathStyle bool) (ModpackProvider, error) {
	if rawURL == "" {
		return nil, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "http", "https":
		client := &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		return NewHTTPProvider(client, rawURL), nil
	case "s3":
		client, err := s3wrap.New(ctx, forcePathStyle)
		if err != nil {
			return nil, err
		}
		return NewS3Provider(client, u.Host, u.Path), nil
	default:
		return nil, fmt.Errorf("unsupported modpack URL: %s", rawURL)
	}
}

// NewVersionResolver resolves versions against the version manifest at
// manifestURL, or Mojang's when it is empty.
func NewVersionResolver(manifestURL string) *launchermeta.LauncherMetaClient {
	opts := []launchermeta.Option{
		launchermeta.WithHTTPClient(&http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	}
	if manifestURL != "" {
		opts = append(opts, launchermeta.WithManifestURL(manifestURL))
	}
	return launchermeta.NewLauncherMetaClient(opts...)
}
