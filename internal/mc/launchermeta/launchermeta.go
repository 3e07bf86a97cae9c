package launchermeta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	mojangManifest = "https://launchermeta.mojang.com/mc/game/version_manifest.json"
)

var ErrUnknownVersion = errors.New("unknown Minecraft version")

type LauncherMetaClient struct {
	httpClient  *http.Client
	manifestURL string
}

type Option func(p *LauncherMetaClient)

func WithManifestURL(url string) Option {
	return func(p *LauncherMetaClient) {
		p.manifestURL = url
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(p *LauncherMetaClient) {
		p.httpClient = client
	}
}

type VersionInfo struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	ReleaseTime string `json:"releaseTime"`
}

type VersionManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []VersionInfo `json:"versions"`
}

func (m *VersionManifest) Find(id string) *VersionInfo {
	for i := range m.Versions {
		if m.Versions[i].ID == id {
			return &m.Versions[i]
		}
	}
	return nil
}

type Library struct {
	Name string `json:"name"`
}

// VersionMetaData is the part of a version's metadata a client launch needs.
type VersionMetaData struct {
	ID         string `json:"id"`
	MainClass  string `json:"mainClass"`
	AssetIndex struct {
		ID        string `json:"id"`
		TotalSize int64  `json:"totalSize"`
	} `json:"assetIndex"`
	Downloads struct {
		Client struct {
			URL  string `json:"url"`
			Size int64  `json:"size"`
		} `json:"client"`
	} `json:"downloads"`
	Libraries   []Library `json:"libraries"`
	JavaVersion struct {
		Major int `json:"majorVersion"`
	} `json:"javaVersion"`
}

func NewLauncherMetaClient(options ...Option) *LauncherMetaClient {
	provider := &LauncherMetaClient{
		httpClient:  http.DefaultClient,
		manifestURL: mojangManifest,
	}

	for _, opt := range options {
		opt(provider)
	}

	return provider
}

func (lm *LauncherMetaClient) getJSON(ctx context.Context, url string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := lm.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.CopyN(io.Discard, resp.Body, 1024)
		return fmt.Errorf("failed to retrieve %s: %s", url, resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func (lm *LauncherMetaClient) GetVersionManifest(ctx context.Context) (*VersionManifest, error) {
	var manifest VersionManifest
	if err := lm.getJSON(ctx, lm.manifestURL, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

func (lm *LauncherMetaClient) GetVersionMetaData(ctx context.Context, version VersionInfo) (*VersionMetaData, error) {
	var versionMeta VersionMetaData
	if err := lm.getJSON(ctx, version.URL, &versionMeta); err != nil {
		return nil, err
	}
	return &versionMeta, nil
}

// Resolve looks id up in the version manifest and fetches its metadata.
func (lm *LauncherMetaClient) Resolve(ctx context.Context, id string) (*VersionMetaData, error) {
	manifest, err := lm.GetVersionManifest(ctx)
	if err != nil {
		return nil, err
	}

	version := manifest.Find(id)
	if version == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVersion, id)
	}

	return lm.GetVersionMetaData(ctx, *version)
}
