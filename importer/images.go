package importer

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"sort"
	"strings"

	"autoszczech/config"
	"autoszczech/identity"
	"autoszczech/models"
	"autoszczech/transport"
)

// SkipNoImages flags a seed whose provider mandates photos when none could be
// downloaded.
const SkipNoImages = "no_images_downloaded"

// ImageFetcher resolves one photo reference to its bytes.
type ImageFetcher interface {
	FetchImage(ctx context.Context, ref string) ([]byte, error)
}

// ImageStore persists one photo and returns the public path it will be
// served under.
type ImageStore interface {
	Save(ctx context.Context, dir, name string, data []byte) (string, error)
}

// ImageContext carries per-file context into the pipeline: the source file's
// checksum (for fallback directory naming), the seed's provider family, and
// the source filename for logging.
type ImageContext struct {
	Checksum string
	Provider string
	Filename string
}

// ImagePipeline downloads a seed's photos, sanitizes and deduplicates their
// names, applies provider quirks, and rewrites the seed's references to
// served paths.
type ImagePipeline struct {
	fetcher    ImageFetcher
	store      ImageStore
	publicBase string
	providers  map[string]*config.ProviderConfig
}

func NewImagePipeline(fetcher ImageFetcher, store ImageStore, publicBase string, providers map[string]*config.ProviderConfig) *ImagePipeline {
	return &ImagePipeline{
		fetcher:    fetcher,
		store:      store,
		publicBase: publicBase,
		providers:  providers,
	}
}

type fetched struct {
	inputPos int
	path     string
}

// Normalize runs the pipeline for one seed in place. Individual download
// failures are logged and skipped; only store-level failures abort the seed.
func (p *ImagePipeline) Normalize(ctx context.Context, seed *models.AuctionSeed, ic ImageContext) error {
	if len(seed.Images) == 0 {
		return nil
	}
	if p.allLocal(seed.Images) {
		// Parser placeholder or an already-normalized seed; nothing to fetch.
		return nil
	}

	cfg := p.providers[ic.Provider]

	dir := identity.Slug(seed.DisplayID)
	if dir == "" {
		if cfg != nil && !cfg.IDFromFilename {
			seed.Skip = true
			seed.SkipReason = "missing_display_id"
			return nil
		}
		if len(ic.Checksum) < 8 {
			return fmt.Errorf("no display id and no usable checksum")
		}
		dir = "car-" + ic.Checksum[:8]
	}

	used := make(map[string]bool)
	var results []fetched

	for _, img := range seed.Images {
		data, err := p.fetcher.FetchImage(ctx, img.URL)
		if err != nil {
			log.Printf("[images] %s: fetch %s failed: %v", ic.Filename, img.URL, err)
			continue
		}

		// Names are reserved only for photos that actually landed, so a
		// failed download never leaves a gap in the stored sequence.
		name := identity.UniqueName(used, identity.SanitizeFilename(path.Base(img.URL)))

		publicPath, err := p.store.Save(ctx, dir, name, data)
		if err != nil {
			return fmt.Errorf("store %s/%s: %w", dir, name, err)
		}
		results = append(results, fetched{inputPos: img.Order, path: publicPath})
	}

	if cfg != nil && cfg.RequireImages && len(results) == 0 {
		seed.Skip = true
		seed.SkipReason = SkipNoImages
		return nil
	}

	if cfg != nil && cfg.CoverImageIndex != nil {
		results = promoteCover(results, *cfg.CoverImageIndex)
	}

	seed.Images = seed.Images[:0]
	for i, r := range results {
		seed.Images = append(seed.Images, models.SeedImage{URL: r.path, Order: i})
	}
	return nil
}

func (p *ImagePipeline) allLocal(images []models.SeedImage) bool {
	prefix := strings.TrimRight(p.publicBase, "/") + "/"
	for _, img := range images {
		if !strings.HasPrefix(img.URL, prefix) {
			return false
		}
	}
	return true
}

// promoteCover moves the photo originally uploaded at inputPos to the front;
// everyone else keeps their relative order. A vendor convention, not a
// general rule: that family's second upload is the exterior shot.
func promoteCover(results []fetched, inputPos int) []fetched {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].inputPos < results[j].inputPos
	})

	coverIdx := -1
	for i, r := range results {
		if r.inputPos == inputPos {
			coverIdx = i
			break
		}
	}
	if coverIdx <= 0 {
		return results
	}

	cover := results[coverIdx]
	out := make([]fetched, 0, len(results))
	out = append(out, cover)
	out = append(out, results[:coverIdx]...)
	out = append(out, results[coverIdx+1:]...)
	return out
}

// SourceFetcher fetches photos from the remote store by bare filename, or
// over HTTP when a vendor embeds absolute URLs.
type SourceFetcher struct {
	remote   transport.Client
	dir      string
	http     *http.Client
	maxBytes int64
}

func NewSourceFetcher(remote transport.Client, dir string, httpClient *http.Client, maxBytes int64) *SourceFetcher {
	return &SourceFetcher{
		remote:   remote,
		dir:      dir,
		http:     httpClient,
		maxBytes: maxBytes,
	}
}

func (f *SourceFetcher) FetchImage(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return f.fetchHTTP(ctx, ref)
	}
	return f.remote.Fetch(ctx, f.dir, ref)
}

func (f *SourceFetcher) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("exceeds %d byte limit", f.maxBytes)
	}
	return data, nil
}
