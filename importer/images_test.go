package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"autoszczech/config"
	"autoszczech/models"
)

type fakeImageFetcher struct {
	fail map[string]bool
}

func (f *fakeImageFetcher) FetchImage(_ context.Context, ref string) ([]byte, error) {
	if f.fail[ref] {
		return nil, errors.New("connection reset")
	}
	return []byte("jpeg-bytes-" + ref), nil
}

type fakeImageStore struct {
	saved   []string
	failAll bool
}

func (s *fakeImageStore) Save(_ context.Context, dir, name string, _ []byte) (string, error) {
	if s.failAll {
		return "", errors.New("disk full")
	}
	p := fmt.Sprintf("/images/%s/%s", dir, name)
	s.saved = append(s.saved, p)
	return p, nil
}

func newTestPipeline(fetcher *fakeImageFetcher, store *fakeImageStore) *ImagePipeline {
	return NewImagePipeline(fetcher, store, "/images", config.DefaultProviders())
}

func seedWithImages(id, provider string, refs ...string) *models.AuctionSeed {
	seed := &models.AuctionSeed{DisplayID: id, Provider: provider}
	for i, ref := range refs {
		seed.Images = append(seed.Images, models.SeedImage{URL: ref, Order: i})
	}
	return seed
}

func TestNormalize_RewritesToServedPaths(t *testing.T) {
	store := &fakeImageStore{}
	p := newTestPipeline(&fakeImageFetcher{}, store)

	seed := seedWithImages("PZU_555", "PZU", "Photo 1.JPG", "Photo 2.JPG")
	if err := p.Normalize(context.Background(), seed, ImageContext{Provider: "PZU"}); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if len(seed.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(seed.Images))
	}
	if seed.Images[0].URL != "/images/pzu-555/photo-1.jpg" {
		t.Fatalf("unexpected first path %s", seed.Images[0].URL)
	}
	if seed.Images[1].URL != "/images/pzu-555/photo-2.jpg" {
		t.Fatalf("unexpected second path %s", seed.Images[1].URL)
	}
	if seed.Images[0].Order != 0 || seed.Images[1].Order != 1 {
		t.Fatalf("orders not sequential: %+v", seed.Images)
	}
	if len(store.saved) != 2 {
		t.Fatalf("expected 2 stored files, got %d", len(store.saved))
	}
}

func TestNormalize_DuplicateNamesDeduplicated(t *testing.T) {
	store := &fakeImageStore{}
	p := newTestPipeline(&fakeImageFetcher{}, store)

	seed := seedWithImages("PZU_1", "PZU",
		"https://a.example.com/car.jpg",
		"https://b.example.com/car.jpg",
	)
	if err := p.Normalize(context.Background(), seed, ImageContext{Provider: "PZU"}); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if seed.Images[0].URL != "/images/pzu-1/car.jpg" {
		t.Fatalf("unexpected first path %s", seed.Images[0].URL)
	}
	if seed.Images[1].URL != "/images/pzu-1/car-2.jpg" {
		t.Fatalf("expected deduplicated name, got %s", seed.Images[1].URL)
	}
}

func TestNormalize_FailedFetchDoesNotReserveName(t *testing.T) {
	fetcher := &fakeImageFetcher{fail: map[string]bool{"https://a.example.com/car.jpg": true}}
	p := newTestPipeline(fetcher, &fakeImageStore{})

	seed := seedWithImages("PZU_9", "PZU",
		"https://a.example.com/car.jpg",
		"https://b.example.com/car.jpg",
	)
	if err := p.Normalize(context.Background(), seed, ImageContext{Provider: "PZU"}); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	// The failed download must not burn the base name.
	if len(seed.Images) != 1 || seed.Images[0].URL != "/images/pzu-9/car.jpg" {
		t.Fatalf("stored names must stay gapless, got %+v", seed.Images)
	}
}

func TestNormalize_CoverPromotion(t *testing.T) {
	p := newTestPipeline(&fakeImageFetcher{}, &fakeImageStore{})

	// AXA's second upload is the exterior shot and becomes the cover.
	seed := seedWithImages("AXA_10001", "AXA", "int_1.jpg", "ext_1.jpg", "int_2.jpg")
	if err := p.Normalize(context.Background(), seed, ImageContext{Provider: "AXA"}); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if len(seed.Images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(seed.Images))
	}
	if seed.Images[0].URL != "/images/axa-10001/ext-1.jpg" {
		t.Fatalf("expected cover ext-1.jpg, got %s", seed.Images[0].URL)
	}
	if seed.Images[1].URL != "/images/axa-10001/int-1.jpg" {
		t.Fatalf("unexpected second image %s", seed.Images[1].URL)
	}
	if seed.Images[2].URL != "/images/axa-10001/int-2.jpg" {
		t.Fatalf("unexpected third image %s", seed.Images[2].URL)
	}
}

func TestNormalize_CoverPromotionWhenCoverFailed(t *testing.T) {
	fetcher := &fakeImageFetcher{fail: map[string]bool{"ext_1.jpg": true}}
	p := newTestPipeline(fetcher, &fakeImageStore{})

	seed := seedWithImages("AXA_10002", "AXA", "int_1.jpg", "ext_1.jpg", "int_2.jpg")
	if err := p.Normalize(context.Background(), seed, ImageContext{Provider: "AXA"}); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	// The cover failed to download; remaining photos keep their order.
	if len(seed.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(seed.Images))
	}
	if seed.Images[0].URL != "/images/axa-10002/int-1.jpg" {
		t.Fatalf("unexpected first image %s", seed.Images[0].URL)
	}
}

func TestNormalize_RequiredImagesSkip(t *testing.T) {
	fetcher := &fakeImageFetcher{fail: map[string]bool{"a.jpg": true, "b.jpg": true}}
	p := newTestPipeline(fetcher, &fakeImageStore{})

	seed := seedWithImages("AXA_10003", "AXA", "a.jpg", "b.jpg")
	if err := p.Normalize(context.Background(), seed, ImageContext{Provider: "AXA"}); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if !seed.Skip {
		t.Fatalf("expected seed to be skipped")
	}
	if seed.SkipReason != SkipNoImages {
		t.Fatalf("expected reason %s, got %s", SkipNoImages, seed.SkipReason)
	}
}

func TestNormalize_OptionalImagesFailureTolerated(t *testing.T) {
	fetcher := &fakeImageFetcher{fail: map[string]bool{"a.jpg": true}}
	p := newTestPipeline(fetcher, &fakeImageStore{})

	seed := seedWithImages("PZU_2", "PZU", "a.jpg", "b.jpg")
	if err := p.Normalize(context.Background(), seed, ImageContext{Provider: "PZU"}); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if seed.Skip {
		t.Fatalf("PZU seeds must not be skipped on partial download")
	}
	if len(seed.Images) != 1 || seed.Images[0].URL != "/images/pzu-2/b.jpg" {
		t.Fatalf("unexpected images %+v", seed.Images)
	}
}

func TestNormalize_PlaceholderPassthrough(t *testing.T) {
	store := &fakeImageStore{}
	p := newTestPipeline(&fakeImageFetcher{}, store)

	seed := seedWithImages("PZU_3", "PZU", "/images/placeholder.jpg")
	if err := p.Normalize(context.Background(), seed, ImageContext{Provider: "PZU"}); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if len(store.saved) != 0 {
		t.Fatalf("placeholder must not be fetched or stored")
	}
	if seed.Images[0].URL != "/images/placeholder.jpg" {
		t.Fatalf("placeholder rewritten: %s", seed.Images[0].URL)
	}
}

func TestNormalize_StoreFailureAborts(t *testing.T) {
	p := newTestPipeline(&fakeImageFetcher{}, &fakeImageStore{failAll: true})

	seed := seedWithImages("PZU_4", "PZU", "a.jpg")
	if err := p.Normalize(context.Background(), seed, ImageContext{Provider: "PZU"}); err == nil {
		t.Fatalf("expected store failure to abort")
	}
}

func TestNormalize_FallbackDirFromChecksum(t *testing.T) {
	store := &fakeImageStore{}
	p := newTestPipeline(&fakeImageFetcher{}, store)

	seed := seedWithImages("", "AXA", "a.jpg")
	ic := ImageContext{Provider: "AXA", Checksum: "deadbeefcafe0123"}
	if err := p.Normalize(context.Background(), seed, ic); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	if seed.Images[0].URL != "/images/car-deadbeef/a.jpg" {
		t.Fatalf("unexpected fallback dir path %s", seed.Images[0].URL)
	}
}
