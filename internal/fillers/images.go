package fillers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"listingpilot/backend/internal/locator"
	"listingpilot/backend/internal/models"
	"listingpilot/backend/internal/page"
)

const (
	maxImageBytes = 20 << 20
	fetchLimit    = 2
)

// ImageFetcher downloads one listing image.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPFetcher fetches images with plain GETs. Relative URLs resolve
// against BaseURL when it is set.
type HTTPFetcher struct {
	Client  *http.Client
	BaseURL string
}

func NewHTTPFetcher(timeout time.Duration, baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		Client:  &http.Client{Timeout: timeout},
		BaseURL: baseURL,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	target, err := f.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned %d", target, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("GET %s returned an empty body", target)
	}
	return data, nil
}

func (f *HTTPFetcher) resolve(rawURL string) (string, error) {
	if f.BaseURL == "" {
		return rawURL, nil
	}
	base, err := url.Parse(f.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse image base url: %w", err)
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse image url %q: %w", rawURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// UniqueImages removes duplicate URLs anywhere in the list, keeps first
// occurrences in order and caps the result at max.
func UniqueImages(urls []string, max int) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, max)
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if len(out) == max {
			break
		}
	}
	return out
}

type imagesFiller struct {
	env       *Env
	fetcher   ImageFetcher
	maxImages int
}

func NewImagesFiller(e *Env, fetcher ImageFetcher, maxImages int) Filler {
	if maxImages <= 0 {
		maxImages = 3
	}
	return &imagesFiller{env: e, fetcher: fetcher, maxImages: maxImages}
}

func (f *imagesFiller) Name() string { return FieldImages }

func (f *imagesFiller) Skip(v models.VehicleListing) bool {
	return len(UniqueImages(v.Images, f.maxImages)) == 0
}

func (f *imagesFiller) Fill(ctx context.Context, v models.VehicleListing) models.OperationResult {
	urls := UniqueImages(v.Images, f.maxImages)
	if len(urls) == 0 {
		return models.Failed("No images to upload")
	}

	// File inputs are usually hidden behind a styled drop zone.
	input, err := locator.LocateWithin(ctx, f.env.Page, f.env.Catalog.FileInputs, locator.Options{}, f.env.ElementWait)
	if err != nil {
		log.Printf("❌ Image upload input not found: %v", err)
		return models.Failed("Image upload input not found")
	}

	downloaded := make([][]byte, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			data, err := f.fetcher.Fetch(gctx, u)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("⚠️ Skipping image %s: %v", u, err)
				return nil
			}
			downloaded[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("❌ Image download interrupted: %v", err)
		return models.Failed(fmt.Sprintf("Image download interrupted: %v", err))
	}

	files := make([]page.File, 0, len(urls))
	for _, data := range downloaded {
		if data == nil {
			continue
		}
		files = append(files, page.File{
			Name: fmt.Sprintf("image_%d.jpg", len(files)+1),
			MIME: "image/jpeg",
			Data: data,
		})
	}
	if len(files) == 0 {
		log.Printf("❌ None of %d images could be downloaded", len(urls))
		return models.Failed("No images could be downloaded")
	}

	if err := f.env.Page.SetFiles(ctx, input.Ref, files); err != nil {
		log.Printf("❌ Failed to attach images: %v", err)
		return models.Failed(fmt.Sprintf("Failed to attach images: %v", err))
	}
	if err := f.env.Page.Dispatch(ctx, input.Ref, page.EventChange); err != nil {
		log.Printf("❌ Failed to announce image upload: %v", err)
		return models.Failed(fmt.Sprintf("Failed to attach images: %v", err))
	}

	log.Printf("🖼️ Attached %d of %d images", len(files), len(urls))
	return models.Succeeded(fmt.Sprintf("Uploaded %d images", len(files)))
}
