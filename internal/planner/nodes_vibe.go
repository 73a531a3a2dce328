package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Aahiro/deerhacks/internal/llmclient"
)

const (
	vibePhotoTimeout = 8 * time.Second
	vibeMaxPhotos    = 3
)

const vibeSystemPrompt = `You are a thematic-fit scorer for venue recommendations.
Given a venue's name, address, category, and photos, and the requester's desired vibe,
respond with a single JSON object and nothing else:
{"vibe_score": 0.0, "primary_style": "", "visual_descriptors": [], "confidence": 0.0}
vibe_score and confidence are numbers in [0,1]. If you cannot assess the venue, return
{"vibe_score": null, "primary_style": "", "visual_descriptors": [], "confidence": 0}.`

// VibeMatcher scores each candidate venue's thematic fit against the parsed
// vibe using a multimodal LLM call grounded in the venue's own photos.
type VibeMatcher struct {
	LLM        *llmclient.Client
	httpClient *http.Client
}

// NewVibeMatcher builds a VibeMatcher.
func NewVibeMatcher(llm *llmclient.Client) *VibeMatcher {
	return &VibeMatcher{LLM: llm, httpClient: &http.Client{Timeout: vibePhotoTimeout}}
}

type vibeLLMOutput struct {
	VibeScore         *float64 `json:"vibe_score"`
	PrimaryStyle      string   `json:"primary_style"`
	VisualDescriptors []string `json:"visual_descriptors"`
	Confidence        float64  `json:"confidence"`
}

var fallbackVibeRecord = VibeRecord{VibeScore: nil, PrimaryStyle: "", VisualDescriptors: []string{}, Confidence: 0}

// Score produces venue's VibeRecord, never returning an error: any failure
// (LLM unavailable, malformed JSON, photo fetch failure) degrades to an
// empty-but-well-shaped fallback record.
func (v *VibeMatcher) Score(ctx context.Context, venue VenueRecord, intent ParsedIntent) VibeRecord {
	images := v.fetchPhotos(ctx, venue.Photos)

	prompt := fmt.Sprintf(
		"venue name: %s\naddress/category: %s\ndesired vibe: %s\nactivity: %s",
		venue.Name, venue.Category, intent.Vibe, intent.Activity,
	)

	var out vibeLLMOutput
	if err := v.LLM.GenerateJSON(ctx, "vibe_matcher", vibeSystemPrompt, prompt, images, &out); err != nil {
		return fallbackVibeRecord
	}

	if out.VibeScore == nil {
		return fallbackVibeRecord
	}

	return VibeRecord{
		VibeScore:         out.VibeScore,
		PrimaryStyle:      out.PrimaryStyle,
		VisualDescriptors: out.VisualDescriptors,
		Confidence:        out.Confidence,
	}
}

// fetchPhotos downloads up to the first vibeMaxPhotos photo URLs concurrently;
// a single photo's failure silently drops just that part.
func (v *VibeMatcher) fetchPhotos(ctx context.Context, urls []string) []llmclient.ImageInput {
	limit := len(urls)
	if limit > vibeMaxPhotos {
		limit = vibeMaxPhotos
	}

	type fetched struct {
		img llmclient.ImageInput
		ok  bool
	}
	results := make(chan fetched, limit)

	for i := 0; i < limit; i++ {
		url := urls[i]
		go func() {
			img, err := v.fetchOne(ctx, url)
			results <- fetched{img: img, ok: err == nil}
		}()
	}

	images := make([]llmclient.ImageInput, 0, limit)
	for i := 0; i < limit; i++ {
		r := <-results
		if r.ok {
			images = append(images, r.img)
		}
	}
	return images
}

func (v *VibeMatcher) fetchOne(ctx context.Context, url string) (llmclient.ImageInput, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, vibePhotoTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return llmclient.ImageInput{}, err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return llmclient.ImageInput{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return llmclient.ImageInput{}, fmt.Errorf("photo fetch status %d", resp.StatusCode)
	}

	const maxPhotoBytes = 5 << 20
	buf := make([]byte, maxPhotoBytes)
	n, err := readFull(resp.Body, buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return llmclient.ImageInput{}, err
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = http.DetectContentType(buf[:n])
	}

	return llmclient.ImageInput{MediaType: mediaType, Data: buf[:n]}, nil
}

// readFull reads up to len(buf) bytes from r. buf is a generous cap rather
// than an exact size, so a short read terminated by io.EOF is the normal
// case, not an error.
func readFull(r io.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
