package store

import (
	"fmt"
	"math/rand"
	"time"

	"mediaserver/types"
)

type demoEntry struct {
	url       string
	title     string
	mediaType types.MediaType
	ago       time.Duration
	duration  time.Duration
}

var demoEntries = []demoEntry{
	{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "Rick Astley - Never Gonna Give You Up (Official Video) - YouTube", types.MediaTypeVideo, 2 * time.Second, 2 * time.Second},
	{"https://www.youtube.com/watch?v=jNQXAC9IVRw", "Me at the zoo - YouTube", types.MediaTypeVideo, 30 * time.Second, 5 * time.Second},
	{"https://very-long-url-website.com/long-title-test", "This is an extremely long title to test if the CSS truncation works correctly in the dashboard table row and does not break the layout of the cell", types.MediaTypeUnknown, 70 * time.Second, 5 * time.Second},
	{"https://x.com/updates/status/12345", "Breaking News: Go 1.24 Released", types.MediaTypeImage, 5*time.Minute + 25*time.Second, 5 * time.Second},
	{"https://cdn.example.com/assets/logo.png", "", types.MediaTypeImage, time.Hour + 70*time.Second, 5 * time.Second},
	{"https://imgur.com/gallery/cats", "Best Cat Memes 2025", types.MediaTypeGallery, time.Hour + 45*time.Minute + 10*time.Second, 5 * time.Second},
	{"https://vimeo.com/12345678", `Documentary: "The Life of a Software Engineer"`, types.MediaTypeVideo, 2*time.Hour + 5*time.Minute + 40*time.Second, 5 * time.Second},
	{"https://unsplash.com/photos/mountain-view", "High resolution mountain landscape [4K]", types.MediaTypeImage, 3*time.Hour + 10*time.Minute + 10*time.Second, 5 * time.Second},
	{"https://www.tiktok.com/@user/video/987654", "Viral Dance Challenge #2025", types.MediaTypeVideo, 4*time.Hour + 20*time.Minute + 30*time.Second, 5 * time.Second},
	{"https://example.com/missing-title-2", "", types.MediaTypeGallery, 4*time.Hour + 30*time.Minute + 35*time.Second, 10 * time.Second},
	{"https://www.nasa.gov/image-of-the-day", "Nebula Cluster from James Webb Telescope", types.MediaTypeImage, 5*time.Hour + 61*time.Second, 0},
}

// DemoRecords builds a deterministic demo data set relative to now. When
// count exceeds the fixed entries the rest are generated from a seeded source.
func DemoRecords(now time.Time, count int) []types.DownloadRecord {
	records := make([]types.DownloadRecord, 0, max(count, len(demoEntries)))
	for _, e := range demoEntries {
		start := now.Add(-e.ago)
		records = append(records, demoRecord(e.url, e.title, e.mediaType, start, start.Add(e.duration)))
	}

	rng := rand.New(rand.NewSource(42))
	for i := len(records); i < count; i++ {
		start := now.Add(-time.Duration(rng.Intn(200*24*3600)) * time.Second)
		mediaType := types.MediaTypes[rng.Intn(len(types.MediaTypes))]
		url := fmt.Sprintf("https://example.com/media/%d", i)
		record := demoRecord(url, fmt.Sprintf("Generated item %d", i), mediaType, start,
			start.Add(time.Duration(5+rng.Intn(3600))*time.Second))
		// roughly one in ten generated rows stays in flight
		if rng.Float64() >= 0.9 {
			record.EndTime = nil
		}
		records = append(records, record)
	}
	return records
}

func demoRecord(url, title string, mediaType types.MediaType, start, end time.Time) types.DownloadRecord {
	record := types.DownloadRecord{
		URL:       url,
		MediaType: mediaType,
		StartTime: types.FormatTime(start),
		EndTime:   types.StringPtr(types.FormatTime(end)),
	}
	if title != "" {
		record.Title = types.StringPtr(title)
	}
	return record
}
