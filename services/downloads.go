package services

import (
	"context"
	"fmt"

	"mediaserver/logger"
	"mediaserver/types"
)

// DownloadService runs a download batch: shell records, collection
// expansion, then sequential execution of every leaf URL.
type DownloadService interface {
	// Process runs req to completion and returns one report per URL touched
	Process(ctx context.Context, req types.DownloadRequest) map[string]*types.ReportItem
}

type downloadService struct {
	lifecycle *Lifecycle
	expander  *Expander
	executor  Executor
	scraper   TitleScraper
	log       logger.Logger
}

// NewDownloadService wires the batch pipeline
func NewDownloadService(lifecycle *Lifecycle, expander *Expander, executor Executor, scraper TitleScraper, log logger.Logger) DownloadService {
	if log == nil {
		log = logger.NewNop()
	}
	return &downloadService{
		lifecycle: lifecycle,
		expander:  expander,
		executor:  executor,
		scraper:   scraper,
		log:       log,
	}
}

type batchJob struct {
	id       int64
	url      string
	expanded bool
}

// Process implements DownloadService. Failures stay on their own report item
// and never stop the batch.
func (s *downloadService) Process(ctx context.Context, req types.DownloadRequest) map[string]*types.ReportItem {
	report := make(map[string]*types.ReportItem)

	shells := s.recordShells(ctx, req, report)
	leaves, nested := s.expand(ctx, req.MediaType, shells, report)

	s.log.Info("Processing download batch",
		logger.Int("requested", len(req.URLs)),
		logger.Int("records", len(shells)),
		logger.Int("leaves", len(leaves)),
	)

	for i, job := range leaves {
		s.lifecycle.ReportProgress(job.id, i+1, len(leaves))
		s.download(ctx, job, req, report[job.url])
	}

	// collections close after their contents, innermost first
	for i := len(nested) - 1; i >= 0; i-- {
		s.finish(ctx, nested[i], report[nested[i].url], true)
	}
	for _, job := range shells {
		if job.expanded {
			s.finish(ctx, job, report[job.url], true)
		}
	}
	return report
}

// recordShells creates one record per distinct URL, in request order
func (s *downloadService) recordShells(ctx context.Context, req types.DownloadRequest, report map[string]*types.ReportItem) []*batchJob {
	var shells []*batchJob
	for _, url := range req.URLs {
		if _, dup := report[url]; dup {
			continue
		}
		item := types.NewReportItem(url)
		report[url] = item

		id, err := s.lifecycle.StartRecord(ctx, url, req.MediaType)
		if err != nil {
			item.Fail(fmt.Sprintf("Failed to create record: %v", err))
			continue
		}
		shells = append(shells, &batchJob{id: id, url: url})
	}
	return shells
}

// expand replaces collection shells by their descendants. It returns the
// leaves in processing order and the nested collections, which are recorded
// but never handed to the downloader.
func (s *downloadService) expand(ctx context.Context, mediaType types.MediaType, shells []*batchJob, report map[string]*types.ReportItem) (leaves, nested []*batchJob) {
	seen := make(Seen)
	for url := range report {
		seen.Add(url)
	}

	for _, shell := range shells {
		found := s.expander.Expand(ctx, shell.url, 0, seen)
		if len(found) == 0 {
			leaves = append(leaves, shell)
			continue
		}

		shell.expanded = true
		report[shell.url].Log = fmt.Sprintf("Expanded into %d items", len(found))

		ids := map[string]int64{shell.url: shell.id}
		for _, child := range found {
			item := types.NewReportItem(child.URL)
			report[child.URL] = item
			parentID, ok := ids[child.Parent]
			if !ok {
				item.Fail(fmt.Sprintf("Parent %s has no record", child.Parent))
				continue
			}
			item.Log = fmt.Sprintf("Child of #%d", parentID)

			id, err := s.lifecycle.StartRecord(ctx, child.URL, mediaType)
			if err != nil {
				item.Fail(fmt.Sprintf("Failed to create record: %v", err))
				continue
			}
			ids[child.URL] = id

			job := &batchJob{id: id, url: child.URL, expanded: child.Collection}
			if child.Collection {
				nested = append(nested, job)
			} else {
				leaves = append(leaves, job)
			}
		}
	}
	return leaves, nested
}

func (s *downloadService) download(ctx context.Context, job *batchJob, req types.DownloadRequest, item *types.ReportItem) {
	result := s.executor.Execute(ctx, ExecRequest{
		URL:        job.url,
		MediaType:  req.MediaType,
		RangeStart: req.RangeStart,
		RangeEnd:   req.RangeEnd,
	})
	item.Output = result.Output
	if !result.Success {
		item.Fail(result.Error)
	}
	s.finish(ctx, job, item, result.Success)
}

// finish scrapes a title when the work succeeded and closes the record.
// Scrape and finalize problems are only warnings.
func (s *downloadService) finish(ctx context.Context, job *batchJob, item *types.ReportItem, succeeded bool) {
	var title *string
	if succeeded && s.scraper != nil {
		scraped, err := s.scraper.Title(ctx, job.url)
		if err != nil {
			item.Warn(fmt.Sprintf("Title scrape failed: %v", err))
		} else {
			title = &scraped
		}
	}

	if err := s.lifecycle.FinalizeRecord(ctx, job.id, title); err != nil {
		item.Warn(fmt.Sprintf("Failed to finalize record: %v", err))
	}
}
