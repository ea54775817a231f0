package services

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediaserver/logger"
	"mediaserver/metrics"
	"mediaserver/types"
)

// GalleriesDir is where gallery-dl output lands inside the download directory
const GalleriesDir = "Galleries"

const (
	errNoResults   = "No results found for url."
	errFileTooBig  = "File size larger than allowed."
	errCommandFmt  = "Command failed: %d"
	errCannotStart = "Downloader could not be started: %v"
)

var (
	noResultsPattern = regexp.MustCompile(`(?i)no results for`)
	fileSizePattern  = regexp.MustCompile(`(?i)file size larger than allowed`)
	errorTagPattern  = regexp.MustCompile(`(?i)\[error\]`)
)

// ExecRequest is one downloader invocation
type ExecRequest struct {
	URL        string
	MediaType  types.MediaType
	RangeStart *int
	RangeEnd   *int
}

// ExecResult is the classified outcome of an invocation
type ExecResult struct {
	Success bool
	Output  string
	Error   string
}

// Executor downloads a single URL
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) ExecResult
}

// GalleryDLExecutor runs gallery-dl into the current download directory
type GalleryDLExecutor struct {
	bin         string
	runner      CommandRunner
	downloadDir func() string
	log         logger.Logger
	metrics     *metrics.Metrics
}

// NewGalleryDLExecutor creates an executor. downloadDir is read on every
// call so settings changes apply to the next download.
func NewGalleryDLExecutor(bin string, runner CommandRunner, downloadDir func() string, log logger.Logger, m *metrics.Metrics) *GalleryDLExecutor {
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &GalleryDLExecutor{bin: bin, runner: runner, downloadDir: downloadDir, log: log, metrics: m}
}

// Args builds the gallery-dl argument list for req
func (e *GalleryDLExecutor) Args(req ExecRequest) []string {
	args := []string{"-o", "base-directory=" + filepath.Join(e.downloadDir(), GalleriesDir), req.URL}
	if req.RangeStart != nil && req.RangeEnd != nil {
		args = append(args, "--range", fmt.Sprintf("%d-%d", *req.RangeStart, *req.RangeEnd))
	}
	return args
}

// Execute implements Executor
func (e *GalleryDLExecutor) Execute(ctx context.Context, req ExecRequest) ExecResult {
	invocation := uuid.NewString()
	log := e.log.With(
		logger.String("invocation_id", invocation),
		logger.String("url", req.URL),
		logger.String("media_type", string(req.MediaType)),
	)
	log.Info("Starting download")

	started := time.Now()
	res, err := e.runner.Run(ctx, e.bin, e.Args(req)...)
	elapsed := time.Since(started)

	var result ExecResult
	if err != nil {
		result = ExecResult{Output: res.Output, Error: fmt.Sprintf(errCannotStart, err)}
	} else {
		result = Classify(res.Output, res.ExitCode)
	}
	e.metrics.ObserveDownload(result.Success, elapsed.Seconds())

	if result.Success {
		log.Info("Download finished", logger.Duration("elapsed", elapsed))
	} else {
		log.Warn("Download failed",
			logger.Duration("elapsed", elapsed),
			logger.Int("exit_code", res.ExitCode),
			logger.String("error", result.Error),
		)
	}
	return result
}

// Classify turns downloader output and exit code into a result. Known
// failure lines take precedence over the exit code, in a fixed order.
func Classify(output string, exitCode int) ExecResult {
	lines := strings.Split(output, "\n")

	if matchLine(lines, noResultsPattern) != "" {
		return ExecResult{Output: output, Error: errNoResults}
	}
	if matchLine(lines, fileSizePattern) != "" {
		return ExecResult{Output: output, Error: errFileTooBig}
	}
	if line := matchLine(lines, errorTagPattern); line != "" {
		return ExecResult{Output: output, Error: line}
	}
	if exitCode != 0 {
		return ExecResult{Output: output, Error: fmt.Sprintf(errCommandFmt, exitCode)}
	}
	return ExecResult{Success: true, Output: output}
}

func matchLine(lines []string, pattern *regexp.Regexp) string {
	for _, line := range lines {
		if pattern.MatchString(line) {
			return strings.TrimRight(line, "\r")
		}
	}
	return ""
}
