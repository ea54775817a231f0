package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaserver/logger"
	"mediaserver/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		exitCode int
		success  bool
		err      string
	}{
		{"clean success", "downloaded 3 files", 0, true, ""},
		{"no results wins over error tag", "[error] something broke\n[gallery] No results for http://a.test", 1, false, "No results found for url."},
		{"file size", "[warning] File size larger than allowed maximum", 0, false, "File size larger than allowed."},
		{"no results wins over file size", "file size larger than allowed\nno results for x", 0, false, "No results found for url."},
		{"error tag verbatim", "starting\n[twitter][error] 403 Forbidden\n", 1, false, "[twitter][error] 403 Forbidden"},
		{"error tag with zero exit", "[ERROR] Unsupported URL", 0, false, "[ERROR] Unsupported URL"},
		{"bare exit code", "403 Forbidden", 4, false, "Command failed: 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.output, tt.exitCode)
			assert.Equal(t, tt.success, got.Success)
			assert.Equal(t, tt.err, got.Error)
			assert.Equal(t, tt.output, got.Output)
		})
	}
}

func TestGalleryDLExecutorArgs(t *testing.T) {
	runner := &stubRunner{result: CommandResult{Output: "ok"}}
	dir := t.TempDir()
	exec := NewGalleryDLExecutor("gallery-dl", runner, func() string { return dir }, logger.NewNop(), nil)

	start, end := 2, 5
	res := exec.Execute(context.Background(), ExecRequest{
		URL:        "http://a.test",
		MediaType:  types.MediaTypeGallery,
		RangeStart: &start,
		RangeEnd:   &end,
	})
	assert.True(t, res.Success)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{
		"gallery-dl", "-o", "base-directory=" + filepath.Join(dir, GalleriesDir),
		"http://a.test", "--range", "2-5",
	}, runner.calls[0])
}

func TestGalleryDLExecutorWithoutRange(t *testing.T) {
	exec := NewGalleryDLExecutor("gdl", &stubRunner{}, func() string { return "/dl" }, nil, nil)
	assert.Equal(t, []string{"-o", "base-directory=" + filepath.Join("/dl", GalleriesDir), "http://a.test"},
		exec.Args(ExecRequest{URL: "http://a.test"}))
}

func TestGalleryDLExecutorFailures(t *testing.T) {
	runner := &stubRunner{result: CommandResult{ExitCode: 1, Output: "403 Forbidden"}}
	exec := NewGalleryDLExecutor("gallery-dl", runner, func() string { return "/dl" }, nil, nil)

	res := exec.Execute(context.Background(), ExecRequest{URL: "http://blocked.test"})
	assert.False(t, res.Success)
	assert.Equal(t, "Command failed: 1", res.Error)
	assert.Equal(t, "403 Forbidden", res.Output)

	runner.err = errBoom
	res = exec.Execute(context.Background(), ExecRequest{URL: "http://blocked.test"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "could not be started")
}

func TestExecRunner(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo out; echo err >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Output, "out")
	assert.Contains(t, res.Output, "err")

	_, err = ExecRunner{}.Run(context.Background(), "definitely-not-a-binary-mediaserver")
	assert.Error(t, err)
}
