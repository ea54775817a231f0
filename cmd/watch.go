package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mediaserver/middleware"
	"mediaserver/types"
)

func newWatchCommand(opts *globalOptions) *cobra.Command {
	var serverURL string
	var apiKey string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live download events from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if serverURL == "" {
				serverURL = "http://" + cfg.Address()
			}
			if !cmd.Flags().Changed("api-key") {
				apiKey = cfg.APIKey
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			body, err := openStream(ctx, strings.TrimRight(serverURL, "/")+"/stream", apiKey)
			if err != nil {
				return err
			}
			defer body.Close()

			out := cmd.OutOrStdout()
			err = followEvents(body, newEventPrinter(out, isTerminal(out)))
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "Server base URL (defaults to the configured address)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (defaults to MEDIA_SERVER_KEY)")
	return cmd
}

func openStream(ctx context.Context, url, apiKey string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if apiKey != "" {
		req.Header.Set(middleware.APIKeyHeader, apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("connect to %s: %s", url, resp.Status)
	}
	return resp.Body, nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// wireEvent is an Event whose payload is decoded per type
type wireEvent struct {
	Type types.EventType `json:"type"`
	Data json.RawMessage `json:"data"`
}

// followEvents reads SSE frames until r ends
func followEvents(r io.Reader, printer *eventPrinter) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		payload, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var event wireEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		printer.print(event)
	}
	printer.finish()
	return scanner.Err()
}

// eventPrinter renders PROGRESS as a bar on terminals and everything else
// as one line per event.
type eventPrinter struct {
	out io.Writer
	tty bool
	bar *progressbar.ProgressBar
}

func newEventPrinter(out io.Writer, tty bool) *eventPrinter {
	return &eventPrinter{out: out, tty: tty}
}

func (p *eventPrinter) print(event wireEvent) {
	switch event.Type {
	case types.EventProgress:
		var progress types.ProgressPayload
		if json.Unmarshal(event.Data, &progress) == nil {
			p.progress(progress)
		}
	case types.EventCreate:
		var created types.CreatePayload
		if json.Unmarshal(event.Data, &created) == nil {
			p.line("queued   #%d %s (%s)", created.ID, created.URL, created.MediaType)
		}
	case types.EventUpdate:
		var updated types.UpdatePayload
		if json.Unmarshal(event.Data, &updated) == nil {
			title := "-"
			if updated.Title != nil {
				title = *updated.Title
			}
			if updated.EndTime != "" {
				p.line("finished #%d %s", updated.ID, title)
			} else {
				p.line("edited   #%d %s", updated.ID, title)
			}
		}
	case types.EventDelete:
		var deleted types.DeletePayload
		if json.Unmarshal(event.Data, &deleted) == nil {
			p.line("deleted  #%d", deleted.ID)
		}
	}
}

func (p *eventPrinter) progress(progress types.ProgressPayload) {
	if !p.tty {
		p.line("progress #%d %d/%d", progress.ID, progress.Current, progress.Total)
		return
	}

	if p.bar == nil || progress.Current == 1 {
		p.finish()
		p.bar = progressbar.NewOptions(progress.Total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(false),
		)
	}
	p.bar.Describe(fmt.Sprintf("downloading #%d", progress.ID))
	_ = p.bar.Set(progress.Current)
	if progress.Current >= progress.Total {
		p.finish()
	}
}

func (p *eventPrinter) line(format string, args ...any) {
	if p.bar != nil {
		fmt.Fprintln(p.out)
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *eventPrinter) finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	fmt.Fprintln(p.out)
	p.bar = nil
}
