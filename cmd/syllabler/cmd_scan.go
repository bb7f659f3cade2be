package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/japaniel/syllabler/pkg/db"
	"github.com/japaniel/syllabler/pkg/ingest"
	"github.com/japaniel/syllabler/pkg/syllable"
	"github.com/japaniel/syllabler/pkg/verse"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// document is extracted text plus what we know about where it came from.
type document struct {
	SourceType string
	Title      string
	Author     string
	Website    string
	URL        string
	Text       string
}

func (a *app) scanCmd() *cobra.Command {
	var (
		rawURL string
		file   string
		form   string
		title  string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a web page or file, store its lines and look for a verse form",
		Example: `  syllabler scan --url https://example.com/poem
  syllabler scan --file poem.txt --form 5,7,5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (rawURL == "") == (file == "") {
				return errors.New("exactly one of --url or --file is required")
			}
			if form == "" {
				form = a.cfg.Scan.Form
			}
			pattern, err := verse.ParseForm(form)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var doc *document
			if rawURL != "" {
				doc, err = a.fetchDocument(ctx, rawURL)
			} else {
				doc, err = readDocument(file)
			}
			if err != nil {
				return err
			}
			if title != "" {
				doc.Title = title
			}
			return a.scan(ctx, cmd.OutOrStdout(), doc, form, pattern)
		},
	}
	cmd.Flags().StringVar(&rawURL, "url", "", "URL to fetch")
	cmd.Flags().StringVar(&file, "file", "", "Local text or HTML file")
	cmd.Flags().StringVar(&form, "form", "", "Syllable pattern to look for, e.g. 5,7,5 (default from config)")
	cmd.Flags().StringVar(&title, "title", "", "Title to store for the source")
	return cmd
}

func (a *app) scan(ctx context.Context, out io.Writer, doc *document, form string, pattern []int) error {
	conn, err := a.openDB()
	if err != nil {
		return err
	}
	defer conn.Close()

	table, err := a.overrideTable(ctx, conn)
	if err != nil {
		return err
	}
	analyzer := verse.NewAnalyzer(syllable.New(table))

	sourceID, err := db.CreateOrGetSource(conn, doc.SourceType, doc.Title, doc.Author, doc.Website, doc.URL, "")
	if err != nil {
		return fmt.Errorf("failed to persist source: %w", err)
	}
	fmt.Fprintf(out, "Title: %s\n", doc.Title)
	fmt.Fprintf(out, "Source saved with ID: %d\n", sourceID)

	// Lines stored by an earlier, interrupted scan are not rescored.
	stored, err := db.GetLinesBySource(conn, sourceID)
	if err != nil {
		return fmt.Errorf("failed to load stored lines: %w", err)
	}
	byIndex := make(map[int]verse.Line, len(stored))
	for _, l := range stored {
		if l.Syllables > 0 {
			byIndex[l.Index] = verse.Line{Text: l.Text, Syllables: l.Syllables}
		}
	}

	ingester := ingest.NewIngester(conn, analyzer)
	ingester.Logger = a.logger
	if a.cfg.Ingest.Workers > 0 {
		ingester.Workers = a.cfg.Ingest.Workers
	}
	if a.cfg.Ingest.BatchSize > 0 {
		ingester.BatchSize = a.cfg.Ingest.BatchSize
	}
	ingester.FlushInterval = a.cfg.GetFlushInterval()
	// Runs on the writer's committer goroutine; Ingest waits for it before returning.
	ingester.OnLine = func(index int, line verse.Line) {
		if len(line.Words) > 0 {
			byIndex[index] = line
		} else {
			delete(byIndex, index)
		}
	}

	raw := verse.SplitLines(doc.Text)
	start := time.Now()
	links, err := ingester.Ingest(ctx, sourceID, raw)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	a.logger.Info("scan stored", zap.Int64("source_id", sourceID), zap.Duration("elapsed", time.Since(start)))

	var lines []verse.Line
	for i := range raw {
		if l, ok := byIndex[i]; ok {
			lines = append(lines, l)
		}
	}
	for _, l := range lines {
		writeLine(out, l)
	}
	fmt.Fprintf(out, "Linked %d word occurrences.\n", links)

	matches := verse.FindForm(lines, pattern)
	fmt.Fprintf(out, "Form %s: %d match(es)\n", form, len(matches))
	for _, i := range matches {
		fmt.Fprintln(out, "---")
		for _, l := range lines[i : i+len(pattern)] {
			fmt.Fprintln(out, l.Text)
		}
	}
	return nil
}

func (a *app) fetchDocument(ctx context.Context, rawURL string) (*document, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	a.logger.Info("fetching", zap.String("url", rawURL))
	body, err := fetch(ctx, rawURL, a.cfg.GetFetchTimeout(), a.cfg.Scan.MaxBodyBytes)
	if err != nil {
		return nil, err
	}
	doc, err := extract(body, parsedURL)
	if err != nil {
		return nil, err
	}
	doc.SourceType = "website_article"
	doc.URL = rawURL
	return doc, nil
}

func fetch(ctx context.Context, rawURL string, timeout time.Duration, maxBodySize int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// Some sites refuse requests that do not look like a browser.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("got status code %d", resp.StatusCode)
	}
	if resp.ContentLength > maxBodySize {
		return nil, fmt.Errorf("content-length %d exceeds limit of %d bytes", resp.ContentLength, maxBodySize)
	}

	// Read one byte past the limit to tell a full body from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > maxBodySize {
		return nil, fmt.Errorf("response body exceeded maximum size limit of %d bytes", maxBodySize)
	}
	return body, nil
}

// extract runs readability over HTML, keeping <br> separated lines apart.
func extract(body []byte, pageURL *url.URL) (*document, error) {
	article, err := readability.FromReader(bytes.NewReader(verse.PreserveLineBreaks(body)), pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract article: %w", err)
	}
	return &document{
		Title:   article.Title,
		Author:  article.Byline,
		Website: article.SiteName,
		Text:    article.TextContent,
	}, nil
}

func readDocument(path string) (*document, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		doc, err := extract(body, &url.URL{Scheme: "file", Path: abs})
		if err != nil {
			return nil, err
		}
		doc.SourceType = "file"
		doc.URL = "file://" + abs
		return doc, nil
	}
	return &document{
		SourceType: "file",
		Title:      filepath.Base(path),
		URL:        "file://" + abs,
		Text:       string(body),
	}, nil
}
