package slang

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader produces a lexicon once at process start.
type Loader interface {
	Load(ctx context.Context) (*Lexicon, error)
}

// LoadOrEmpty never fails: a nil loader or a load error yields an empty
// lexicon and the error is logged as a warning.
func LoadOrEmpty(ctx context.Context, loader Loader, logger *slog.Logger) *Lexicon {
	if logger == nil {
		logger = slog.Default()
	}
	if loader == nil {
		logger.Info("slang lexicon disabled")
		return NewLexicon(nil)
	}
	start := time.Now()
	lex, err := loader.Load(ctx)
	if err != nil {
		logger.Warn("slang lexicon load failed, resolution disabled", "error", err)
		return NewLexicon(nil)
	}
	if lex == nil {
		lex = NewLexicon(nil)
	}
	logger.Info("slang lexicon loaded", "entries", lex.Len(), "ms", time.Since(start).Milliseconds())
	return lex
}

// fileEntry accepts both the dataset column names and the Entry field names.
type fileEntry struct {
	Slang       string   `json:"slang" yaml:"slang"`
	Description string   `json:"description" yaml:"description"`
	Token       string   `json:"token" yaml:"token"`
	Meanings    []string `json:"meanings" yaml:"meanings"`
}

func (f fileEntry) entry() Entry {
	e := Entry{Token: f.Token, Meanings: f.Meanings}
	if e.Token == "" {
		e.Token = f.Slang
	}
	if f.Description != "" {
		e.Meanings = append([]string{f.Description}, e.Meanings...)
	}
	return e
}

// FileLoader reads a lexicon from a local .csv, .json, .yaml or .yml file.
// CSV files need a header with Slang and Description columns.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(_ context.Context) (*Lexicon, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open slang file: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(l.Path)); ext {
	case ".csv":
		return parseCSV(f)
	case ".json":
		var rows []fileEntry
		if err := json.NewDecoder(f).Decode(&rows); err != nil {
			return nil, fmt.Errorf("decode slang json: %w", err)
		}
		return fromFileEntries(rows), nil
	case ".yaml", ".yml":
		var rows []fileEntry
		if err := yaml.NewDecoder(f).Decode(&rows); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode slang yaml: %w", err)
		}
		return fromFileEntries(rows), nil
	default:
		return nil, fmt.Errorf("unsupported slang file extension %q", ext)
	}
}

func fromFileEntries(rows []fileEntry) *Lexicon {
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return NewLexicon(entries)
}

func parseCSV(r io.Reader) (*Lexicon, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read slang csv header: %w", err)
	}
	slangCol, descCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "slang":
			slangCol = i
		case "description":
			descCol = i
		}
	}
	if slangCol < 0 || descCol < 0 {
		return nil, fmt.Errorf("slang csv header must contain Slang and Description, got %v", header)
	}

	var entries []Entry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read slang csv: %w", err)
		}
		if slangCol >= len(rec) || descCol >= len(rec) {
			continue
		}
		entries = append(entries, Entry{Token: rec[slangCol], Meanings: []string{rec[descCol]}})
	}
	return NewLexicon(entries), nil
}

const (
	DefaultHFDatasetsURL = "https://datasets-server.huggingface.co"
	DefaultHFDataset     = "MLBtrio/genz-slang-dataset"
)

// HuggingFaceLoader pages through the rows API of the Hugging Face datasets
// server and reads the Slang and Description columns.
type HuggingFaceLoader struct {
	BaseURL  string
	Dataset  string
	Config   string
	Split    string
	Token    string
	PageSize int
	MaxRows  int
	HTTP     *http.Client
}

type hfRowsResponse struct {
	Rows []struct {
		Row map[string]any `json:"row"`
	} `json:"rows"`
	NumRowsTotal int    `json:"num_rows_total"`
	Error        string `json:"error"`
}

func (l HuggingFaceLoader) Load(ctx context.Context) (*Lexicon, error) {
	base := strings.TrimRight(firstNonEmpty(l.BaseURL, DefaultHFDatasetsURL), "/")
	pageSize := l.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	client := l.HTTP
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}

	var entries []Entry
	for offset := 0; ; offset += pageSize {
		page, err := l.fetchPage(ctx, client, base, offset, pageSize)
		if err != nil {
			return nil, err
		}
		for _, r := range page.Rows {
			token, _ := r.Row["Slang"].(string)
			desc, _ := r.Row["Description"].(string)
			entries = append(entries, Entry{Token: token, Meanings: []string{desc}})
		}
		total := page.NumRowsTotal
		if l.MaxRows > 0 && (total == 0 || total > l.MaxRows) {
			total = l.MaxRows
		}
		if len(page.Rows) == 0 || offset+pageSize >= total {
			break
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("slang dataset %s returned no rows", firstNonEmpty(l.Dataset, DefaultHFDataset))
	}
	return NewLexicon(entries), nil
}

func (l HuggingFaceLoader) fetchPage(ctx context.Context, client *http.Client, base string, offset, length int) (hfRowsResponse, error) {
	q := url.Values{}
	q.Set("dataset", firstNonEmpty(l.Dataset, DefaultHFDataset))
	q.Set("config", firstNonEmpty(l.Config, "default"))
	q.Set("split", firstNonEmpty(l.Split, "train"))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(length))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/rows?"+q.Encode(), nil)
	if err != nil {
		return hfRowsResponse{}, err
	}
	if l.Token != "" {
		req.Header.Set("Authorization", "Bearer "+l.Token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return hfRowsResponse{}, fmt.Errorf("fetch slang rows: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return hfRowsResponse{}, fmt.Errorf("slang dataset status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out hfRowsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return hfRowsResponse{}, fmt.Errorf("decode slang rows: %w", err)
	}
	if out.Error != "" {
		return hfRowsResponse{}, fmt.Errorf("slang dataset error: %s", out.Error)
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
