package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/agentd/internal/contextstore"
	"github.com/fyrsmithlabs/agentd/internal/tool"
)

const (
	maxFetchBytes = 1 << 20 // 1MB cap on fetched bodies
	maxFileBytes  = 1 << 20
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the built-in tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := tool.NewRegistry()
		if err := registerBuiltinTools(registry); err != nil {
			return err
		}
		for _, entry := range registry.Manifest() {
			fmt.Printf("%-14s %s\n", entry.Name, entry.Description)
		}
		return nil
	},
}

// registerBuiltinTools installs the local tool set.
func registerBuiltinTools(registry *tool.Registry) error {
	defs := []tool.Definition{
		{
			Name:        "read_file",
			Description: "Read a text file from the local filesystem. Returns at most 1MB.",
			Category:    contextstore.CategoryResearch,
			Schema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"path": {Type: "string", Description: "File path to read"},
				},
				Required: []string{"path"},
			},
			Execute: execReadFile,
		},
		{
			Name:        "list_dir",
			Description: "List the entries of a local directory.",
			Category:    contextstore.CategoryResearch,
			Schema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"path": {Type: "string", Description: "Directory path to list"},
				},
				Required: []string{"path"},
			},
			Execute: execListDir,
		},
		{
			Name:        "http_get",
			Description: "Fetch a URL over HTTP GET. Returns the response body as text, at most 1MB.",
			Category:    contextstore.CategoryResearch,
			Schema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"url": {Type: "string", Description: "Absolute http or https URL"},
				},
				Required: []string{"url"},
			},
			Execute: execHTTPGet,
		},
		{
			Name:        "text_stats",
			Description: "Compute word, line, and sentence counts plus the most frequent terms of a text.",
			Category:    contextstore.CategoryAnalysis,
			Schema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"text":      {Type: "string", Description: "Text to analyze"},
					"top_terms": {Type: "integer", Description: "How many frequent terms to return (default 10)"},
				},
				Required: []string{"text"},
			},
			Execute: execTextStats,
		},
		{
			Name:        "current_time",
			Description: "Return the current time in UTC and the local timezone.",
			Category:    contextstore.CategorySpecialized,
			Schema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
			Execute: execCurrentTime,
		},
	}

	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return fmt.Errorf("registering %s: %w", def.Name, err)
		}
	}
	return nil
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

func execReadFile(ctx context.Context, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxFileBytes))
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"path":    path,
		"content": string(data),
		"bytes":   len(data),
	}, nil
}

func execListDir(ctx context.Context, args map[string]any) (any, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += string(filepath.Separator)
		}
		names = append(names, name)
	}

	return map[string]any{
		"path":    path,
		"entries": names,
	}, nil
}

func execHTTPGet(ctx context.Context, args map[string]any) (any, error) {
	url, err := stringArg(args, "url")
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("url must be absolute http or https: %s", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"url":         url,
		"status_code": resp.StatusCode,
		"body":        string(body),
	}, nil
}

func execTextStats(ctx context.Context, args map[string]any) (any, error) {
	text, err := stringArg(args, "text")
	if err != nil {
		return nil, err
	}

	topN := 10
	if v, ok := args["top_terms"]; ok {
		if f, ok := v.(float64); ok && f > 0 {
			topN = int(f)
		}
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	freq := make(map[string]int)
	for _, w := range words {
		if len(w) >= 3 {
			freq[w]++
		}
	}

	terms := make([]string, 0, len(freq))
	for w := range freq {
		terms = append(terms, w)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > topN {
		terms = terms[:topN]
	}

	top := make([]map[string]any, 0, len(terms))
	for _, w := range terms {
		top = append(top, map[string]any{"term": w, "count": freq[w]})
	}

	return map[string]any{
		"words":     len(words),
		"lines":     strings.Count(text, "\n") + 1,
		"sentences": strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?"),
		"top_terms": top,
	}, nil
}

func execCurrentTime(ctx context.Context, args map[string]any) (any, error) {
	now := time.Now()
	return map[string]any{
		"utc":   now.UTC().Format(time.RFC3339),
		"local": now.Format(time.RFC3339),
		"zone":  now.Location().String(),
	}, nil
}
