// Package quotebook serves the local quote list and fetches the day's quote
// from it over HTTP.
package quotebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// SourceName tags quotes picked by the catalog.
const SourceName = "date-hash-local"

var (
	ErrFileMissing  = errors.New("quotes_file_missing")
	ErrEmpty        = errors.New("quotes_empty")
	ErrInvalidEntry = errors.New("invalid_quote_entry")
)

// Entry is one item of the quotes JSON file.
type Entry struct {
	Sentence string  `json:"sentence"`
	Author   *string `json:"author"`
	Book     *string `json:"book"`
}

// Pick is a quote chosen for a date.
type Pick struct {
	Sentence string  `json:"sentence"`
	Author   *string `json:"author"`
	Book     *string `json:"book"`
	Index    int     `json:"index"`
	Source   string  `json:"source"`
}

// Catalog picks quotes from a JSON file. The file is read on every pick so
// edits show up without a restart.
type Catalog struct {
	path  string
	epoch time.Time
}

func NewCatalog(path string, epoch time.Time) *Catalog {
	return &Catalog{path: path, epoch: epoch}
}

func (c *Catalog) Load() ([]Entry, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileMissing
		}
		return nil, fmt.Errorf("read quotes file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil || len(entries) == 0 {
		return nil, ErrEmpty
	}
	return entries, nil
}

// PickForDate returns the quote at |days(epoch, date)| mod len. The same date
// always yields the same quote.
func (c *Catalog) PickForDate(date time.Time) (*Pick, error) {
	entries, err := c.Load()
	if err != nil {
		return nil, err
	}

	index := IndexForDate(c.epoch, date, len(entries))
	entry := entries[index]
	if strings.TrimSpace(entry.Sentence) == "" {
		return nil, fmt.Errorf("%w at index %d", ErrInvalidEntry, index)
	}

	return &Pick{
		Sentence: entry.Sentence,
		Author:   entry.Author,
		Book:     entry.Book,
		Index:    index,
		Source:   SourceName,
	}, nil
}

// IndexForDate counts whole calendar days between epoch and date, ignoring
// the time of day and direction.
func IndexForDate(epoch, date time.Time, n int) int {
	if n <= 0 {
		return 0
	}
	from := time.Date(epoch.Year(), epoch.Month(), epoch.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	days := int(to.Sub(from).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days % n
}
