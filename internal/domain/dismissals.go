package domain

import (
	"strings"

	"github.com/samber/lo"
)

// MaxDismissals bounds the recent-dismissal list.
const MaxDismissals = 100

// Dismissals is the recent-dismissal list, oldest first.
type Dismissals struct {
	URLs []string `json:"urls"`
}

// NewDismissals rebuilds a list from stored urls, dropping blanks and
// duplicates (the later occurrence wins) and evicting past MaxDismissals.
func NewDismissals(urls []string) Dismissals {
	var d Dismissals
	for _, u := range urls {
		d.Add(u)
	}
	return d
}

// Add records url as the most recent dismissal. A url already present
// moves to the end instead of being duplicated.
func (d *Dismissals) Add(url string) {
	url = strings.TrimSpace(url)
	if url == "" {
		return
	}
	d.URLs = append(lo.Without(d.URLs, url), url)
	if over := len(d.URLs) - MaxDismissals; over > 0 {
		d.URLs = d.URLs[over:]
	}
}

// Contains reports whether url was dismissed recently.
func (d Dismissals) Contains(url string) bool {
	return lo.Contains(d.URLs, strings.TrimSpace(url))
}

// Len returns the number of entries.
func (d Dismissals) Len() int {
	return len(d.URLs)
}
