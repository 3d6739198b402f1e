package cardsrv

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/logx"
	"gopkg.in/yaml.v3"
)

// Overrides maps lowercase words to hand-written prompts read from a YAML
// file. The file is re-read whenever its modification time changes; a
// missing or broken file means no overrides.
type Overrides struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	entries map[string]string
}

func NewOverrides(path string) *Overrides {
	return &Overrides{path: path}
}

// Lookup returns the override for word, if any
func (o *Overrides) Lookup(word string) (string, bool) {
	if o == nil || o.path == "" {
		return "", false
	}
	entries := o.load()
	prompt, ok := entries[normalizeWord(word)]
	if !ok || strings.TrimSpace(prompt) == "" {
		return "", false
	}
	return prompt, true
}

// Len returns the number of loaded overrides
func (o *Overrides) Len() int {
	if o == nil || o.path == "" {
		return 0
	}
	return len(o.load())
}

func (o *Overrides) load() map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()

	info, err := os.Stat(o.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logx.WithError(err).WithField("path", o.path).Warn("Cannot stat prompt overrides")
		}
		o.entries = nil
		o.modTime = time.Time{}
		return nil
	}

	if o.entries != nil && info.ModTime().Equal(o.modTime) {
		return o.entries
	}

	data, err := os.ReadFile(o.path)
	if err != nil {
		logx.WithError(err).WithField("path", o.path).Warn("Cannot read prompt overrides")
		return o.entries
	}

	raw := map[string]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		logx.WithError(err).WithField("path", o.path).Warn("Invalid prompt overrides file")
		return o.entries
	}

	entries := make(map[string]string, len(raw))
	for word, prompt := range raw {
		entries[normalizeWord(word)] = strings.TrimSpace(prompt)
	}
	o.entries = entries
	o.modTime = info.ModTime()

	logx.WithField("count", len(entries)).Info("Loaded prompt overrides")
	return o.entries
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimSpace(w))
}
