package config

import (
	"errors"
	"os"
	"sync"

	"github.com/goccy/go-yaml"
)

// Handler loads and persists the yaml configuration file.
type Handler struct {
	path string

	mu   sync.Mutex
	conf *Root
}

func NewHandler(path string) *Handler {
	return &Handler{path: path}
}

// Get returns the parsed configuration, loading it from disk on first use.
// A missing file yields the defaults.
func (h *Handler) Get() (*Root, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conf != nil {
		return h.conf, nil
	}

	r := &Root{}
	b, err := os.ReadFile(h.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(b, r); err != nil {
			return nil, err
		}
	}

	h.conf = AddDefaults(r)
	return h.conf, nil
}

func (h *Handler) Save(r *Root) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, err := yaml.Marshal(r)
	if err != nil {
		return err
	}

	if err := os.WriteFile(h.path, b, 0644); err != nil {
		return err
	}

	h.conf = r
	return nil
}
