package slo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/appclacks/sloworker/internal/validator"
	"github.com/appclacks/sloworker/pkg/slo/aggregates"
	"gopkg.in/yaml.v3"
)

const (
	rootKey             = "SLOs"
	urlKey              = "url"
	successThresholdKey = "successful-responses-SLO"
	fastThresholdKey    = "fast-responses-SLO"
)

// Load parses an SLO document. The document must contain a top-level SLOs
// list; thresholds may be written as numbers or as decimal strings.
func Load(source io.Reader) ([]aggregates.Definition, error) {
	var document any
	err := yaml.NewDecoder(source).Decode(&document)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrConfigParse, err.Error())
	}
	root, ok := document.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: the document should be a mapping with a %s key", ErrConfigFormat, rootKey)
	}
	rawEntries, ok := root[rootKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing top-level key %s", ErrConfigFormat, rootKey)
	}
	entries, ok := rawEntries.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s should be a list", ErrConfigFormat, rootKey)
	}
	definitions := make([]aggregates.Definition, 0, len(entries))
	for i, rawEntry := range entries {
		definition, err := toDefinition(rawEntry)
		if err != nil {
			return nil, fmt.Errorf("%w (entry %d)", err, i)
		}
		definitions = append(definitions, definition)
	}
	return definitions, nil
}

func toDefinition(rawEntry any) (aggregates.Definition, error) {
	entry, ok := rawEntry.(map[string]any)
	if !ok {
		return aggregates.Definition{}, fmt.Errorf("%w: SLO entries should be mappings", ErrConfigFormat)
	}
	rawURL, ok := entry[urlKey]
	if !ok {
		return aggregates.Definition{}, fmt.Errorf("%w: missing field %s", ErrConfigFormat, urlKey)
	}
	url, ok := rawURL.(string)
	if !ok {
		return aggregates.Definition{}, fmt.Errorf("%w: field %s should be a string", ErrConfigFormat, urlKey)
	}
	success, err := threshold(entry, successThresholdKey)
	if err != nil {
		return aggregates.Definition{}, err
	}
	fast, err := threshold(entry, fastThresholdKey)
	if err != nil {
		return aggregates.Definition{}, err
	}
	definition := aggregates.Definition{
		URL:                  url,
		SuccessRateThreshold: success,
		FastRateThreshold:    fast,
	}
	err = validator.Validator.Struct(definition)
	if err != nil {
		return aggregates.Definition{}, fmt.Errorf("%w: %s", ErrConfigFormat, err.Error())
	}
	return definition, nil
}

func threshold(entry map[string]any, key string) (float64, error) {
	raw, ok := entry[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %s", ErrConfigFormat, key)
	}
	switch value := raw.(type) {
	case float64:
		return value, nil
	case int:
		return float64(value), nil
	case string:
		result, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %s is not a number: %q", ErrConfigFormat, key, value)
		}
		return result, nil
	default:
		return 0, fmt.Errorf("%w: field %s is not a number", ErrConfigFormat, key)
	}
}

// LoadFile reads and parses the SLO document at path.
func LoadFile(path string) ([]aggregates.Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fail to read SLO file %s: %w", path, err)
	}
	return Load(bytes.NewReader(content))
}

// HasChangedSince reports whether the file at path was modified after t.
func HasChangedSince(path string, t time.Time) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("fail to stat SLO file %s: %w", path, err)
	}
	return info.ModTime().After(t), nil
}

// ConfigStore keeps the last loaded definitions of an SLO file and reloads
// them when the file modification time moves past the last load.
type ConfigStore struct {
	path        string
	lock        sync.RWMutex
	definitions []aggregates.Definition
	lastLoad    time.Time
	now         func() time.Time
}

func NewConfigStore(path string) *ConfigStore {
	return &ConfigStore{
		path:     path,
		lastLoad: time.Unix(0, 0).UTC(),
		now:      time.Now,
	}
}

func (c *ConfigStore) Path() string {
	return c.path
}

// Refresh reloads the definitions if the file changed since the last load.
// The previous definitions are kept when loading fails.
func (c *ConfigStore) Refresh() (bool, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	changed, err := HasChangedSince(c.path, c.lastLoad)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	loadedAt := c.now()
	definitions, err := LoadFile(c.path)
	if err != nil {
		return false, err
	}
	c.definitions = definitions
	c.lastLoad = loadedAt
	return true, nil
}

// Definitions returns the definitions of the last successful load. The
// returned slice is replaced, never mutated, on reload.
func (c *ConfigStore) Definitions() []aggregates.Definition {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.definitions
}

func URLs(definitions []aggregates.Definition) []string {
	result := make([]string, 0, len(definitions))
	for _, definition := range definitions {
		result = append(result, definition.URL)
	}
	return result
}
