/*
Package label holds the fixed label vocabulary and maps labels to overlay images.

A Catalog is loaded once at startup from a YAML manifest (the embedded default or an
operator-supplied file) and is read-only afterwards.
*/
package label

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var defaultManifest []byte

var (
	// ErrInvalidLabel is returned for an index outside 1..N.
	ErrInvalidLabel = errors.New("label: index out of range")

	// ErrUnrecognizedLabel is returned when text is not in the vocabulary.
	ErrUnrecognizedLabel = errors.New("label: unrecognized label text")

	// ErrInvalidCatalog is returned when a manifest breaks the catalog invariants.
	ErrInvalidCatalog = errors.New("label: invalid catalog")
)

// Index identifies a label, 1-based.
type Index int

// DefaultIndex is assigned to users on follow.
const DefaultIndex Index = 1

// String renders the index the way it is persisted: two digits, zero padded.
func (i Index) String() string {
	return fmt.Sprintf("%02d", int(i))
}

// ParseIndex parses the persisted form produced by Index.String.
func ParseIndex(s string) (Index, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLabel, s)
	}
	return Index(n), nil
}

// Entry is one label of the vocabulary.
type Entry struct {
	Index      Index  `yaml:"index"`
	Text       string `yaml:"text"`
	Overlay    string `yaml:"overlay"`
	RichMenuID string `yaml:"rich_menu_id"`
}

type manifest struct {
	Labels []Entry `yaml:"labels"`
}

// Catalog is the ordered label vocabulary.
type Catalog struct {
	entries    []Entry
	byText     map[string]Index
	overlayDir string
}

// Default returns the built-in catalog with overlays resolved under overlayDir.
func Default(overlayDir string) (*Catalog, error) {
	return Parse(defaultManifest, overlayDir)
}

// LoadFile reads a manifest from path.
func LoadFile(path, overlayDir string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label catalog: %w", err)
	}
	return Parse(data, overlayDir)
}

// Parse decodes a YAML manifest and validates its structure: indexes must be
// exactly 1..N in order, texts unique and non-empty, overlays plain file names.
func Parse(data []byte, overlayDir string) (*Catalog, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(m.Labels) == 0 {
		return nil, fmt.Errorf("%w: no labels", ErrInvalidCatalog)
	}

	c := &Catalog{
		entries:    m.Labels,
		byText:     make(map[string]Index, len(m.Labels)),
		overlayDir: overlayDir,
	}

	for i, e := range m.Labels {
		if e.Index != Index(i+1) {
			return nil, fmt.Errorf("%w: entry %d has index %d, want %d", ErrInvalidCatalog, i, e.Index, i+1)
		}
		if e.Text == "" {
			return nil, fmt.Errorf("%w: label %d has empty text", ErrInvalidCatalog, e.Index)
		}
		if _, dup := c.byText[e.Text]; dup {
			return nil, fmt.Errorf("%w: duplicate label text %q", ErrInvalidCatalog, e.Text)
		}
		if e.Overlay == "" || filepath.Base(e.Overlay) != e.Overlay {
			return nil, fmt.Errorf("%w: label %d overlay %q must be a plain file name", ErrInvalidCatalog, e.Index, e.Overlay)
		}
		c.byText[e.Text] = e.Index
	}

	return c, nil
}

// RequireRichMenus checks that every label names a rich menu, so the menus
// linked on the platform cannot silently drift from the vocabulary.
func (c *Catalog) RequireRichMenus() error {
	for _, e := range c.entries {
		if e.RichMenuID == "" {
			return fmt.Errorf("%w: label %d (%s) has no rich_menu_id", ErrInvalidCatalog, e.Index, e.Text)
		}
	}
	return nil
}

// Len returns the number of labels.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the vocabulary in index order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Entry returns the label at index.
func (c *Catalog) Entry(i Index) (Entry, error) {
	if i < 1 || int(i) > len(c.entries) {
		return Entry{}, fmt.Errorf("%w: %d", ErrInvalidLabel, i)
	}
	return c.entries[i-1], nil
}

// Resolve returns the overlay image path for index.
func (c *Catalog) Resolve(i Index) (string, error) {
	e, err := c.Entry(i)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.overlayDir, e.Overlay), nil
}

// IndexOf maps an exact label text to its index.
func (c *Catalog) IndexOf(text string) (Index, error) {
	i, ok := c.byText[text]
	if !ok {
		return 0, ErrUnrecognizedLabel
	}
	return i, nil
}

// CheckOverlays verifies that every overlay file exists, so a broken
// deployment fails at startup rather than on the first photo.
func (c *Catalog) CheckOverlays() error {
	var errs []error
	for _, e := range c.entries {
		path := filepath.Join(c.overlayDir, e.Overlay)
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("overlay for label %d (%s): %w", e.Index, e.Text, err))
		}
	}
	return errors.Join(errs...)
}
