// Package i18n resolves message keys and backend error codes to
// user-facing text. Catalogs are nested YAML documents flattened to dotted
// keys ("errors.network").
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var builtin embed.FS

// DefaultLanguage is used when a key is missing in the requested language.
const DefaultLanguage = "en"

// Catalog maps language → dotted key → message.
type Catalog struct {
	mu       sync.RWMutex
	messages map[string]map[string]string
}

// New returns a catalog preloaded with the built-in locales.
func New() (*Catalog, error) {
	c := &Catalog{messages: make(map[string]map[string]string)}
	if err := c.LoadFS(builtin, "locales"); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFS merges every *.yaml file in dir; the file name is the language.
func (c *Catalog) LoadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		if err := c.Merge(strings.TrimSuffix(e.Name(), ".yaml"), data); err != nil {
			return fmt.Errorf("locale %s: %w", e.Name(), err)
		}
	}
	return nil
}

// LoadFile merges a single YAML catalog for lang.
func (c *Catalog) LoadFile(lang, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	return c.Merge(lang, data)
}

// Merge adds the YAML document data to lang, overriding existing keys.
func (c *Catalog) Merge(lang string, data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}

	flat := make(map[string]string)
	flatten("", doc, flat)

	c.mu.Lock()
	defer c.mu.Unlock()
	dst, ok := c.messages[lang]
	if !ok {
		dst = make(map[string]string, len(flat))
		c.messages[lang] = dst
	}
	for k, v := range flat {
		dst[k] = v
	}
	return nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Lookup returns the message for key in lang, falling back to the base
// language of a regional tag ("vi-VN" → "vi") and then DefaultLanguage.
func (c *Catalog) Lookup(lang, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, l := range candidates(lang) {
		if msg, ok := c.messages[l][key]; ok {
			return msg, true
		}
	}
	return "", false
}

// T returns the message for key with {name} placeholders replaced from args,
// or key itself when nothing matches.
func (c *Catalog) T(lang, key string, args map[string]any) string {
	msg, ok := c.Lookup(lang, key)
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(args)*2)
	for k, v := range args {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

func candidates(lang string) []string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	out := make([]string, 0, 3)
	if lang != "" {
		out = append(out, lang)
		if base, _, ok := strings.Cut(lang, "-"); ok {
			out = append(out, base)
		}
	}
	return append(out, DefaultLanguage)
}
