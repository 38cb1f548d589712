// Package messages provides the localized message catalog for every notice
// the broker emits. Texts live in messages_{language}.yml files, carry
// {placeholder} variables and legacy &-style color codes (including
// &#RRGGBB hex colors), and are rendered to ANSI-colored terminal text.
//
// Rendering happens entirely at this boundary: the broker core only ever
// passes fully rendered strings to notification sinks.
package messages

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var hexPattern = regexp.MustCompile(`&#([A-Fa-f0-9]{6})`)

// ANSI SGR codes for the legacy &0-&f color palette.
var legacyColors = map[byte]string{
	'0': "30", '1': "34", '2': "32", '3': "36",
	'4': "31", '5': "35", '6': "33", '7': "37",
	'8': "90", '9': "94", 'a': "92", 'b': "96",
	'c': "91", 'd': "95", 'e': "93", 'f': "97",
}

// ANSI SGR codes for the legacy formatting codes. &k (obfuscated) has no
// terminal equivalent and is dropped.
var legacyFormats = map[byte]string{
	'l': "1", 'm': "9", 'n': "4", 'o': "3", 'r': "0",
}

// defaults is the built-in English catalog, used when no message file exists
// and as the fallback for keys a file does not override.
var defaults = map[string]string{
	"prefix":                "&8[&5Abyss&8]&r ",
	"window.opened":         "{prefix}&aThe abyss has opened! It closes in &e{seconds}&a seconds.",
	"window.closing":        "{prefix}&eThe abyss closes in &c{seconds}&e seconds!",
	"window.closed":         "{prefix}&cThe abyss has closed.",
	"sweep.items-collected": "{prefix}&7The abyss swallowed &e{amount}&7 items.",
	"session.item-added":    "{prefix}&aItem cast into the abyss.",
	"session.item-taken":    "{prefix}&aItem retrieved from the abyss.",
	"session.closing":       "{prefix}&eYour view closes in &c{seconds}&e seconds.",
	"errors.inventory-full": "{prefix}&cYour inventory is full - the item fell back into the abyss.",
	"errors.window-closed":  "{prefix}&cThe abyss is closed right now.",
}

// Catalog is a reloadable message catalog. Safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]string
}

// Default creates a catalog holding only the built-in messages.
func Default() *Catalog {
	entries := make(map[string]string, len(defaults))
	for key, text := range defaults {
		entries[key] = text
	}
	return &Catalog{entries: entries}
}

// Load creates a catalog from messages_{language}.yml in dir, layered over
// the built-in defaults. A missing file is not an error - the defaults
// apply; a present but malformed file is.
func Load(dir, language string) (*Catalog, error) {
	c := Default()
	if err := c.Reload(dir, language); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the message file, replacing previous overrides while
// keeping the built-in defaults as fallback.
func (c *Catalog) Reload(dir, language string) error {
	path := filepath.Join(dir, fmt.Sprintf("messages_%s.yml", language))

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c.mu.Lock()
		c.resetLocked()
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read messages: %w", err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to parse messages YAML: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	flatten("", tree, c.entries)
	return nil
}

func (c *Catalog) resetLocked() {
	c.entries = make(map[string]string, len(defaults))
	for key, text := range defaults {
		c.entries[key] = text
	}
}

// flatten turns nested YAML maps into dotted-path keys.
func flatten(prefix string, tree map[string]any, out map[string]string) {
	for key, value := range tree {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]any:
			flatten(path, v, out)
		case string:
			out[path] = v
		default:
			out[path] = fmt.Sprintf("%v", v)
		}
	}
}

// Get returns the rendered message at the dotted path, with {prefix}
// substituted and color codes translated.
func (c *Catalog) Get(path string) string {
	return c.Render(path)
}

// Render returns the rendered message at the dotted path with the given
// placeholder replacements applied. Replacements are key/value pairs:
// Render("window.closing", "seconds", "5").
func (c *Catalog) Render(path string, replacements ...string) string {
	c.mu.RLock()
	text, ok := c.entries[path]
	prefix := c.entries["prefix"]
	c.mu.RUnlock()

	if !ok {
		return Colorize("&cmissing message: " + path)
	}

	text = strings.ReplaceAll(text, "{prefix}", prefix)
	for i := 0; i+1 < len(replacements); i += 2 {
		text = strings.ReplaceAll(text, "{"+replacements[i]+"}", replacements[i+1])
	}

	return Colorize(text)
}

// Colorize translates legacy &-codes and &#RRGGBB hex codes into ANSI
// escapes. When color output is disabled (color.NoColor, e.g. via the
// NO_COLOR environment variable) the codes are stripped instead.
func Colorize(text string) string {
	if text == "" {
		return text
	}

	if color.NoColor {
		return Strip(text)
	}

	text = hexPattern.ReplaceAllStringFunc(text, func(match string) string {
		r, _ := strconv.ParseUint(match[2:4], 16, 8)
		g, _ := strconv.ParseUint(match[4:6], 16, 8)
		b, _ := strconv.ParseUint(match[6:8], 16, 8)
		return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", r, g, b)
	})

	var sb strings.Builder
	applied := false
	for i := 0; i < len(text); i++ {
		if text[i] != '&' || i+1 >= len(text) {
			sb.WriteByte(text[i])
			continue
		}

		code := lowerByte(text[i+1])
		if sgr, ok := legacyColors[code]; ok {
			sb.WriteString("\x1b[" + sgr + "m")
			applied = true
			i++
			continue
		}
		if sgr, ok := legacyFormats[code]; ok {
			sb.WriteString("\x1b[" + sgr + "m")
			applied = true
			i++
			continue
		}
		if code == 'k' {
			i++
			continue
		}

		sb.WriteByte(text[i])
	}

	out := sb.String()
	if applied || strings.Contains(out, "\x1b[38;2;") {
		out += "\x1b[0m"
	}
	return out
}

// Strip removes legacy &-codes and hex codes without translating them.
func Strip(text string) string {
	text = hexPattern.ReplaceAllString(text, "")

	var sb strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] == '&' && i+1 < len(text) {
			code := lowerByte(text[i+1])
			_, isColor := legacyColors[code]
			_, isFormat := legacyFormats[code]
			if isColor || isFormat || code == 'k' {
				i++
				continue
			}
		}
		sb.WriteByte(text[i])
	}
	return sb.String()
}

func lowerByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
