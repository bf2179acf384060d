package script

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// sceneSlug reduces a file name to a lowercase identifier-safe slug.
var sceneSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

func sceneSlug(name string) string {
	name = strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	slug := strings.Trim(sceneSlugRe.ReplaceAllString(name, "_"), "_")
	if slug == "" {
		slug = "scene"
	}
	// Identifiers must start with a letter; numeric file prefixes are common.
	if slug[0] >= '0' && slug[0] <= '9' {
		slug = "scene_" + slug
	}
	return slug
}

// speakerRe matches an optional "Speaker: text" prefix. Speakers are short
// single tokens; longer prefixes are treated as part of the line.
var speakerRe = regexp.MustCompile(`^([A-Za-z][\w ]{0,24}):\s+(.*)$`)

// Parse reads one scene script. Lines are dialogue or narration; blank
// lines and lines starting with "//" are skipped. A "Speaker: text" prefix
// is split off into Unit.Speaker. Generated identifiers are checked against
// the identifier shape, so a bad scene slug fails ingest instead of
// producing units downstream phases cannot address.
func Parse(scene string, r io.Reader) ([]Unit, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var units []Unit
	n := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		n++
		id := UnitID(scene, n)
		if !ValidID(id) {
			return nil, fmt.Errorf("scene %q yields invalid unit id %q", scene, id)
		}
		u := Unit{ID: id, Scene: scene, Text: line}
		if m := speakerRe.FindStringSubmatch(line); m != nil {
			u.Speaker = strings.TrimSpace(m[1])
			u.Text = m[2]
		}
		units = append(units, u)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", scene, err)
	}
	return units, nil
}

// LoadDir ingests every .txt script under dir, one scene per file, in
// lexical file order. Scene slugs must be unique or identifiers would
// collide across files.
func LoadDir(dir string) ([]Unit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read script dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	seen := make(map[string]string)
	var units []Unit
	for _, name := range names {
		scene := sceneSlug(name)
		if prev, dup := seen[scene]; dup {
			return nil, fmt.Errorf("scene slug %q from %s collides with %s", scene, name, prev)
		}
		seen[scene] = name

		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("open script: %w", err)
		}
		su, perr := Parse(scene, f)
		f.Close()
		if perr != nil {
			return nil, perr
		}
		units = append(units, su...)
	}
	return units, nil
}
