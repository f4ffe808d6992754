// Package flatfile implements the default storage plugin: it persists a
// backend's KeySet as a small line-oriented text format. Spec §1 scopes
// concrete storage formats (INI/TOML/YAML/JSON/XML) out as opaque
// plugins; this format exists only to make the bootstrap subsystem and
// the rest of the core self-hosting without pulling in a named config
// format, the same way the original ships a minimal default storage
// backend for bootstrapping (spec §4.5, "KDB_DEFAULT_STORAGE").
package flatfile

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/go-elektra/kdb/key"
	"github.com/go-elektra/kdb/keyset"
	"github.com/go-elektra/kdb/plugin"
)

// Name is the symbolic module name this plugin registers under.
const Name = "storage"

// Plugin implements plugin.Plugin's get/set storage phase by reading and
// writing a file named by the parent key's value.
type Plugin struct {
	plugin.Base
}

var _ plugin.Plugin = (*Plugin)(nil)

// New constructs a fresh flat-file storage plugin instance.
func New() plugin.Plugin {
	return &Plugin{}
}

func (p *Plugin) Name() string { return Name }

// Get reads the file named by parentKey's value and populates ks with
// one Key per non-empty line. A missing file is treated as an empty
// keyset: bootstrap must succeed on a fresh installation (spec §8, S1).
func (p *Plugin) Get(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	path := parentKey.ValueString()

	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "flatfile.Get"))
	logger.Debug("start flatfile.Get()", zap.String("path", path))

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		logger.Debug("return from flatfile.Get()", zap.Int("keys", 0))
		return plugin.Success, nil
	}
	if err != nil {
		err = fmt.Errorf("flatfile: could not open %s: %w", path, err)
		logger.Debug("error", zap.Error(err))
		return plugin.Error, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	n := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		k, err := parseLine(line)
		if err != nil {
			err = fmt.Errorf("flatfile: %s: %w", path, err)
			logger.Debug("error", zap.Error(err))
			return plugin.Error, err
		}

		ks.Append(k)
		n++
	}

	if err := scanner.Err(); err != nil {
		err = fmt.Errorf("flatfile: could not read %s: %w", path, err)
		logger.Debug("error", zap.Error(err))
		return plugin.Error, err
	}

	logger.Debug("return from flatfile.Get()", zap.Int("keys", n))

	return plugin.Success, nil
}

// Set serializes every key in ks to the file named by parentKey's value
// (the temporary path produced by the resolver phase).
func (p *Plugin) Set(ks *keyset.KeySet, parentKey *key.Key) (plugin.ReturnCode, error) {
	path := parentKey.ValueString()

	logger := plugin.EffectiveLogger(p.Logger).With(zap.String("operation", "flatfile.Set"))
	logger.Debug("start flatfile.Set()", zap.String("path", path))

	f, err := os.Create(path)
	if err != nil {
		err = fmt.Errorf("flatfile: could not create %s: %w", path, err)
		logger.Debug("error", zap.Error(err))
		return plugin.Error, err
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	n := 0
	for _, k := range ks.List() {
		if k.Namespace() == key.Meta {
			continue
		}

		if _, err := w.WriteString(renderLine(k)); err != nil {
			err = fmt.Errorf("flatfile: could not write %s: %w", path, err)
			logger.Debug("error", zap.Error(err))
			return plugin.Error, err
		}
		n++
	}

	if err := w.Flush(); err != nil {
		err = fmt.Errorf("flatfile: could not flush %s: %w", path, err)
		logger.Debug("error", zap.Error(err))
		return plugin.Error, err
	}

	logger.Debug("return from flatfile.Set()", zap.Int("keys", n))

	return plugin.Success, nil
}

func renderLine(k *key.Key) string {
	kind := "s"
	if k.IsBinary() {
		kind = "b"
	}

	return fmt.Sprintf("%s\t%s\t%s\n", k.Name(), kind, base64.StdEncoding.EncodeToString(k.Value()))
}

func parseLine(line string) (*key.Key, error) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed line %q", line)
	}

	k, err := key.New(parts[0])
	if err != nil {
		return nil, err
	}

	value, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("malformed value in line %q: %w", line, err)
	}

	switch parts[1] {
	case "b":
		if err := k.SetBinary(value); err != nil {
			return nil, err
		}
	case "s":
		if err := k.SetValue(string(value)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown value kind %q in line %q", parts[1], line)
	}

	return k, nil
}
