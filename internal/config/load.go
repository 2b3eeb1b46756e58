package config

import (
	"os"
	"path/filepath"
	"reflect"

	"github.com/mitchellh/mapstructure"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/forgebuild/forge/internal/ferror"
)

// DocumentName is the fixed filename the resolver looks for under a project root.
const DocumentName = "forge.toml"

// loadDocument reads and decodes one forge.toml file, rejecting unknown keys.
func loadDocument(fsys afero.Fs, path string) (*Document, error) {
	raw, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferror.Wrap(ferror.ConfigMissing, err, "no %s at %s", DocumentName, path)
		}
		return nil, ferror.Wrap(ferror.ConfigParse, err, "reading %s", path)
	}

	var generic map[string]interface{}
	if err := toml.Unmarshal(raw, &generic); err != nil {
		return nil, ferror.Wrap(ferror.ConfigParse, err, "parsing %s", path)
	}

	doc := &Document{}
	meta := &mapstructure.Metadata{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           doc,
		Metadata:         meta,
		WeaklyTypedInput: false,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(stringToStringListHookFunc),
	})
	if err != nil {
		return nil, ferror.Wrap(ferror.ConfigParse, err, "building decoder for %s", path)
	}
	if err := decoder.Decode(generic); err != nil {
		return nil, ferror.Wrap(ferror.ConfigParse, err, "decoding %s", path)
	}
	if len(meta.Unused) > 0 {
		return nil, ferror.New(ferror.ConfigParse, "%s: unknown key %q", path, meta.Unused[0])
	}
	return doc, nil
}

// stringToStringListHookFunc lets a bare TOML string decode into the
// stringList type, the shorthand form of [paths] src/include.
func stringToStringListHookFunc(from reflect.Kind, to reflect.Kind, data interface{}) (interface{}, error) {
	if from != reflect.String || to != reflect.Slice {
		return data, nil
	}
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	return []string{s}, nil
}

// documentPath joins root with the fixed document name.
func documentPath(root string) string {
	return filepath.Join(root, DocumentName)
}
