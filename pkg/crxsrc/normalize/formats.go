package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/yosssi/gohtml"
)

// Script reprints JavaScript with one statement per line and two-space
// indentation.
type Script struct{}

// Name implements Normalizer.
func (Script) Name() string { return "script" }

// Normalize implements Normalizer.
func (Script) Normalize(src []byte) ([]byte, error) {
	result := api.Transform(string(src), api.TransformOptions{
		Loader:        api.LoaderJS,
		Charset:       api.CharsetUTF8,
		LegalComments: api.LegalCommentsInline,
		LogLevel:      api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		if msg.Location != nil {
			return nil, fmt.Errorf("line %d:%d: %s", msg.Location.Line, msg.Location.Column, msg.Text)
		}
		return nil, errors.New(msg.Text)
	}
	return result.Code, nil
}

// Markup indents HTML documents.
type Markup struct{}

// Name implements Normalizer.
func (Markup) Name() string { return "markup" }

// Normalize implements Normalizer.
func (Markup) Normalize(src []byte) ([]byte, error) {
	return []byte(gohtml.Format(string(src))), nil
}

// JSON re-serializes a JSON document with two-space indentation. Key order
// and number literals are kept as written.
type JSON struct{}

// Name implements Normalizer.
func (JSON) Name() string { return "json" }

// Normalize implements Normalizer.
func (JSON) Normalize(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimPrefix(src, []byte("\xef\xbb\xbf")), "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
