// Package store persists book scripts as xz-compressed JSON files.
//
// A file holds an envelope with a format tag, a version and the BLAKE3
// digest of the book payload. Load rejects files whose digest does not match
// or whose payload does not conform to the embedded schema.
package store

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/xeipuuv/gojsonschema"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
	"github.com/FocuswithJustin/JuniperScript/core/script"
	"github.com/FocuswithJustin/JuniperScript/internal/fileutil"
	"github.com/FocuswithJustin/JuniperScript/internal/logging"
)

const (
	// Format tags every script file.
	Format = "juniper-script"
	// Version is the envelope version written by Save.
	Version = 1

	digestPrefix = "blake3:"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// Injectable for tests.
var (
	writeFile     = fileutil.WriteFileAtomic
	xzNewWriter   = xz.NewWriter
	xzNewReader   = xz.NewReader
	jsonMarshalFn = json.Marshal
)

type envelope struct {
	Format  string          `json:"format"`
	Version int             `json:"version"`
	Digest  string          `json:"digest"`
	Book    json.RawMessage `json:"book"`
}

// Digest returns the BLAKE3 digest of payload as written in envelopes.
func Digest(payload []byte) string {
	sum := blake3.Sum256(payload)
	return digestPrefix + hex.EncodeToString(sum[:])
}

// Encode writes book to w in the compressed envelope format.
func Encode(w io.Writer, book *script.BookScript) error {
	if book == nil {
		return errors.NewValidation("book", "nothing to save")
	}
	payload, err := jsonMarshalFn(book)
	if err != nil {
		return errors.Wrap(err, "encode book")
	}
	data, err := jsonMarshalFn(envelope{Format: Format, Version: Version, Digest: Digest(payload), Book: payload})
	if err != nil {
		return errors.Wrap(err, "encode envelope")
	}
	zw, err := xzNewWriter(w)
	if err != nil {
		return errors.Wrap(err, "create xz writer")
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return errors.Wrap(err, "compress")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "compress")
	}
	return nil
}

// Decode reads a book written by Encode.
func Decode(r io.Reader) (*script.BookScript, error) {
	zr, err := xzNewReader(r)
	if err != nil {
		return nil, errors.NewParse(Format, "", "not xz data: "+err.Error())
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.NewParse(Format, "", "decompress: "+err.Error())
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.NewParse(Format, "", "envelope: "+err.Error())
	}
	if env.Format != Format {
		return nil, errors.NewParse(Format, "", fmt.Sprintf("unexpected format %q", env.Format))
	}
	if env.Version < 1 || env.Version > Version {
		return nil, errors.NewUnsupported("script file version", fmt.Sprintf("version %d", env.Version))
	}
	if !strings.HasPrefix(env.Digest, digestPrefix) {
		return nil, errors.NewParse(Format, "", "digest is not BLAKE3")
	}
	if got := Digest(env.Book); got != env.Digest {
		return nil, errors.NewParse(Format, "", fmt.Sprintf("digest mismatch: have %s, want %s", got, env.Digest))
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(env.Book))
	if err != nil {
		return nil, errors.NewParse(Format, "", "schema: "+err.Error())
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.NewParse(Format, "", "book does not match schema: "+strings.Join(msgs, "; "))
	}

	var book script.BookScript
	if err := json.Unmarshal(env.Book, &book); err != nil {
		return nil, errors.NewParse(Format, "", err.Error())
	}
	return &book, nil
}

// Save writes book to path. The file is replaced atomically.
func Save(path string, book *script.BookScript) error {
	var buf bytes.Buffer
	if err := Encode(&buf, book); err != nil {
		return err
	}

	if err := writeFile(path, buf.Bytes(), 0o644); err != nil {
		return err
	}

	logging.Debug("script_saved", "path", path, "book", book.BookID, "blocks", len(book.Blocks), "bytes", buf.Len())
	return nil
}

// Load reads a book saved with Save.
func Load(path string) (*script.BookScript, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("script file", path)
		}
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	book, err := Decode(f)
	if err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return book, nil
}
