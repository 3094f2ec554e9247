package specsource

import (
	"encoding/json"
	"fmt"
	"io"
)

// decodeJSON reads a layout object token by token so that columns keep the
// order in which they appear in the file.
func decodeJSON(r io.Reader) ([]columnEntry, error) {
	dec := json.NewDecoder(r)

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var entries []columnEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected column name, got %v", tok)
		}

		var entry columnEntry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		entry.Name = name
		entries = append(entries, entry)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return entries, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
