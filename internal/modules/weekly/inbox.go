package weekly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aristath/governor/internal/domain"
	"github.com/rs/zerolog"
)

// FileInbox loads instrument inputs from the *.json files of a directory. Each file
// holds one InstrumentInput or an array of them. Files are read in name order;
// malformed files are skipped.
type FileInbox struct {
	dir string
	log zerolog.Logger
}

// NewFileInbox creates an inbox over dir
func NewFileInbox(dir string, log zerolog.Logger) *FileInbox {
	return &FileInbox{
		dir: dir,
		log: log.With().Str("component", "file_inbox").Logger(),
	}
}

// Load implements domain.InstrumentSource
func (i *FileInbox) Load(ctx context.Context) ([]domain.InstrumentInput, error) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox %s: %w", i.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	inputs := make([]domain.InstrumentInput, 0)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(i.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read inbox file %s: %w", path, err)
		}

		parsed, err := DecodeInputs(data)
		if err != nil {
			i.log.Warn().Err(err).Str("file", name).Msg("Skipping malformed inbox file")
			continue
		}
		inputs = append(inputs, parsed...)
	}

	i.log.Debug().Int("files", len(names)).Int("inputs", len(inputs)).Msg("Inbox loaded")
	return inputs, nil
}

// DecodeInputs decodes a single InstrumentInput or an array of them. Array
// elements decode independently: an element that is not an object still yields
// an input, which resolves to an instrument error.
func DecodeInputs(data []byte) ([]domain.InstrumentInput, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	if trimmed[0] == '[' {
		var elements []json.RawMessage
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return nil, fmt.Errorf("failed to decode inputs: %w", err)
		}
		inputs := make([]domain.InstrumentInput, 0, len(elements))
		for i, element := range elements {
			var input domain.InstrumentInput
			if err := json.Unmarshal(element, &input); err != nil {
				input = domain.MalformedInput(fmt.Errorf("element %d: %w", i, err))
			}
			inputs = append(inputs, input)
		}
		return inputs, nil
	}

	var input domain.InstrumentInput
	if err := json.Unmarshal(trimmed, &input); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	return []domain.InstrumentInput{input}, nil
}
