package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// JSONFile is the spec-normative persistence backend (spec 6.2): a single
// JSON object `{format_version, inner: {downloads: [[url, entry], ...]}}`
// at a caller-supplied path, written atomically via write-to-temp-then-
// rename.
type JSONFile struct {
	Path string
}

type wireFile struct {
	FormatVersion int        `json:"format_version"`
	Inner         wireInner  `json:"inner"`
}

type wireInner struct {
	Downloads []wireDownloadPair `json:"downloads"`
}

// wireDownloadPair encodes as the two-element JSON array [url, entry] the
// format mandates.
type wireDownloadPair struct {
	URL   string
	Entry wireEntry
}

func (p wireDownloadPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.URL, p.Entry})
}

func (p *wireDownloadPair) UnmarshalJSON(b []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &p.URL); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &p.Entry)
}

type wireEntry struct {
	ExecutionTime time.Duration  `json:"execution_time"`
	Expires       *time.Time     `json:"expires,omitempty"`
	ETag          *string        `json:"etag,omitempty"`
	Deps          []uint8        `json:"deps"`
	Value         wireValue      `json:"value"`
}

type wireValue struct {
	Kind PersistentValueKind `json:"kind"`

	Boolean bool   `json:"boolean,omitempty"`
	Integer string `json:"integer,omitempty"`
	String  string `json:"string,omitempty"`

	RecordKeys   []string    `json:"record_keys,omitempty"`
	RecordValues []wireValue `json:"record_values,omitempty"`

	GeneratedAreaID uint64 `json:"generated_area_id,omitempty"`
	GeneratedPath   string `json:"generated_path,omitempty"`
}

func toWireValue(pv PersistentValue) wireValue {
	w := wireValue{
		Kind:            pv.Kind,
		Boolean:         pv.Boolean,
		Integer:         pv.Integer,
		String:          pv.String,
		RecordKeys:      pv.RecordKeys,
		GeneratedAreaID: pv.GeneratedAreaID,
		GeneratedPath:   pv.GeneratedPath,
	}
	for _, rv := range pv.RecordValues {
		w.RecordValues = append(w.RecordValues, toWireValue(rv))
	}
	return w
}

func fromWireValue(w wireValue) PersistentValue {
	pv := PersistentValue{
		Kind:            w.Kind,
		Boolean:         w.Boolean,
		Integer:         w.Integer,
		String:          w.String,
		RecordKeys:      w.RecordKeys,
		GeneratedAreaID: w.GeneratedAreaID,
		GeneratedPath:   w.GeneratedPath,
	}
	for _, rv := range w.RecordValues {
		pv.RecordValues = append(pv.RecordValues, fromWireValue(rv))
	}
	return pv
}

// Save writes entries atomically: to a temp file in the same directory,
// then os.Rename over the target (spec 4.5: "recommended but not
// mandated"; implemented here).
func (j JSONFile) Save(entries []PersistedEntry) error {
	file := wireFile{FormatVersion: FormatVersion}
	for _, e := range entries {
		file.Inner.Downloads = append(file.Inner.Downloads, wireDownloadPair{
			URL: e.URL,
			Entry: wireEntry{
				ExecutionTime: e.ExecutionTime,
				Expires:       e.Expires,
				ETag:          e.ETag,
				Deps:          e.Deps,
				Value:         toWireValue(e.Value),
			},
		})
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal: %w", err)
	}

	dir := filepath.Dir(j.Path)
	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("persistence: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persistence: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persistence: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, j.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persistence: rename temp file: %w", err)
	}
	return nil
}

// Load reads entries. A missing file is not an error (spec 4.5): it
// yields an empty, nil-error result. A format_version mismatch rejects
// the whole file with ErrFormatVersionMismatch.
func (j JSONFile) Load() ([]PersistedEntry, error) {
	data, err := os.ReadFile(j.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: read file: %w", err)
	}

	var file wireFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal: %w", err)
	}
	if file.FormatVersion != FormatVersion {
		return nil, ErrFormatVersionMismatch
	}

	entries := make([]PersistedEntry, 0, len(file.Inner.Downloads))
	for _, pair := range file.Inner.Downloads {
		entries = append(entries, PersistedEntry{
			URL:           pair.URL,
			ExecutionTime: pair.Entry.ExecutionTime,
			Expires:       pair.Entry.Expires,
			ETag:          pair.Entry.ETag,
			Deps:          pair.Entry.Deps,
			Value:         fromWireValue(pair.Entry.Value),
		})
	}
	return entries, nil
}
