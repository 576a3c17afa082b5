package notebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrCorruptCollection indicates that a persisted collection could not be decoded.
var ErrCorruptCollection = errors.New("notebook: corrupt collection")

const (
	tabsSchemaURL  = "notebook://schemas/tabs.json"
	notesSchemaURL = "notebook://schemas/notes.json"

	tabsSchemaDocument = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name"],
    "properties": {
      "id": {"type": "string", "minLength": 1, "maxLength": 190},
      "name": {"type": "string"},
      "createdAt": {"type": "string"}
    }
  }
}`

	notesSchemaDocument = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "tabId"],
    "properties": {
      "id": {"type": "string", "minLength": 1, "maxLength": 190},
      "title": {"type": "string"},
      "content": {"type": "string"},
      "tabId": {"type": "string", "minLength": 1},
      "createdAt": {"type": "string"},
      "updatedAt": {"type": "string"}
    }
  }
}`
)

type collectionSchemas struct {
	tabs  *jsonschema.Schema
	notes *jsonschema.Schema
}

var loadCollectionSchemas = sync.OnceValues(func() (collectionSchemas, error) {
	compiler := jsonschema.NewCompiler()
	for url, document := range map[string]string{
		tabsSchemaURL:  tabsSchemaDocument,
		notesSchemaURL: notesSchemaDocument,
	} {
		parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(document))
		if err != nil {
			return collectionSchemas{}, err
		}
		if err := compiler.AddResource(url, parsed); err != nil {
			return collectionSchemas{}, err
		}
	}
	tabs, err := compiler.Compile(tabsSchemaURL)
	if err != nil {
		return collectionSchemas{}, err
	}
	notes, err := compiler.Compile(notesSchemaURL)
	if err != nil {
		return collectionSchemas{}, err
	}
	return collectionSchemas{tabs: tabs, notes: notes}, nil
})

// EncodeTabs serializes tabs as a JSON array.
func EncodeTabs(tabs []Tab) (string, error) {
	if tabs == nil {
		tabs = []Tab{}
	}
	encoded, err := json.Marshal(tabs)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// EncodeNotes serializes notes as a JSON array.
func EncodeNotes(notes []Note) (string, error) {
	if notes == nil {
		notes = []Note{}
	}
	encoded, err := json.Marshal(notes)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// DecodeTabs parses a persisted tab collection. An empty value decodes to an
// empty collection; anything malformed yields ErrCorruptCollection.
func DecodeTabs(raw string) ([]Tab, error) {
	tabs := []Tab{}
	if err := decodeCollection(raw, "tabs", func(schemas collectionSchemas) *jsonschema.Schema { return schemas.tabs }, &tabs); err != nil {
		return nil, err
	}
	return tabs, nil
}

// DecodeNotes parses a persisted note collection. An empty value decodes to an
// empty collection; anything malformed yields ErrCorruptCollection.
func DecodeNotes(raw string) ([]Note, error) {
	notes := []Note{}
	if err := decodeCollection(raw, "notes", func(schemas collectionSchemas) *jsonschema.Schema { return schemas.notes }, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func decodeCollection(raw, name string, pick func(collectionSchemas) *jsonschema.Schema, target any) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	schemas, err := loadCollectionSchemas()
	if err != nil {
		return fmt.Errorf("notebook: compile %s schema: %w", name, err)
	}
	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptCollection, name, err)
	}
	if err := pick(schemas).Validate(instance); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptCollection, name, err)
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptCollection, name, err)
	}
	return nil
}
