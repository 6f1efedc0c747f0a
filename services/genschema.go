package services

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema cho cây chủ đề AI đề xuất
const proposalSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "categories": {
      "type": "array",
      "minItems": 1,
      "items": {"$ref": "#/$defs/topicNode"}
    }
  },
  "required": ["categories"],
  "$defs": {
    "topicNode": {
      "type": "object",
      "properties": {
        "title": {"type": "string", "minLength": 1},
        "description": {"type": "string"},
        "subtopics": {
          "type": "array",
          "items": {"$ref": "#/$defs/topicNode"}
        }
      },
      "required": ["title"]
    }
  }
}`

// Schema cho một batch nội dung: map key "topic-<uuid>" -> câu hỏi + flashcard
const batchSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "subtopics": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "questions": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "question": {"type": "string", "minLength": 1},
                "options": {
                  "type": "array",
                  "items": {"type": "string"},
                  "minItems": 4,
                  "maxItems": 4
                },
                "correctAnswer": {"type": "integer", "minimum": 0, "maximum": 3},
                "explanation": {"type": "string"},
                "sourceText": {"type": "string"},
                "sourcePage": {"type": "integer"}
              },
              "required": ["question", "options", "correctAnswer"]
            }
          },
          "flashcards": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "front": {"type": "string", "minLength": 1},
                "back": {"type": "string", "minLength": 1},
                "hint": {"type": "string"}
              },
              "required": ["front", "back"]
            }
          }
        },
        "required": ["questions"]
      }
    }
  },
  "required": ["subtopics"]
}`

const (
	SchemaProposal = "topic-proposal.json"
	SchemaBatch    = "content-batch.json"
)

var (
	schemaOnce  sync.Once
	schemaCache map[string]*jsonschema.Schema
	schemaErr   error
)

func compiledSchema(name string) (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		sources := map[string]string{
			SchemaProposal: proposalSchemaJSON,
			SchemaBatch:    batchSchemaJSON,
		}
		cache := make(map[string]*jsonschema.Schema, len(sources))
		for url, src := range sources {
			doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
			if err != nil {
				schemaErr = fmt.Errorf("đọc schema %s lỗi: %w", url, err)
				return
			}
			if err := compiler.AddResource(url, doc); err != nil {
				schemaErr = fmt.Errorf("nạp schema %s lỗi: %w", url, err)
				return
			}
			sch, err := compiler.Compile(url)
			if err != nil {
				schemaErr = fmt.Errorf("biên dịch schema %s lỗi: %w", url, err)
				return
			}
			cache[url] = sch
		}
		schemaCache = cache
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	sch, ok := schemaCache[name]
	if !ok {
		return nil, fmt.Errorf("không có schema %s", name)
	}
	return sch, nil
}

// ValidateJSON kiểm tra chuỗi JSON theo schema đã đăng ký
func ValidateJSON(schemaName, raw string) error {
	sch, err := compiledSchema(schemaName)
	if err != nil {
		return err
	}
	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return fmt.Errorf("JSON không hợp lệ: %w", err)
	}
	if err := sch.Validate(instance); err != nil {
		return fmt.Errorf("JSON sai cấu trúc: %w", err)
	}
	return nil
}
