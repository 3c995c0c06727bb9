// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// recordSchema is the contract every oracle response must satisfy.
// Only blocking_error, next_allowed_step and email_execution_intent are
// mandatory at the top level; the meeting template and the diagnostic
// sections are optional.
const recordSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["blocking_error", "next_allowed_step", "email_execution_intent"],
  "properties": {
    "blocking_error": {"$ref": "#/definitions/blocking_error"},
    "next_allowed_step": {"enum": ["NONE", "TRANSCRIPT_READY"]},
    "email_execution_intent": {
      "type": "object",
      "required": ["intent", "sender", "emails", "blocking_error"],
      "properties": {
        "intent": {"type": "string"},
        "sender": {
          "type": "object",
          "required": ["email", "auth_provider"],
          "properties": {
            "email": {"type": ["string", "null"]},
            "auth_provider": {"type": ["string", "null"]}
          }
        },
        "emails": {"type": "array", "items": {"$ref": "#/definitions/email"}},
        "blocking_error": {"$ref": "#/definitions/blocking_error"}
      }
    },
    "shared_meeting_template": {
      "type": ["object", "null"],
      "properties": {
        "summary": {"type": "string"},
        "agenda_items": {"$ref": "#/definitions/strings"},
        "key_discussions": {"$ref": "#/definitions/strings"},
        "decisions": {"$ref": "#/definitions/strings"},
        "action_items": {"type": "array", "items": {"$ref": "#/definitions/action_item"}}
      }
    },
    "meeting_metadata": {
      "type": ["object", "null"],
      "properties": {
        "meeting_title": {"type": ["string", "null"]},
        "meeting_date": {"type": ["string", "null"]},
        "attendees": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["name"],
            "properties": {
              "name": {"type": "string"},
              "email": {"type": ["string", "null"]}
            }
          }
        }
      }
    },
    "transcript_preview": {"type": ["string", "null"]},
    "next_actions": {"$ref": "#/definitions/strings"}
  },
  "definitions": {
    "strings": {"type": "array", "items": {"type": "string"}},
    "blocking_error": {
      "type": "object",
      "required": ["is_blocking"],
      "properties": {
        "is_blocking": {"type": "boolean"},
        "reason": {"type": ["string", "null"]}
      }
    },
    "email": {
      "type": "object",
      "required": ["to", "subject", "body"],
      "properties": {
        "to": {"type": "string"},
        "subject": {"type": "string"},
        "body": {
          "type": "object",
          "required": ["contentType", "content"],
          "properties": {
            "contentType": {"type": "string", "pattern": "^([Hh][Tt][Mm][Ll]|[Tt][Ee][Xx][Tt])$"},
            "content": {"type": "string"}
          }
        }
      }
    },
    "action_item": {
      "type": "object",
      "required": ["task", "confidence_score"],
      "properties": {
        "task": {"type": "string"},
        "owner": {"type": ["string", "null"]},
        "deadline": {"type": ["string", "null"]},
        "confidence_score": {"type": "number"}
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("orchestration-record.json", recordSchema)

// SchemaError reports a response that does not match the record contract.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("oracle response violates record schema: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// validate checks raw JSON against the record schema.
func validate(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("oracle response is not JSON: %w", err)
	}

	if err := compiledSchema.Validate(doc); err != nil {
		return &SchemaError{Err: err}
	}
	return nil
}
