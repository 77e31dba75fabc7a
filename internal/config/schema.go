package config

// profilesSchema validates a profiles YAML document after it has been
// decoded to plain maps. Durations are Go duration strings.
const profilesSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["profiles"],
  "additionalProperties": false,
  "properties": {
    "profiles": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": { "$ref": "#/$defs/profile" }
    }
  },
  "$defs": {
    "duration": {
      "type": "string",
      "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"
    },
    "thresholds": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "maxResponseTimeMs": { "type": "integer", "minimum": 0 },
        "maxErrorRatePercent": { "type": "number", "minimum": 0, "maximum": 100 }
      }
    },
    "stage": {
      "type": "object",
      "required": ["duration", "users"],
      "additionalProperties": false,
      "properties": {
        "name": { "type": "string" },
        "duration": { "$ref": "#/$defs/duration" },
        "users": { "type": "integer", "minimum": 0 },
        "spawnRate": { "type": "number", "exclusiveMinimum": 0 }
      }
    },
    "profile": {
      "type": "object",
      "required": ["taskSet", "executor"],
      "additionalProperties": false,
      "properties": {
        "description": { "type": "string" },
        "taskSet": { "enum": ["mixed", "spike", "api", "journey", "data-query"] },
        "executor": { "enum": ["shaped-users", "constant-users"] },
        "users": { "type": "integer", "minimum": 0 },
        "spawnRate": { "type": "number", "exclusiveMinimum": 0 },
        "runTime": { "$ref": "#/$defs/duration" },
        "gracefulStop": { "$ref": "#/$defs/duration" },
        "stages": {
          "type": "array",
          "minItems": 1,
          "items": { "$ref": "#/$defs/stage" }
        },
        "thresholds": { "$ref": "#/$defs/thresholds" }
      }
    }
  }
}`
