package tools

// Schema is a JSON Schema fragment as sent in a tool's input_schema.
type Schema = map[string]interface{}

// ObjectSchema returns an object schema over props.
func ObjectSchema(props Schema, required ...string) Schema {
	s := Schema{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// StringProperty returns a free-text string.
func StringProperty(description string) Schema {
	return Schema{"type": "string", "description": description}
}

// TagProperty returns a string restricted to tags.
func TagProperty(description string, tags []string) Schema {
	return Schema{"type": "string", "description": description, "enum": tags}
}

// TagListProperty returns an array of distinct values from tags.
func TagListProperty(description string, tags []string) Schema {
	return Schema{
		"type":        "array",
		"description": description,
		"items":       Schema{"type": "string", "enum": tags},
		"uniqueItems": true,
	}
}

// RangeProperty returns a number bounded to [min, max].
func RangeProperty(description string, min, max float64) Schema {
	return Schema{
		"type":        "number",
		"description": description,
		"minimum":     min,
		"maximum":     max,
	}
}

// WithRationale returns a copy of schema with a free-text "rationale"
// property, appended to required when required is set. schema is not
// modified.
func WithRationale(schema Schema, required bool) Schema {
	out := make(Schema, len(schema))
	for k, v := range schema {
		out[k] = v
	}

	props := Schema{}
	if existing, ok := schema["properties"].(Schema); ok {
		for k, v := range existing {
			props[k] = v
		}
	}
	props["rationale"] = StringProperty("One short sentence on which words in the message led to these tags.")
	out["properties"] = props

	if required {
		req, _ := schema["required"].([]string)
		out["required"] = append(append([]string{}, req...), "rationale")
	}
	return out
}
