package onnx

import (
	"fmt"
	"slices"
)

// Model tensor names of sentence-transformers ONNX exports.
const (
	inputIDs      = "input_ids"
	attentionMask = "attention_mask"
	tokenTypeIDs  = "token_type_ids"
)

// selectInputs orders the model's declared inputs for Run. BERT exports
// declare token_type_ids, XLM-R exports don't.
func selectInputs(declared []string) ([]string, error) {
	for _, required := range []string{inputIDs, attentionMask} {
		if !slices.Contains(declared, required) {
			return nil, fmt.Errorf("model has no %s input (inputs: %v)", required, declared)
		}
	}
	names := []string{inputIDs, attentionMask}
	for _, name := range declared {
		switch name {
		case inputIDs, attentionMask:
		case tokenTypeIDs:
			names = append(names, tokenTypeIDs)
		default:
			return nil, fmt.Errorf("model input %q is not supported", name)
		}
	}
	return names, nil
}

// selectOutput picks the token embeddings output, falling back to the
// first declared output.
func selectOutput(declared []string) (string, error) {
	for _, name := range []string{"last_hidden_state", "token_embeddings", "sentence_embedding"} {
		if slices.Contains(declared, name) {
			return name, nil
		}
	}
	if len(declared) == 0 {
		return "", fmt.Errorf("model declares no outputs")
	}
	return declared[0], nil
}
