//go:build !onnx

package main

import (
	"errors"

	"github.com/becomeliminal/nim-reality/config"
	"github.com/becomeliminal/nim-reality/reality"
)

func newONNXEmbedder(config.EmbedderConfig) (reality.Embedder, func() error, error) {
	return nil, nil, errors.New("onnx embedder not compiled in, rebuild with -tags onnx")
}
