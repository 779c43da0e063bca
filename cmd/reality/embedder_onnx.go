//go:build onnx

package main

import (
	"github.com/becomeliminal/nim-reality/config"
	"github.com/becomeliminal/nim-reality/reality"
	"github.com/becomeliminal/nim-reality/reality/embedder/onnx"
)

func newONNXEmbedder(cfg config.EmbedderConfig) (reality.Embedder, func() error, error) {
	e, err := onnx.New(onnx.Config{
		ModelPath:         cfg.ONNXModelPath(),
		TokenizerPath:     cfg.ONNXTokenizerPath(),
		SharedLibraryPath: cfg.SharedLibraryPath,
		Dimensions:        cfg.Dimensions,
	})
	if err != nil {
		return nil, nil, err
	}
	return e, e.Close, nil
}
