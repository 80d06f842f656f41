//go:build !cgo
// +build !cgo

package embedding

import "errors"

// NewONNXEmbedder returns an error when built without CGO (see onnx.go for
// the real implementation).
func NewONNXEmbedder(_, _ string, _, _, _ int) (Embedder, error) {
	return nil, errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime installed")
}
