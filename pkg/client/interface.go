// Package client defines the contract shared by the vision-language backends.
package client

import "context"

// VisionClient sends a prompt and a base64-encoded image to a multimodal
// model and returns its text reply.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
}
