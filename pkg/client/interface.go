package client

import "context"

// VisionClient is a vision model backend able to answer a prompt about one image
type VisionClient interface {
	// CheckModel verifies the backend is reachable and can serve model
	CheckModel(ctx context.Context, model string) error
	// Query sends prompt together with a base64 encoded image and returns the raw model reply
	Query(ctx context.Context, model, prompt, imgB64 string) (string, error)
}
