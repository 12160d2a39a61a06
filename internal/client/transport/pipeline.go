package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/shiftdesk/internal/cryptox"
	"github.com/dmitrijs2005/shiftdesk/internal/logging"
)

// Pipeline transforms successful non-binary response bodies: decrypt if the
// body is a sealed payload, then normalise decimal encodings.
type Pipeline struct {
	key    []byte
	strict bool
	logger logging.Logger
}

// NewPipeline returns a pipeline. A nil key disables decryption. With strict
// unset a body that fails to decrypt is passed through and logged.
func NewPipeline(key []byte, strict bool, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pipeline{key: key, strict: strict, logger: logger}
}

// Decode runs the pipeline over body. Binary bodies are returned untouched.
func (p *Pipeline) Decode(ctx context.Context, body []byte, binary bool) ([]byte, error) {
	if binary || len(body) == 0 {
		return body, nil
	}

	out, err := p.decrypt(ctx, body)
	if err != nil {
		return nil, err
	}
	return Normalize(out), nil
}

func (p *Pipeline) decrypt(ctx context.Context, body []byte) ([]byte, error) {
	if len(p.key) == 0 {
		return body, nil
	}
	payload, sealed := sealedPayload(body)
	if !sealed {
		return body, nil
	}

	plain, err := cryptox.Open(payload, p.key)
	if err != nil {
		if p.strict {
			return nil, fmt.Errorf("decrypt response: %w", err)
		}
		p.logger.Warn(ctx, "response decryption failed, passing body through", "error", err)
		return body, nil
	}
	return plain, nil
}

// sealedPayload reports whether body looks like an encrypted payload: a
// bare base64 text or a JSON string holding one. Objects, arrays and other
// JSON scalars are plaintext.
func sealedPayload(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", false
	}
	switch trimmed[0] {
	case '{', '[':
		return "", false
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return s, s != ""
	}
	if json.Valid(trimmed) {
		return "", false
	}
	return string(trimmed), true
}
