package sandbox

import (
	"errors"
	"fmt"

	"github.com/tsyne-dev/tsyne-host/internal/shared/utils"
)

// Artifact is one sealed build: the instance token plus directly
// executable code, runtime module concatenated ahead of transformed
// source so placeholder definitions execute before any reference.
type Artifact struct {
	Token     Token           `json:"token"`
	Label     string          `json:"label"`
	Code      string          `json:"code"`
	Whitelist ModuleWhitelist `json:"whitelist"`
	Digest    string          `json:"digest"`
}

// Build seals untrusted source under a fresh token. The only failure
// is a TransformError; nothing partially rewritten ever escapes. Two
// builds of identical source share no namespace: their tokens differ,
// and each output embeds only its own.
func Build(source, label string, whitelist ModuleWhitelist) (*Artifact, error) {
	return BuildWithToken(source, label, whitelist, NewToken())
}

// BuildWithToken is Build pinned to a caller-supplied token. Tooling
// uses it to reproduce artifacts byte for byte.
func BuildWithToken(source, label string, whitelist ModuleWhitelist, token Token) (*Artifact, error) {
	if !token.Valid() {
		return nil, fmt.Errorf("build: %w", ErrInvalidToken)
	}
	transformed, err := Transform(source, token)
	if err != nil {
		var te *TransformError
		if errors.As(err, &te) {
			te.Label = label
		}
		return nil, err
	}
	wl := whitelist.Normalize()
	return &Artifact{
		Token:     token,
		Label:     label,
		Code:      GenerateRuntime(token, wl) + "\n" + transformed,
		Whitelist: wl,
		Digest:    utils.Fingerprint([]byte(source)),
	}, nil
}
