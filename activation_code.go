package auth

import (
	"crypto/rand"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
)

// ActivationCodeLength number of hex characters in an activation code
const ActivationCodeLength = 4

// HexCodeGenerator draws activation codes from crypto/rand
type HexCodeGenerator struct{}

// Generate returns ActivationCodeLength lowercase hex characters
func (HexCodeGenerator) Generate() (string, error) {
	buf := make([]byte, (ActivationCodeLength+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes")
	}
	return hex.EncodeToString(buf)[:ActivationCodeLength], nil
}

// CodeGeneratorFunc adapts a function to the CodeGenerator interface.
type CodeGeneratorFunc func() (string, error)

// Generate implements CodeGenerator.
func (f CodeGeneratorFunc) Generate() (string, error) {
	return f()
}
