// Package pin implements the PIN confirmation collaborator guarding
// therapy-changing actions.
package pin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// PromptFunc obtains the entered PIN from the caregiver. How the
// prompt is rendered is the presentation layer's concern.
type PromptFunc func(ctx context.Context) (string, error)

// Verifier compares a prompted PIN against a configured SHA-256 hash.
// It implements domain.PinConfirmer.
type Verifier struct {
	hash   string
	prompt PromptFunc
}

// NewVerifier creates a verifier. The hash is the hex SHA-256 of the
// caregiver PIN as produced by HashPIN.
func NewVerifier(pinHash string, prompt PromptFunc) (*Verifier, error) {
	if pinHash == "" {
		return nil, fmt.Errorf("no PIN hash configured")
	}
	if prompt == nil {
		return nil, fmt.Errorf("no PIN prompt configured")
	}
	return &Verifier{hash: strings.ToLower(pinHash), prompt: prompt}, nil
}

// Confirm prompts for the PIN and reports whether it matched. A
// prompt error counts as denial for the caller but is surfaced so the
// cockpit can log it.
func (v *Verifier) Confirm(ctx context.Context) (bool, error) {
	entered, err := v.prompt(ctx)
	if err != nil {
		return false, fmt.Errorf("PIN prompt failed: %w", err)
	}
	return HashPIN(entered) == v.hash, nil
}

// HashPIN returns the hex SHA-256 digest of a PIN.
func HashPIN(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}
