package room

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
)

// Room code alphabet: uppercase alphanumerics minus lookalikes (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

const maxCodeAttempts = 20

// generateRoomCode produces a shareable code that is unique among
// currently-active rooms. Codes of finished or deleted rooms may be reused.
func generateRoomCode(ctx context.Context, store Store) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		var sb strings.Builder
		for i := 0; i < codeLength; i++ {
			sb.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
		}
		code := sb.String()

		active, err := store.RoomCodeActive(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check room code: %w", err)
		}
		if !active {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate unique room code after %d attempts", maxCodeAttempts)
}
