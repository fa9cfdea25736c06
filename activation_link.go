package auth

import (
	"fmt"
	"strconv"
	"strings"
)

// activationSeparator joins the credential id and the code in the link path
const activationSeparator = "+"

// ActivationLink renders <baseURL>/activate/<id>+<code>
func ActivationLink(baseURL string, credentialID int64, code string) string {
	return fmt.Sprintf("%s/activate/%s", strings.TrimRight(baseURL, "/"), ActivationSegment(credentialID, code))
}

// ActivationSegment renders the <id>+<code> path segment
func ActivationSegment(credentialID int64, code string) string {
	return strconv.FormatInt(credentialID, 10) + activationSeparator + code
}

// ParseActivationLink splits an <id>+<code> segment. A space is accepted in
// place of the separator since form decoding turns "+" into " ".
func ParseActivationLink(segment string) (int64, string, error) {
	segment = strings.TrimSpace(segment)
	idx := strings.LastIndexAny(segment, activationSeparator+" ")
	if idx <= 0 || idx == len(segment)-1 {
		return 0, "", annotate(ErrInvalidCode, map[string]any{"segment": segment})
	}

	id, err := strconv.ParseInt(segment[:idx], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", annotate(ErrInvalidCode, map[string]any{"segment": segment})
	}

	return id, segment[idx+1:], nil
}
