package sessiontable

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// encodeSession writes the payload as JSON into buf. The bytes are valid
// until the buffer is returned to the pool.
func encodeSession(buf *bytes.Buffer, sess map[string]any) error {
	if err := json.NewEncoder(buf).Encode(sess); err != nil {
		return fmt.Errorf("failed to encode session data: %w", err)
	}
	// json.Encoder terminates the stream with a newline the column does
	// not need.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// decodeSession parses stored payload text back into the session object.
// Malformed text is an error, never a silent nil.
func decodeSession(data []byte) (map[string]any, error) {
	var sess map[string]any
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}
	if sess == nil {
		sess = make(map[string]any)
	}
	return sess, nil
}
