package badger

import (
	"bytes"
)

// Key prefixes for different data types.
// Components are joined with a NUL separator; core validation guarantees
// IDs never contain NUL, so every prefix below is exact.
const (
	framePrefix      = "frame"  // frame:owner:video:id -> record
	frameVideoPrefix = "framev" // framev:video:id -> primary key
	frameIDPrefix    = "framei" // framei:id -> primary key
	sep              = 0
)

func joinKey(parts ...string) []byte {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte(sep)
		}
		buf.WriteString(p)
	}
	return buf.Bytes()
}

// makeFrameKey generates the primary key of a frame record.
// Format: prefix:ownerID:videoID:id
func makeFrameKey(ownerID, videoID, id string) []byte {
	return joinKey(framePrefix, ownerID, videoID, id)
}

// makeOwnerPrefix generates the prefix covering all records of one owner.
// Format: prefix:ownerID:
func makeOwnerPrefix(ownerID string) []byte {
	return append(joinKey(framePrefix, ownerID), sep)
}

// makeAllFramesPrefix covers every primary frame key.
func makeAllFramesPrefix() []byte {
	return append([]byte(framePrefix), sep)
}

// makeFrameVideoKey generates a composite key for the video index.
// Format: prefix:videoID:id
func makeFrameVideoKey(videoID, id string) []byte {
	return joinKey(frameVideoPrefix, videoID, id)
}

// makeVideoPrefix generates a partial key for per-video queries.
// Format: prefix:videoID:
func makeVideoPrefix(videoID string) []byte {
	return append(joinKey(frameVideoPrefix, videoID), sep)
}

// makeFrameIDKey generates the key of the id lookup index.
// Format: prefix:id
func makeFrameIDKey(id string) []byte {
	return joinKey(frameIDPrefix, id)
}
