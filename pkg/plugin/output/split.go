/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package output

import (
	"bytes"
	"encoding/json"
	"github.com/traas-stack/holoinsight-ingest/pkg/model"
)

type (
	// Chunk is a JSON array of envelopes that fits one message.
	Chunk struct {
		Payload []byte
		Count   int
	}
)

// Split encodes envelopes into JSON array chunks no larger than maxBytes, keeping order.
// An envelope that cannot be encoded, or does not fit an empty chunk on its own, is dropped and counted.
// maxBytes <= 0 means one chunk.
func Split(envelopes []*model.Envelope, maxBytes int) ([]Chunk, int) {
	var chunks []Chunk
	dropped := 0

	buf := &bytes.Buffer{}
	count := 0
	flush := func() {
		if count == 0 {
			return
		}
		buf.WriteByte(']')
		chunks = append(chunks, Chunk{Payload: append([]byte(nil), buf.Bytes()...), Count: count})
		buf.Reset()
		count = 0
	}

	for _, e := range envelopes {
		b, err := json.Marshal(e)
		if err != nil {
			dropped++
			continue
		}
		// "[" + item + "]"
		if maxBytes > 0 && len(b)+2 > maxBytes {
			dropped++
			continue
		}
		// current + "," + item + "]"
		if count > 0 && maxBytes > 0 && buf.Len()+1+len(b)+1 > maxBytes {
			flush()
		}
		if count == 0 {
			buf.WriteByte('[')
		} else {
			buf.WriteByte(',')
		}
		buf.Write(b)
		count++
	}
	flush()
	return chunks, dropped
}
