package sessiontable

import (
	"bytes"
	"sync"
)

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// putBuffer wipes the buffer's content and returns it to the pool, so
// session payloads are not retained in reusable memory longer than
// necessary.
func putBuffer(buf *bytes.Buffer) {
	clear(buf.Bytes())
	buf.Reset()
	bufferPool.Put(buf)
}
