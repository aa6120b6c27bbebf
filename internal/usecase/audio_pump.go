package usecase

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"

	"voicechat/internal/ports"
)

// fragmentBuffer accumulates capture fragments in arrival order.
type fragmentBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
}

func (b *fragmentBuffer) Add(fragment []byte) {
	if len(fragment) == 0 {
		return
	}
	copied := append([]byte(nil), fragment...)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, copied)
	b.size += len(copied)
}

func (b *fragmentBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Bytes concatenates every fragment in the order it arrived.
func (b *fragmentBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out bytes.Buffer
	out.Grow(b.size)
	for _, chunk := range b.chunks {
		out.Write(chunk)
	}
	return out.Bytes()
}

// pumpFragments copies device reads into the buffer until the stream ends.
// Any error other than EOF or a closed stream is handed to onFailure before done closes.
func pumpFragments(
	audio ports.AudioSession,
	buffer *fragmentBuffer,
	chunkSize int,
	onFailure func(error),
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			buffer.Add(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) && onFailure != nil {
				onFailure(err)
			}
			return
		}
	}
}
