package dataset

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// ReadBuffers reads a flat little-endian float32 stream and reshapes it row
// major into (n, bufferSize), n = floor(samples / bufferSize). Trailing
// samples that do not fill a whole buffer are dropped.
func ReadBuffers(r io.Reader, bufferSize int) (*mat.Dense, error) {
	if bufferSize < 1 {
		return nil, fmt.Errorf("dataset: buffer size must be positive, got %d", bufferSize)
	}

	raw, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("dataset: read samples: %w", err)
	}
	samples := len(raw) / 4
	n := samples / bufferSize
	if n == 0 {
		return nil, fmt.Errorf("dataset: %d samples do not fill a single buffer of %d", samples, bufferSize)
	}

	data := make([]float64, n*bufferSize)
	for i := range data {
		data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
	}

	if dropped := samples - n*bufferSize; dropped > 0 {
		log.WithFields(log.Fields{
			"dropped": dropped,
			"buffers": n,
		}).Debug("DATASET: DISCARDED TRAILING SAMPLES")
	}

	return mat.NewDense(n, bufferSize, data), nil
}

// Load opens path and calls ReadBuffers on it.
func Load(path string, bufferSize int) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()
	return ReadBuffers(f, bufferSize)
}

// WriteSamples writes samples as little-endian float32.
func WriteSamples(w io.Writer, samples []float64) error {
	bw := bufio.NewWriter(w)
	var b [4]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(s)))
		if _, err := bw.Write(b[:]); err != nil {
			return fmt.Errorf("dataset: write samples: %w", err)
		}
	}
	return bw.Flush()
}

// Stream calls fn with each consecutive buffer read from r until EOF. A
// partial final buffer is dropped.
func Stream(r io.Reader, bufferSize int, fn func(buf []float64) error) error {
	br := bufio.NewReader(r)
	raw := make([]byte, 4*bufferSize)
	buf := make([]float64, bufferSize)
	for {
		if _, err := io.ReadFull(br, raw); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("dataset: read buffer: %w", err)
		}
		for i := range buf {
			buf[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
		if err := fn(buf); err != nil {
			return err
		}
	}
}
