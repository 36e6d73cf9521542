package msg

import "fmt"

// Codec converts between a Go payload and message bytes.
type Codec[T any] interface {
	Encode(v T) []byte
	Decode(b []byte) (T, error)
}

type bytesCodec struct{}

func (bytesCodec) Encode(v []byte) []byte { return append([]byte(nil), v...) }

func (bytesCodec) Decode(b []byte) ([]byte, error) { return append([]byte(nil), b...), nil }

type stringCodec struct{}

func (stringCodec) Encode(v string) []byte { return []byte(v) }

func (stringCodec) Decode(b []byte) (string, error) { return string(b), nil }

type signalCodec struct{}

func (signalCodec) Encode(struct{}) []byte { return nil }

func (signalCodec) Decode(b []byte) (struct{}, error) {
	if len(b) != 0 {
		return struct{}{}, fmt.Errorf("msg: signal carries %d payload bytes", len(b))
	}
	return struct{}{}, nil
}

var (
	// Bytes passes payloads through, copying on both sides.
	Bytes Codec[[]byte] = bytesCodec{}
	// String carries UTF-8 text.
	String Codec[string] = stringCodec{}
	// Signal carries no payload.
	Signal Codec[struct{}] = signalCodec{}
)
