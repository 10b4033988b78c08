package detector

import "encoding/json"

// jsonCodec lets the gRPC client exchange plain JSON messages with the
// model service, which exposes a JSON contract rather than protobuf.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "json"
}
