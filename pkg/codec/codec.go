// Package codec provides the body encoding used between the query client
// and the remote API. Requests are encoded and responses decoded through a
// Codec so the transport never depends on a concrete wire format.
//
// Package codec 提供查询客户端与远程API之间使用的消息体编码。
// 请求通过Codec编码，响应通过Codec解码，传输层不依赖具体的线格式。
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Codec defines the interface for encoding and decoding request and response bodies.
//
// Codec 定义了编码和解码请求与响应体的接口。
type Codec interface {
	// Marshal serializes a value into bytes.
	//
	// Marshal 将值序列化为字节。
	//
	// Parameters:
	//   - value: The value to serialize
	//
	// Returns:
	//   - []byte: The serialized bytes
	//   - error: An error if serialization fails
	Marshal(value any) ([]byte, error)

	// Unmarshal deserializes bytes into a value.
	// The value parameter should be a pointer to the target type.
	//
	// Unmarshal 将字节反序列化为值。value参数应该是目标类型的指针。
	Unmarshal(data []byte, value any) error

	// Decode reads one value from r.
	//
	// Decode 从r读取一个值。
	Decode(r io.Reader, value any) error

	// ContentType returns the MIME type sent in Content-Type and Accept headers.
	ContentType() string

	// Name returns the name of this codec.
	Name() string
}

// JSONCodec implements Codec using JSON serialization.
//
// JSONCodec 使用JSON序列化实现Codec。
type JSONCodec struct {
	// Pretty determines whether to use indented JSON encoding.
	// Pretty 决定是否使用缩进的JSON编码。
	Pretty bool

	// Strict rejects unknown fields while decoding.
	// Strict 解码时拒绝未知字段。
	Strict bool
}

// Marshal serializes a value into JSON bytes.
// If Pretty is true, the output will be indented.
//
// Marshal 将值序列化为JSON字节。如果Pretty为true，输出将带有缩进。
func (c *JSONCodec) Marshal(value any) ([]byte, error) {
	if c.Pretty {
		return json.MarshalIndent(value, "", "  ")
	}
	return json.Marshal(value)
}

// Unmarshal deserializes JSON bytes into a value.
//
// Unmarshal 将JSON字节反序列化为值。
func (c *JSONCodec) Unmarshal(data []byte, value any) error {
	return c.Decode(bytes.NewReader(data), value)
}

// Decode reads one JSON document from r. An empty body leaves value untouched.
//
// Decode 从r读取一个JSON文档。空消息体不会修改value。
func (c *JSONCodec) Decode(r io.Reader, value any) error {
	dec := json.NewDecoder(r)
	if c.Strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(value); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("codec: decode json: %w", err)
	}
	return nil
}

// ContentType returns application/json.
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Name returns the name of this codec.
//
// Returns:
//   - string: Always returns "json"
func (c *JSONCodec) Name() string {
	return "json"
}

// NewJSONCodec creates a new JSONCodec.
//
// NewJSONCodec 创建一个新的JSONCodec。
//
// Parameters:
//   - pretty: Whether to use indented JSON encoding
//
// Returns:
//   - *JSONCodec: A new JSON codec instance
func NewJSONCodec(pretty bool) *JSONCodec {
	return &JSONCodec{Pretty: pretty}
}

// DefaultCodec returns the codec used when none is configured.
//
// DefaultCodec 返回未配置时使用的编解码器。
func DefaultCodec() Codec {
	return &JSONCodec{}
}

// Convert re-encodes src into a value of type T through c.
// It turns loosely typed data (maps decoded from JSON, cached any values)
// into a concrete struct.
//
// Convert 通过c将src重新编码为T类型的值。
func Convert[T any](c Codec, src any) (T, error) {
	var out T
	if typed, ok := src.(T); ok {
		return typed, nil
	}
	data, err := c.Marshal(src)
	if err != nil {
		return out, fmt.Errorf("codec: convert: %w", err)
	}
	if err := c.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}
