package channels

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/sha3"
)

// Serializer converts a Message to and from its wire representation.
// Implementations are registered by name (SerializerRegistry) so a layer
// can be configured to use "json" or "msgpack" for its transport payloads,
// mirroring the pluggable serializer registry in the original
// implementation (SPEC_FULL.md §4).
type Serializer interface {
	Serialize(message Message) ([]byte, error)
	Deserialize(data []byte) (Message, error)
}

// jsonSerializer implements Serializer using encoding/json.
type jsonSerializer struct{}

func (jsonSerializer) Serialize(message Message) ([]byte, error) {
	return json.Marshal(message)
}

func (jsonSerializer) Deserialize(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// msgpackSerializer implements Serializer using MessagePack, the wire
// format named by spec.md §6 for the Redis queue layer.
type msgpackSerializer struct{}

func (msgpackSerializer) Serialize(message Message) ([]byte, error) {
	return msgpack.Marshal(message)
}

func (msgpackSerializer) Deserialize(data []byte) (Message, error) {
	var m Message
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// JSONSerializer and MsgpackSerializer are the two built-in serializers
// registered under "json" and "msgpack" respectively.
var (
	JSONSerializer    Serializer = &jsonSerializer{}
	MsgpackSerializer Serializer = &msgpackSerializer{}
)

// SerializerRegistry maps a format name to a Serializer, following the
// same registration pattern as the original's SerializersRegistry.
type SerializerRegistry struct {
	serializers map[string]Serializer
}

// NewSerializerRegistry returns a registry pre-populated with "json" and
// "msgpack".
func NewSerializerRegistry() *SerializerRegistry {
	return &SerializerRegistry{
		serializers: map[string]Serializer{
			"json":    JSONSerializer,
			"msgpack": MsgpackSerializer,
		},
	}
}

// Register adds or replaces the serializer registered under format.
func (r *SerializerRegistry) Register(format string, s Serializer) {
	r.serializers[format] = s
}

// Get returns the serializer registered under format.
func (r *SerializerRegistry) Get(format string) (Serializer, error) {
	s, ok := r.serializers[format]
	if !ok {
		return nil, fmt.Errorf("channels: serializer %q not registered", format)
	}
	return s, nil
}

// EncryptedSerializer wraps another Serializer and encrypts its output with
// ChaCha20-Poly1305, trying each key in keys (in order) on decrypt so that
// keys can be rotated without invalidating in-flight messages — the Go
// analogue of the original's MultiFernet (SPEC_FULL.md §4). Each key is a
// passphrase; it is stretched to a 256-bit AEAD key via SHA3-256.
type EncryptedSerializer struct {
	inner Serializer
	aeads []cipher.AEAD
}

// NewEncryptedSerializer wraps inner with symmetric encryption using keys,
// in the order supplied. Encryption always uses the first key; decryption
// tries every key until one succeeds, enabling zero-downtime key rotation.
func NewEncryptedSerializer(inner Serializer, keys []string) (*EncryptedSerializer, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("channels: at least one symmetric encryption key is required")
	}
	aeads := make([]cipher.AEAD, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			return nil, ErrEmptyEncryptionKey
		}
		aead, err := aeadFromKey(key)
		if err != nil {
			return nil, err
		}
		aeads = append(aeads, aead)
	}
	return &EncryptedSerializer{inner: inner, aeads: aeads}, nil
}

func aeadFromKey(key string) (cipher.AEAD, error) {
	digest := sha3.Sum256([]byte(key))
	aead, err := chacha20poly1305.New(digest[:])
	if err != nil {
		return nil, fmt.Errorf("channels: derive encryption key: %w", err)
	}
	return aead, nil
}

// Serialize encrypts the inner serializer's output under the first
// configured key.
func (e *EncryptedSerializer) Serialize(message Message) ([]byte, error) {
	plain, err := e.inner.Serialize(message)
	if err != nil {
		return nil, err
	}
	aead := e.aeads[0]
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("channels: generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plain, nil)
	return sealed, nil
}

// Deserialize tries each configured key in order until one successfully
// authenticates and decrypts data, then delegates to the inner serializer.
func (e *EncryptedSerializer) Deserialize(data []byte) (Message, error) {
	var lastErr error
	for _, aead := range e.aeads {
		ns := aead.NonceSize()
		if len(data) < ns {
			lastErr = fmt.Errorf("channels: ciphertext shorter than nonce")
			continue
		}
		nonce, ciphertext := data[:ns], data[ns:]
		plain, err := aead.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			lastErr = err
			continue
		}
		return e.inner.Deserialize(plain)
	}
	return nil, fmt.Errorf("channels: decrypt message with any configured key: %w", lastErr)
}
