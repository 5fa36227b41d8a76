// Package namespace encodes (prefix, suffix) pairs into single store keys.
//
// A key is the UTF-8 prefix, a NUL separator and the UTF-8 suffix.  Neither
// component may contain the separator, which makes Split the exact inverse
// of Make.
package namespace

import (
	"bytes"
	"sync"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Separator is the byte placed between the prefix and the suffix of a key.
const Separator = byte(0x00)

var (
	// ErrPrefixInUse indicates that a prefix is already registered.
	ErrPrefixInUse = errors.New("prefix already registered")

	// ErrInvalidComponent indicates that a prefix or suffix contains the
	// separator or is not valid UTF-8.
	ErrInvalidComponent = errors.New("invalid key component")

	// ErrMalformedKey indicates that a key was not produced by Make.
	ErrMalformedKey = errors.New("malformed namespaced key")
)

// Registry hands out Namespaces and guarantees that no two of them share a
// prefix for as long as the registry lives.
type Registry struct {
	lock  sync.Mutex
	inUse map[string]*Namespace
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		inUse: make(map[string]*Namespace),
	}
}

// Register reserves prefix and returns its Namespace.
func (r *Registry) Register(prefix string) (*Namespace, error) {
	if err := validate(prefix); err != nil {
		return nil, err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.inUse[prefix]; ok {
		return nil, errors.Wrapf(ErrPrefixInUse, "%q", prefix)
	}

	ns := newNamespace(prefix)
	r.inUse[prefix] = ns
	return ns, nil
}

// Lookup returns the Namespace registered for prefix, if any.
func (r *Registry) Lookup(prefix string) (*Namespace, bool) {
	r.lock.Lock()
	ns, ok := r.inUse[prefix]
	r.lock.Unlock()

	return ns, ok
}

// Release makes prefix available for registration again.
func (r *Registry) Release(prefix string) {
	r.lock.Lock()
	delete(r.inUse, prefix)
	r.lock.Unlock()
}

// Reset releases every prefix.
func (r *Registry) Reset() {
	r.lock.Lock()
	r.inUse = make(map[string]*Namespace)
	r.lock.Unlock()
}

// Len returns the number of registered prefixes.
func (r *Registry) Len() int {
	r.lock.Lock()
	n := len(r.inUse)
	r.lock.Unlock()

	return n
}

// Namespace builds and recognises keys sharing one prefix.
type Namespace struct {
	prefix     string
	fullPrefix []byte
}

func newNamespace(prefix string) *Namespace {
	fullPrefix := make([]byte, 0, len(prefix)+1)
	fullPrefix = append(fullPrefix, prefix...)
	fullPrefix = append(fullPrefix, Separator)

	return &Namespace{
		prefix:     prefix,
		fullPrefix: fullPrefix,
	}
}

// Prefix returns the prefix of this namespace.
func (n *Namespace) Prefix() string {
	return n.prefix
}

// Make returns the key for suffix within this namespace.
func (n *Namespace) Make(suffix string) ([]byte, error) {
	if err := validate(suffix); err != nil {
		return nil, err
	}

	key := make([]byte, 0, len(n.fullPrefix)+len(suffix))
	key = append(key, n.fullPrefix...)
	key = append(key, suffix...)
	return key, nil
}

// Key is Make returning a string, the key type used by the Redis client.
func (n *Namespace) Key(suffix string) (string, error) {
	key, err := n.Make(suffix)
	if err != nil {
		return "", err
	}
	return string(key), nil
}

// Contains reports whether key belongs to this namespace.
func (n *Namespace) Contains(key []byte) bool {
	prefix, _, err := Split(key)
	return err == nil && prefix == n.prefix
}

// Split returns the prefix and suffix key was made from.
func Split(key []byte) (string, string, error) {
	idx := bytes.LastIndexByte(key, Separator)
	if idx < 0 {
		return "", "", errors.Wrap(ErrMalformedKey, "no separator")
	}

	prefix, suffix := key[:idx], key[idx+1:]
	if bytes.IndexByte(prefix, Separator) >= 0 {
		return "", "", errors.Wrap(ErrMalformedKey, "more than one separator")
	}
	if !utf8.Valid(prefix) || !utf8.Valid(suffix) {
		return "", "", errors.Wrap(ErrMalformedKey, "not valid utf-8")
	}

	return string(prefix), string(suffix), nil
}

func validate(component string) error {
	if !utf8.ValidString(component) {
		return errors.Wrapf(ErrInvalidComponent, "%q is not valid utf-8", component)
	}
	if bytes.IndexByte([]byte(component), Separator) >= 0 {
		return errors.Wrapf(ErrInvalidComponent, "%q contains the separator", component)
	}
	return nil
}
