package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned by Reveal after Destroy.
var ErrDestroyed = errors.New("secure blob already destroyed")

// Blob holds one secret value sealed in a memguard enclave.
type Blob struct {
	mu        sync.Mutex
	enclave   *memguard.Enclave
	empty     bool
	destroyed bool
}

// NewBlob seals value. The caller's copy should be dropped afterwards.
func NewBlob(value string) *Blob {
	if value == "" {
		// memguard refuses zero-length enclaves
		return &Blob{empty: true}
	}
	return &Blob{enclave: memguard.NewEnclave([]byte(value))}
}

// Reveal decrypts the value into locked memory and passes a copy of it to
// fn. The locked buffer is wiped when fn returns; the copy handed to fn is
// ordinary heap memory and stays valid.
func (b *Blob) Reveal(fn func(value string) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrDestroyed
	}
	if b.empty {
		return fn("")
	}

	locked, err := b.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(string(locked.Bytes()))
}

// Destroy drops the enclave. It is safe to call more than once.
func (b *Blob) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.enclave = nil
	b.destroyed = true
}

// Purge wipes every memguard buffer and key in the process.
func Purge() {
	memguard.Purge()
}
