// Package secure keeps minted credential material encrypted in memory
// between the moment a backend returns it and the moment it is written to
// the secrets store.
//
// It wraps memguard enclaves: the plaintext is only materialised inside a
// locked buffer for the duration of a Reveal callback and wiped afterwards.
// Call memguard.Purge (via Purge) on exit to clear remaining key material.
package secure
