// Package file provides streaming helpers shared by the archive writer,
// reader and verifier: byte counting, content digesting and
// context-aware copying.
package file
