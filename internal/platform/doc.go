// Package platform isolates the OS-specific parts of reading filesystem
// metadata: numeric ownership, device numbers and no-follow opens.
package platform
