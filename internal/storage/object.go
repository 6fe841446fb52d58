package storage

import "time"

// Object describes bytes present in a storage backend
type Object struct {
	Name    string
	ModTime time.Time
}
