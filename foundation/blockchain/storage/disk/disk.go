// Package disk implements the ability to read and write chain data to disk
// using one file per key.
package disk

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"

	"github.com/utxolabs/blockchain/foundation/blockchain/storage"
)

// Disk represents the storage implementation for reading and storing chain
// data in files on disk. This implements the storage.Store interface.
type Disk struct {
	dbPath string
}

// New constructs a Disk value for use.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Get reads the value stored under the specified key from disk.
func (d *Disk) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(d.getPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return data, nil
}

// Put writes the value to its own file on disk named after the key.
func (d *Disk) Put(key string, value []byte) error {
	f, err := os.OpenFile(d.getPath(key), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(value); err != nil {
		return err
	}

	return nil
}

// Flush in this implementation has nothing to do since each Put writes and
// closes its own file.
func (d *Disk) Flush() error {
	return nil
}

// Reset will clear out all the chain data on disk.
func (d *Disk) Reset() error {
	if err := os.RemoveAll(d.dbPath); err != nil {
		return err
	}

	return os.MkdirAll(d.dbPath, 0755)
}

// Close in this implementation has nothing to do.
func (d *Disk) Close() error {
	return nil
}

// getPath forms the path to the file for the specified key. Keys are hex
// encoded so arbitrary bytes can't escape the data directory.
func (d *Disk) getPath(key string) string {
	name := hex.EncodeToString([]byte(key))
	return path.Join(d.dbPath, fmt.Sprintf("%s.json", name))
}
