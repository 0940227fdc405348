package store

import "fmt"

// DefaultKinds is the priority order used when none is configured.
var DefaultKinds = []Kind{KindSecretTool, KindPass, KindFile}

// Options selects and configures the backends of a chain.
type Options struct {
	// Kinds in priority order. Empty means DefaultKinds.
	Kinds  []Kind
	File   FileOptions
	Runner Runner
}

// New builds the store chain in the requested order.
func New(opts Options) ([]Store, error) {
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}

	seen := make(map[Kind]bool, len(kinds))
	stores := make([]Store, 0, len(kinds))
	for _, k := range kinds {
		if seen[k] {
			continue
		}
		seen[k] = true

		switch k {
		case KindSecretTool:
			stores = append(stores, NewSecretToolStore(opts.Runner))
		case KindPass:
			stores = append(stores, NewPassStore(opts.Runner))
		case KindFile:
			fs, err := NewFileStore(opts.File)
			if err != nil {
				return nil, err
			}
			stores = append(stores, fs)
		default:
			return nil, fmt.Errorf("unknown store kind %q", k)
		}
	}
	return stores, nil
}

// FindFile returns the file store in the chain, if any.
func FindFile(stores []Store) *FileStore {
	for _, s := range stores {
		if fs, ok := s.(*FileStore); ok {
			return fs
		}
	}
	return nil
}
