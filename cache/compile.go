package cache

import (
	"github.com/chazu/sloth/compiler"
	"github.com/chazu/sloth/vm"
)

// Compile returns the main block for source, loading it into heap from the
// cache when an image is present and compiling and storing it otherwise.
// A nil store always compiles. The boolean reports a cache hit.
//
// Cached images skip the checker, so only sources that compiled cleanly are
// ever stored.
func (s *Store) Compile(source string, heap *vm.Heap) (*vm.CompiledBlock, bool, error) {
	if s != nil {
		data, ok, err := s.Get(source)
		if err != nil {
			return nil, false, err
		}
		if ok {
			main, err := vm.UnmarshalImage(data, heap)
			if err == nil {
				return main, true, nil
			}
			log.Warningf("discarding unreadable image: %s", err)
		}
	}

	unit, err := compiler.CompileSource(source, heap)
	if err != nil {
		return nil, false, err
	}
	if s != nil {
		data, err := vm.MarshalImage(unit.Main, heap)
		if err != nil {
			return nil, false, err
		}
		if err := s.Put(source, data); err != nil {
			return nil, false, err
		}
	}
	return unit.Main, false, nil
}
