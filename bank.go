package gogusplayer

import (
	"errors"
	"fmt"
)

// ErrNoPatch is returned when a program or drum key has no loaded instrument.
var ErrNoPatch = errors.New("no patch loaded")

// Bank maps programs and drum keys to loaded instruments.
type Bank struct {
	melodic map[int]map[int]*Instrument // bank -> program
	drums   map[int]map[int]*Instrument // drumset -> key
}

// NewBank returns an empty bank.
func NewBank() *Bank {
	return &Bank{
		melodic: make(map[int]map[int]*Instrument),
		drums:   make(map[int]map[int]*Instrument),
	}
}

// Set installs an instrument for a program (or drum key).
func (b *Bank) Set(drum bool, bank, number int, inst *Instrument) {
	tables := b.melodic
	if drum {
		tables = b.drums
	}
	t, ok := tables[bank]
	if !ok {
		t = make(map[int]*Instrument)
		tables[bank] = t
	}
	t[number] = inst
}

// Lookup finds the instrument for a program (or drum key), falling back to
// bank 0 when the selected bank lacks it.
func (b *Bank) Lookup(drum bool, bank, number int) *Instrument {
	tables := b.melodic
	if drum {
		tables = b.drums
	}
	if inst := tables[bank][number]; inst != nil {
		return inst
	}
	return tables[0][number]
}

// Find is Lookup with an ErrNoPatch error for unmapped programs.
func (b *Bank) Find(drum bool, bank, number int) (*Instrument, error) {
	if inst := b.Lookup(drum, bank, number); inst != nil {
		return inst, nil
	}
	return nil, fmt.Errorf("%w: %s %d number %d", ErrNoPatch, kindName(drum), bank, number)
}

// Len returns the number of mapped instruments.
func (b *Bank) Len() int {
	n := 0
	for _, t := range b.melodic {
		n += len(t)
	}
	for _, t := range b.drums {
		n += len(t)
	}
	return n
}

// LoadBank loads every patch named by cfg through cache. Patches that fail to
// load are skipped so one broken file does not silence the whole set; the
// returned error is non-nil only if nothing at all could be loaded.
func LoadBank(cfg *Config, cache *PatchCache) (*Bank, error) {
	bank := NewBank()
	failed := 0
	load := func(drum bool, tables map[int]map[int]*PatchSpec) {
		for bankNum, specs := range tables {
			for num, spec := range specs {
				inst, err := loadSpec(cfg, cache, spec)
				if err != nil {
					patchDebug("Skipping %s %d/%d: %v", kindName(drum), bankNum, num, err)
					failed++
					continue
				}
				bank.Set(drum, bankNum, num, inst)
			}
		}
	}
	load(false, cfg.Banks)
	load(true, cfg.Drumsets)

	if bank.Len() == 0 && failed > 0 {
		return nil, fmt.Errorf("failed to load any of %d patches", failed)
	}
	patchDebug("Bank loaded: %d instruments, %d failures", bank.Len(), failed)
	return bank, nil
}

func loadSpec(cfg *Config, cache *PatchCache, spec *PatchSpec) (*Instrument, error) {
	path, err := cfg.ResolvePatchPath(spec.File)
	if err != nil {
		return nil, err
	}
	inst, err := cache.LoadPatch(path)
	if err != nil {
		return nil, err
	}
	clearModes, stripTail := spec.modeOverrides()
	return inst.withOptions(spec.GetIntOption("amp", 100), spec.GetIntOption("note", -1), clearModes, stripTail), nil
}

func kindName(drum bool) string {
	if drum {
		return "drumset"
	}
	return "bank"
}
