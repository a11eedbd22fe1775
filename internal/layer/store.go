package layer

import (
	"fmt"
	"strconv"

	"regiokaart/internal/apperr"
	"regiokaart/internal/diag"
	"regiokaart/internal/logger"
	"regiokaart/internal/region"
)

type slotLayers struct {
	order  []string
	byName map[string]Layer
}

// Store maps slot -> layer name -> Layer, keeping insertion order per slot. It never holds a layer that
// failed validation. Not safe for concurrent use; a session serializes access.
type Store struct {
	slots map[Slot]*slotLayers
}

func NewStore() *Store {
	return &Store{slots: map[Slot]*slotLayers{}}
}

func (s *Store) slot(sl Slot) *slotLayers {
	ls, ok := s.slots[sl]
	if !ok {
		ls = &slotLayers{byName: map[string]Layer{}}
		s.slots[sl] = ls
	}
	return ls
}

// Commit validates l and writes it into slot. editing names the layer being edited ("" when adding):
// committing under that name overwrites it, committing under another name renames it in place.
// A blank name becomes the first free DefaultName, DefaultName 2, ... with a warning.
// On any error the store is left unchanged.
func (s *Store) Commit(slot Slot, l Layer, editing string) (Layer, diag.Diagnostics) {
	d := diag.New()
	label := slot.Label()
	if l.Name == "" {
		l.Name = s.defaultName(slot, editing)
		d.Warnf("%s: De zojuist toegevoegde laag heeft geen naam gekregen. Deze visualisatie krijgt de naam (%s)", label, l.Name)
	}
	check(slot, l, &d)

	ls := s.slots[slot]
	if ls != nil {
		if _, exists := ls.byName[l.Name]; exists && editing != l.Name {
			d.Errorf(apperr.DuplicateName, "%s: Laag naam (%s) bestaat al voor dit figuur. Kies een andere naam voor deze visualisatie.", label, l.Name)
		}
	}
	if slot.IsMap() && !d.HasErrors() {
		if level, ok := l.MapLevel(); ok {
			if want, first, found := s.referenceLevel(editing); found && level != want {
				d.Errorf(apperr.LevelMismatch, "%s: Het niveau van laag %s (%s) komt niet overeen met het niveau van de kaart (%s, bepaald door laag %s).",
					label, l.Name, level, want, first)
			}
		}
	}
	if d.HasErrors() {
		logger.L().Debug("layer_rejected", "slot", slot, "name", l.Name, "errors", len(d.Errors))
		return Layer{}, d
	}

	ls = s.slot(slot)
	if _, exists := ls.byName[editing]; editing != "" && editing != l.Name && exists {
		for i, n := range ls.order {
			if n == editing {
				ls.order[i] = l.Name
				break
			}
		}
		delete(ls.byName, editing)
	} else if _, exists := ls.byName[l.Name]; !exists {
		ls.order = append(ls.order, l.Name)
	}
	ls.byName[l.Name] = l
	logger.L().Debug("layer_committed", "slot", slot, "name", l.Name, "kind", l.Kind(), "dataset", l.Dataset, "warnings", len(d.Warnings))
	return l, d
}

// defaultName is the first DefaultName variant not taken in slot; the edited layer's own name counts as free.
func (s *Store) defaultName(slot Slot, editing string) string {
	ls := s.slots[slot]
	name := DefaultName
	for i := 2; ls != nil; i++ {
		if _, taken := ls.byName[name]; !taken || name == editing {
			break
		}
		name = DefaultName + " " + strconv.Itoa(i)
	}
	return name
}

// referenceLevel is the level of the first map layer other than skip.
func (s *Store) referenceLevel(skip string) (region.Level, string, bool) {
	ls := s.slots[Map]
	if ls == nil {
		return "", "", false
	}
	for _, n := range ls.order {
		if n == skip {
			continue
		}
		if lvl, ok := ls.byName[n].MapLevel(); ok {
			return lvl, n, true
		}
	}
	return "", "", false
}

// MapLevel is the level of the first committed map layer.
func (s *Store) MapLevel() (region.Level, bool) {
	lvl, _, ok := s.referenceLevel("")
	return lvl, ok
}

func (s *Store) Get(slot Slot, name string) (Layer, error) {
	if ls := s.slots[slot]; ls != nil {
		if l, ok := ls.byName[name]; ok {
			return l, nil
		}
	}
	return Layer{}, apperr.New(apperr.NotFound, fmt.Sprintf("layer %q not found in %s", name, slot.Label()))
}

// Layers returns the layers of slot in insertion order.
func (s *Store) Layers(slot Slot) []Layer {
	ls := s.slots[slot]
	if ls == nil {
		return nil
	}
	out := make([]Layer, 0, len(ls.order))
	for _, n := range ls.order {
		out = append(out, ls.byName[n])
	}
	return out
}

func (s *Store) Delete(slot Slot, name string) error {
	ls := s.slots[slot]
	if ls == nil {
		return apperr.New(apperr.NotFound, fmt.Sprintf("layer %q not found in %s", name, slot.Label()))
	}
	if _, ok := ls.byName[name]; !ok {
		return apperr.New(apperr.NotFound, fmt.Sprintf("layer %q not found in %s", name, slot.Label()))
	}
	delete(ls.byName, name)
	for i, n := range ls.order {
		if n == name {
			ls.order = append(ls.order[:i], ls.order[i+1:]...)
			break
		}
	}
	logger.L().Debug("layer_deleted", "slot", slot, "name", name)
	return nil
}

// Len counts the layers over all slots.
func (s *Store) Len() int {
	n := 0
	for _, ls := range s.slots {
		n += len(ls.order)
	}
	return n
}
