package question

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Namer is implemented by banks that know module display names.
type Namer interface {
	ModuleName(moduleID string) string
}

// BankFile is the on-disk JSON format of a question bank.
type BankFile struct {
	Modules []BankModule `json:"modules"`
}

// BankModule is one module inside a BankFile.
type BankModule struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// FileBank is an in-memory Bank loaded from JSON files.
type FileBank struct {
	mu      sync.RWMutex
	names   map[string]string
	byID    map[string][]Question
	ordered []string
}

var (
	_ Bank  = (*FileBank)(nil)
	_ Namer = (*FileBank)(nil)
)

// NewFileBank creates an empty bank.
func NewFileBank() *FileBank {
	return &FileBank{
		names: make(map[string]string),
		byID:  make(map[string][]Question),
	}
}

// LoadFiles reads every path into a new bank. Later files append to
// modules declared by earlier ones.
func LoadFiles(paths ...string) (*FileBank, error) {
	b := NewFileBank()
	for _, p := range paths {
		if err := b.LoadFile(p); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ReadBankFile parses a JSON bank file and normalizes its modules.
func ReadBankFile(path string) (BankFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BankFile{}, fmt.Errorf("read question file: %w", err)
	}
	var f BankFile
	if err := json.Unmarshal(data, &f); err != nil {
		return BankFile{}, fmt.Errorf("parse question file %s: %w", path, err)
	}
	for i := range f.Modules {
		if err := f.Modules[i].Normalize(); err != nil {
			return BankFile{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	return f, nil
}

// Normalize canonicalizes difficulty and option letters, fills in missing
// time estimates and validates every question.
func (m *BankModule) Normalize() error {
	if m.ID == "" {
		return fmt.Errorf("module without id")
	}
	for i := range m.Questions {
		q := &m.Questions[i]
		q.Difficulty = ParseDifficulty(string(q.Difficulty))
		q.Correct = strings.ToUpper(strings.TrimSpace(q.Correct))
		if q.EstimatedSecs == 0 {
			q.EstimatedSecs = DefaultEstimatedSecs
		}
		if err := q.Validate(); err != nil {
			return fmt.Errorf("module %s: %w", m.ID, err)
		}
	}
	return nil
}

// LoadFile parses one JSON bank file and adds its modules.
func (b *FileBank) LoadFile(path string) error {
	f, err := ReadBankFile(path)
	if err != nil {
		return err
	}
	return b.Add(f.Modules...)
}

// Add validates and stores modules.
func (b *FileBank) Add(modules ...BankModule) error {
	for i := range modules {
		if err := modules[i].Normalize(); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range modules {
		if _, ok := b.byID[m.ID]; !ok {
			b.ordered = append(b.ordered, m.ID)
		}
		if m.Name != "" {
			b.names[m.ID] = m.Name
		}
		b.byID[m.ID] = append(b.byID[m.ID], m.Questions...)
	}
	return nil
}

// FetchQuestions returns a copy of the module's questions allowed for kind.
func (b *FileBank) FetchQuestions(_ context.Context, moduleID string, kind Kind) ([]Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	qs, ok := b.byID[moduleID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, moduleID)
	}
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		if q.Allows(kind) {
			out = append(out, q.clone())
		}
	}
	return out, nil
}

// ModuleName returns the name declared in the bank file, falling back to
// the default catalog.
func (b *FileBank) ModuleName(moduleID string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n, ok := b.names[moduleID]; ok {
		return n
	}
	return ModuleName(moduleID)
}

// Modules lists the loaded modules in load order.
func (b *FileBank) Modules() []Module {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Module, 0, len(b.ordered))
	for _, id := range b.ordered {
		name := b.names[id]
		if name == "" {
			name = ModuleName(id)
		}
		out = append(out, Module{ID: id, Name: name})
	}
	return out
}
